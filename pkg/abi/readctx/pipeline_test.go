package readctx

import (
	"testing"

	"github.com/abiscan/abicore/pkg/abi/ir"
	"github.com/stretchr/testify/assert"
)

func TestMergeScope_FoldsSrcContentsIntoDst(t *testing.T) {
	env := ir.NewEnvironment()
	dst := ir.NewScope("", ir.ScopeKindGlobal, nil)
	src := ir.NewScope("", ir.ScopeKindGlobal, nil)

	intT := ir.NewBaseType("int", 4, ir.BaseEncodingSigned)
	dst.AddType(intT)

	floatT := ir.NewBaseType("float", 4, ir.BaseEncodingFloat)
	src.AddType(floatT)

	fn := &ir.Function{}
	fn.Name = env.Intern("widget")
	src.AddDeclaration(fn)

	child := ir.NewScope(env.Intern("inner"), ir.ScopeKindNamespace, src)

	mergeScope(dst, src)

	assert.Len(t, dst.Types, 2)
	assert.Contains(t, dst.Types, ir.Type(floatT))
	assert.Len(t, dst.Declarations, 1)
	assert.Same(t, fn, dst.Declarations[0])
	assert.Len(t, dst.Children, 1)
	assert.Same(t, child, dst.Children[0])
}

func TestScopeContains_FindsDirectAndNestedScopes(t *testing.T) {
	root := ir.NewScope("", ir.ScopeKindGlobal, nil)
	child := ir.NewScope("ns", ir.ScopeKindNamespace, root)
	grandchild := ir.NewScope("inner", ir.ScopeKindNamespace, child)

	other := ir.NewScope("unrelated", ir.ScopeKindGlobal, nil)

	assert.True(t, scopeContains(root, root))
	assert.True(t, scopeContains(root, child))
	assert.True(t, scopeContains(root, grandchild))
	assert.False(t, scopeContains(root, other))
	assert.False(t, scopeContains(child, root))
}

func TestFindClassInScope_MatchesPopulatedClassByQualifiedName(t *testing.T) {
	root := ir.NewScope("", ir.ScopeKindGlobal, nil)
	ns := ir.NewScope("acme", ir.ScopeKindNamespace, root)

	decl := &ir.ClassType{Name: "Widget", IsDeclarationOnly: true}
	def := &ir.ClassType{Name: "Widget", IsDeclarationOnly: false}
	ns.AddType(decl)
	ns.AddType(def)

	other := &ir.ClassType{Name: "Gadget", IsDeclarationOnly: false}
	root.AddType(other)

	found := findClassInScope(root, "acme::Widget", ir.LanguageCPlusPlus)
	assert.Same(t, def, found)

	assert.Nil(t, findClassInScope(root, "acme::DoesNotExist", ir.LanguageCPlusPlus))
}

func TestCountTypes_SumsAcrossScopeTree(t *testing.T) {
	root := ir.NewScope("", ir.ScopeKindGlobal, nil)
	root.AddType(ir.NewBaseType("int", 4, ir.BaseEncodingSigned))
	root.AddType(ir.NewBaseType("char", 1, ir.BaseEncodingSignedChar))

	child := ir.NewScope("ns", ir.ScopeKindNamespace, root)
	child.AddType(ir.NewBaseType("float", 4, ir.BaseEncodingFloat))

	assert.Equal(t, 3, countTypes(root))
}
