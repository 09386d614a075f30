package dwarfread

import (
	"debug/dwarf"
	"testing"

	"github.com/abiscan/abicore/pkg/abi/ir"
	"github.com/stretchr/testify/assert"
)

func TestMapEncoding_KnownDWATECodes(t *testing.T) {
	cases := map[int64]ir.BaseEncoding{
		0x02: ir.BaseEncodingBoolean,
		0x04: ir.BaseEncodingFloat,
		0x05: ir.BaseEncodingSigned,
		0x06: ir.BaseEncodingSignedChar,
		0x07: ir.BaseEncodingUnsigned,
		0x08: ir.BaseEncodingUnsignedChar,
		0x99: ir.BaseEncodingUnspecified,
	}
	for enc, want := range cases {
		assert.Equal(t, want, mapEncoding(enc))
	}
}

func TestQualifierOf_MapsConstVolatileRestrict(t *testing.T) {
	assert.Equal(t, ir.QualifierConst, qualifierOf(dwarf.TagConstType))
	assert.Equal(t, ir.QualifierVolatile, qualifierOf(dwarf.TagVolatileType))
	assert.Equal(t, ir.QualifierRestrict, qualifierOf(dwarf.TagRestrictType))
	assert.Equal(t, ir.Qualifier(0), qualifierOf(dwarf.TagPointerType))
}

func TestApplyQualifier_ComposesOntoExistingQualifiedType(t *testing.T) {
	env := ir.NewEnvironment()
	base := ir.NewBaseType("int", 4, ir.BaseEncodingSigned)

	once := applyQualifier(base, ir.QualifierConst, env)
	qt, ok := once.(*ir.QualifiedType)
	assert.True(t, ok)
	assert.True(t, qt.Has(ir.QualifierConst))

	twice := applyQualifier(once, ir.QualifierVolatile, env)
	qt2, ok := twice.(*ir.QualifiedType)
	assert.True(t, ok)
	assert.True(t, qt2.Has(ir.QualifierConst))
	assert.True(t, qt2.Has(ir.QualifierVolatile))
	assert.Same(t, base, qt2.Underlying, "composing qualifiers must not re-wrap the already-qualified type")
}

func TestApplyQualifier_ConstVoidIsVoid(t *testing.T) {
	env := ir.NewEnvironment()
	got := applyQualifier(env.Void(), ir.QualifierConst, env)
	assert.Same(t, ir.Type(env.Void()), got)

	gotNil := applyQualifier(nil, ir.QualifierConst, env)
	assert.Same(t, ir.Type(env.Void()), gotNil)
}

func TestKindWord_MapsClassKinds(t *testing.T) {
	assert.Equal(t, "struct", kindWord(ir.ClassKindStruct))
	assert.Equal(t, "union", kindWord(ir.ClassKindUnion))
	assert.Equal(t, "class", kindWord(ir.ClassKindClass))
}

func TestAccessOf_MapsDWARFAccessibilityOrFallsBackToDefault(t *testing.T) {
	pub := entryWith(dwarf.Field{Attr: dwarf.AttrAccessibility, Val: int64(1)})
	assert.Equal(t, ir.AccessPublic, accessOf(pub, ir.AccessPrivate))

	prot := entryWith(dwarf.Field{Attr: dwarf.AttrAccessibility, Val: int64(2)})
	assert.Equal(t, ir.AccessProtected, accessOf(prot, ir.AccessPrivate))

	priv := entryWith(dwarf.Field{Attr: dwarf.AttrAccessibility, Val: int64(3)})
	assert.Equal(t, ir.AccessPrivate, accessOf(priv, ir.AccessPublic))

	absent := entryWith()
	assert.Equal(t, ir.AccessPublic, accessOf(absent, ir.AccessPublic))
}

func TestVoidOr_SubstitutesEnvironmentVoidForNil(t *testing.T) {
	env := ir.NewEnvironment()
	assert.Same(t, ir.Type(env.Void()), voidOr(nil, env))

	i := ir.NewBaseType("int", 4, ir.BaseEncodingSigned)
	assert.Same(t, ir.Type(i), voidOr(i, env))
}

func TestNewBuilder_DefaultsAddrSizeToEightBytes(t *testing.T) {
	env := ir.NewEnvironment()
	b := NewBuilder(nil, env, nil)
	assert.Equal(t, int64(8), b.addrSizeBytes)
	assert.Empty(t, b.DeclarationOnlyClasses())
	assert.Empty(t, b.PendingVirtualMethods())
}
