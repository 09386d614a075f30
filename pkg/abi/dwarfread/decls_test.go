package dwarfread

import (
	"debug/dwarf"
	"testing"

	"github.com/abiscan/abicore/pkg/abi/ir"
	"github.com/stretchr/testify/assert"
)

func TestLanguageOf_MapsKnownDWLANGCodes(t *testing.T) {
	cases := map[int64]ir.Language{
		0x0001: ir.LanguageC,
		0x0002: ir.LanguageC,
		0x0004: ir.LanguageCPlusPlus,
		0x0019: ir.LanguageCPlusPlus,
		0x002a: ir.LanguageCPlusPlus,
		0x0003: ir.LanguageAda,
		0x000b: ir.LanguageJava,
		0x0008: ir.LanguageFortran,
		0x7fff: ir.LanguageUnknown,
	}
	for code, want := range cases {
		e := entryWith(dwarf.Field{Attr: dwarf.AttrLanguage, Val: code})
		assert.Equal(t, want, languageOf(e))
	}

	assert.Equal(t, ir.LanguageUnknown, languageOf(entryWith()))
}

func TestQualifiedDeclName_UsesScopeAndLanguage(t *testing.T) {
	env := ir.NewEnvironment()
	root := ir.NewScope("", ir.ScopeKindGlobal, nil)
	ns := ir.NewScope(env.Intern("acme"), ir.ScopeKindNamespace, root)

	fn := &ir.Function{}
	fn.Name = env.Intern("widget")
	fn.Scope = ns

	got := QualifiedDeclName(fn, ir.LanguageCPlusPlus)
	assert.Equal(t, "acme::widget", got)
}
