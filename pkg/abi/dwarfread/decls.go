package dwarfread

import (
	"debug/dwarf"
	"fmt"

	"github.com/abiscan/abicore/pkg/abi/ir"
	"github.com/abiscan/abicore/pkg/abi/names"
)

// DeclResult accumulates what BuildTranslationUnit produced, for the read
// context to fold into a Corpus (spec.md §4.H step 4). The declaration-only-
// class and pending-virtual-method fixup lists (steps 5-6) are accumulated
// on the Builder itself, since they span every translation unit of one
// corpus, not just this one.
type DeclResult struct {
	TU *ir.TranslationUnit
}

// BuildTranslationUnit walks a CU's DW_TAG_compile_unit entry and its
// top-level children, constructing a translation unit and every
// public-facing declaration reachable from it; nested types are built
// on demand by Builder.BuildType as those declarations reference them
// (spec.md §4.H step 4: "walk top-level children building public-facing
// decls; entities reachable only through those decls are built on demand").
// addrSize is the ELF file's pointer width in bytes (4 or 8): DWARF's own
// entry attributes don't expose the CU header's address_size field through
// debug/dwarf's public API, so the caller derives it from elf.File.Class.
func (b *Builder) BuildTranslationUnit(acc *Accessor, cuEntry *dwarf.Entry, addrSize int) (*DeclResult, error) {
	lang := languageOf(cuEntry)
	b.addrSizeBytes = int64(addrSize)

	tu := ir.NewTranslationUnit(Name(cuEntry), lang, addrSize)
	result := &DeclResult{TU: tu}

	r := acc.ReaderAt(cuEntry.Offset)
	if _, err := r.Next(); err != nil {
		return nil, fmt.Errorf("reading compile unit at %#x: %w", cuEntry.Offset, err)
	}
	children, err := Children(r)
	if err != nil {
		return nil, err
	}

	for _, c := range children {
		if err := b.buildTopLevelDecl(c, tu, tu.GlobalScope, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func languageOf(cuEntry *dwarf.Entry) ir.Language {
	v, ok := cuEntry.Val(dwarf.AttrLanguage).(int64)
	if !ok {
		return ir.LanguageUnknown
	}
	switch v {
	case 0x0001, 0x0002: // DW_LANG_C89, DW_LANG_C
		return ir.LanguageC
	case 0x0004, 0x0019, 0x001a, 0x0021, 0x002a: // DW_LANG_C_plus_plus and friends
		return ir.LanguageCPlusPlus
	case 0x0003: // DW_LANG_Ada83
		return ir.LanguageAda
	case 0x000b: // DW_LANG_Java
		return ir.LanguageJava
	case 0x0008: // DW_LANG_Fortran90
		return ir.LanguageFortran
	default:
		return ir.LanguageUnknown
	}
}

func (b *Builder) buildTopLevelDecl(e *dwarf.Entry, tu *ir.TranslationUnit, scope *ir.Scope, result *DeclResult) error {
	switch e.Tag {
	case dwarf.TagNamespace:
		return b.buildNamespace(e, tu, scope, result)

	case dwarf.TagSubprogram:
		return b.buildFunctionDecl(e, tu, scope, result)

	case dwarf.TagVariable:
		return b.buildVariableDecl(e, tu, scope)

	case dwarf.TagStructType, dwarf.TagUnionType, dwarf.TagClassType, dwarf.TagEnumerationType, dwarf.TagTypedef:
		_, err := b.BuildType(e, scope, tu)
		return err

	default:
		return nil
	}
}

func (b *Builder) buildNamespace(e *dwarf.Entry, tu *ir.TranslationUnit, parent *ir.Scope, result *DeclResult) error {
	name := b.env.Intern(Name(e))
	nsScope := ir.NewScope(name, ir.ScopeKindNamespace, parent)

	ns := &ir.Namespace{Members: nsScope}
	ns.Name = name
	ns.Scope = parent
	parent.AddDeclaration(ns)

	r := b.acc.ReaderAt(e.Offset)
	if _, err := r.Next(); err != nil {
		return err
	}
	children, err := Children(r)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := b.buildTopLevelDecl(c, tu, nsScope, result); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) buildFunctionDecl(e *dwarf.Entry, tu *ir.TranslationUnit, scope *ir.Scope, result *DeclResult) error {
	real, err := SpecificationOrOrigin(b.acc, e)
	if err != nil {
		return err
	}

	ftType, _, err := b.buildFunctionType(e, scope, tu, nil)
	if err != nil {
		return err
	}
	ft := ftType.(*ir.FunctionType)

	name := b.env.Intern(Name(real))
	fn := &ir.Function{
		Type:              ft,
		LinkageName:       LinkageName(real),
		IsDeclarationOnly: Flag(e, dwarf.AttrDeclaration),
	}
	fn.Name = name
	fn.Scope = scope
	scope.AddDeclaration(fn)

	return nil
}

func (b *Builder) buildVariableDecl(e *dwarf.Entry, tu *ir.TranslationUnit, scope *ir.Scope) error {
	real, err := SpecificationOrOrigin(b.acc, e)
	if err != nil {
		return err
	}

	typeEntry, err := TypeRef(b.acc, real)
	if err != nil {
		return err
	}
	t, err := b.BuildType(typeEntry, scope, tu)
	if err != nil {
		return err
	}

	name := b.env.Intern(Name(real))
	v := &ir.Variable{
		Type:        voidOr(t, b.env),
		LinkageName: LinkageName(real),
		IsStatic:    scope.Kind == ir.ScopeKindClass,
	}
	v.Name = name
	v.Scope = scope
	scope.AddDeclaration(v)

	return nil
}

// QualifiedDeclName is a small convenience wrapper around names.QualifiedName
// for declarations, used by the read context when registering corpus-level
// exported-function/variable maps (spec.md §4.D, consumed by §4.H step 8).
func QualifiedDeclName(d ir.Declaration, lang ir.Language) string {
	return names.QualifiedName(d.OwningScope(), d.DeclName(), lang)
}
