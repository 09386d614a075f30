package dwarfread

import (
	"debug/dwarf"
	"fmt"
	"strings"

	"github.com/abiscan/abicore/pkg/abi/canon"
	"github.com/abiscan/abicore/pkg/abi/dwarfexpr"
	"github.com/abiscan/abicore/pkg/abi/ir"
	"github.com/abiscan/abicore/pkg/abi/names"
)

// Builder walks DIEs on demand and constructs pkg/abi/ir nodes, dispatching
// on tag the way the teacher's build.buildTypes does (dwarf_builder.go), but
// driven by reachability from public declarations rather than a fixed
// forward pass, and canonicalizing every type it builds through
// pkg/abi/canon (spec.md §4.E, tying together §4.F/§4.G).
type Builder struct {
	acc    *Accessor
	env    *ir.Environment
	cache  *canon.Cache
	anon   *names.AnonymousCounters

	// addrSizeBytes is the ELF file's pointer width, used to size pointer
	// and reference types whose DIE omits an explicit DW_AT_byte_size.
	addrSizeBytes int64

	// typeByOffset memoizes the (pre-canonicalization) Type already built
	// for a DIE offset, so a type referenced from multiple places is only
	// built once (spec.md §4.E "entities reachable ... are built on
	// demand").
	typeByOffset map[dwarf.Offset]ir.Type

	// classShells holds the two-phase-construction shell for a class/union
	// DIE currently being populated, so a cyclic member reference resolves
	// to the same *ir.ClassType instead of recursing forever (spec.md §4.E
	// "two-phase shell+populate").
	classShells map[dwarf.Offset]*ir.ClassType

	// declarationOnlyClasses and pendingVirtualMethods accumulate across
	// every translation unit of one corpus read, for the read context's
	// fixup passes (spec.md §4.H steps 5-6).
	declarationOnlyClasses []*ir.ClassType
	pendingVirtualMethods  []*ir.Function
}

// NewBuilder creates a type graph builder sharing env and cache with the
// rest of one read context.
func NewBuilder(acc *Accessor, env *ir.Environment, cache *canon.Cache) *Builder {
	return &Builder{
		acc:           acc,
		env:           env,
		cache:         cache,
		anon:          names.NewAnonymousCounters(),
		addrSizeBytes: 8,
		typeByOffset:  make(map[dwarf.Offset]ir.Type),
		classShells:   make(map[dwarf.Offset]*ir.ClassType),
	}
}

// DeclarationOnlyClasses returns every forward-declared class/union built so
// far, for the read context's declaration-only fixup pass.
func (b *Builder) DeclarationOnlyClasses() []*ir.ClassType { return b.declarationOnlyClasses }

// PendingVirtualMethods returns every virtual method built so far whose
// linkage name is known but whose symbol has not yet been attached.
func (b *Builder) PendingVirtualMethods() []*ir.Function { return b.pendingVirtualMethods }

// BuildType resolves e's DW_AT_type (or, if e is itself a type DIE, e) into
// an IR Type, canonicalizing it before returning. A nil DW_AT_type (and a
// nil e) both mean void (spec.md §4.E "nil return means void").
func (b *Builder) BuildType(e *dwarf.Entry, scope *ir.Scope, tu *ir.TranslationUnit) (ir.Type, error) {
	if e == nil {
		return nil, nil
	}

	if t, ok := b.typeByOffset[e.Offset]; ok {
		return t, nil
	}

	t, key, err := b.buildTypeByTag(e, scope, tu)
	if err != nil {
		return nil, fmt.Errorf("building type at offset %#x (tag %s): %w", e.Offset, e.Tag, err)
	}
	if t == nil {
		return nil, nil
	}

	b.typeByOffset[e.Offset] = t
	if scope != nil {
		scope.AddType(t)
	}

	canonical := b.cache.Canonicalize(t, key, tu.Language)
	return canonical, nil
}

func (b *Builder) buildTypeByTag(e *dwarf.Entry, scope *ir.Scope, tu *ir.TranslationUnit) (ir.Type, string, error) {
	switch e.Tag {
	case dwarf.TagBaseType:
		return b.buildBaseType(e)

	case dwarf.TagTypedef:
		return b.buildTypedef(e, scope, tu)

	case dwarf.TagPointerType:
		return b.buildPointer(e, scope, tu)

	case dwarf.TagReferenceType, dwarf.TagRvalueReferenceType:
		return b.buildReference(e, scope, tu)

	case dwarf.TagConstType, dwarf.TagVolatileType, dwarf.TagRestrictType:
		return b.buildQualified(e, scope, tu)

	case dwarf.TagArrayType:
		return b.buildArray(e, scope, tu)

	case dwarf.TagSubrangeType:
		return b.buildSubrange(e, tu)

	case dwarf.TagEnumerationType:
		return b.buildEnum(e)

	case dwarf.TagStructType, dwarf.TagUnionType, dwarf.TagClassType:
		return b.buildClass(e, scope, tu)

	case dwarf.TagSubroutineType:
		return b.buildFunctionType(e, scope, tu, nil)

	default:
		return nil, "", fmt.Errorf("unsupported type tag %s", e.Tag)
	}
}

func (b *Builder) buildBaseType(e *dwarf.Entry) (ir.Type, string, error) {
	name := Name(e)
	size := ByteSize(e)
	if size < 0 {
		size = 0
	}
	encVal, _ := e.Val(dwarf.AttrEncoding).(int64)
	bt := ir.NewBaseType(b.env.Intern(name), size, mapEncoding(encVal))
	return bt, names.PrettyTypeName(bt), nil
}

func mapEncoding(enc int64) ir.BaseEncoding {
	switch enc {
	case 0x02: // DW_ATE_boolean
		return ir.BaseEncodingBoolean
	case 0x04: // DW_ATE_float
		return ir.BaseEncodingFloat
	case 0x05: // DW_ATE_signed
		return ir.BaseEncodingSigned
	case 0x06: // DW_ATE_signed_char
		return ir.BaseEncodingSignedChar
	case 0x07: // DW_ATE_unsigned
		return ir.BaseEncodingUnsigned
	case 0x08: // DW_ATE_unsigned_char
		return ir.BaseEncodingUnsignedChar
	default:
		return ir.BaseEncodingUnspecified
	}
}

func (b *Builder) buildTypedef(e *dwarf.Entry, scope *ir.Scope, tu *ir.TranslationUnit) (ir.Type, string, error) {
	underlyingEntry, err := TypeRef(b.acc, e)
	if err != nil {
		return nil, "", err
	}
	underlying, err := b.BuildType(underlyingEntry, scope, tu)
	if err != nil {
		return nil, "", err
	}
	name := b.env.Intern(Name(e))
	td := &ir.TypedefType{Name: name, Underlying: voidOr(underlying, b.env)}

	// If the typedef names an otherwise-anonymous class/union, record it as
	// that type's NamingTypedef so the printer can use it instead of a
	// synthetic "__anonymous_*" name (spec.md §4.E Typedef). Enums have no
	// NamingTypedef and are not recorded.
	if ct, ok := td.Underlying.(*ir.ClassType); ok && (ct.Name == "" || strings.HasPrefix(ct.Name, "__anonymous_")) {
		ct.NamingTypedef = td
	}

	b.cache.SetSourceFile(td, tu.Path)
	return td, name, nil
}

func (b *Builder) buildPointer(e *dwarf.Entry, scope *ir.Scope, tu *ir.TranslationUnit) (ir.Type, string, error) {
	pointeeEntry, err := TypeRef(b.acc, e)
	if err != nil {
		return nil, "", err
	}
	pointee, err := b.BuildType(pointeeEntry, scope, tu)
	if err != nil {
		return nil, "", err
	}
	size := ByteSize(e)
	if size < 0 {
		size = b.addrSizeBytes
	}
	pt := &ir.PointerType{PointedTo: pointee, SizeBits: size * 8}
	b.cache.SetSourceFile(pt, tu.Path)
	return pt, names.PrettyTypeName(pt), nil
}

func (b *Builder) buildReference(e *dwarf.Entry, scope *ir.Scope, tu *ir.TranslationUnit) (ir.Type, string, error) {
	referredEntry, err := TypeRef(b.acc, e)
	if err != nil {
		return nil, "", err
	}
	referred, err := b.BuildType(referredEntry, scope, tu)
	if err != nil {
		return nil, "", err
	}
	size := ByteSize(e)
	if size < 0 {
		size = b.addrSizeBytes
	}
	kind := ir.LValueReference
	if e.Tag == dwarf.TagRvalueReferenceType {
		kind = ir.RValueReference
	}
	rt := &ir.ReferenceType{ReferredTo: referred, Kind: kind, SizeBits: size * 8}
	b.cache.SetSourceFile(rt, tu.Path)
	return rt, names.PrettyTypeName(rt), nil
}

// buildQualified implements invariant §3.5's normalisations directly at
// construction time: a const applied to a reference is dropped (references
// are never re-bindable so const adds nothing), and cv applied to an array
// is re-seated onto the element type instead of wrapping the array (spec.md
// §3.5, referenced again at §4.F for the printer-level mirror of this rule).
func (b *Builder) buildQualified(e *dwarf.Entry, scope *ir.Scope, tu *ir.TranslationUnit) (ir.Type, string, error) {
	underlyingEntry, err := TypeRef(b.acc, e)
	if err != nil {
		return nil, "", err
	}
	underlying, err := b.BuildType(underlyingEntry, scope, tu)
	if err != nil {
		return nil, "", err
	}

	qualifier := qualifierOf(e.Tag)

	if ref, ok := underlying.(*ir.ReferenceType); ok && qualifier == ir.QualifierConst {
		return ref, names.PrettyTypeName(ref), nil
	}

	if arr, ok := underlying.(*ir.ArrayType); ok {
		reseated := &ir.ArrayType{
			ElementType: applyQualifier(arr.ElementType, qualifier, b.env),
			Subranges:   arr.Subranges,
		}
		return reseated, names.PrettyTypeName(reseated), nil
	}

	qt := applyQualifier(underlying, qualifier, b.env)
	b.cache.SetSourceFile(qt, tu.Path)
	return qt, names.PrettyTypeName(qt), nil
}

func qualifierOf(tag dwarf.Tag) ir.Qualifier {
	switch tag {
	case dwarf.TagConstType:
		return ir.QualifierConst
	case dwarf.TagVolatileType:
		return ir.QualifierVolatile
	case dwarf.TagRestrictType:
		return ir.QualifierRestrict
	default:
		return 0
	}
}

// applyQualifier composes onto an existing QualifiedType rather than
// nesting qualifiers, and normalises const-void to plain void (invariant
// §3.5 "const-void -> void").
func applyQualifier(underlying ir.Type, qualifier ir.Qualifier, env *ir.Environment) ir.Type {
	if underlying == nil || underlying == ir.Type(env.Void()) {
		return env.Void()
	}
	if q, ok := underlying.(*ir.QualifiedType); ok {
		return &ir.QualifiedType{Qualifiers: q.Qualifiers | qualifier, Underlying: q.Underlying}
	}
	return &ir.QualifiedType{Qualifiers: qualifier, Underlying: underlying}
}

func (b *Builder) buildArray(e *dwarf.Entry, scope *ir.Scope, tu *ir.TranslationUnit) (ir.Type, string, error) {
	elemEntry, err := TypeRef(b.acc, e)
	if err != nil {
		return nil, "", err
	}
	elem, err := b.BuildType(elemEntry, scope, tu)
	if err != nil {
		return nil, "", err
	}

	r := b.acc.ReaderAt(e.Offset)
	if _, err := r.Next(); err != nil {
		return nil, "", err
	}
	children, err := Children(r)
	if err != nil {
		return nil, "", err
	}

	at := &ir.ArrayType{ElementType: elem}
	for _, c := range children {
		if c.Tag != dwarf.TagSubrangeType {
			continue
		}
		sr, _, err := b.buildSubrange(c, tu)
		if err != nil {
			return nil, "", err
		}
		at.Subranges = append(at.Subranges, sr.(*ir.SubrangeType))
	}
	if len(at.Subranges) == 0 {
		at.Subranges = []*ir.SubrangeType{{Infinite: true, LowerBound: tu.Language.DefaultArrayLowerBound()}}
	}

	return at, names.PrettyTypeName(at), nil
}

func (b *Builder) buildSubrange(e *dwarf.Entry, tu *ir.TranslationUnit) (ir.Type, string, error) {
	sr := &ir.SubrangeType{LowerBound: tu.Language.DefaultArrayLowerBound()}

	if lb, ok := e.Val(dwarf.AttrLowerBound).(int64); ok {
		sr.LowerBound = lb
	}

	if count, ok := e.Val(dwarf.AttrCount).(int64); ok {
		sr.UpperBound = sr.LowerBound + count - 1
	} else if ub, ok := e.Val(dwarf.AttrUpperBound).(int64); ok && ub != -1 {
		sr.UpperBound = ub
	} else {
		// No count and no upper bound, or an upper bound of UINT64_MAX
		// (read back as -1): an array of unknown size.
		sr.Infinite = true
	}

	return sr, "subrange", nil
}

func (b *Builder) buildEnum(e *dwarf.Entry) (ir.Type, string, error) {
	name := b.env.Intern(Name(e))
	size := ByteSize(e)
	if size < 0 {
		size = 4
	}

	et := &ir.EnumType{Name: name, ByteSize: size}

	r := b.acc.ReaderAt(e.Offset)
	if _, err := r.Next(); err != nil {
		return nil, "", err
	}
	children, err := Children(r)
	if err != nil {
		return nil, "", err
	}
	for _, c := range children {
		if c.Tag != dwarf.TagEnumerator {
			continue
		}
		v, _ := ConstValue(c)
		et.Enumerators = append(et.Enumerators, ir.Enumerator{Name: b.env.Intern(Name(c)), Value: v})
	}

	return et, names.PrettyTypeName(et), nil
}

// buildClass implements the two-phase shell+populate construction spec.md
// §4.E requires so member types that point back at the class (a linked-list
// node, a self-referential smart pointer) resolve to the same object
// instead of recursing (spec.md §4.E "Class/Structure/Union").
func (b *Builder) buildClass(e *dwarf.Entry, scope *ir.Scope, tu *ir.TranslationUnit) (ir.Type, string, error) {
	if shell, ok := b.classShells[e.Offset]; ok {
		return shell, names.PrettyTypeName(shell), nil
	}

	kind := ir.ClassKindStruct
	switch e.Tag {
	case dwarf.TagClassType:
		kind = ir.ClassKindClass
	case dwarf.TagUnionType:
		kind = ir.ClassKindUnion
	}

	name := Name(e)
	isDeclOnly := Flag(e, dwarf.AttrDeclaration)
	if name == "" && !isDeclOnly {
		name = names.AnonymousBaseName(b.anon, scope, kindWord(kind))
	}
	name = b.env.Intern(name)

	shell := &ir.ClassType{
		Name:              name,
		Kind:              kind,
		IsDeclarationOnly: isDeclOnly,
		Scope:             ir.NewScope(name, ir.ScopeKindClass, scope),
	}
	b.classShells[e.Offset] = shell
	defer delete(b.classShells, e.Offset)

	if isDeclOnly {
		b.declarationOnlyClasses = append(b.declarationOnlyClasses, shell)
		return shell, names.PrettyTypeName(shell), nil
	}

	size := ByteSize(e)
	if size < 0 {
		size = 0
	}
	shell.ByteSize = size

	r := b.acc.ReaderAt(e.Offset)
	if _, err := r.Next(); err != nil {
		return nil, "", err
	}
	children, err := Children(r)
	if err != nil {
		return nil, "", err
	}

	for _, c := range children {
		switch c.Tag {
		case dwarf.TagInheritance:
			baseEntry, err := TypeRef(b.acc, c)
			if err != nil {
				return nil, "", err
			}
			baseType, err := b.BuildType(baseEntry, scope, tu)
			if err != nil {
				return nil, "", err
			}
			baseClass, ok := baseType.(*ir.ClassType)
			if !ok {
				continue
			}
			offsetBits := DataMemberLocation(c, dwarfexpr.EvalMemberOffsetBits)
			shell.Bases = append(shell.Bases, ir.BaseClass{
				Base:       baseClass,
				Access:     accessOf(c, shell.DefaultAccess()),
				OffsetBits: offsetBits,
				IsVirtual:  Flag(c, dwarf.AttrVirtuality),
			})

		case dwarf.TagMember:
			memberEntry, err := TypeRef(b.acc, c)
			if err != nil {
				return nil, "", err
			}
			memberType, err := b.BuildType(memberEntry, shell.Scope, tu)
			if err != nil {
				return nil, "", err
			}
			// A static data member is declared inside the class with no
			// storage location of its own; its defining DW_TAG_variable
			// lives at namespace scope and is linked up separately.
			isStatic := c.Val(dwarf.AttrDataMemberLoc) == nil && c.Val(dwarf.AttrDataBitOffset) == nil
			offsetBits := int64(0)
			if !isStatic {
				if bo := DataBitOffset(c); bo >= 0 {
					offsetBits = bo
				} else {
					offsetBits = DataMemberLocation(c, dwarfexpr.EvalMemberOffsetBits)
				}
			}
			shell.Members = append(shell.Members, ir.DataMember{
				Name:       b.env.Intern(Name(c)),
				Type:       voidOr(memberType, b.env),
				Access:     accessOf(c, shell.DefaultAccess()),
				OffsetBits: offsetBits,
				IsStatic:   isStatic,
			})

		case dwarf.TagSubprogram:
			fn, err := b.buildMethod(c, shell, scope, tu)
			if err != nil {
				return nil, "", err
			}
			shell.Methods = append(shell.Methods, fn)

		default:
			// Nested type definitions (member classes/enums/typedefs) are
			// built lazily on reference rather than eagerly here, per
			// spec.md §4.E's on-demand reachability rule.
		}
	}

	return shell, names.PrettyTypeName(shell), nil
}

func kindWord(k ir.ClassKind) string {
	switch k {
	case ir.ClassKindUnion:
		return "union"
	case ir.ClassKindClass:
		return "class"
	default:
		return "struct"
	}
}

func accessOf(e *dwarf.Entry, def ir.Access) ir.Access {
	v, ok := e.Val(dwarf.AttrAccessibility).(int64)
	if !ok {
		return def
	}
	switch v {
	case 1: // DW_ACCESS_public
		return ir.AccessPublic
	case 2: // DW_ACCESS_protected
		return ir.AccessProtected
	case 3: // DW_ACCESS_private
		return ir.AccessPrivate
	default:
		return def
	}
}

func (b *Builder) buildMethod(e *dwarf.Entry, owner *ir.ClassType, scope *ir.Scope, tu *ir.TranslationUnit) (ir.MemberFunction, error) {
	fnType, _, err := b.buildFunctionType(e, scope, tu, owner)
	if err != nil {
		return ir.MemberFunction{}, err
	}
	ft := fnType.(*ir.FunctionType)

	vtableIndex := int64(-1)
	isVirtual := Flag(e, dwarf.AttrVirtuality)
	if isVirtual {
		if idx, ok := e.Val(dwarf.AttrVtableElemLoc).([]byte); ok {
			if n, ok := dwarfexpr.EvalMemberOffsetBits(idx); ok {
				vtableIndex = n / 8
			}
		}
	}

	name := Name(e)
	fn := ir.MemberFunction{
		Function: &ir.Function{
			Type:        ft,
			LinkageName: LinkageName(e),
		},
		Access:      accessOf(e, owner.DefaultAccess()),
		IsVirtual:   isVirtual,
		IsStatic:    !ft.IsMethod(),
		IsConst:     ft.IsConst,
		IsCtor:      name == owner.Name,
		IsDtor:      len(name) > 0 && name[0] == '~',
		VtableIndex: vtableIndex,
	}
	fn.Function.Name = b.env.Intern(name)
	fn.Function.Scope = owner.Scope

	if isVirtual && fn.Function.LinkageName != "" && fn.Function.Symbol == nil {
		b.pendingVirtualMethods = append(b.pendingVirtualMethods, fn.Function)
	}

	return fn, nil
}

// buildFunctionType builds a *ir.FunctionType for a subprogram or
// subroutine_type DIE. owner, when non-nil, puts e in class-member context,
// but e is only actually a non-static method if one of its formal_parameter
// children is the implicit receiver: DW_AT_object_pointer identifies that
// parameter when the producer emits it, otherwise the older-GCC fallback of
// an artificial first parameter is used (spec.md §4.E "static-ness via
// DW_AT_object_pointer / implicit this"). A static method DIE has neither
// signal, and its first formal_parameter is a genuine argument.
func (b *Builder) buildFunctionType(e *dwarf.Entry, scope *ir.Scope, tu *ir.TranslationUnit, owner *ir.ClassType) (ir.Type, string, error) {
	retEntry, err := TypeRef(b.acc, e)
	if err != nil {
		return nil, "", err
	}
	retType, err := b.BuildType(retEntry, scope, tu)
	if err != nil {
		return nil, "", err
	}

	ft := &ir.FunctionType{ReturnType: retType}

	r := b.acc.ReaderAt(e.Offset)
	if _, err := r.Next(); err != nil {
		return nil, "", err
	}
	children, err := Children(r)
	if err != nil {
		return nil, "", err
	}

	objectPointerOffset, hasObjectPointer := objectPointerRef(e)
	consumedThis := false
	paramIndex := 0
	for _, c := range children {
		switch c.Tag {
		case dwarf.TagFormalParameter:
			paramEntry, err := TypeRef(b.acc, c)
			if err != nil {
				return nil, "", err
			}
			paramType, err := b.BuildType(paramEntry, scope, tu)
			if err != nil {
				return nil, "", err
			}
			isThis := owner != nil && !consumedThis && isThisParameter(c, paramIndex, objectPointerOffset, hasObjectPointer)
			paramIndex++
			if isThis {
				ft.ThisClass = owner
				if pt, ok := paramType.(*ir.PointerType); ok {
					if qt, ok := pt.PointedTo.(*ir.QualifiedType); ok && qt.Has(ir.QualifierConst) {
						ft.IsConst = true
					}
				}
				consumedThis = true
				continue
			}
			ft.Parameters = append(ft.Parameters, &ir.FunctionParameter{Type: voidOr(paramType, b.env)})

		case dwarf.TagUnspecifiedParameters:
			ft.Parameters = append(ft.Parameters, b.env.Variadic())
		}
	}

	return ft, names.PrettyTypeName(ft), nil
}

// objectPointerRef reads DW_AT_object_pointer, the reference producers set
// on a subprogram DIE to point at whichever formal_parameter child is the
// implicit receiver.
func objectPointerRef(e *dwarf.Entry) (dwarf.Offset, bool) {
	off, ok := e.Val(dwarf.AttrObjectPointer).(dwarf.Offset)
	return off, ok
}

// isThisParameter reports whether c, the paramIndex'th formal_parameter
// child of a method DIE, is the implicit "this" receiver rather than a real
// argument. DW_AT_object_pointer is authoritative when present; otherwise
// this falls back to the convention of an artificial, positionally-first
// parameter older producers rely on instead.
func isThisParameter(c *dwarf.Entry, paramIndex int, objOffset dwarf.Offset, hasObjOffset bool) bool {
	if hasObjOffset {
		return c.Offset == objOffset
	}
	return paramIndex == 0 && Flag(c, dwarf.AttrArtificial)
}

// voidOr substitutes env's canonical void singleton for a nil Type so
// callers never have to special-case nil downstream (spec.md §4.E uses nil
// only at the DW_AT_type-absence boundary; everywhere else void is a real
// value).
func voidOr(t ir.Type, env *ir.Environment) ir.Type {
	if t == nil {
		return env.Void()
	}
	return t
}
