package ir

// BaseEncoding mirrors the DWARF DW_ATE_* encoding space closely enough to
// drive the base-type name normalisation spec.md §4.D requires (signedness,
// bit-width, char-ness collapsing spelling variants like "long unsigned int"
// and "unsigned long").
type BaseEncoding int

const (
	BaseEncodingUnspecified BaseEncoding = iota
	BaseEncodingSigned
	BaseEncodingUnsigned
	BaseEncodingSignedChar
	BaseEncodingUnsignedChar
	BaseEncodingBoolean
	BaseEncodingFloat
)

// Type is implemented by every IR type node. Equality between two Types is
// defined as pointer equality of their canonical representative (invariant
// §3.2): two Types denote the same ABI-visible type iff
// a.Canonical() == b.Canonical().
type Type interface {
	// Canonical returns the canonical representative for this type. Before
	// canonicalization runs it returns the receiver itself.
	Canonical() Type
	setCanonical(Type)

	// TypeSizeBits returns the size in bits, or -1 if unknown (e.g. an
	// incomplete declaration-only class).
	TypeSizeBits() int64
}

type typeBase struct {
	canonical Type
}

func (t *typeBase) setCanonical(c Type) { t.canonical = c }

// SetCanonical assigns t's canonical representative. Exported for use by
// pkg/abi/canon, which is the only caller outside this package (invariant
// §3.2 restricts canonical assignment to the canonicalization pass).
func SetCanonical(t Type, c Type) { t.setCanonical(c) }

// BaseType is a fundamental type (int, float, char, ...).
type BaseType struct {
	typeBase
	name     string
	byteSize int64
	encoding BaseEncoding
}

func NewBaseType(name string, byteSize int64, encoding BaseEncoding) *BaseType {
	b := &BaseType{name: name, byteSize: byteSize, encoding: encoding}
	b.canonical = b
	return b
}

func (b *BaseType) Canonical() Type {
	if b.canonical == nil {
		return b
	}
	return b.canonical
}
func (b *BaseType) TypeSizeBits() int64 { return b.byteSize * 8 }
func (b *BaseType) Name() string       { return b.name }
func (b *BaseType) Encoding() BaseEncoding { return b.encoding }

// TypedefType names an underlying type.
type TypedefType struct {
	typeBase
	Name       string
	Underlying Type
	// A typedef chosen as the name of an anonymous underlying class/union is
	// recorded on that class, in ClassType.NamingTypedef (spec.md §4.E Typedef).
}

func (t *TypedefType) Canonical() Type {
	if t.canonical == nil {
		return t
	}
	return t.canonical
}
func (t *TypedefType) TypeSizeBits() int64 { return t.Underlying.TypeSizeBits() }

// PointerType points to another type. Size defaults to the owning CU's
// address size.
type PointerType struct {
	typeBase
	PointedTo Type
	SizeBits  int64
}

func (p *PointerType) Canonical() Type {
	if p.canonical == nil {
		return p
	}
	return p.canonical
}
func (p *PointerType) TypeSizeBits() int64 { return p.SizeBits }

// ReferenceKind distinguishes lvalue and rvalue references.
type ReferenceKind int

const (
	LValueReference ReferenceKind = iota
	RValueReference
)

// ReferenceType is an lvalue or rvalue reference to another type.
type ReferenceType struct {
	typeBase
	ReferredTo Type
	Kind       ReferenceKind
	SizeBits   int64
}

func (r *ReferenceType) Canonical() Type {
	if r.canonical == nil {
		return r
	}
	return r.canonical
}
func (r *ReferenceType) TypeSizeBits() int64 { return r.SizeBits }

// Qualifier is one cv-qualifier. Qualifiers compose as a set (invariant
// §3.5 renormalises some combinations away, e.g. const-reference).
type Qualifier int

const (
	QualifierConst Qualifier = 1 << iota
	QualifierVolatile
	QualifierRestrict
)

// QualifiedType applies one or more cv-qualifiers to an underlying type.
type QualifiedType struct {
	typeBase
	Qualifiers Qualifier
	Underlying Type
}

func (q *QualifiedType) Canonical() Type {
	if q.canonical == nil {
		return q
	}
	return q.canonical
}
func (q *QualifiedType) TypeSizeBits() int64 { return q.Underlying.TypeSizeBits() }
func (q *QualifiedType) Has(bit Qualifier) bool { return q.Qualifiers&bit != 0 }

// SubrangeType is one dimension of an array: [LowerBound, UpperBound] of
// ElementType, or infinite when UpperBound is unknown.
type SubrangeType struct {
	typeBase
	LowerBound int64
	UpperBound int64 // valid only if !Infinite
	Infinite   bool
	Underlying Type // the per-language integer index type, may be nil
}

func (s *SubrangeType) Canonical() Type {
	if s.canonical == nil {
		return s
	}
	return s.canonical
}
func (s *SubrangeType) TypeSizeBits() int64 {
	if s.Underlying != nil {
		return s.Underlying.TypeSizeBits()
	}
	return -1
}

// Count returns the number of elements described by this subrange, or -1 if
// infinite.
func (s *SubrangeType) Count() int64 {
	if s.Infinite {
		return -1
	}
	return s.UpperBound - s.LowerBound + 1
}

// ArrayType is element type plus an ordered list of subrange dimensions.
type ArrayType struct {
	typeBase
	ElementType Type
	Subranges   []*SubrangeType
}

func (a *ArrayType) Canonical() Type {
	if a.canonical == nil {
		return a
	}
	return a.canonical
}
func (a *ArrayType) TypeSizeBits() int64 {
	elemBits := a.ElementType.TypeSizeBits()
	if elemBits < 0 {
		return -1
	}
	total := elemBits
	for _, sr := range a.Subranges {
		if sr.Infinite {
			return -1
		}
		total *= sr.Count()
	}
	return total
}

// Enumerator is one (name, value) pair of an enumeration.
type Enumerator struct {
	Name  string
	Value int64
}

// EnumType is an underlying integer type plus an ordered enumerator list.
type EnumType struct {
	typeBase
	Name        string
	ByteSize    int64
	Underlying  *BaseType
	Enumerators []Enumerator
}

func (e *EnumType) Canonical() Type {
	if e.canonical == nil {
		return e
	}
	return e.canonical
}
func (e *EnumType) TypeSizeBits() int64 { return e.ByteSize * 8 }

// Access is a C++ access specifier.
type Access int

const (
	AccessPublic Access = iota
	AccessProtected
	AccessPrivate
)

// BaseClass is one entry of a class's inheritance list.
type BaseClass struct {
	Base        *ClassType
	Access      Access
	OffsetBits  int64
	IsVirtual   bool
}

// DataMember is a non-static or static field of a class/union.
type DataMember struct {
	Name       string
	Type       Type
	Access     Access
	OffsetBits int64 // meaningless (0) for static members
	IsStatic   bool
}

// MemberFunction is a method of a class/union.
type MemberFunction struct {
	Function    *Function
	Access      Access
	IsVirtual   bool
	IsStatic    bool
	IsConst     bool
	IsCtor      bool
	IsDtor      bool
	VtableIndex int64 // -1 if not virtual
}

// ClassKind distinguishes struct/class/union, which only affects default
// member access (spec.md §4.E Class/Structure/Union).
type ClassKind int

const (
	ClassKindStruct ClassKind = iota
	ClassKindClass
	ClassKindUnion
)

// ClassType is a class, struct or union: members, bases, methods and vtable
// info. It doubles as the "shell" recorded in the work-in-progress map
// during two-phase construction (spec.md §4.E): the builder fills its
// members in place, and cyclic references during construction point at this
// same pointer. IsDeclarationOnly reflects DW_AT_declaration; the read
// context's declaration-only fixup later overwrites such a shell in place
// with a matching definition.
type ClassType struct {
	typeBase
	Name              string
	Kind              ClassKind
	ByteSize          int64
	IsDeclarationOnly bool
	Scope             *Scope // the scope this class introduces for its members
	Bases             []BaseClass
	Members           []DataMember
	Methods           []MemberFunction
	MemberTypes       []Type
	NamingTypedef     *TypedefType // set if an anonymous class is named by a typedef
	HasVTable         bool
}

func (c *ClassType) Canonical() Type {
	if c.canonical == nil {
		return c
	}
	return c.canonical
}
func (c *ClassType) TypeSizeBits() int64 {
	if c.IsDeclarationOnly {
		return -1
	}
	return c.ByteSize * 8
}

func (c *ClassType) DefaultAccess() Access {
	if c.Kind == ClassKindStruct {
		return AccessPublic
	}
	return AccessPrivate
}

// FunctionParameter is one formal parameter of a function type. The
// environment's single Variadic() value terminates the list when present
// (spec.md §4.E Subroutine type).
type FunctionParameter struct {
	Type     Type
	variadic bool
}

func (p *FunctionParameter) IsVariadic() bool { return p.variadic }

// FunctionType is a return type plus an ordered parameter list, and
// optionally the implicit "this" class for non-static methods.
type FunctionType struct {
	typeBase
	ReturnType Type // nil means void
	Parameters []*FunctionParameter
	ThisClass  *ClassType // non-nil for methods
	IsConst    bool       // constness of *ThisClass as seen through "this"
}

func (f *FunctionType) Canonical() Type {
	if f.canonical == nil {
		return f
	}
	return f.canonical
}
func (f *FunctionType) TypeSizeBits() int64 { return -1 }

func (f *FunctionType) IsMethod() bool { return f.ThisClass != nil }
