// Package names implements component D: the deterministic "pretty" and
// "qualified" name printers used as canonicalization-cache keys (spec.md
// §4.D). String assembly here leans on the teacher's generic
// pkg/utils.FormatSlice helper (Manu343726-cucaracha/pkg/utils/strings.go),
// adapted from formatting register dumps to formatting type/scope name
// parts.
package names

import (
	"fmt"
	"strings"

	"github.com/abiscan/abicore/pkg/abi/ir"
	"github.com/abiscan/abicore/pkg/utils"
)

// AnonymousCounters tracks, per scope, how many anonymous members of each
// kind have already been named, so repeated anonymous members in the same
// scope don't collide (spec.md §4.D "suffix an index").
type AnonymousCounters struct {
	counts map[*ir.Scope]map[string]int
}

// NewAnonymousCounters creates a fresh per-read-context counter set.
func NewAnonymousCounters() *AnonymousCounters {
	return &AnonymousCounters{counts: make(map[*ir.Scope]map[string]int)}
}

func (a *AnonymousCounters) next(scope *ir.Scope, kind string) int {
	m, ok := a.counts[scope]
	if !ok {
		m = make(map[string]int)
		a.counts[scope] = m
	}
	idx := m[kind]
	m[kind]++
	return idx
}

// AnonymousBaseName returns the synthetic base name for an anonymous
// struct/union/enum, with an index suffix if this is not the first such
// member of scope (spec.md §4.D).
func AnonymousBaseName(counters *AnonymousCounters, scope *ir.Scope, kind string) string {
	idx := counters.next(scope, kind)
	base := fmt.Sprintf("__anonymous_%s__", kind)
	if idx == 0 {
		return base
	}
	return fmt.Sprintf("%s_%d", base, idx)
}

// QualifiedName returns "scope::scope::name" for a declaration in scope,
// short-circuited to the bare linkage/simple name for C translation units
// since C has a single flat namespace (spec.md §4.D).
func QualifiedName(scope *ir.Scope, simpleName string, lang ir.Language) string {
	if lang == ir.LanguageC {
		return simpleName
	}
	parts := append(scope.QualifiedPrefix(), simpleName)
	return utils.FormatSlice(parts, "::")
}

// FunctionSignature is a qualified function name plus its parameter and
// const/virtual decoration, used as the canonicalization key for function
// declarations (spec.md §4.D "Function decls produce a signature").
func FunctionSignature(qualifiedName string, fn *ir.FunctionType, isVirtual bool) string {
	var b strings.Builder

	if fn.ReturnType != nil {
		b.WriteString(PrettyTypeName(fn.ReturnType))
		b.WriteByte(' ')
	} else {
		b.WriteString("void ")
	}

	b.WriteString(qualifiedName)
	b.WriteByte('(')
	params := make([]string, 0, len(fn.Parameters))
	for _, p := range fn.Parameters {
		if p.IsVariadic() {
			params = append(params, "...")
			continue
		}
		params = append(params, PrettyTypeName(p.Type))
	}
	b.WriteString(utils.FormatSlice(params, ", "))
	b.WriteByte(')')

	if fn.IsConst {
		b.WriteString(" const")
	}
	if isVirtual {
		b.WriteString(" virtual")
	}

	return b.String()
}

// PrettyTypeName produces the deterministic, tag-dependent string used as
// the canonicalization key for types (spec.md §4.D "Pretty type name").
func PrettyTypeName(t ir.Type) string {
	switch v := t.(type) {
	case *ir.BaseType:
		return normalizedBaseName(v)
	case *ir.TypedefType:
		return v.Name
	case *ir.QualifiedType:
		return prettyQualifiedName(v)
	case *ir.PointerType:
		return PrettyTypeName(v.PointedTo) + "*"
	case *ir.ReferenceType:
		suffix := "&"
		if v.Kind == ir.RValueReference {
			suffix = "&&"
		}
		return PrettyTypeName(v.ReferredTo) + suffix
	case *ir.ArrayType:
		return prettyArrayName(v)
	case *ir.EnumType:
		return v.Name
	case *ir.ClassType:
		return v.Name
	case *ir.FunctionType:
		return FunctionSignature("", v, false)
	default:
		return fmt.Sprintf("<unknown-type-%T>", t)
	}
}

// prettyQualifiedName composes const/volatile/restrict tokens per spec.md
// §4.D: "const reference" prints as the plain reference (invariant §3.5
// already normalises this away structurally, but the printer is defensive
// about pre-normalisation DIEs too), and "const" with no underlying type
// prints as "void".
func prettyQualifiedName(q *ir.QualifiedType) string {
	if q.Underlying == nil {
		return "void"
	}
	if ref, ok := q.Underlying.(*ir.ReferenceType); ok && q.Has(ir.QualifierConst) {
		return PrettyTypeName(ref)
	}

	var tokens []string
	if q.Has(ir.QualifierConst) {
		tokens = append(tokens, "const")
	}
	if q.Has(ir.QualifierVolatile) {
		tokens = append(tokens, "volatile")
	}
	if q.Has(ir.QualifierRestrict) {
		tokens = append(tokens, "restrict")
	}
	tokens = append(tokens, PrettyTypeName(q.Underlying))
	return utils.FormatSlice(tokens, " ")
}

// prettyArrayName prints element name plus a bracketed-dimensions suffix:
// "[0..N-1]" per subrange, infinite as "[]" (spec.md §4.D Arrays).
func prettyArrayName(a *ir.ArrayType) string {
	var b strings.Builder
	b.WriteString(PrettyTypeName(a.ElementType))
	for _, sr := range a.Subranges {
		if sr.Infinite {
			b.WriteString("[]")
			continue
		}
		fmt.Fprintf(&b, "[%d..%d]", sr.LowerBound, sr.UpperBound)
	}
	return b.String()
}

// normalizedBaseName parses integral type spellings into a
// (signedness, bit-width, char-ness) tuple so spelling variants like
// "long unsigned int" and "unsigned long" collapse to the same key
// (spec.md §4.D "Base type names are normalised").
func normalizedBaseName(b *ir.BaseType) string {
	name := b.Name()
	bits := b.TypeSizeBits()

	switch b.Encoding() {
	case ir.BaseEncodingSignedChar:
		return "char"
	case ir.BaseEncodingUnsignedChar:
		return "unsigned char"
	case ir.BaseEncodingBoolean:
		return "bool"
	case ir.BaseEncodingFloat:
		return fmt.Sprintf("float%d", bits)
	case ir.BaseEncodingSigned:
		return fmt.Sprintf("int%d", bits)
	case ir.BaseEncodingUnsigned:
		return fmt.Sprintf("unsigned int%d", bits)
	default:
		return name
	}
}
