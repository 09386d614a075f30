package canon

import (
	"strings"

	"github.com/abiscan/abicore/pkg/abi/ir"
	"github.com/abiscan/abicore/pkg/abi/names"
)

// compareState thread the being_compared_set and cache through a single
// top-level comparator call (spec.md §4.F signature
// "compare_dies(l, r, being_compared_set, update_canonical)").
type compareState struct {
	cache           *Cache
	lang            ir.Language
	updateCanonical bool
	// beingCompared is the cycle-cut set for class/union and
	// subroutine/subprogram comparisons, keyed by pretty name.
	beingCompared map[string]bool
}

func newCompareState(cache *Cache, lang ir.Language, updateCanonical bool) *compareState {
	return &compareState{cache: cache, lang: lang, updateCanonical: updateCanonical, beingCompared: make(map[string]bool)}
}

// Equal implements component F, compare_dies, over the IR Type graph
// (spec.md §4.F). l and r denote the same ABI-visible type iff Equal
// returns true.
func Equal(l, r ir.Type, st *compareState) bool {
	if l == nil || r == nil {
		return l == r
	}

	// Short-circuit 2: both sides already canonicalized — compare the
	// canonical representatives directly.
	if l.Canonical() != l && r.Canonical() != r {
		return l.Canonical() == r.Canonical()
	}

	switch lv := l.(type) {
	case *ir.BaseType:
		rv, ok := r.(*ir.BaseType)
		return ok && sameBase(lv, rv)

	case *ir.TypedefType:
		rv, ok := r.(*ir.TypedefType)
		if !ok || lv.Name != rv.Name {
			return false
		}
		if fastPathSameSource(st, l, r, lv.Underlying) {
			return true
		}
		return Equal(lv.Underlying, rv.Underlying, st)

	case *ir.PointerType:
		rv, ok := r.(*ir.PointerType)
		if !ok {
			return false
		}
		if fastPathSameSource(st, l, r, lv.PointedTo) {
			return true
		}
		return equalUnderlyingOrBothVoid(lv.PointedTo, rv.PointedTo, st)

	case *ir.ReferenceType:
		rv, ok := r.(*ir.ReferenceType)
		if !ok || lv.Kind != rv.Kind {
			return false
		}
		if fastPathSameSource(st, l, r, lv.ReferredTo) {
			return true
		}
		return equalUnderlyingOrBothVoid(lv.ReferredTo, rv.ReferredTo, st)

	case *ir.QualifiedType:
		rv, ok := r.(*ir.QualifiedType)
		if !ok || lv.Qualifiers != rv.Qualifiers {
			return false
		}
		if fastPathSameSource(st, l, r, lv.Underlying) {
			return true
		}
		return equalUnderlyingOrBothVoid(lv.Underlying, rv.Underlying, st)

	case *ir.EnumType:
		rv, ok := r.(*ir.EnumType)
		return ok && sameEnum(lv, rv)

	case *ir.ClassType:
		rv, ok := r.(*ir.ClassType)
		return ok && sameClass(lv, rv, st)

	case *ir.ArrayType:
		rv, ok := r.(*ir.ArrayType)
		if !ok || len(lv.Subranges) != len(rv.Subranges) {
			return false
		}
		for i := range lv.Subranges {
			if !sameSubrange(lv.Subranges[i], rv.Subranges[i]) {
				return false
			}
		}
		return Equal(lv.ElementType, rv.ElementType, st)

	case *ir.SubrangeType:
		rv, ok := r.(*ir.SubrangeType)
		return ok && sameSubrange(lv, rv)

	case *ir.FunctionType:
		rv, ok := r.(*ir.FunctionType)
		return ok && sameFunction(lv, rv, st)

	default:
		return false
	}
}

// fastPathSameSource implements spec.md §4.F's typedef/pointer/reference/
// qualifier fast path: "if this is not a pointer-or-qualifier to an
// anonymous class and both DIEs live in the same CU file, return true
// without descending." isAnonymousClass reports whether underlying is an
// anonymous class/union (no name, or the builder's synthetic
// "__anonymous_*" name), which always forces the slow, descending path.
func fastPathSameSource(st *compareState, l, r ir.Type, underlying ir.Type) bool {
	if isAnonymousClass(underlying) {
		return false
	}
	return st.cache.sameSourceFile(l, r)
}

func isAnonymousClass(t ir.Type) bool {
	c, ok := t.(*ir.ClassType)
	return ok && (c.Name == "" || strings.HasPrefix(c.Name, "__anonymous_"))
}

// equalUnderlyingOrBothVoid treats a nil (void) underlying type on both
// sides as equal (spec.md §4.F "Void underlying on both sides compares
// equal").
func equalUnderlyingOrBothVoid(l, r ir.Type, st *compareState) bool {
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	return Equal(l, r, st)
}

func sameBase(l, r *ir.BaseType) bool {
	return l.TypeSizeBits() == r.TypeSizeBits() && l.Name() == r.Name()
}

func sameEnum(l, r *ir.EnumType) bool {
	if l.Name != r.Name || l.ByteSize != r.ByteSize || len(l.Enumerators) != len(r.Enumerators) {
		return false
	}
	for i := range l.Enumerators {
		if l.Enumerators[i] != r.Enumerators[i] {
			return false
		}
	}
	return true
}

func sameSubrange(l, r *ir.SubrangeType) bool {
	if l.Infinite != r.Infinite {
		return false
	}
	if l.Infinite {
		return l.LowerBound == r.LowerBound
	}
	return l.LowerBound == r.LowerBound && l.UpperBound == r.UpperBound
}

// sameClass implements the class/union rule: cycle-cut by pretty name,
// then compare size, base list and member list element-wise (spec.md
// §4.F "class/union").
func sameClass(l, r *ir.ClassType, st *compareState) bool {
	key := st.cache.PrettyName(l, names.PrettyTypeName)
	if st.beingCompared[key] {
		return true
	}
	otherKey := st.cache.PrettyName(r, names.PrettyTypeName)

	st.beingCompared[key] = true
	st.beingCompared[otherKey] = true
	defer func() {
		delete(st.beingCompared, key)
		delete(st.beingCompared, otherKey)
	}()

	if l.Kind != r.Kind || l.IsDeclarationOnly != r.IsDeclarationOnly {
		return false
	}
	if !l.IsDeclarationOnly && l.ByteSize != r.ByteSize {
		return false
	}
	if len(l.Bases) != len(r.Bases) || len(l.Members) != len(r.Members) {
		return false
	}

	for i := range l.Bases {
		lb, rb := l.Bases[i], r.Bases[i]
		if lb.Access != rb.Access || lb.OffsetBits != rb.OffsetBits || lb.IsVirtual != rb.IsVirtual {
			return false
		}
		if !sameClass(lb.Base, rb.Base, st) {
			return false
		}
	}

	for i := range l.Members {
		if !sameMember(l.Members[i], r.Members[i], st) {
			return false
		}
	}

	return true
}

// sameMember implements the variable/member rule: access, decl properties,
// bit offset and type, with the depth bound from spec.md §4.F
// ("variable/member ... bound the recursion depth ... when the
// being-compared set has at least five entries, fall back to a shallow
// name+size comparison instead of descending").
func sameMember(l, r ir.DataMember, st *compareState) bool {
	if l.Name != r.Name || l.Access != r.Access || l.IsStatic != r.IsStatic {
		return false
	}
	if !l.IsStatic && l.OffsetBits != r.OffsetBits {
		return false
	}
	if len(st.beingCompared) >= 5 {
		return l.Type.TypeSizeBits() == r.Type.TypeSizeBits()
	}
	return Equal(l.Type, r.Type, st)
}

// sameFunction implements the subroutine/subprogram rule: cycle guard by
// pretty type name, then compare return type and ordered formal parameters
// (spec.md §4.F).
func sameFunction(l, r *ir.FunctionType, st *compareState) bool {
	key := st.cache.PrettyName(l, names.PrettyTypeName)
	if st.beingCompared[key] {
		return true
	}
	otherKey := st.cache.PrettyName(r, names.PrettyTypeName)

	st.beingCompared[key] = true
	st.beingCompared[otherKey] = true
	defer func() {
		delete(st.beingCompared, key)
		delete(st.beingCompared, otherKey)
	}()

	if l.IsConst != r.IsConst || len(l.Parameters) != len(r.Parameters) {
		return false
	}
	if !equalUnderlyingOrBothVoid(l.ReturnType, r.ReturnType, st) {
		return false
	}
	for i := range l.Parameters {
		lp, rp := l.Parameters[i], r.Parameters[i]
		if lp.IsVariadic() != rp.IsVariadic() {
			return false
		}
		if lp.IsVariadic() {
			continue
		}
		if !Equal(lp.Type, rp.Type, st) {
			return false
		}
	}
	return true
}
