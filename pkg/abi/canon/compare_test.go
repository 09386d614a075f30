package canon

import (
	"testing"

	"github.com/abiscan/abicore/pkg/abi/ir"
	"github.com/stretchr/testify/assert"
)

func TestEqual_BaseTypesBySizeAndName(t *testing.T) {
	a := ir.NewBaseType("int", 4, ir.BaseEncodingSigned)
	b := ir.NewBaseType("int", 4, ir.BaseEncodingSigned)
	c := ir.NewBaseType("int", 8, ir.BaseEncodingSigned)

	cache := NewCache()
	st := newCompareState(cache, ir.LanguageCPlusPlus, false)

	assert.True(t, Equal(a, b, st))
	assert.False(t, Equal(a, c, st))
}

func TestEqual_PointerFastPathSameSourceFile(t *testing.T) {
	intA := ir.NewBaseType("int", 4, ir.BaseEncodingSigned)
	intB := ir.NewBaseType("long", 8, ir.BaseEncodingSigned) // deliberately different

	p1 := &ir.PointerType{PointedTo: intA, SizeBits: 64}
	p2 := &ir.PointerType{PointedTo: intB, SizeBits: 64}

	cache := NewCache()
	cache.SetSourceFile(p1, "a.cc")
	cache.SetSourceFile(p2, "a.cc")

	st := newCompareState(cache, ir.LanguageCPlusPlus, false)
	assert.True(t, Equal(p1, p2, st), "same-CU-file pointers should short-circuit without descending")
}

func TestEqual_PointerDescendsWithoutSourceFile(t *testing.T) {
	intA := ir.NewBaseType("int", 4, ir.BaseEncodingSigned)
	intB := ir.NewBaseType("long", 8, ir.BaseEncodingSigned)

	p1 := &ir.PointerType{PointedTo: intA, SizeBits: 64}
	p2 := &ir.PointerType{PointedTo: intB, SizeBits: 64}

	cache := NewCache()
	st := newCompareState(cache, ir.LanguageCPlusPlus, false)
	assert.False(t, Equal(p1, p2, st))
}

func TestEqual_ClassCycleCutByPrettyName(t *testing.T) {
	// A self-referential struct node { node *next; }: the member's pointee
	// is the same ClassType object, so comparing the class against itself
	// must not infinite-loop.
	node := &ir.ClassType{Name: "node", Kind: ir.ClassKindStruct, ByteSize: 8}
	node.Members = []ir.DataMember{
		{Name: "next", Type: &ir.PointerType{PointedTo: node, SizeBits: 64}, OffsetBits: 0},
	}

	// No source file is recorded, so the pointer member descends back into
	// node and the recursion is cut by the pretty-name cycle set.
	cache := NewCache()

	st := newCompareState(cache, ir.LanguageCPlusPlus, false)
	assert.True(t, Equal(node, node, st))
}

func TestEqual_ClassDifferentMemberCount(t *testing.T) {
	a := &ir.ClassType{Name: "s", Kind: ir.ClassKindStruct, ByteSize: 8, Members: []ir.DataMember{
		{Name: "x", Type: ir.NewBaseType("int", 4, ir.BaseEncodingSigned)},
	}}
	b := &ir.ClassType{Name: "s", Kind: ir.ClassKindStruct, ByteSize: 8}

	cache := NewCache()
	st := newCompareState(cache, ir.LanguageCPlusPlus, false)
	assert.False(t, Equal(a, b, st))
}

func TestEqual_VoidPointeesCompareEqual(t *testing.T) {
	p1 := &ir.PointerType{PointedTo: nil, SizeBits: 64}
	p2 := &ir.PointerType{PointedTo: nil, SizeBits: 64}

	cache := NewCache()
	st := newCompareState(cache, ir.LanguageCPlusPlus, false)
	assert.True(t, Equal(p1, p2, st))
}

func TestCanonicalize_ODRTrustsFirstEntry(t *testing.T) {
	a := &ir.ClassType{Name: "s", Kind: ir.ClassKindStruct, ByteSize: 4}
	b := &ir.ClassType{Name: "s", Kind: ir.ClassKindStruct, ByteSize: 999} // would fail structural compare

	cache := NewCache()
	canonA := cache.Canonicalize(a, "s", ir.LanguageCPlusPlus)
	canonB := cache.Canonicalize(b, "s", ir.LanguageCPlusPlus)

	assert.Same(t, canonA, canonB, "ODR languages trust the first entry without structural comparison")
}

func TestCanonicalize_NonODRComparesStructurally(t *testing.T) {
	a := &ir.ClassType{Name: "s", Kind: ir.ClassKindStruct, ByteSize: 4}
	b := &ir.ClassType{Name: "s", Kind: ir.ClassKindStruct, ByteSize: 4}
	c := &ir.ClassType{Name: "s", Kind: ir.ClassKindStruct, ByteSize: 8}

	cache := NewCache()
	canonA := cache.Canonicalize(a, "s", ir.LanguageC)
	canonB := cache.Canonicalize(b, "s", ir.LanguageC)
	canonC := cache.Canonicalize(c, "s", ir.LanguageC)

	assert.Same(t, canonA, canonB)
	assert.NotSame(t, canonA, canonC)
}

func TestCanonicalize_IdempotentOnRepeatedOffset(t *testing.T) {
	a := ir.NewBaseType("int", 4, ir.BaseEncodingSigned)

	cache := NewCache()
	first := cache.Canonicalize(a, "int32", ir.LanguageC)
	second := cache.Canonicalize(a, "int32", ir.LanguageC)

	assert.Same(t, first, second)
}
