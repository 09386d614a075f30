package dwarfread

import (
	"debug/dwarf"
	"testing"

	"github.com/stretchr/testify/assert"
)

func entryWith(fields ...dwarf.Field) *dwarf.Entry {
	return &dwarf.Entry{Field: fields}
}

func TestName_ReadsAttrNameOrEmpty(t *testing.T) {
	withName := entryWith(dwarf.Field{Attr: dwarf.AttrName, Val: "foo"})
	assert.Equal(t, "foo", Name(withName))

	without := entryWith()
	assert.Equal(t, "", Name(without))
}

func TestLinkageName_FallsBackToMIPSVariant(t *testing.T) {
	standard := entryWith(dwarf.Field{Attr: dwarf.AttrLinkageName, Val: "_Z3fooi"})
	assert.Equal(t, "_Z3fooi", LinkageName(standard))

	vendor := entryWith(dwarf.Field{Attr: attrMIPSLinkageName, Val: "_Z3bari"})
	assert.Equal(t, "_Z3bari", LinkageName(vendor))

	neither := entryWith()
	assert.Equal(t, "", LinkageName(neither))
}

func TestByteSize_DefaultsToMinusOneWhenAbsent(t *testing.T) {
	e := entryWith(dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(4)})
	assert.Equal(t, int64(4), ByteSize(e))

	assert.Equal(t, int64(-1), ByteSize(entryWith()))
}

func TestDataMemberLocation_PlainConstantIsByteOffsetInBits(t *testing.T) {
	e := entryWith(dwarf.Field{Attr: dwarf.AttrDataMemberLoc, Val: int64(4)})
	got := DataMemberLocation(e, func([]byte) (int64, bool) { t.Fatal("should not evaluate an expr for a constant form"); return 0, false })
	assert.Equal(t, int64(32), got)
}

func TestDataMemberLocation_ExpressionFormDelegatesToEvaluator(t *testing.T) {
	e := entryWith(dwarf.Field{Attr: dwarf.AttrDataMemberLoc, Val: []byte{0x23, 0x08}})
	got := DataMemberLocation(e, func(expr []byte) (int64, bool) { return 64, true })
	assert.Equal(t, int64(64), got)
}

func TestDataMemberLocation_AbsentDefaultsToZero(t *testing.T) {
	got := DataMemberLocation(entryWith(), func([]byte) (int64, bool) { return 999, true })
	assert.Equal(t, int64(0), got)
}

func TestConstValue_IntegerAndBlobForms(t *testing.T) {
	asInt := entryWith(dwarf.Field{Attr: dwarf.AttrConstValue, Val: int64(-5)})
	v, ok := ConstValue(asInt)
	assert.True(t, ok)
	assert.Equal(t, int64(-5), v)

	asBlob := entryWith(dwarf.Field{Attr: dwarf.AttrConstValue, Val: []byte{0x02, 0x00}})
	v, ok = ConstValue(asBlob)
	assert.True(t, ok)
	assert.Equal(t, int64(2), v)

	_, ok = ConstValue(entryWith())
	assert.False(t, ok)
}

func TestFlag_TrueFromBoolOrNonzeroInt(t *testing.T) {
	asBool := entryWith(dwarf.Field{Attr: dwarf.AttrExternal, Val: true})
	assert.True(t, Flag(asBool, dwarf.AttrExternal))

	asInt := entryWith(dwarf.Field{Attr: dwarf.AttrVirtuality, Val: int64(1)})
	assert.True(t, Flag(asInt, dwarf.AttrVirtuality))

	absent := entryWith()
	assert.False(t, Flag(absent, dwarf.AttrDeclaration))
}

func TestLocation_ReturnsRawBytesOrNil(t *testing.T) {
	e := entryWith(dwarf.Field{Attr: dwarf.AttrLocation, Val: []byte{0x91, 0x10}})
	assert.Equal(t, []byte{0x91, 0x10}, Location(e))

	assert.Nil(t, Location(entryWith()))
}

func TestSpecificationOrOrigin_ReturnsSelfWhenNeitherPresent(t *testing.T) {
	e := entryWith(dwarf.Field{Attr: dwarf.AttrName, Val: "x"})
	real, err := SpecificationOrOrigin(nil, e)
	assert.NoError(t, err)
	assert.Same(t, e, real)
}

func TestTypeRef_NilWhenAttrAbsent(t *testing.T) {
	e, err := TypeRef(nil, entryWith())
	assert.NoError(t, err)
	assert.Nil(t, e)
}
