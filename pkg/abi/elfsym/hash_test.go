package elfsym

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildGNUHash hand-assembles a one-bucket, one-chain-entry .gnu.hash
// section containing exactly name, the way buildMinimalELF in
// resolver_test.go hand-assembles a minimal ELF file.
func buildGNUHash(t *testing.T, name string, symtabIndex uint32) []byte {
	t.Helper()

	h1 := gnuHash(name)
	const c = 32 // 32-bit bloom words, matching addrSize 4
	bitmask := (uint32(1) << (h1 % c)) | (uint32(1) << (h1 % c))

	data := make([]byte, 28)
	binary.LittleEndian.PutUint32(data[0:], 1)           // nbucket
	binary.LittleEndian.PutUint32(data[4:], symtabIndex)  // symoffset
	binary.LittleEndian.PutUint32(data[8:], 1)            // bloomSize
	binary.LittleEndian.PutUint32(data[12:], 0)           // bloomShift
	binary.LittleEndian.PutUint32(data[16:], bitmask)     // bloom[0]
	binary.LittleEndian.PutUint32(data[20:], symtabIndex) // buckets[0]
	binary.LittleEndian.PutUint32(data[24:], (h1&^1)|1)   // chains[0], stop bit set
	return data
}

func TestGNUHashTable_LookupFindsSingleEntry(t *testing.T) {
	data := buildGNUHash(t, "foo", 1)
	table := ParseGNUHash(data, 4)
	require.NotNil(t, table)

	idx, ok := table.Lookup("foo")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestGNUHashTable_LookupMissBloomFilter(t *testing.T) {
	data := buildGNUHash(t, "foo", 1)
	table := ParseGNUHash(data, 4)
	require.NotNil(t, table)

	_, ok := table.Lookup("an_entirely_different_name")
	assert.False(t, ok)
}

func TestGNUHashTable_LookupNilReceiver(t *testing.T) {
	var table *GNUHashTable
	_, ok := table.Lookup("foo")
	assert.False(t, ok)
}

func TestParseGNUHash_TooShortReturnsNil(t *testing.T) {
	assert.Nil(t, ParseGNUHash([]byte{1, 2, 3}, 8))
}

func TestSysVHashLookup_FindsBucketEntry(t *testing.T) {
	data := make([]byte, 20)
	binary.LittleEndian.PutUint32(data[0:], 1) // nbucket
	binary.LittleEndian.PutUint32(data[4:], 2) // nchain
	binary.LittleEndian.PutUint32(data[8:], 1) // buckets[0] == symtab index 1

	idx, ok := SysVHashLookup(data, 2, "foo")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestSysVHashLookup_TooShortSectionFails(t *testing.T) {
	_, ok := SysVHashLookup([]byte{1, 2, 3}, 10, "foo")
	assert.False(t, ok)
}

func TestResolveVersion_DefaultAndNonDefaultBinding(t *testing.T) {
	verdefNames := map[uint16]string{2: "VER_1.0"}
	versym := []uint16{0, 2, 0x8002}

	v := ResolveVersion(versym, 1, true, verdefNames, nil)
	require.NotNil(t, v)
	assert.Equal(t, "VER_1.0", v.Name)
	assert.True(t, v.IsDefault)

	v = ResolveVersion(versym, 2, true, verdefNames, nil)
	require.NotNil(t, v)
	assert.False(t, v.IsDefault, "the high bit of a versym entry marks a non-default binding")
}

func TestResolveVersion_NoVersionIndicesYieldNil(t *testing.T) {
	versym := []uint16{0, 0, 1, 0x8001}
	assert.Nil(t, ResolveVersion(versym, 1, true, nil, nil))
	assert.Nil(t, ResolveVersion(versym, 2, true, nil, nil))
	assert.Nil(t, ResolveVersion(versym, 3, true, nil, nil))
}

func TestResolveVersion_OutOfRangeIndexYieldsNil(t *testing.T) {
	assert.Nil(t, ResolveVersion([]uint16{0}, 5, true, nil, nil))
}
