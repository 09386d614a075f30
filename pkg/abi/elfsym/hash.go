package elfsym

import (
	"encoding/binary"

	"github.com/abiscan/abicore/pkg/abi/ir"
)

// elfHash implements the classic SysV symbol hash (spec.md §4.C "walks the
// classic bucket/chain using elf_hash").
func elfHash(name string) uint32 {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = (h << 4) + uint32(name[i])
		top := h & 0xf0000000
		if top != 0 {
			h ^= top >> 24
		}
		h &^= top
	}
	return h
}

// gnuHash implements the GNU hash function used by .gnu.hash's bloom
// filter and bucket chain.
func gnuHash(name string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(name); i++ {
		h = h*33 + uint32(name[i])
	}
	return h
}

// SysVHashLookup hashes name into a classic .hash section's buckets and
// returns the first index on that bucket's chain that is below symtabCount
// (spec.md §4.C "When only SysV hash is present"). It has no access to
// symbol names, so it does not compare them: the result is the chain's first
// valid entry, the caller checks the name, and a symbol further along the
// chain is not found through this function.
func SysVHashLookup(hashSection []byte, symtabCount int, name string) (int, bool) {
	if len(hashSection) < 8 {
		return 0, false
	}
	nbucket := binary.LittleEndian.Uint32(hashSection[0:4])
	nchain := binary.LittleEndian.Uint32(hashSection[4:8])
	buckets := hashSection[8:]
	chains := buckets[nbucket*4:]

	if nbucket == 0 || nchain == 0 {
		return 0, false
	}

	h := elfHash(name)
	idx := binary.LittleEndian.Uint32(buckets[(h%nbucket)*4:])
	for idx != 0 {
		if int(idx) < symtabCount {
			return int(idx), true
		}
		if idx >= nchain {
			break
		}
		idx = binary.LittleEndian.Uint32(chains[idx*4:])
	}
	return 0, false
}

// GNUHashTable is a parsed .gnu.hash section.
type GNUHashTable struct {
	nbucket   uint32
	symoffset uint32
	bloomSize uint32
	bloomShift uint32
	bloom     []uint64
	buckets   []uint32
	chains    []uint32
	is64      bool
}

// ParseGNUHash parses the raw .gnu.hash section bytes.
func ParseGNUHash(data []byte, addrSize int) *GNUHashTable {
	if len(data) < 16 {
		return nil
	}
	t := &GNUHashTable{is64: addrSize == 8}
	t.nbucket = binary.LittleEndian.Uint32(data[0:4])
	t.symoffset = binary.LittleEndian.Uint32(data[4:8])
	t.bloomSize = binary.LittleEndian.Uint32(data[8:12])
	t.bloomShift = binary.LittleEndian.Uint32(data[12:16])

	off := 16
	wordSize := 4
	if t.is64 {
		wordSize = 8
	}
	t.bloom = make([]uint64, t.bloomSize)
	for i := uint32(0); i < t.bloomSize; i++ {
		if t.is64 {
			t.bloom[i] = binary.LittleEndian.Uint64(data[off:])
		} else {
			t.bloom[i] = uint64(binary.LittleEndian.Uint32(data[off:]))
		}
		off += wordSize
	}

	t.buckets = make([]uint32, t.nbucket)
	for i := range t.buckets {
		t.buckets[i] = binary.LittleEndian.Uint32(data[off:])
		off += 4
	}

	// The chain array's length isn't recorded explicitly; callers read as
	// many entries as needed until the low bit of a stop word is seen, so
	// we keep the remainder of the section as a flat byte window.
	t.chains = make([]uint32, (len(data)-off)/4)
	for i := range t.chains {
		t.chains[i] = binary.LittleEndian.Uint32(data[off+i*4:])
	}
	return t
}

// Lookup performs a GNU-hash lookup of name, returning the dynamic symbol
// table index on success. It uses the bloom filter as a negative
// short-circuit, then walks the bucket chain checking
// "(stop_word & ^1) == (h1 & ^1)" per entry, terminating on the low bit
// (spec.md §4.C).
func (t *GNUHashTable) Lookup(name string) (int, bool) {
	if t == nil || t.nbucket == 0 {
		return 0, false
	}
	h1 := gnuHash(name)

	c := uint32(32)
	if t.is64 {
		c = 64
	}
	bloomWord := t.bloom[(h1/c)%t.bloomSize]
	h2 := h1 >> t.bloomShift
	bitmask := (uint64(1) << (h1 % c)) | (uint64(1) << (h2 % c))
	if bloomWord&bitmask != bitmask {
		return 0, false
	}

	idx := t.buckets[h1%t.nbucket]
	if idx < t.symoffset {
		return 0, false
	}

	for i := idx - t.symoffset; int(i) < len(t.chains); i++ {
		stopWord := t.chains[i]
		if (stopWord &^ 1) == (h1 &^ 1) {
			return int(t.symoffset) + int(i), true
		}
		if stopWord&1 != 0 {
			break
		}
	}
	return 0, false
}

// versionIndex decodes one GNU_versym entry: the version table index and
// whether the high bit (non-default binding) is set (spec.md §4.C "The
// high bit of a versym entry indicates a non-default binding").
func versionIndex(versym uint16) (idx uint16, nonDefault bool) {
	return versym &^ 0x8000, versym&0x8000 != 0
}

// ResolveVersion resolves the version of symbol index i using versym plus
// verdef (for defined symbols) or verneed (for undefined ones). Version
// index 0 and 1 yield no version; 0x8001 means "discard" (spec.md §4.C).
func ResolveVersion(versym []uint16, i int, defined bool, verdefNames, verneedNames map[uint16]string) *ir.SymbolVersion {
	if i >= len(versym) {
		return nil
	}
	idx, nonDefault := versionIndex(versym[i])
	if idx == 0 || idx == 1 || versym[i] == 0x8001 {
		return nil
	}

	var name string
	var ok bool
	if defined {
		name, ok = verdefNames[idx]
	} else {
		name, ok = verneedNames[idx]
	}
	if !ok {
		return nil
	}
	return &ir.SymbolVersion{Name: name, IsDefault: !nonDefault}
}
