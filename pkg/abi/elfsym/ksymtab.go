package elfsym

import "encoding/binary"

// KsymtabFormat is the detected layout of a Linux kernel __ksymtab section
// (GLOSSARY "ksymtab"; spec.md §4.C ksymtab format detection).
type KsymtabFormat int

const (
	KsymtabNone KsymtabFormat = iota
	KsymtabPre419
	KsymtabV419
)

// DetectKsymtabFormat probes section against both historical layouts and
// returns the one whose first entry resolves to a known symbol address.
// Pre-4.19 wins if both probes resolve (spec.md §8 property 5: "ksymtab
// format detection is conservative").
func DetectKsymtabFormat(section []byte, sectionBase uint64, wordSize int, resolves func(uint64) bool) KsymtabFormat {
	preAddr, preOK := probePre419(section, wordSize)
	v419Addr, v419OK := probeV419(section, sectionBase, wordSize)

	preResolves := preOK && resolves(preAddr)
	v419Resolves := v419OK && resolves(v419Addr)

	switch {
	case preResolves:
		return KsymtabPre419
	case v419Resolves:
		return KsymtabV419
	default:
		return KsymtabNone
	}
}

// probePre419 reads the first entry as two native-word-sized absolute
// addresses (value, name) — pre-4.19 layout.
func probePre419(section []byte, wordSize int) (uint64, bool) {
	if len(section) < wordSize {
		return 0, false
	}
	if wordSize == 8 {
		return binary.LittleEndian.Uint64(section), true
	}
	return uint64(binary.LittleEndian.Uint32(section)), true
}

// probeV419 reads the first entry as two 4-byte place-relative offsets:
// real address = section_base + entry_offset + stored_offset. On 64-bit
// architectures the 32-bit result is widened with an all-ones top half to
// match how kernel symbols are reported in the symbol table (spec.md §4.C).
func probeV419(section []byte, sectionBase uint64, wordSize int) (uint64, bool) {
	if len(section) < 4 {
		return 0, false
	}
	stored := int32(binary.LittleEndian.Uint32(section))
	addr := sectionBase + uint64(int64(stored))
	if wordSize == 8 {
		addr = widenTo64(uint32(addr))
	}
	return addr, true
}

func widenTo64(v uint32) uint64 {
	if v&0x80000000 != 0 {
		return 0xffffffff00000000 | uint64(v)
	}
	return uint64(v)
}

// ksymtabEntrySize returns the byte size of one entry for a given format
// and word size: pre-4.19 is two native words; v4.19+ is two 4-byte fields.
func ksymtabEntrySize(format KsymtabFormat, wordSize int) int {
	if format == KsymtabPre419 {
		return wordSize * 2
	}
	return 8
}

// ReadKsymtabAddresses reads every exported symbol address out of section
// under the given (already-detected) format.
func ReadKsymtabAddresses(section []byte, sectionBase uint64, wordSize int, format KsymtabFormat) []uint64 {
	entrySize := ksymtabEntrySize(format, wordSize)
	var out []uint64
	for off := 0; off+entrySize <= len(section); off += entrySize {
		switch format {
		case KsymtabPre419:
			if wordSize == 8 {
				out = append(out, binary.LittleEndian.Uint64(section[off:]))
			} else {
				out = append(out, uint64(binary.LittleEndian.Uint32(section[off:])))
			}
		case KsymtabV419:
			stored := int32(binary.LittleEndian.Uint32(section[off:]))
			addr := sectionBase + uint64(off) + uint64(int64(stored))
			if wordSize == 8 {
				addr = widenTo64(uint32(addr))
			}
			out = append(out, addr)
		}
	}
	return out
}
