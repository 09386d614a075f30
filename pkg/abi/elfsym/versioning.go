package elfsym

import "encoding/binary"

// verdef entry layout (ELF gABI, Elfxx_Verdef / Elfxx_Verdaux):
//
//	vd_version, vd_flags, vd_ndx, vd_cnt uint16
//	vd_hash                              uint32
//	vd_aux, vd_next                      uint32
//
// followed by vd_cnt Verdaux records (vda_name uint32, vda_next uint32).
const (
	verdefHeaderSize = 20
	verdauxSize      = 8
	verneedHeaderSize = 16
	vernauxSize       = 16
)

// ParseVerdef walks a .gnu.version_d section and returns version index ->
// name, using strtab for vda_name string lookups.
func ParseVerdef(data []byte, strtab func(uint32) string) map[uint16]string {
	out := make(map[uint16]string)
	off := 0
	for off+verdefHeaderSize <= len(data) {
		ndx := binary.LittleEndian.Uint16(data[off+4:])
		cnt := binary.LittleEndian.Uint16(data[off+6:])
		aux := binary.LittleEndian.Uint32(data[off+12:])
		next := binary.LittleEndian.Uint32(data[off+16:])

		if cnt > 0 {
			auxOff := off + int(aux)
			if auxOff+verdauxSize <= len(data) {
				nameOff := binary.LittleEndian.Uint32(data[auxOff:])
				out[ndx] = strtab(nameOff)
			}
		}

		if next == 0 {
			break
		}
		off += int(next)
	}
	return out
}

// stringAt reads a NUL-terminated string at byte offset off within a raw
// string-table section's data. debug/elf's own equivalent (getString) is
// unexported, so callers resolving vda_name/vna_name offsets need this.
func stringAt(data []byte, off uint32) string {
	if int(off) >= len(data) {
		return ""
	}
	end := int(off)
	for end < len(data) && data[end] != 0 {
		end++
	}
	return string(data[off:end])
}

// ParseVerneed walks a .gnu.version_r section and returns version index ->
// name, using strtab for vna_name string lookups. Vernaux layout (ELF
// gABI): vna_hash uint32, vna_flags/vna_other uint16 pair, vna_name uint32,
// vna_next uint32.
func ParseVerneed(data []byte, strtab func(uint32) string) map[uint16]string {
	out := make(map[uint16]string)
	off := 0
	for off+verneedHeaderSize <= len(data) {
		cnt := binary.LittleEndian.Uint16(data[off+2:])
		aux := binary.LittleEndian.Uint32(data[off+8:])
		next := binary.LittleEndian.Uint32(data[off+12:])

		auxOff := off + int(aux)
		for i := uint16(0); i < cnt && auxOff+vernauxSize <= len(data); i++ {
			nameOff := binary.LittleEndian.Uint32(data[auxOff+8:])
			other := binary.LittleEndian.Uint16(data[auxOff+6:])
			out[other&^0x8000] = strtab(nameOff)

			vnaNext := binary.LittleEndian.Uint32(data[auxOff+12:])
			if vnaNext == 0 {
				break
			}
			auxOff += int(vnaNext)
		}

		if next == 0 {
			break
		}
		off += int(next)
	}
	return out
}
