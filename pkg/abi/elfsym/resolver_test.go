package elfsym

import (
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/abiscan/abicore/pkg/abi/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildMinimalELF writes a tiny ELF64 little-endian object file whose
// .symtab holds the given symbols, the way the teacher's
// createTestELFFile in binaryfileparser_test.go hand-builds ELF32 fixtures
// byte by byte.
func buildMinimalELF(t *testing.T, symbols []elf.Symbol) string {
	t.Helper()

	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "test.o")

	const (
		ehsize = 64
		shsize = 64
	)

	var strtab []byte
	strtab = append(strtab, 0)
	nameOffsets := make([]uint32, len(symbols))
	for i, s := range symbols {
		nameOffsets[i] = uint32(len(strtab))
		strtab = append(strtab, []byte(s.Name)...)
		strtab = append(strtab, 0)
	}

	const symsize = 24
	var symtab []byte
	symtab = append(symtab, make([]byte, symsize)...) // null symbol
	for i, s := range symbols {
		entry := make([]byte, symsize)
		binary.LittleEndian.PutUint32(entry[0:], nameOffsets[i])
		entry[4] = s.Info
		entry[5] = s.Other
		shndx := uint16(s.Section) // 1 is .text; elf.SHN_UNDEF (0) leaves the symbol undefined
		binary.LittleEndian.PutUint16(entry[6:], shndx)
		binary.LittleEndian.PutUint64(entry[8:], s.Value)
		binary.LittleEndian.PutUint64(entry[16:], s.Size)
		symtab = append(symtab, entry...)
	}

	textData := make([]byte, 16)

	// layout: ehdr | .text | .symtab | .strtab | shstrtab | section headers
	shstrtab := []byte{0}
	shstrtabOff := map[string]uint32{}
	addShName := func(name string) uint32 {
		off := uint32(len(shstrtab))
		shstrtab = append(shstrtab, []byte(name)...)
		shstrtab = append(shstrtab, 0)
		shstrtabOff[name] = off
		return off
	}
	nullShName := addShName("")
	_ = nullShName
	textShName := addShName(".text")
	symtabShName := addShName(".symtab")
	strtabShName := addShName(".strtab")
	shstrShName := addShName(".shstrtab")

	textOff := uint64(ehsize)
	symtabOff := textOff + uint64(len(textData))
	strtabOff := symtabOff + uint64(len(symtab))
	shstrOff := strtabOff + uint64(len(strtab))
	shOff := shstrOff + uint64(len(shstrtab))

	ehdr := make([]byte, ehsize)
	copy(ehdr[0:4], []byte{0x7f, 'E', 'L', 'F'})
	ehdr[4] = 2 // ELFCLASS64
	ehdr[5] = 1 // ELFDATA2LSB
	ehdr[6] = 1
	binary.LittleEndian.PutUint16(ehdr[16:], 1) // ET_REL
	binary.LittleEndian.PutUint16(ehdr[18:], 62) // EM_X86_64
	binary.LittleEndian.PutUint32(ehdr[20:], 1)
	binary.LittleEndian.PutUint64(ehdr[40:], shOff)
	binary.LittleEndian.PutUint16(ehdr[52:], ehsize)
	binary.LittleEndian.PutUint16(ehdr[58:], shsize)
	binary.LittleEndian.PutUint16(ehdr[60:], 5) // shnum: null,text,symtab,strtab,shstrtab
	binary.LittleEndian.PutUint16(ehdr[62:], 4) // shstrndx

	mkSh := func(name uint32, typ uint32, off, size uint64, link, entsize uint32) []byte {
		sh := make([]byte, shsize)
		binary.LittleEndian.PutUint32(sh[0:], name)
		binary.LittleEndian.PutUint32(sh[4:], typ)
		binary.LittleEndian.PutUint64(sh[24:], off)
		binary.LittleEndian.PutUint64(sh[32:], size)
		binary.LittleEndian.PutUint32(sh[40:], link)
		binary.LittleEndian.PutUint64(sh[56:], uint64(entsize))
		return sh
	}

	var sections []byte
	sections = append(sections, mkSh(0, 0, 0, 0, 0, 0)...)
	sections = append(sections, mkSh(textShName, 1 /*SHT_PROGBITS*/, textOff, uint64(len(textData)), 0, 0)...)
	sections = append(sections, mkSh(symtabShName, 2 /*SHT_SYMTAB*/, symtabOff, uint64(len(symtab)), 3, symsize)...)
	sections = append(sections, mkSh(strtabShName, 3 /*SHT_STRTAB*/, strtabOff, uint64(len(strtab)), 0, 0)...)
	sections = append(sections, mkSh(shstrShName, 3, shstrOff, uint64(len(shstrtab)), 0, 0)...)

	var file []byte
	file = append(file, ehdr...)
	file = append(file, textData...)
	file = append(file, symtab...)
	file = append(file, strtab...)
	file = append(file, shstrtab...)
	file = append(file, sections...)

	require.NoError(t, os.WriteFile(path, file, 0o644))
	return path
}

func TestLoad_DefinedFunctionSymbol(t *testing.T) {
	path := buildMinimalELF(t, []elf.Symbol{
		{Name: "foo", Info: byte(elf.STT_FUNC) | byte(elf.STB_GLOBAL)<<4, Section: 1, Value: 0x10, Size: 8},
	})

	f, err := elf.Open(path)
	require.NoError(t, err)
	defer f.Close()

	table, err := Load(f)
	require.NoError(t, err)

	sym, ok := table.LookupFunctionByName("foo")
	require.True(t, ok)
	assert.Equal(t, uint64(0x10), sym.Address)
}

func TestLoad_AliasChainPrefersNonDotName(t *testing.T) {
	path := buildMinimalELF(t, []elf.Symbol{
		{Name: ".foo", Info: byte(elf.STT_FUNC) | byte(elf.STB_GLOBAL)<<4, Section: 1, Value: 0x20, Size: 4},
		{Name: "foo", Info: byte(elf.STT_FUNC) | byte(elf.STB_GLOBAL)<<4, Section: 1, Value: 0x20, Size: 4},
	})

	f, err := elf.Open(path)
	require.NoError(t, err)
	defer f.Close()

	table, err := Load(f)
	require.NoError(t, err)

	sym, ok := table.LookupFunctionByName("foo")
	require.True(t, ok)
	assert.Equal(t, "foo", sym.Name)

	dotSym, ok := table.LookupFunctionByName(".foo")
	require.True(t, ok)
	assert.Equal(t, "foo", dotSym.Name, "the non-dot name must be canonical even when looked up by its alias")
}

func TestLoad_UndefinedSymbol(t *testing.T) {
	path := buildMinimalELF(t, []elf.Symbol{
		{Name: "bar", Info: byte(elf.STT_FUNC) | byte(elf.STB_GLOBAL)<<4, Value: 0, Size: 0, Section: elf.SHN_UNDEF},
	})

	f, err := elf.Open(path)
	require.NoError(t, err)
	defer f.Close()

	table, err := Load(f)
	require.NoError(t, err)

	_, defined := table.LookupFunctionByName("bar")
	assert.False(t, defined)
	_, undefined := table.UndefinedFunctions["bar"]
	assert.True(t, undefined)
}

func TestLookupFunctionByName_UsesGNUHashTableBeforeFallingBackToMap(t *testing.T) {
	foo := &ir.ElfSymbol{Name: "foo", Type: ir.SymbolTypeFunc, Defined: true, Address: 0x10}
	table := &Table{
		FunctionsByName: map[string]*ir.ElfSymbol{}, // deliberately NOT populated with "foo"
		dynsymByIndex:   []*ir.ElfSymbol{nil, foo},
		gnuHash:         ParseGNUHash(buildGNUHash(t, "foo", 1), 4),
	}

	sym, ok := table.LookupFunctionByName("foo")
	require.True(t, ok)
	assert.Same(t, foo, sym)
}

func TestLookupFunctionByName_HashHitWithMismatchedNameFallsThrough(t *testing.T) {
	// "foo" hashes to the same bucket as a stale dynsymByIndex entry for a
	// different, stale name: the post-hash name-equality check must reject
	// it and fall back to the map instead of returning the wrong symbol.
	stale := &ir.ElfSymbol{Name: "not-foo", Type: ir.SymbolTypeFunc, Defined: true}
	real := &ir.ElfSymbol{Name: "foo", Type: ir.SymbolTypeFunc, Defined: true, Address: 0x30}
	table := &Table{
		FunctionsByName: map[string]*ir.ElfSymbol{"foo": real},
		dynsymByIndex:   []*ir.ElfSymbol{nil, stale},
		gnuHash:         ParseGNUHash(buildGNUHash(t, "foo", 1), 4),
	}

	sym, ok := table.LookupFunctionByName("foo")
	require.True(t, ok)
	assert.Same(t, real, sym)
}

func TestLookupFunctionByName_FallsBackToSysVHash(t *testing.T) {
	foo := &ir.ElfSymbol{Name: "foo", Type: ir.SymbolTypeFunc, Defined: true, Address: 0x40}

	sysvData := make([]byte, 20)
	binary.LittleEndian.PutUint32(sysvData[0:], 1) // nbucket
	binary.LittleEndian.PutUint32(sysvData[4:], 2) // nchain
	binary.LittleEndian.PutUint32(sysvData[8:], 1) // buckets[0] == dynsym index 1

	table := &Table{
		FunctionsByName: map[string]*ir.ElfSymbol{},
		dynsymByIndex:   []*ir.ElfSymbol{nil, foo},
		sysvHash:        sysvData,
	}

	sym, ok := table.LookupFunctionByName("foo")
	require.True(t, ok)
	assert.Same(t, foo, sym)
}
