// Package elfsym implements component C of the ABI read pipeline: mapping
// DWARF-described functions and variables onto their dynamic symbol table
// entries, including ppc64 ELFv1 OPD indirection, GNU/SysV hash-table
// lookup, symbol versioning and the two historical __ksymtab layouts
// (spec.md §4.C).
//
// Its shape — open the file, walk elf.File.Symbols(), classify by
// elf.ST_TYPE/elf.ST_BIND, build address-keyed lookup maps — follows the
// teacher's BinaryFileParser in
// Manu343726-cucaracha/pkg/hw/cpu/llvm/binaryfileparser.go; the hash-table,
// versioning, OPD and ksymtab machinery has no corpus exemplar and is
// implemented directly against the ELF/DWARF standards in that same
// direct-stdlib style (see DESIGN.md).
package elfsym

import (
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/abiscan/abicore/pkg/abi/ir"
)

// Table is the resolved view of one ELF file's symbols: everything
// component H (the read context) needs to bind DWARF declarations to
// symbols and to compute exported/undefined symbol maps (spec.md §4.C
// Contract).
type Table struct {
	// ByEntryAddress maps an entry-point address to its canonical symbol.
	// Populated for every architecture.
	ByEntryAddress map[uint64]*ir.ElfSymbol
	// ByDescriptorAddress maps a function-descriptor address (ppc64 ELFv1
	// .opd entry address, == st_value) to its canonical symbol. Populated
	// only on ppc64; elsewhere it is the same map as ByEntryAddress.
	ByDescriptorAddress map[uint64]*ir.ElfSymbol

	FunctionsByName map[string]*ir.ElfSymbol
	VariablesByName map[string]*ir.ElfSymbol

	UndefinedFunctions map[string]*ir.ElfSymbol
	UndefinedVariables map[string]*ir.ElfSymbol

	// KsymtabFormat is set when a Linux-kernel ksymtab was probed and
	// loaded; zero value means "not loaded / not a kernel binary".
	KsymtabFormat KsymtabFormat
	KernelExportedAddresses map[uint64]bool

	isPPC64 bool

	// gnuHash and sysvHash back LookupFunctionByName's hash-table lookup
	// path (spec.md §4.C). Populated only when the dynamic symbol table was
	// the one chosen to build this Table from; both nil otherwise.
	gnuHash  *GNUHashTable
	sysvHash []byte

	// dynsymByIndex maps a raw ELF dynamic symbol table index to the
	// already-built *ir.ElfSymbol, for turning a hash-table hit back into a
	// Table entry. Index 0 (the null symbol DynamicSymbols omits) is always
	// nil.
	dynsymByIndex []*ir.ElfSymbol
}

// Load builds a Table from f. It prefers SYMTAB for relocatable/executable
// files and DYNSYM otherwise, preferring the richer of the two if both are
// present (spec.md §4.C "Picks SYMTAB ... prefers the richer").
func Load(f *elf.File) (*Table, error) {
	t := &Table{
		ByEntryAddress:      make(map[uint64]*ir.ElfSymbol),
		ByDescriptorAddress: make(map[uint64]*ir.ElfSymbol),
		FunctionsByName:     make(map[string]*ir.ElfSymbol),
		VariablesByName:     make(map[string]*ir.ElfSymbol),
		UndefinedFunctions:  make(map[string]*ir.ElfSymbol),
		UndefinedVariables:  make(map[string]*ir.ElfSymbol),
		isPPC64:             f.Machine == elf.EM_PPC64,
	}
	if !t.isPPC64 {
		t.ByDescriptorAddress = t.ByEntryAddress
	}

	symtab, symErr := f.Symbols()
	dynsym, dynErr := f.DynamicSymbols()

	var chosen []elf.Symbol
	usingDynsym := false
	switch {
	case symErr == nil && dynErr == nil:
		if len(symtab) >= len(dynsym) {
			chosen = symtab
		} else {
			chosen = dynsym
			usingDynsym = true
		}
	case symErr == nil:
		chosen = symtab
	case dynErr == nil:
		chosen = dynsym
		usingDynsym = true
	default:
		return nil, fmt.Errorf("no symbol table found: %w", symErr)
	}

	var opd *elf.Section
	if t.isPPC64 {
		opd = f.Section(".opd")
	}

	// Version and hash-table sections are dynamic-linking-specific: they
	// index the dynamic symbol table's index space, which only lines up
	// with chosen when chosen actually is the dynamic symbol table.
	var versym []uint16
	var verdefNames, verneedNames map[uint16]string
	var dynsymByIndex []*ir.ElfSymbol
	if usingDynsym {
		versym, verdefNames, verneedNames = loadVersionTables(f)
		t.gnuHash, t.sysvHash = loadHashTables(f)
		dynsymByIndex = make([]*ir.ElfSymbol, len(chosen)+1)
	}

	// addrToSymbol implements the alias-chain rule: the second symbol seen
	// at an address becomes an alias of the first's canonical entry
	// (spec.md §4.C "Aliases"), except a bare "foo" is preferred as
	// canonical over a leading-dot ".foo" resolving to the same entry
	// point (ppc64 ELFv1 convention, spec.md §4.C).
	addrToSymbol := make(map[uint64]*ir.ElfSymbol)

	for k, sym := range chosen {
		if sym.Name == "" {
			continue
		}

		irSym := &ir.ElfSymbol{
			Name:       sym.Name,
			Binding:    symbolBinding(sym.Info),
			Visibility: symbolVisibility(sym.Other),
			Defined:    sym.Section != elf.SHN_UNDEF,
			Address:    sym.Value,
			Size:       sym.Size,
		}

		switch elf.ST_TYPE(sym.Info) {
		case elf.STT_FUNC:
			irSym.Type = ir.SymbolTypeFunc
		case elf.STT_OBJECT:
			irSym.Type = ir.SymbolTypeObject
		case elf.STT_TLS:
			irSym.Type = ir.SymbolTypeTLS
		case elf.STT_COMMON:
			irSym.Type = ir.SymbolTypeCommon
		default:
			continue
		}
		// STB_GNU_UNIQUE is binding 10, which debug/elf names only as STB_LOOS.
		if elf.ST_BIND(sym.Info) == elf.STB_LOOS {
			irSym.Binding = ir.BindingGNUUnique
		}

		// DynamicSymbols omits the null symbol at index 0, so chosen[k]'s
		// real dynamic symbol table index — the one .gnu.version/.gnu.hash/
		// .hash count against — is k+1 (spec.md §4.C). Done only once Type
		// is classified, so an unsupported symbol type (already skipped
		// above) never shows up through the hash-table lookup path either.
		if usingDynsym {
			dynIndex := k + 1
			dynsymByIndex[dynIndex] = irSym
			if versym != nil {
				irSym.Version = ResolveVersion(versym, dynIndex, irSym.Defined, verdefNames, verneedNames)
			}
		}

		if !irSym.Defined {
			if irSym.Type == ir.SymbolTypeFunc {
				t.UndefinedFunctions[irSym.Name] = irSym
			} else {
				t.UndefinedVariables[irSym.Name] = irSym
			}
			continue
		}

		entryAddr := irSym.Address
		descAddr := irSym.Address
		if t.isPPC64 && irSym.Type == ir.SymbolTypeFunc && opd != nil {
			if real, ok := opdEntryPoint(opd, irSym.Address); ok {
				entryAddr = real
			}
		}

		if existing, ok := addrToSymbol[entryAddr]; ok {
			if canonical := registerAlias(existing, irSym); canonical != existing {
				addrToSymbol[entryAddr] = canonical
				t.ByEntryAddress[entryAddr] = canonical
				for _, byName := range []map[string]*ir.ElfSymbol{t.FunctionsByName, t.VariablesByName} {
					for name, s := range byName {
						if s == existing {
							byName[name] = canonical
						}
					}
				}
			}
		} else {
			addrToSymbol[entryAddr] = irSym
			t.ByEntryAddress[entryAddr] = irSym
			if t.isPPC64 {
				t.ByDescriptorAddress[descAddr] = irSym
			}
		}

		canonical := addrToSymbol[entryAddr]
		if irSym.Type == ir.SymbolTypeFunc {
			t.FunctionsByName[irSym.Name] = canonical
		} else {
			t.VariablesByName[irSym.Name] = canonical
		}
	}

	if usingDynsym {
		t.dynsymByIndex = dynsymByIndex
	}

	return t, nil
}

// loadVersionTables reads the raw .gnu.version/.gnu.version_d/.gnu.version_r
// sections, returning a versym array indexed by raw dynamic symbol table
// index plus the verdef/verneed index->name maps ResolveVersion needs.
// debug/elf's own DynamicSymbols populates Symbol.Version/.Library, but only
// from verneed (imported symbols); a defined function's own exported
// (verdef) version needs these raw sections read directly (spec.md §4.C).
func loadVersionTables(f *elf.File) ([]uint16, map[uint16]string, map[uint16]string) {
	versymSec := f.SectionByType(elf.SHT_GNU_VERSYM)
	if versymSec == nil {
		return nil, nil, nil
	}
	raw, err := versymSec.Data()
	if err != nil || len(raw) < 2 {
		return nil, nil, nil
	}
	versym := make([]uint16, len(raw)/2)
	for i := range versym {
		versym[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}

	var verdefNames, verneedNames map[uint16]string
	if s := f.SectionByType(elf.SHT_GNU_VERDEF); s != nil {
		if data, err := s.Data(); err == nil {
			verdefNames = ParseVerdef(data, stringTableReader(f, s.Link))
		}
	}
	if s := f.SectionByType(elf.SHT_GNU_VERNEED); s != nil {
		if data, err := s.Data(); err == nil {
			verneedNames = ParseVerneed(data, stringTableReader(f, s.Link))
		}
	}
	return versym, verdefNames, verneedNames
}

// stringTableReader returns a NUL-terminated string reader over the section
// at index link (a verdef/verneed section's sh_link, its associated string
// table), or a reader that always returns "" if the section can't be read.
func stringTableReader(f *elf.File, link uint32) func(uint32) string {
	if int(link) >= len(f.Sections) {
		return func(uint32) string { return "" }
	}
	data, err := f.Sections[link].Data()
	if err != nil {
		return func(uint32) string { return "" }
	}
	return func(off uint32) string { return stringAt(data, off) }
}

// loadHashTables reads .gnu.hash and classic .hash, whichever are present,
// for LookupFunctionByName's hash-table lookup path (spec.md §4.C "uses the
// bloom filter ... falls back to classic SysV hash").
func loadHashTables(f *elf.File) (*GNUHashTable, []byte) {
	addrSize := 4
	if f.Class == elf.ELFCLASS64 {
		addrSize = 8
	}

	var gnuHashTable *GNUHashTable
	if s := f.SectionByType(elf.SHT_GNU_HASH); s != nil {
		if data, err := s.Data(); err == nil {
			gnuHashTable = ParseGNUHash(data, addrSize)
		}
	}

	var sysvHash []byte
	if s := f.SectionByType(elf.SHT_HASH); s != nil {
		if data, err := s.Data(); err == nil {
			sysvHash = data
		}
	}

	return gnuHashTable, sysvHash
}

// registerAlias links second into first's alias chain, preferring a
// non-dot-prefixed name as the chain's canonical representative (spec.md
// §4.C: "Where a symbol named 'foo' and one named '.foo' both resolve to
// the same entry point, prefer 'foo'"). It returns the chain's canonical
// symbol; when that is second, first's aliases move over to it.
func registerAlias(first, second *ir.ElfSymbol) *ir.ElfSymbol {
	canonical, alias := first, second
	if len(first.Name) > 0 && first.Name[0] == '.' && (len(second.Name) == 0 || second.Name[0] != '.') {
		canonical, alias = second, first
		canonical.Aliases = append(canonical.Aliases, alias.Aliases...)
		alias.Aliases = nil
	}
	canonical.Aliases = append(canonical.Aliases, alias)
	return canonical
}

func symbolBinding(info byte) ir.SymbolBinding {
	switch elf.ST_BIND(info) {
	case elf.STB_LOCAL:
		return ir.BindingLocal
	case elf.STB_WEAK:
		return ir.BindingWeak
	default:
		return ir.BindingGlobal
	}
}

func symbolVisibility(other byte) ir.SymbolVisibility {
	switch elf.ST_VISIBILITY(other) {
	case elf.STV_INTERNAL:
		return ir.VisibilityInternal
	case elf.STV_HIDDEN:
		return ir.VisibilityHidden
	case elf.STV_PROTECTED:
		return ir.VisibilityProtected
	default:
		return ir.VisibilityDefault
	}
}

// opdEntryPoint reads the first machine word of the .opd entry at
// descriptorAddr, i.e. the real function entry point for ppc64 ELFv1
// (spec.md §4.C, GLOSSARY "OPD").
func opdEntryPoint(opd *elf.Section, descriptorAddr uint64) (uint64, bool) {
	if descriptorAddr < opd.Addr || descriptorAddr+8 > opd.Addr+opd.Size {
		return 0, false
	}
	data, err := opd.Data()
	if err != nil {
		return 0, false
	}
	off := descriptorAddr - opd.Addr
	if off+8 > uint64(len(data)) {
		return 0, false
	}
	return binary.BigEndian.Uint64(data[off:]), true
}

// LookupByAddress finds the symbol bound to addr, ppc64-aware.
func (t *Table) LookupByAddress(addr uint64) (*ir.ElfSymbol, bool) {
	s, ok := t.ByEntryAddress[addr]
	return s, ok
}

// LookupFunctionByName finds a defined function symbol by name or alias. It
// tries the GNU/SysV hash tables first when available (spec.md §4.C "When
// looking up by name and a GNU hash section is present, uses the bloom
// filter..."), falling back to the plain map (and, for alias names, a
// linear scan) neither hash table can perform since both index by exact
// symbol name only.
func (t *Table) LookupFunctionByName(name string) (*ir.ElfSymbol, bool) {
	if s, ok := t.lookupByHashTables(name); ok {
		return s, true
	}
	if s, ok := t.FunctionsByName[name]; ok {
		return s, true
	}
	for _, s := range t.FunctionsByName {
		if s.MatchesLinkageName(name) {
			return s, true
		}
	}
	return nil, false
}

// lookupByHashTables resolves name through .gnu.hash (preferred) or classic
// .hash, re-checking name equality against the hash-bucket hit since a hash
// match only narrows to same-hash candidates, not guaranteed-equal names.
// Only ever returns a symbol that is itself a defined function: an
// undefined or non-function hit at the resolved index falls through to the
// caller's map-based path instead.
func (t *Table) lookupByHashTables(name string) (*ir.ElfSymbol, bool) {
	if idx, ok := t.gnuHash.Lookup(name); ok {
		if s := t.symbolAtDynIndex(idx, name); s != nil {
			return s, true
		}
	}
	if t.sysvHash != nil {
		if idx, ok := SysVHashLookup(t.sysvHash, len(t.dynsymByIndex), name); ok {
			if s := t.symbolAtDynIndex(idx, name); s != nil {
				return s, true
			}
		}
	}
	return nil, false
}

func (t *Table) symbolAtDynIndex(idx int, name string) *ir.ElfSymbol {
	if idx <= 0 || idx >= len(t.dynsymByIndex) {
		return nil
	}
	s := t.dynsymByIndex[idx]
	if s == nil || s.Name != name || s.Type != ir.SymbolTypeFunc || !s.Defined {
		return nil
	}
	return s
}

// LoadKernelExports detects and loads the __ksymtab/__ksymtab_gpl sections
// of a Linux kernel binary, restricting KernelExportedAddresses to the
// addresses those sections designate "exported" (spec.md §4.C ksymtab;
// §6 "On Linux kernels"). addrSize is the ELF address size in bytes.
func (t *Table) LoadKernelExports(f *elf.File, addrSize int) error {
	var sections []*elf.Section
	for _, name := range []string{"__ksymtab", "__ksymtab_gpl"} {
		if s := f.Section(name); s != nil {
			sections = append(sections, s)
		}
	}
	if len(sections) == 0 {
		return fmt.Errorf("no __ksymtab section found")
	}

	resolves := func(addr uint64) bool {
		_, ok := t.ByEntryAddress[addr]
		if ok {
			return true
		}
		for _, s := range t.FunctionsByName {
			if s.Address == addr {
				return true
			}
		}
		for _, s := range t.VariablesByName {
			if s.Address == addr {
				return true
			}
		}
		return false
	}

	first := sections[0]
	data, err := first.Data()
	if err != nil {
		return err
	}
	format := DetectKsymtabFormat(data, first.Addr, addrSize, resolves)
	if format == KsymtabNone {
		return fmt.Errorf("could not detect __ksymtab format")
	}
	t.KsymtabFormat = format
	t.KernelExportedAddresses = make(map[uint64]bool)

	for _, s := range sections {
		secData, err := s.Data()
		if err != nil {
			continue
		}
		for _, addr := range ReadKsymtabAddresses(secData, s.Addr, addrSize, format) {
			t.KernelExportedAddresses[addr] = true
		}
	}
	return nil
}
