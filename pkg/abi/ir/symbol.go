package ir

// SymbolType mirrors the small subset of ELF symbol types the core cares
// about (spec.md §3 "ELF symbol").
type SymbolType int

const (
	SymbolTypeFunc SymbolType = iota
	SymbolTypeObject
	SymbolTypeTLS
	SymbolTypeCommon
)

// SymbolBinding mirrors STB_LOCAL/GLOBAL/WEAK plus the GNU-unique extension.
type SymbolBinding int

const (
	BindingLocal SymbolBinding = iota
	BindingGlobal
	BindingWeak
	BindingGNUUnique
)

// SymbolVisibility is the subset of ELF visibilities that affect exported-
// symbol computation.
type SymbolVisibility int

const (
	VisibilityDefault SymbolVisibility = iota
	VisibilityInternal
	VisibilityHidden
	VisibilityProtected
)

// SymbolVersion is a resolved version name plus whether it is the default
// version for its symbol name (spec.md §4.C "Symbol version is resolved").
type SymbolVersion struct {
	Name      string
	IsDefault bool
}

// ElfSymbol is the IR-owned view of one ELF dynamic/static symbol table
// entry, including its alias chain (spec.md §3 "ELF symbol").
type ElfSymbol struct {
	Name       string
	Type       SymbolType
	Binding    SymbolBinding
	Visibility SymbolVisibility
	Defined    bool
	Version    *SymbolVersion // nil means unversioned
	Address    uint64
	Size       uint64
	// Aliases lists, on the canonical symbol at an address, every other
	// symbol sharing that address. The first-seen symbol is canonical unless
	// it is dot-prefixed and a later one is not; an alias holds no link back
	// to the canonical symbol (spec.md §4.C "Aliases").
	Aliases []*ElfSymbol
	// IsKernelExported marks a Linux-kernel export read from ksymtab. The
	// elfsym resolver records kernel exports in Table.KernelExportedAddresses
	// and does not set this field.
	IsKernelExported bool
}

// MatchesLinkageName reports whether name equals this symbol's name or any
// alias's name (spec.md §8 property 4: symbol.name ∈ linkage_name ∪ aliases).
func (s *ElfSymbol) MatchesLinkageName(name string) bool {
	if s.Name == name {
		return true
	}
	for _, a := range s.Aliases {
		if a.Name == name {
			return true
		}
	}
	return false
}

// MainAlias returns the receiver. ElfSymbol keeps no link from an alias back
// to its canonical symbol, so called on an alias it returns the alias
// itself, not the canonical symbol of its chain.
func (s *ElfSymbol) MainAlias() *ElfSymbol { return s }
