// Package readctx implements component H: the orchestrator that opens a
// binary, loads its symbols and DWARF, builds the IR type/declaration graph,
// runs the fixup and late-canonicalization passes, and hands back a sorted
// ir.Corpus. Its phase-by-phase shape — Open, LoadSymbols, BuildIR, three
// fixups, Sort — is grounded on the teacher's cmd/root.go
// initConfig-then-Execute pipeline, generalized from "read one config file,
// dispatch one subcommand" to "read one binary, dispatch one read context"
// (spec.md §4.H).
package readctx

// Options is the read context's configuration object, field-for-field per
// spec.md §4.H / §6 ("Options are passed as an explicit configuration
// object with the enumerated fields").
type Options struct {
	// LoadAllTypes is carried in the options but not read by the pipeline:
	// types are built only when a top-level declaration or a top-level type
	// DIE of a compile unit reaches them, whatever its value.
	LoadAllTypes bool
	// LoadInLinuxKernelMode additionally loads __ksymtab/__ksymtab_gpl
	// and restricts exported views to those addresses.
	LoadInLinuxKernelMode bool
	// IgnoreSymbolTable skips step 2 entirely (symbol-less reads, e.g.
	// stripped binaries with only DWARF retained alongside).
	IgnoreSymbolTable bool
	// ShowStats requests the Diagnostics counters be populated.
	ShowStats bool
	// DoLog enables structured logging of each pipeline phase.
	DoLog bool
	// DebugInfoRootPaths are searched, in order, for the file named by a
	// .gnu_debugaltlink section. A binary's primary DWARF is read only from
	// the binary itself; these paths are not searched for it.
	DebugInfoRootPaths []string
}

// Diagnostics reports the three recoverable error flags plus stats
// counters (spec.md §7 "surfaced as a status flag-set on the
// successful-but-partial result").
type Diagnostics struct {
	MissingDebugInfo    bool
	MissingAltDebugInfo bool
	NoSymbols           bool

	MalformedDIECount       int
	UnsupportedOpcodeCount  int
	TypesCanonicalized      int
	ExtraTypesCanonicalized int
}
