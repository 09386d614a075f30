// Package abidump implements the "dump" subcommand: a colorized,
// human-readable summary of one binary's corpus, built on top of readctx
// (component H). Its use of fatih/color, one *color.Color per output
// category, follows the same idiom as the teacher's C syntax highlighter
// (Manu343726-cucaracha/pkg/utils/syntax_highlight.go) applied here to ABI
// categories (functions, variables, diagnostics) instead of C tokens.
package abidump

import (
	"fmt"
	"sort"

	"github.com/abiscan/abicore/pkg/abi/ir"
	"github.com/abiscan/abicore/pkg/abi/names"
	"github.com/abiscan/abicore/pkg/abi/readctx"
	"github.com/abiscan/abicore/pkg/utils"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	functionColor   = color.New(color.FgCyan, color.Bold)
	variableColor   = color.New(color.FgGreen, color.Bold)
	diagnosticColor = color.New(color.FgYellow)
	headingColor    = color.New(color.FgHiWhite, color.Bold)
)

var (
	loadAllTypes bool
	kernelMode   bool
	noSymbols    bool
	showStats    bool
	verbose      bool
)

// DumpCmd prints a binary's exported ABI surface to stdout.
var DumpCmd = &cobra.Command{
	Use:   "dump [binary]",
	Short: "Print the exported functions, variables and diagnostics of a binary",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	DumpCmd.Flags().BoolVar(&loadAllTypes, "all-types", false, "set readctx.Options.LoadAllTypes (not read by the pipeline)")
	DumpCmd.Flags().BoolVar(&kernelMode, "kernel", false, "restrict exported views to __ksymtab addresses")
	DumpCmd.Flags().BoolVar(&noSymbols, "no-symbols", false, "skip the ELF symbol table entirely")
	DumpCmd.Flags().BoolVar(&showStats, "stats", false, "populate and print diagnostics counters")
	DumpCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable structured pipeline logging")

	_ = viper.BindPFlag("all_types", DumpCmd.Flags().Lookup("all-types"))
	_ = viper.BindPFlag("kernel", DumpCmd.Flags().Lookup("kernel"))
	_ = viper.BindPFlag("no_symbols", DumpCmd.Flags().Lookup("no-symbols"))
	_ = viper.BindPFlag("stats", DumpCmd.Flags().Lookup("stats"))
	_ = viper.BindPFlag("verbose", DumpCmd.Flags().Lookup("verbose"))
}

func runDump(cmd *cobra.Command, args []string) error {
	opts := readctx.Options{
		LoadAllTypes:          viper.GetBool("all_types"),
		LoadInLinuxKernelMode: viper.GetBool("kernel"),
		IgnoreSymbolTable:     viper.GetBool("no_symbols"),
		ShowStats:             viper.GetBool("stats"),
		DoLog:                 viper.GetBool("verbose"),
		DebugInfoRootPaths:    []string{"/usr/lib/debug"},
	}

	rc := readctx.New(opts)
	corpus, diag, err := rc.Build(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	printCorpus(cmd, corpus)
	if opts.ShowStats {
		printDiagnostics(cmd, diag)
	}
	return nil
}

func printCorpus(cmd *cobra.Command, corpus *ir.Corpus) {
	headingColor.Fprintf(cmd.OutOrStdout(), "%s  soname=%s  arch=%s\n", corpus.Path, corpus.SONAME, corpus.Arch)

	for _, name := range sortedKeys(corpus.ExportedFunctions) {
		fn := corpus.ExportedFunctions[name]
		sig := names.FunctionSignature(name, fn.Type, false)
		functionColor.Fprintln(cmd.OutOrStdout(), sig)
	}

	for _, name := range sortedKeys(corpus.ExportedVariables) {
		v := corpus.ExportedVariables[name]
		variableColor.Fprintf(cmd.OutOrStdout(), "%s %s\n", names.PrettyTypeName(v.Type), name)
	}

	for _, sym := range utils.Values(corpus.UndefinedFunctions) {
		diagnosticColor.Fprintf(cmd.OutOrStdout(), "undefined function: %s\n", sym.Name)
	}
	for _, sym := range utils.Values(corpus.UndefinedVariables) {
		diagnosticColor.Fprintf(cmd.OutOrStdout(), "undefined variable: %s\n", sym.Name)
	}
}

func printDiagnostics(cmd *cobra.Command, diag readctx.Diagnostics) {
	diagnosticColor.Fprintf(cmd.OutOrStdout(), "missing_debug_info=%v missing_alt_debug_info=%v no_symbols=%v\n",
		diag.MissingDebugInfo, diag.MissingAltDebugInfo, diag.NoSymbols)
	diagnosticColor.Fprintf(cmd.OutOrStdout(), "malformed_dies=%d unsupported_opcodes=%d types_canonicalized=%d extra_types_canonicalized=%d\n",
		diag.MalformedDIECount, diag.UnsupportedOpcodeCount, diag.TypesCanonicalized, diag.ExtraTypesCanonicalized)
}

func sortedKeys[V comparable](m map[string]V) []string {
	keys := utils.Keys(m)
	sort.Strings(keys)
	return keys
}
