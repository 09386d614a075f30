package readctx

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/abiscan/abicore/pkg/abi/canon"
	"github.com/abiscan/abicore/pkg/abi/dwarfread"
	"github.com/abiscan/abicore/pkg/abi/elfsym"
	"github.com/abiscan/abicore/pkg/abi/ir"
	"github.com/abiscan/abicore/pkg/abi/names"
)

// internalError is panicked for an Internal-invariant-violated condition
// (spec.md §7) and recovered only at Build's top level, the same
// panic-deep/recover-at-boundary shape the teacher uses in its cpu package
// for unreachable CPU states.
type internalError struct{ msg string }

func (e internalError) Error() string { return e.msg }

// ReadContext holds every cache and work-in-progress list component H
// names: the environment, the canonicalization cache, the symbol table, and
// the options governing one binary's read (spec.md §4.H "Holds").
type ReadContext struct {
	opts  Options
	env   *ir.Environment
	cache *canon.Cache
	log   *slog.Logger
	diag  Diagnostics

	elfFile  *elf.File
	altFile  *elf.File
	symbols  *elfsym.Table
	builders []*dwarfread.Builder
}

// New creates a read context ready for Build.
func New(opts Options) *ReadContext {
	return &ReadContext{
		opts:  opts,
		env:   ir.NewEnvironment(),
		cache: canon.NewCache(),
		log:   newLogger(opts.DoLog),
	}
}

// Build runs the full pipeline (spec.md §4.H steps 1-8) over the binary at
// path, returning the resulting corpus and diagnostics. A panic raised for
// an Internal-invariant-violated condition is recovered here and returned
// as a plain error, per spec.md §7.
func (rc *ReadContext) Build(path string) (corpus *ir.Corpus, diag Diagnostics, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(internalError); ok {
				err = fmt.Errorf("internal invariant violated: %w", ie)
				return
			}
			panic(r)
		}
	}()

	corpus = ir.NewCorpus(path, rc.env)

	rc.log.Info("opening binary", "path", path)
	data, err := rc.open(path, corpus)
	if err != nil {
		return corpus, rc.diag, err
	}
	defer func() {
		if rc.elfFile != nil {
			rc.elfFile.Close()
		}
		if rc.altFile != nil {
			rc.altFile.Close()
		}
	}()

	if !rc.opts.IgnoreSymbolTable {
		rc.log.Info("loading symbols")
		if err := rc.loadSymbols(); err != nil {
			rc.diag.NoSymbols = true
			rc.log.Warn("no symbols found", "err", err)
		}
	} else {
		rc.diag.NoSymbols = true
	}

	if data != nil {
		rc.log.Info("building IR")
		if err := rc.buildIR(data, corpus); err != nil {
			return corpus, rc.diag, err
		}
	}

	rc.log.Info("fixing up declaration-only classes")
	rc.fixupDeclarationOnlyClasses(corpus)

	rc.log.Info("fixing up virtual method symbols")
	rc.fixupVirtualMethodSymbols(corpus)

	rc.log.Info("running late canonicalization")
	rc.lateCanonicalization(corpus)

	rc.log.Info("sorting corpus")
	rc.sort(corpus)

	rc.env.SetCanonicalizationDone()
	return corpus, rc.diag, nil
}

// open implements step 1: load DWARF (primary then alternate via
// .gnu_debugaltlink), load the ELF architecture string, DT_NEEDED and
// DT_SONAME.
func (rc *ReadContext) open(path string, corpus *ir.Corpus) (*dwarf.Data, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	rc.elfFile = f
	corpus.Arch = f.Machine.String()

	if needed, err := f.ImportedLibraries(); err == nil {
		corpus.Needed = needed
	}
	if sonames, err := f.DynString(elf.DT_SONAME); err == nil && len(sonames) > 0 {
		corpus.SONAME = sonames[0]
	}

	data, err := f.DWARF()
	if err != nil {
		rc.diag.MissingDebugInfo = true
		rc.log.Warn("primary debug info missing", "err", err)
		return nil, nil
	}

	if alt := f.Section(".gnu_debugaltlink"); alt != nil {
		// debug/dwarf has no supported API for splicing an alternate unit's
		// .debug_info into the primary Data the way DW_FORM_ref_sup/
		// strx_sup would require; rc.altFile is opened and retained so a
		// future extension can walk it directly, but its DIEs are not
		// merged into data's reader here (documented limitation, DESIGN.md).
		if _, ok := rc.openAltDebugInfo(alt, path); !ok {
			rc.diag.MissingAltDebugInfo = true
		}
	}

	return data, nil
}

// openAltDebugInfo reads a .gnu_debugaltlink section (a NUL-terminated
// path followed by a build-id) and tries to open that file under each
// configured debug-info root path.
func (rc *ReadContext) openAltDebugInfo(section *elf.Section, primaryPath string) (*dwarf.Data, bool) {
	raw, err := section.Data()
	if err != nil {
		return nil, false
	}
	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return nil, false
	}
	altName := string(raw[:nul])

	candidates := []string{altName}
	if !filepath.IsAbs(altName) {
		candidates = append(candidates, filepath.Join(filepath.Dir(primaryPath), altName))
	}
	for _, root := range rc.opts.DebugInfoRootPaths {
		candidates = append(candidates, filepath.Join(root, altName))
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		altFile, err := elf.Open(candidate)
		if err != nil {
			continue
		}
		altData, err := altFile.DWARF()
		if err != nil {
			altFile.Close()
			continue
		}
		rc.altFile = altFile
		return altData, true
	}
	return nil, false
}

// loadSymbols implements step 2.
func (rc *ReadContext) loadSymbols() error {
	table, err := elfsym.Load(rc.elfFile)
	if err != nil {
		return err
	}
	rc.symbols = table

	if rc.opts.LoadInLinuxKernelMode {
		addrSize := 4
		if rc.elfFile.Class == elf.ELFCLASS64 {
			addrSize = 8
		}
		if err := table.LoadKernelExports(rc.elfFile, addrSize); err != nil {
			rc.log.Warn("ksymtab not loaded", "err", err)
		}
	}
	return nil
}

// buildIR implements step 4: walk every compile unit in CU order,
// constructing a translation unit per unique path (two CUs sharing an
// absolute path are merged onto the first TU's global scope, spec.md §3).
// It builds no DIE-to-parent maps and records no imported-unit points.
func (rc *ReadContext) buildIR(data *dwarf.Data, corpus *ir.Corpus) error {
	addrSize := 4
	if rc.elfFile.Class == elf.ELFCLASS64 {
		addrSize = 8
	}

	acc := dwarfread.NewAccessor(data)
	builder := dwarfread.NewBuilder(acc, rc.env, rc.cache)
	rc.builders = append(rc.builders, builder)

	byPath := make(map[string]*ir.TranslationUnit)

	r := acc.Reader()
	for {
		cuEntry, err := r.Next()
		if err != nil {
			return fmt.Errorf("walking compile units: %w", err)
		}
		if cuEntry == nil {
			break
		}
		if cuEntry.Children {
			r.SkipChildren()
		}
		if cuEntry.Tag != dwarf.TagCompileUnit {
			continue
		}

		result, err := builder.BuildTranslationUnit(acc, cuEntry, addrSize)
		if err != nil {
			rc.diag.MalformedDIECount++
			rc.log.Warn("skipping malformed compile unit", "err", err)
			continue
		}

		if existing, ok := byPath[result.TU.Path]; ok {
			mergeScope(existing.GlobalScope, result.TU.GlobalScope)
			continue
		}
		byPath[result.TU.Path] = result.TU
		corpus.TranslationUnits = append(corpus.TranslationUnits, result.TU)
	}

	return nil
}

// mergeScope folds src's direct contents into dst, used when two compile
// units report the same absolute source path (spec.md §3 "two TUs sharing
// the same absolute path within the same binary are merged").
func mergeScope(dst, src *ir.Scope) {
	dst.Types = append(dst.Types, src.Types...)
	dst.Declarations = append(dst.Declarations, src.Declarations...)
	dst.Children = append(dst.Children, src.Children...)
}

// fixupDeclarationOnlyClasses implements step 5.
func (rc *ReadContext) fixupDeclarationOnlyClasses(corpus *ir.Corpus) {
	for _, builder := range rc.builders {
		for _, shell := range builder.DeclarationOnlyClasses() {
			if !shell.IsDeclarationOnly {
				continue // already resolved via a prior shell sharing the DIE offset
			}
			def := findClassDefinition(corpus.TranslationUnits, shell)
			if def == nil {
				continue
			}
			*shell = *def
		}
	}
}

// findClassDefinition searches every translation unit for a populated
// class/union whose qualified name matches shell's, preferring a match in
// the translation unit shell itself was declared in (spec.md §4.H step 5).
func findClassDefinition(tus []*ir.TranslationUnit, shell *ir.ClassType) *ir.ClassType {
	if shell.Scope == nil || shell.Scope.Parent == nil {
		return nil
	}

	var owningTU *ir.TranslationUnit
	for _, tu := range tus {
		if scopeContains(tu.GlobalScope, shell.Scope) {
			owningTU = tu
			break
		}
	}
	lang := ir.LanguageCPlusPlus
	if owningTU != nil {
		lang = owningTU.Language
	}
	wantName := names.QualifiedName(shell.Scope.Parent, shell.Name, lang)

	var found *ir.ClassType
	for _, tu := range tus {
		candidate := findClassInScope(tu.GlobalScope, wantName, tu.Language)
		if candidate == nil {
			continue
		}
		if tu == owningTU {
			return candidate // same-TU match wins outright
		}
		if found == nil {
			found = candidate
		}
	}
	return found
}

func findClassInScope(scope *ir.Scope, wantName string, lang ir.Language) *ir.ClassType {
	for _, t := range scope.Types {
		if ct, ok := t.(*ir.ClassType); ok && !ct.IsDeclarationOnly {
			if names.QualifiedName(scope, ct.Name, lang) == wantName {
				return ct
			}
		}
	}
	for _, child := range scope.Children {
		if found := findClassInScope(child, wantName, lang); found != nil {
			return found
		}
	}
	return nil
}

func scopeContains(root, target *ir.Scope) bool {
	if root == target {
		return true
	}
	for _, child := range root.Children {
		if scopeContains(child, target) {
			return true
		}
	}
	return false
}

// fixupVirtualMethodSymbols implements step 6.
func (rc *ReadContext) fixupVirtualMethodSymbols(corpus *ir.Corpus) {
	if rc.symbols == nil {
		return
	}
	for _, builder := range rc.builders {
		for _, fn := range builder.PendingVirtualMethods() {
			if fn.Symbol != nil || fn.LinkageName == "" {
				continue
			}
			if sym, ok := rc.symbols.LookupFunctionByName(fn.LinkageName); ok {
				fn.Symbol = sym
			}
		}
	}
}

// lateCanonicalization implements step 7. This core canonicalizes each type
// as it's built (component G's cache is consulted inline from
// Builder.BuildType), so by the time the fixup passes run every
// DIE-associated type is already canonical; this pass's only job is to count
// the types held by every scope into Diagnostics.TypesCanonicalized. The
// environment's void and variadic singletons are their own canonical
// representative by construction and are neither canonicalized nor counted
// here; ExtraTypesCanonicalized stays zero
// — an explicit simplification of spec.md §4.H step 7's "deferred" framing,
// recorded as an Open Question decision in DESIGN.md.
func (rc *ReadContext) lateCanonicalization(corpus *ir.Corpus) {
	count := 0
	for _, tu := range corpus.TranslationUnits {
		count += countTypes(tu.GlobalScope)
	}
	rc.diag.TypesCanonicalized = count
}

func countTypes(scope *ir.Scope) int {
	n := len(scope.Types)
	for _, child := range scope.Children {
		n += countTypes(child)
	}
	return n
}

// sort implements step 8: populate the exported/undefined symbol maps and
// sort every scope's declarations by name. Types keep their build order.
func (rc *ReadContext) sort(corpus *ir.Corpus) {
	for _, tu := range corpus.TranslationUnits {
		rc.bindAndCollect(tu.GlobalScope, tu.Language, corpus)
	}

	if rc.symbols != nil {
		corpus.UndefinedFunctions = rc.symbols.UndefinedFunctions
		corpus.UndefinedVariables = rc.symbols.UndefinedVariables
	}
}

func (rc *ReadContext) bindAndCollect(scope *ir.Scope, lang ir.Language, corpus *ir.Corpus) {
	sort.Slice(scope.Declarations, func(i, j int) bool {
		return scope.Declarations[i].DeclName() < scope.Declarations[j].DeclName()
	})

	// In Linux-kernel mode the exported views hold only ksymtab addresses.
	var kernelExports map[uint64]bool
	if rc.symbols != nil {
		kernelExports = rc.symbols.KernelExportedAddresses
	}

	for _, d := range scope.Declarations {
		switch decl := d.(type) {
		case *ir.Function:
			rc.bindFunctionSymbol(decl)
			if decl.Symbol != nil && (len(kernelExports) == 0 || kernelExports[decl.Symbol.Address]) {
				corpus.ExportedFunctions[names.QualifiedName(scope, decl.Name, lang)] = decl
			}
		case *ir.Variable:
			rc.bindVariableSymbol(decl)
			if decl.Symbol != nil && (len(kernelExports) == 0 || kernelExports[decl.Symbol.Address]) {
				corpus.ExportedVariables[names.QualifiedName(scope, decl.Name, lang)] = decl
			}
		}
	}

	for _, child := range scope.Children {
		rc.bindAndCollect(child, lang, corpus)
	}
}

func (rc *ReadContext) bindFunctionSymbol(fn *ir.Function) {
	if rc.symbols == nil || fn.Symbol != nil || fn.LinkageName == "" {
		return
	}
	if sym, ok := rc.symbols.LookupFunctionByName(fn.LinkageName); ok {
		fn.Symbol = sym
	}
}

func (rc *ReadContext) bindVariableSymbol(v *ir.Variable) {
	if rc.symbols == nil || v.Symbol != nil || v.LinkageName == "" {
		return
	}
	if sym, ok := rc.symbols.VariablesByName[v.LinkageName]; ok {
		v.Symbol = sym
	}
}
