package ir

// Scope is a namespace or a class/union body: it holds declarations and
// types and forms a tree rooted at a translation unit's global scope
// (invariant §3.1: every non-scope IR node has exactly one owning scope).
type Scope struct {
	Name         string
	Parent       *Scope
	Kind         ScopeKind
	Children     []*Scope
	Types        []Type
	Declarations []Declaration
}

// ScopeKind distinguishes a namespace scope from a class/union body scope,
// which matters for qualified-name printing (spec.md §4.D).
type ScopeKind int

const (
	ScopeKindGlobal ScopeKind = iota
	ScopeKindNamespace
	ScopeKindClass
)

// NewScope creates a child scope of parent, or a root scope if parent is nil.
func NewScope(name string, kind ScopeKind, parent *Scope) *Scope {
	s := &Scope{Name: name, Kind: kind, Parent: parent}
	if parent != nil {
		parent.Children = append(parent.Children, s)
	}
	return s
}

// AddType records a type as owned by this scope.
func (s *Scope) AddType(t Type) { s.Types = append(s.Types, t) }

// AddDeclaration records a declaration as owned by this scope.
func (s *Scope) AddDeclaration(d Declaration) { s.Declarations = append(s.Declarations, d) }

// QualifiedPrefix returns the names of s and its enclosing scopes, outermost
// first, walking parent scopes up to but excluding the global scope (for
// "a::b::c" it returns ["a", "b", "c"]; joining is left to the caller).
// Used by the name printer (component D) as the default
// implementation; C translation units short-circuit around this (spec.md
// §4.D "Names for C-language DIEs are short-circuited").
func (s *Scope) QualifiedPrefix() []string {
	var parts []string
	for cur := s; cur != nil && cur.Kind != ScopeKindGlobal; cur = cur.Parent {
		parts = append([]string{cur.Name}, parts...)
	}
	return parts
}

// TranslationUnit owns a global scope and corresponds 1:1 to a CU, except
// that two TUs sharing the same absolute path within the same binary are
// merged (spec.md §3 IR entities).
type TranslationUnit struct {
	Path         string
	Language     Language
	AddressSize  int
	GlobalScope  *Scope
}

// Language is the DWARF-reported source language of a CU; it governs array
// lower-bound defaults (spec.md §4.E Array) and whether the One-Definition
// Rule applies during canonicalization (spec.md §4.G step 3).
type Language int

const (
	LanguageUnknown Language = iota
	LanguageC
	LanguageCPlusPlus
	LanguageFortran
	LanguageAda
	LanguageJava
	LanguagePascal
	LanguageModula2
	LanguageCobol
	LanguagePLI
)

// ODRApplies reports whether the One-Definition Rule may be trusted to pick
// the first-seen DIE for a key as canonical without structural comparison
// (spec.md §4.G step 3).
func (l Language) ODRApplies() bool {
	switch l {
	case LanguageCPlusPlus, LanguageJava, LanguageAda:
		return true
	default:
		return false
	}
}

// DefaultArrayLowerBound returns the language's default array lower bound
// when DWARF omits DW_AT_lower_bound (spec.md §4.E Array).
func (l Language) DefaultArrayLowerBound() int64 {
	switch l {
	case LanguageFortran, LanguageAda, LanguagePascal, LanguageModula2, LanguageCobol, LanguagePLI:
		return 1
	default:
		return 0
	}
}

func NewTranslationUnit(path string, lang Language, addrSize int) *TranslationUnit {
	tu := &TranslationUnit{Path: path, Language: lang, AddressSize: addrSize}
	tu.GlobalScope = NewScope("", ScopeKindGlobal, nil)
	return tu
}
