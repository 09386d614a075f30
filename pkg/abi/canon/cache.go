// Package canon implements components F and G: the structural DIE
// comparator and the canonicalization cache it backs (spec.md §4.F, §4.G).
//
// The teacher has no structural-equality or interning machinery of its own
// (its CPU emulator domain never needed one), so this package is grounded
// on JetSetIlly-Gopher2600's dwarf_builder.go (which keys DWARF-derived
// types by name to avoid rebuilding them) and on the type-interning pattern
// in other_examples/e0c5ebbb_golang-debug__internal-gocore-dwarf.go.go,
// adapted from "offset in a DWARF reader" keys to "pointer identity of an
// ir.Type" keys, since IR nodes reference each other by Go pointer rather
// than by arena handle.
package canon

import "github.com/abiscan/abicore/pkg/abi/ir"

// Cache holds, for one DIE source (one ir.Corpus read), everything
// component G's lookup-or-compute contract needs (spec.md §4.G).
type Cache struct {
	// byKey maps a pretty (qualified) name to the list of distinct
	// candidate Types seen under that name so far; index 0 is always the
	// canonical representative (spec.md §4.G "Key→offsets map").
	byKey map[string][]ir.Type

	// canonicalOf is the offset→canonical-offset fast path, keyed by
	// pointer identity instead of DWARF offset (spec.md §4.G
	// "Offset→canonical-offset map").
	canonicalOf map[ir.Type]ir.Type

	// prettyName memoizes the printer's output per Type so repeated
	// lookups don't re-walk the type graph (spec.md §4.G "Pretty-name
	// cache").
	prettyName map[ir.Type]string

	// sourceFile optionally records which CU file a Type was built from,
	// enabling the typedef/pointer/reference/qualifier same-CU-file fast
	// path (spec.md §4.F). Left empty for a Type that the fast path must
	// not apply to.
	sourceFile map[ir.Type]string
}

// NewCache creates an empty cache for one corpus read.
func NewCache() *Cache {
	return &Cache{
		byKey:       make(map[string][]ir.Type),
		canonicalOf: make(map[ir.Type]ir.Type),
		prettyName:  make(map[ir.Type]string),
		sourceFile:  make(map[ir.Type]string),
	}
}

// SetSourceFile records t's owning CU file for the same-file fast path.
// Called by the type graph builder (component E) while constructing t from
// a DIE; never called for synthetic/extra types.
func (c *Cache) SetSourceFile(t ir.Type, file string) {
	c.sourceFile[t] = file
}

func (c *Cache) sameSourceFile(l, r ir.Type) bool {
	lf, lok := c.sourceFile[l]
	rf, rok := c.sourceFile[r]
	return lok && rok && lf == rf
}

// PrettyName returns the memoized pretty name for t, computing and caching
// it via compute on first use.
func (c *Cache) PrettyName(t ir.Type, compute func(ir.Type) string) string {
	if name, ok := c.prettyName[t]; ok {
		return name
	}
	name := compute(t)
	c.prettyName[t] = name
	return name
}

// Canonicalize implements the lookup-or-compute contract of spec.md §4.G
// for a freshly built Type t under key k, in translation unit language
// lang. It returns t's canonical representative; as a side effect it may
// canonicalize other Types already resident in the cache under k.
func (c *Cache) Canonicalize(t ir.Type, key string, lang ir.Language) ir.Type {
	// Step 1: offset (pointer)→canonical fast path.
	if existing, ok := c.canonicalOf[t]; ok {
		return existing
	}

	candidates, ok := c.byKey[key]
	// Step 2: key absent — t is newly canonical.
	if !ok || len(candidates) == 0 {
		c.byKey[key] = []ir.Type{t}
		c.canonicalOf[t] = t
		ir.SetCanonical(t, t)
		return t
	}

	// Step 3: One-Definition Rule short-circuit — trust the first entry.
	if lang.ODRApplies() {
		canonical := candidates[0]
		c.canonicalOf[t] = canonical
		ir.SetCanonical(t, canonical)
		return canonical
	}

	// Step 4: iterate candidates, structurally comparing. Re-read the
	// slice length from the map at each step since comparing may append
	// further entries under the same key (spec.md §4.G closing note).
	for i := 0; ; i++ {
		cur := c.byKey[key]
		if i >= len(cur) {
			break
		}
		candidate := cur[i]
		if candidate == t {
			continue
		}
		if Equal(candidate, t, newCompareState(c, lang, true)) {
			canonical := candidate
			if existing, ok := c.canonicalOf[candidate]; ok {
				canonical = existing
			}
			c.canonicalOf[t] = canonical
			ir.SetCanonical(t, canonical)
			return canonical
		}
	}

	c.byKey[key] = append(c.byKey[key], t)
	c.canonicalOf[t] = t
	ir.SetCanonical(t, t)
	return t
}
