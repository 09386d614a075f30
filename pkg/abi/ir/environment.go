// Package ir is the in-memory representation produced by the DWARF read
// pipeline: translation units, scopes, types, declarations and ELF symbols.
// There is no arena: nodes reference each other by Go pointer, and identity
// between two Type values is Go pointer identity of their canonical representative,
// which keeps cyclic type graphs (invariant: a class holding a pointer to
// itself) trivially safe since the Go garbage collector, unlike a manual
// arena-with-handles, already tolerates reference cycles.
package ir

import "sync"

// Environment is the one process-wide object every ReadContext may share.
// It interns strings and owns the canonical void and variadic types. It may
// be shared across multiple ReadContexts only when those contexts never run
// concurrently with each other; nothing in it guards against such use beyond
// the mutex around the intern table.
type Environment struct {
	mu       sync.Mutex
	interned map[string]string

	void     *BaseType
	variadic *FunctionParameter

	// canonicalizationDone, once set, forbids further structural edits to
	// any IR rooted in this environment.
	canonicalizationDone bool
}

// NewEnvironment creates a fresh, empty environment with its own void and
// variadic-marker singletons.
func NewEnvironment() *Environment {
	env := &Environment{
		interned: make(map[string]string),
	}
	env.void = &BaseType{
		name:      "void",
		byteSize:  0,
		encoding:  BaseEncodingUnspecified,
	}
	env.void.canonical = env.void

	env.variadic = &FunctionParameter{
		variadic: true,
	}

	return env
}

// Intern returns a canonical copy of s so that two equal strings read from
// different DIEs compare pointer-equal-enough (== on the returned string
// still compares by value in Go, but interning collapses allocations and
// lets the name printer cache keys by identity when desired).
func (e *Environment) Intern(s string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if v, ok := e.interned[s]; ok {
		return v
	}
	e.interned[s] = s
	return s
}

// Void returns the environment's canonical void type.
func (e *Environment) Void() *BaseType {
	return e.void
}

// Variadic returns the environment's canonical "..." parameter marker.
func (e *Environment) Variadic() *FunctionParameter {
	return e.variadic
}

// CanonicalizationDone reports whether structural edits are still allowed.
func (e *Environment) CanonicalizationDone() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canonicalizationDone
}

// SetCanonicalizationDone freezes the environment. Called once by the read
// context pipeline after the late-canonicalization fixup pass.
func (e *Environment) SetCanonicalizationDone() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.canonicalizationDone = true
}
