package ir

// Declaration is implemented by Variable, Function and Namespace.
type Declaration interface {
	DeclName() string
	OwningScope() *Scope
}

type declBase struct {
	Name  string
	Scope *Scope
}

func (d *declBase) DeclName() string   { return d.Name }
func (d *declBase) OwningScope() *Scope { return d.Scope }

// Variable is a global or static-member variable declaration.
type Variable struct {
	declBase
	Type       Type
	LinkageName string
	Symbol     *ElfSymbol // bound lazily once an address/name resolves
	IsStatic   bool       // static data member
}

// Function is a function or method declaration. Its Type is a
// *FunctionType (nil return means void per spec.md §4.E Subroutine).
type Function struct {
	declBase
	Type        *FunctionType
	LinkageName string
	Symbol      *ElfSymbol
	IsDeclarationOnly bool
}

// Namespace is a C++ namespace declaration; created once per qualified name
// (spec.md §4.E Namespace).
type Namespace struct {
	declBase
	Members *Scope
}
