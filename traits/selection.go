package traits

import (
	"errors"
	"fmt"

	"github.com/chazu/consteval/ir"
)

// SourceKind says which mechanism satisfies an obligation.
type SourceKind int

const (
	// SourceImpl is a user-declared impl block.
	SourceImpl SourceKind = iota
	// SourceParam is a bound assumed by the parameter environment.
	SourceParam
	// SourceBuiltin is a rule the compiler provides, such as Sized for
	// primitive types or Copy for tuples of Copy types.
	SourceBuiltin
	// SourceObject is the self type being a trait object for the trait or
	// one of its subtraits.
	SourceObject
)

func (k SourceKind) String() string {
	switch k {
	case SourceImpl:
		return "impl"
	case SourceParam:
		return "param"
	case SourceBuiltin:
		return "builtin"
	case SourceObject:
		return "object"
	}
	return fmt.Sprintf("SourceKind(%d)", int(k))
}

// Selection is the answer to one obligation. N is the payload carried for
// each nested obligation: *Obligation while solving, Resolved once the
// nested obligations have been discharged.
type Selection[N any] struct {
	Kind SourceKind

	// Impl and Substs identify the chosen impl and its generic arguments.
	Impl   ir.DefID
	Substs ir.Substs

	// Trait is the matched trait reference: the caller bound for
	// SourceParam, the object's principal (with the object as self) for
	// SourceObject, and the obligation's predicate otherwise.
	Trait ir.TraitRef

	// VtableBase is the first method slot of the predicate's trait within
	// the object's vtable. Only meaningful for SourceObject.
	VtableBase int

	Nested []N
}

// Resolved marks a nested obligation that has been fully discharged.
type Resolved struct{}

// Map returns a copy of s with every nested payload replaced by fn(n).
func Map[N, M any](s *Selection[N], fn func(N) M) *Selection[M] {
	out := &Selection[M]{
		Kind:       s.Kind,
		Impl:       s.Impl,
		Substs:     s.Substs,
		Trait:      s.Trait,
		VtableBase: s.VtableBase,
		Nested:     make([]M, len(s.Nested)),
	}
	for i, n := range s.Nested {
		out.Nested[i] = fn(n)
	}
	return out
}

// ResolveSelection applies the bindings of infcx to the substitutions of s.
func ResolveSelection[N any](infcx *InferCtxt, s *Selection[N]) *Selection[N] {
	out := *s
	out.Substs = infcx.ResolveSubsts(s.Substs)
	out.Trait = infcx.ResolveTraitRef(s.Trait)
	return &out
}

// HasInfer reports whether the selection still mentions type variables.
func (s *Selection[N]) HasInfer() bool {
	return ir.HasInfer(s.Substs...) || ir.HasInfer(s.Trait.Substs...)
}

func (s *Selection[N]) String() string {
	switch s.Kind {
	case SourceImpl:
		return fmt.Sprintf("Impl(%s%s, nested=%d)", s.Impl, s.Substs, len(s.Nested))
	case SourceObject:
		return fmt.Sprintf("Object(%s, base=%d)", s.Trait, s.VtableBase)
	case SourceParam:
		return fmt.Sprintf("Param(%s)", s.Trait)
	}
	return fmt.Sprintf("Builtin(%s, nested=%d)", s.Trait, len(s.Nested))
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// ErrUnimplemented matches a SelectionError meaning no impl, bound or
// built-in rule applies.
var ErrUnimplemented = errors.New("trait selection unimplemented")

// SelectionErrorKind classifies a failed selection.
type SelectionErrorKind int

const (
	// SelectionUnimplemented means nothing satisfies the predicate.
	SelectionUnimplemented SelectionErrorKind = iota
	// SelectionMalformed means the predicate itself is ill-formed, for
	// example it names something that is not a trait.
	SelectionMalformed
	// SelectionMismatch means a confirmed candidate failed to unify.
	SelectionMismatch
)

// SelectionError is returned by Solver.Select.
type SelectionError struct {
	Kind       SelectionErrorKind
	Obligation *Obligation
	Detail     string
}

func (e *SelectionError) Error() string {
	switch e.Kind {
	case SelectionUnimplemented:
		return fmt.Sprintf("the trait bound %s is not satisfied", e.Obligation.Predicate)
	case SelectionMismatch:
		return fmt.Sprintf("selecting %s: %s", e.Obligation.Predicate, e.Detail)
	}
	return fmt.Sprintf("malformed obligation %s: %s", e.Obligation.Predicate, e.Detail)
}

// Is matches ErrUnimplemented for unimplemented selections.
func (e *SelectionError) Is(target error) bool {
	return target == ErrUnimplemented && e.Kind == SelectionUnimplemented
}
