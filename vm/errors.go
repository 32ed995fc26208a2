package vm

import (
	"fmt"

	"github.com/chazu/consteval/ir"
)

// ---------------------------------------------------------------------------
// Recoverable evaluation errors
// ---------------------------------------------------------------------------

// EvalErrorKind classifies a recoverable evaluation failure.
type EvalErrorKind int

const (
	UnimplementedTraitSelection EvalErrorKind = iota + 1
	ReadBytesAsPointer
	ReadPointerAsBytes
	ReadUndefBytes
	DanglingPointerDeref
	InvalidFunctionPointer
	PointerOutOfBounds
	AlignmentCheckFailed
	ModifiedConstantMemory
	MemoryExhausted
	LayoutFailure
	ValueOutOfRange
)

var evalErrorNames = map[EvalErrorKind]string{
	UnimplementedTraitSelection: "no implementation found for trait selection",
	ReadBytesAsPointer:          "a memory access tried to interpret some bytes as a pointer",
	ReadPointerAsBytes:          "a raw memory access tried to access part of a pointer value as raw bytes",
	ReadUndefBytes:              "attempted to read undefined bytes",
	DanglingPointerDeref:        "dangling pointer was dereferenced",
	InvalidFunctionPointer:      "tried to use an integer or data pointer as a function pointer",
	PointerOutOfBounds:          "pointer offset outside bounds of allocation",
	AlignmentCheckFailed:        "tried to execute a misaligned read or write",
	ModifiedConstantMemory:      "tried to modify constant memory",
	MemoryExhausted:             "tried to allocate more memory than available",
	LayoutFailure:               "type has no valid layout",
	ValueOutOfRange:             "value does not fit in a pointer-sized word",
}

func (k EvalErrorKind) String() string {
	if s, ok := evalErrorNames[k]; ok {
		return s
	}
	return fmt.Sprintf("EvalErrorKind(%d)", int(k))
}

// EvalError is a failure the caller can handle, for example by reporting
// that the program being evaluated is not a valid constant.
type EvalError struct {
	Kind   EvalErrorKind
	Detail string
	Err    error
}

func (e *EvalError) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// Is matches any *EvalError of the same kind, so the sentinels below work
// with errors.Is.
func (e *EvalError) Is(target error) bool {
	t, ok := target.(*EvalError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrUnimplementedTraitSelection = &EvalError{Kind: UnimplementedTraitSelection}
	ErrReadBytesAsPointer          = &EvalError{Kind: ReadBytesAsPointer}
	ErrReadPointerAsBytes          = &EvalError{Kind: ReadPointerAsBytes}
	ErrReadUndefBytes              = &EvalError{Kind: ReadUndefBytes}
	ErrDanglingPointerDeref        = &EvalError{Kind: DanglingPointerDeref}
	ErrInvalidFunctionPointer      = &EvalError{Kind: InvalidFunctionPointer}
	ErrPointerOutOfBounds          = &EvalError{Kind: PointerOutOfBounds}
	ErrAlignmentCheckFailed        = &EvalError{Kind: AlignmentCheckFailed}
	ErrModifiedConstantMemory      = &EvalError{Kind: ModifiedConstantMemory}
	ErrMemoryExhausted             = &EvalError{Kind: MemoryExhausted}
	ErrLayout                      = &EvalError{Kind: LayoutFailure}
	ErrValueOutOfRange             = &EvalError{Kind: ValueOutOfRange}
)

func errorf(kind EvalErrorKind, format string, args ...any) *EvalError {
	return &EvalError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// ---------------------------------------------------------------------------
// Fatal diagnostics
// ---------------------------------------------------------------------------

// AbortKind classifies a fatal diagnostic.
type AbortKind int

const (
	// AbortFatal is a user-facing fatal error, such as hitting the
	// recursion limit.
	AbortFatal AbortKind = iota
	// AbortBug is an internal invariant violation: input that passed type
	// checking should never reach it.
	AbortBug
)

// Abort ends the whole evaluation. It is raised with panic and converted
// back to an error only by Catch.
type Abort struct {
	Kind     AbortKind
	Span     ir.Span
	Message  string
	TraitRef string // rendered trait reference, if one was involved
}

func (a *Abort) Error() string {
	prefix := "error"
	if a.Kind == AbortBug {
		prefix = "internal compiler error"
	}
	msg := fmt.Sprintf("%s: %s", prefix, a.Message)
	if !a.Span.IsDummy() {
		msg = a.Span.String() + ": " + msg
	}
	if a.TraitRef != "" {
		msg += " (trait ref " + a.TraitRef + ")"
	}
	return msg
}

// RecursionLimitMessage is the diagnostic for an ambiguous selection.
const RecursionLimitMessage = "reached the recursion limit during evaluation (selection ambiguity)"

func fatal(span ir.Span, traitRef string, msg string) {
	panic(&Abort{Kind: AbortFatal, Span: span, Message: msg, TraitRef: traitRef})
}

func bug(span ir.Span, traitRef string, format string, args ...any) {
	panic(&Abort{Kind: AbortBug, Span: span, Message: fmt.Sprintf(format, args...), TraitRef: traitRef})
}

// Catch runs fn and returns any Abort it raises as an error. Other panics
// propagate.
func Catch(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a, ok := r.(*Abort)
			if !ok {
				panic(r)
			}
			err = a
		}
	}()
	return fn()
}
