package traits

import (
	"fmt"

	"github.com/chazu/consteval/ir"
)

// CauseCode records why an obligation exists.
type CauseCode int

const (
	// CauseMisc is a root obligation raised directly by the evaluator.
	CauseMisc CauseCode = iota
	// CauseWhereClause is a predicate of a selected impl.
	CauseWhereClause
	// CauseBuiltin is a component obligation of a built-in rule, such as
	// each element of a tuple being Copy.
	CauseBuiltin
)

func (c CauseCode) String() string {
	switch c {
	case CauseWhereClause:
		return "impl where-clause"
	case CauseBuiltin:
		return "builtin component"
	}
	return "misc"
}

// ObligationCause carries the diagnostic origin of an obligation.
type ObligationCause struct {
	Span ir.Span
	Code CauseCode
}

// MiscCause is the cause of a root obligation at span.
func MiscCause(span ir.Span) ObligationCause {
	return ObligationCause{Span: span, Code: CauseMisc}
}

// Obligation is a trait predicate that must hold under ParamEnv.
// Depth counts how many selections separate it from its root.
type Obligation struct {
	Cause     ObligationCause
	ParamEnv  ir.ParamEnv
	Predicate ir.TraitRef
	Depth     int
}

// NewObligation creates a root obligation.
func NewObligation(cause ObligationCause, env ir.ParamEnv, pred ir.TraitRef) *Obligation {
	return &Obligation{Cause: cause, ParamEnv: env, Predicate: pred}
}

// derive creates an obligation required by the selection of o.
func (o *Obligation) derive(code CauseCode, pred ir.TraitRef) *Obligation {
	return &Obligation{
		Cause:     ObligationCause{Span: o.Cause.Span, Code: code},
		ParamEnv:  o.ParamEnv,
		Predicate: pred,
		Depth:     o.Depth + 1,
	}
}

func (o *Obligation) String() string {
	return fmt.Sprintf("Obligation(%s, depth=%d, %s)", o.Predicate, o.Depth, o.Cause.Code)
}
