package traits

import (
	"fmt"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("consteval.traits")

// Solver selects the mechanism satisfying one obligation.
//
// Select returns (nil, nil) when the obligation is ambiguous: more than
// one candidate applies, or too little is known yet to choose. A
// *SelectionError matching ErrUnimplemented means nothing applies. The
// nested obligations of the returned selection are not yet solved.
type Solver interface {
	Select(infcx *InferCtxt, ob *Obligation) (*Selection[*Obligation], error)
}

// FulfillmentError is an obligation the fulfillment context could not
// discharge.
type FulfillmentError struct {
	Obligation *Obligation
	// Err is the selection error, or nil if the obligation stayed
	// ambiguous.
	Err error
}

func (e *FulfillmentError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ambiguous obligation %s", e.Obligation.Predicate)
	}
	return e.Err.Error()
}

func (e *FulfillmentError) Unwrap() error {
	return e.Err
}

// Ambiguous reports whether the obligation was left undecided.
func (e *FulfillmentError) Ambiguous() bool {
	return e.Err == nil
}

// FulfillmentContext drives a set of obligations to completion. Solving one
// obligation can bind variables that let another, previously ambiguous,
// obligation be solved, so pending obligations are retried until no
// progress is made.
type FulfillmentContext struct {
	solver  Solver
	pending []*Obligation
}

// NewFulfillmentContext creates an empty context that selects with solver.
func NewFulfillmentContext(solver Solver) *FulfillmentContext {
	return &FulfillmentContext{solver: solver}
}

// Register adds an obligation to be solved.
func (f *FulfillmentContext) Register(infcx *InferCtxt, ob *Obligation) {
	resolved := *ob
	resolved.Predicate = infcx.ResolveTraitRef(ob.Predicate)
	log.Debugf("register %s", &resolved)
	f.pending = append(f.pending, &resolved)
}

// Pending returns the number of obligations not yet discharged.
func (f *FulfillmentContext) Pending() int {
	return len(f.pending)
}

// SelectWherePossible solves every pending obligation that can be decided
// now, including the nested obligations of each selection. Ambiguous
// obligations remain pending; failures are returned and dropped.
func (f *FulfillmentContext) SelectWherePossible(infcx *InferCtxt) []*FulfillmentError {
	var errs []*FulfillmentError
	for {
		progress := false
		work := f.pending
		f.pending = nil
		for _, ob := range work {
			ob.Predicate = infcx.ResolveTraitRef(ob.Predicate)
			sel, err := f.solver.Select(infcx, ob)
			switch {
			case err != nil:
				errs = append(errs, &FulfillmentError{Obligation: ob, Err: err})
				progress = true
			case sel == nil:
				f.pending = append(f.pending, ob)
			default:
				log.Debugf("selected %s for %s", sel, ob.Predicate)
				for _, n := range sel.Nested {
					f.Register(infcx, n)
				}
				progress = true
			}
		}
		if !progress || len(f.pending) == 0 {
			return errs
		}
	}
}

// SelectAllOrError solves every pending obligation. Any obligation still
// ambiguous once no further progress is possible is reported as an error.
func (f *FulfillmentContext) SelectAllOrError(infcx *InferCtxt) []*FulfillmentError {
	errs := f.SelectWherePossible(infcx)
	for _, ob := range f.pending {
		errs = append(errs, &FulfillmentError{Obligation: ob})
	}
	f.pending = nil
	return errs
}
