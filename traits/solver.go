package traits

import (
	"fmt"

	"github.com/chazu/consteval/ir"
)

// DefaultRecursionLimit bounds the depth of nested obligations.
const DefaultRecursionLimit = 128

// ProgramSolver selects from the impls declared in the inference
// context's program, the caller bounds of the obligation's parameter
// environment, trait objects, and the built-in rules for Sized, Copy and
// Clone.
//
// When several kinds of candidate apply, a caller bound wins over an
// object candidate, which wins over a built-in rule, which wins over an
// impl. Two candidates of the winning kind make the obligation ambiguous.
type ProgramSolver struct {
	// RecursionLimit is the greatest obligation depth selected. Deeper
	// obligations are reported as ambiguous. Zero means
	// DefaultRecursionLimit.
	RecursionLimit int
}

var _ Solver = (*ProgramSolver)(nil)

// NewProgramSolver creates a solver with the given recursion limit.
func NewProgramSolver(limit int) *ProgramSolver {
	return &ProgramSolver{RecursionLimit: limit}
}

func (s *ProgramSolver) limit() int {
	if s.RecursionLimit <= 0 {
		return DefaultRecursionLimit
	}
	return s.RecursionLimit
}

type candidate struct {
	kind   SourceKind
	impl   *ir.ImplDef
	bound  ir.TraitRef   // caller bound, or the matched supertrait of an object
	object ir.TraitRef   // principal trait of the object, with the object as self
	base   int           // vtable base of the matched supertrait
	nested []ir.TraitRef // component predicates of a built-in rule
}

// Select implements Solver.
func (s *ProgramSolver) Select(infcx *InferCtxt, ob *Obligation) (*Selection[*Obligation], error) {
	prog := infcx.Program()
	pred := infcx.ResolveTraitRef(ob.Predicate)

	if ob.Depth > s.limit() {
		log.Debugf("obligation depth %d exceeds limit %d: %s", ob.Depth, s.limit(), pred)
		return nil, nil
	}
	trait := prog.Trait(pred.Def)
	if trait == nil {
		return nil, s.malformed(ob, fmt.Sprintf("%s is not a trait", pred.Def))
	}
	if len(pred.Substs) != trait.NumGenerics() {
		return nil, s.malformed(ob, fmt.Sprintf("expected %d generic arguments, got %d", trait.NumGenerics(), len(pred.Substs)))
	}
	selfArg, ok := pred.Substs[0].(ir.Ty)
	if !ok {
		return nil, s.malformed(ob, "self argument is not a type")
	}
	self := infcx.Shallow(selfArg)
	if _, unknown := self.(*ir.Infer); unknown {
		return nil, nil
	}

	cands := s.assemble(infcx, ob, pred, self)
	if len(cands) == 0 {
		return nil, &SelectionError{Kind: SelectionUnimplemented, Obligation: ob}
	}
	winner, ok := winnow(cands)
	if !ok {
		log.Debugf("%d candidates for %s, ambiguous", len(cands), pred)
		return nil, nil
	}
	return s.confirm(infcx, ob, pred, winner)
}

func (s *ProgramSolver) malformed(ob *Obligation, detail string) error {
	return &SelectionError{Kind: SelectionMalformed, Obligation: ob, Detail: detail}
}

func (s *ProgramSolver) assemble(infcx *InferCtxt, ob *Obligation, pred ir.TraitRef, self ir.Ty) []candidate {
	prog := infcx.Program()
	var out []candidate

	seen := make(map[string]bool)
	for _, b := range ob.ParamEnv.CallerBounds {
		if b.Def != pred.Def {
			continue
		}
		key := ir.EraseRegionsTraitRef(b).String()
		if seen[key] {
			continue
		}
		if unifies(infcx, b.Substs, pred.Substs) {
			seen[key] = true
			out = append(out, candidate{kind: SourceParam, bound: b})
		}
	}

	if dyn, ok := self.(*ir.Dynamic); ok {
		object := dyn.Principal.WithSelf(dyn)
		for _, super := range prog.Supertraits(object) {
			if super.Def != pred.Def || !unifies(infcx, super.Substs, pred.Substs) {
				continue
			}
			base, _ := prog.VtableBase(object, super.Def)
			out = append(out, candidate{kind: SourceObject, bound: super, object: object, base: base})
		}
	}

	if nested, ok := builtin(infcx, pred, self); ok {
		out = append(out, candidate{kind: SourceBuiltin, nested: nested})
	}

	for _, impl := range prog.ImplsOfTrait(pred.Def) {
		matched := infcx.Probe(func() bool {
			_, err := matchImpl(infcx, impl, pred)
			return err == nil
		})
		if matched {
			out = append(out, candidate{kind: SourceImpl, impl: impl})
		}
	}
	return out
}

func unifies(infcx *InferCtxt, a, b ir.Substs) bool {
	return infcx.Probe(func() bool {
		return infcx.UnifySubsts(a, b) == nil
	})
}

// matchImpl instantiates impl with fresh variables and unifies its header
// with pred, returning the impl's substitution.
func matchImpl(infcx *InferCtxt, impl *ir.ImplDef, pred ir.TraitRef) (ir.Substs, error) {
	substs := infcx.FreshSubsts(impl.Generics)
	header := ir.SubstTraitRef(*impl.Trait, substs)
	if err := infcx.UnifySubsts(header.Substs, pred.Substs); err != nil {
		return nil, err
	}
	return substs, nil
}

var precedence = [...]SourceKind{SourceParam, SourceObject, SourceBuiltin, SourceImpl}

func winnow(cands []candidate) (candidate, bool) {
	for _, kind := range precedence {
		var found []candidate
		for _, c := range cands {
			if c.kind == kind {
				found = append(found, c)
			}
		}
		switch len(found) {
		case 0:
			continue
		case 1:
			return found[0], true
		}
		return candidate{}, false
	}
	return candidate{}, false
}

func (s *ProgramSolver) confirm(infcx *InferCtxt, ob *Obligation, pred ir.TraitRef, c candidate) (*Selection[*Obligation], error) {
	mismatch := func(err error) error {
		return &SelectionError{Kind: SelectionMismatch, Obligation: ob, Detail: err.Error()}
	}
	switch c.kind {
	case SourceParam:
		if err := infcx.UnifySubsts(c.bound.Substs, pred.Substs); err != nil {
			return nil, mismatch(err)
		}
		return &Selection[*Obligation]{Kind: SourceParam, Trait: c.bound}, nil

	case SourceObject:
		if err := infcx.UnifySubsts(c.bound.Substs, pred.Substs); err != nil {
			return nil, mismatch(err)
		}
		return &Selection[*Obligation]{Kind: SourceObject, Trait: c.object, VtableBase: c.base}, nil

	case SourceBuiltin:
		sel := &Selection[*Obligation]{Kind: SourceBuiltin, Trait: pred}
		for _, n := range c.nested {
			sel.Nested = append(sel.Nested, ob.derive(CauseBuiltin, n))
		}
		return sel, nil
	}

	substs, err := matchImpl(infcx, c.impl, pred)
	if err != nil {
		return nil, mismatch(err)
	}
	sel := &Selection[*Obligation]{Kind: SourceImpl, Impl: c.impl.ID, Substs: substs, Trait: pred}
	for _, p := range c.impl.Predicates {
		sel.Nested = append(sel.Nested, ob.derive(CauseWhereClause, ir.SubstTraitRef(p, substs)))
	}
	return sel, nil
}

// builtin applies the compiler-provided rules. It returns the component
// predicates that must also hold, and false if no rule applies.
func builtin(infcx *InferCtxt, pred ir.TraitRef, self ir.Ty) ([]ir.TraitRef, bool) {
	prog := infcx.Program()
	lang := prog.Lang
	switch pred.Def {
	case lang.Sized:
		return nil, prog.IsSized(infcx.Resolve(self))
	case lang.Copy, lang.Clone:
		component := func(t ir.Ty) ir.TraitRef { return ir.NewTraitRef(pred.Def, t) }
		switch t := self.(type) {
		case *ir.Prim:
			return nil, t.Kind != ir.PrimStr
		case *ir.Ref:
			return nil, !t.Mut
		case *ir.RawPtr, *ir.FnDef:
			return nil, true
		case *ir.Array:
			return []ir.TraitRef{component(t.Elem)}, true
		case *ir.Tuple:
			nested := make([]ir.TraitRef, len(t.Elems))
			for i, e := range t.Elems {
				nested[i] = component(e)
			}
			return nested, true
		}
	}
	return nil, false
}
