// Package traits is the obligation solver boundary of the evaluator:
// obligations, selections, scoped inference contexts, fulfillment, and a
// table-driven solver over the impls declared in an ir.Program.
package traits

import (
	"fmt"
	"strings"

	"github.com/chazu/consteval/ir"
)

// ---------------------------------------------------------------------------
// Inference context
// ---------------------------------------------------------------------------

// InferCtxt owns the type variables created while answering one query.
// It is only valid inside the function passed to Enter.
type InferCtxt struct {
	prog     *ir.Program
	vars     []ir.Ty // binding of each variable, nil while unbound
	released bool
}

// Enter runs fn with a fresh inference context and releases the context
// when fn returns or panics. Nothing created inside fn may be used after.
func Enter[T any](prog *ir.Program, fn func(*InferCtxt) (T, error)) (T, error) {
	infcx := &InferCtxt{prog: prog}
	defer infcx.release()
	return fn(infcx)
}

func (c *InferCtxt) release() {
	c.vars = nil
	c.released = true
}

func (c *InferCtxt) live() {
	if c.released {
		panic("InferCtxt: used after release")
	}
}

// Program returns the program the context resolves against.
func (c *InferCtxt) Program() *ir.Program {
	return c.prog
}

// NumVars returns the number of variables created so far.
func (c *InferCtxt) NumVars() int {
	c.live()
	return len(c.vars)
}

// NewVar creates an unbound type variable.
func (c *InferCtxt) NewVar() *ir.Infer {
	c.live()
	v := &ir.Infer{Var: uint32(len(c.vars))}
	c.vars = append(c.vars, nil)
	return v
}

// FreshSubsts instantiates generic parameters with new variables. Names
// starting with a quote are lifetimes and are instantiated as Erased.
func (c *InferCtxt) FreshSubsts(generics []string) ir.Substs {
	s := make(ir.Substs, len(generics))
	for i, g := range generics {
		if strings.HasPrefix(g, "'") {
			s[i] = ir.Erased
			continue
		}
		s[i] = c.NewVar()
	}
	return s
}

// Shallow follows variable bindings at the top of t only.
func (c *InferCtxt) Shallow(t ir.Ty) ir.Ty {
	c.live()
	for {
		v, ok := t.(*ir.Infer)
		if !ok || int(v.Var) >= len(c.vars) || c.vars[v.Var] == nil {
			return t
		}
		t = c.vars[v.Var]
	}
}

// Resolve replaces every bound variable in t with its binding. Unbound
// variables are left in place.
func (c *InferCtxt) Resolve(t ir.Ty) ir.Ty {
	c.live()
	if !ir.HasInfer(t) {
		return t
	}
	return c.resolver().FoldTy(t)
}

// ResolveSubsts resolves every argument of s.
func (c *InferCtxt) ResolveSubsts(s ir.Substs) ir.Substs {
	c.live()
	if !ir.HasInfer(s...) {
		return s
	}
	return c.resolver().FoldSubsts(s)
}

// ResolveTraitRef resolves the substitution of tr.
func (c *InferCtxt) ResolveTraitRef(tr ir.TraitRef) ir.TraitRef {
	return ir.TraitRef{Def: tr.Def, Substs: c.ResolveSubsts(tr.Substs)}
}

func (c *InferCtxt) resolver() *ir.TypeFolder {
	var f *ir.TypeFolder
	f = &ir.TypeFolder{
		Ty: func(t ir.Ty) (ir.Ty, bool) {
			v, ok := t.(*ir.Infer)
			if !ok {
				return nil, false
			}
			s := c.Shallow(v)
			if _, still := s.(*ir.Infer); still {
				return s, true
			}
			return f.FoldTy(s), true
		},
	}
	return f
}

// Probe runs fn and then undoes every binding and variable it created.
func (c *InferCtxt) Probe(fn func() bool) bool {
	c.live()
	snap := append([]ir.Ty(nil), c.vars...)
	defer func() { c.vars = snap }()
	return fn()
}

// ---------------------------------------------------------------------------
// Unification
// ---------------------------------------------------------------------------

// MismatchError reports two types that cannot be made equal.
type MismatchError struct {
	A, B ir.Ty
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("type mismatch: %s vs %s", e.A, e.B)
}

// Unify makes a and b equal by binding variables. Regions are ignored:
// they never affect selection.
func (c *InferCtxt) Unify(a, b ir.Ty) error {
	c.live()
	a, b = c.Shallow(a), c.Shallow(b)

	if av, ok := a.(*ir.Infer); ok {
		if bv, ok := b.(*ir.Infer); ok && av.Var == bv.Var {
			return nil
		}
		return c.bind(av, b)
	}
	if bv, ok := b.(*ir.Infer); ok {
		return c.bind(bv, a)
	}

	mismatch := &MismatchError{A: c.Resolve(a), B: c.Resolve(b)}
	switch a := a.(type) {
	case *ir.Prim:
		if bb, ok := b.(*ir.Prim); ok && a.Kind == bb.Kind {
			return nil
		}
	case *ir.Tuple:
		bb, ok := b.(*ir.Tuple)
		if !ok || len(a.Elems) != len(bb.Elems) {
			return mismatch
		}
		for i := range a.Elems {
			if err := c.Unify(a.Elems[i], bb.Elems[i]); err != nil {
				return err
			}
		}
		return nil
	case *ir.Adt:
		if bb, ok := b.(*ir.Adt); ok && a.Def == bb.Def {
			return c.UnifySubsts(a.Substs, bb.Substs)
		}
	case *ir.Ref:
		if bb, ok := b.(*ir.Ref); ok && a.Mut == bb.Mut {
			return c.Unify(a.Elem, bb.Elem)
		}
	case *ir.RawPtr:
		if bb, ok := b.(*ir.RawPtr); ok && a.Mut == bb.Mut {
			return c.Unify(a.Elem, bb.Elem)
		}
	case *ir.Array:
		if bb, ok := b.(*ir.Array); ok && a.Len == bb.Len {
			return c.Unify(a.Elem, bb.Elem)
		}
	case *ir.Slice:
		if bb, ok := b.(*ir.Slice); ok {
			return c.Unify(a.Elem, bb.Elem)
		}
	case *ir.Dynamic:
		if bb, ok := b.(*ir.Dynamic); ok && a.Principal.Def == bb.Principal.Def {
			return c.UnifySubsts(a.Principal.Substs, bb.Principal.Substs)
		}
	case *ir.Param:
		if bb, ok := b.(*ir.Param); ok && a.Index == bb.Index {
			return nil
		}
	case *ir.FnDef:
		if bb, ok := b.(*ir.FnDef); ok && a.Def == bb.Def {
			return c.UnifySubsts(a.Substs, bb.Substs)
		}
	}
	return mismatch
}

// UnifySubsts unifies two substitutions element-wise. Region arguments
// always unify.
func (c *InferCtxt) UnifySubsts(a, b ir.Substs) error {
	if len(a) != len(b) {
		return fmt.Errorf("substitution length mismatch: %s vs %s", a, b)
	}
	for i := range a {
		at, aok := a[i].(ir.Ty)
		bt, bok := b[i].(ir.Ty)
		if !aok || !bok {
			if aok != bok {
				return fmt.Errorf("generic argument kind mismatch at %d: %s vs %s", i, a[i], b[i])
			}
			continue
		}
		if err := c.Unify(at, bt); err != nil {
			return err
		}
	}
	return nil
}

func (c *InferCtxt) bind(v *ir.Infer, t ir.Ty) error {
	t = c.Resolve(t)
	occurs := false
	ir.Walk(t, func(a ir.GenericArg) bool {
		if w, ok := a.(*ir.Infer); ok && w.Var == v.Var {
			occurs = true
		}
		return !occurs
	})
	if occurs {
		return fmt.Errorf("cyclic type: %s occurs in %s", v, t)
	}
	c.vars[v.Var] = t
	return nil
}
