package ir

import (
	"fmt"
	"strings"
)

// Substs is an ordered list of generic arguments. For trait references the
// self type is at index 0.
type Substs []GenericArg

// TypeAt returns the type argument at i. It panics if the argument at i is
// a region, which indicates a malformed substitution.
func (s Substs) TypeAt(i int) Ty {
	if i < 0 || i >= len(s) {
		panic(fmt.Sprintf("Substs.TypeAt: index %d out of range for %s", i, s))
	}
	t, ok := s[i].(Ty)
	if !ok {
		panic(fmt.Sprintf("Substs.TypeAt: expected type at %d in %s", i, s))
	}
	return t
}

// Types returns the type arguments in order, skipping regions.
func (s Substs) Types() []Ty {
	var out []Ty
	for _, a := range s {
		if t, ok := a.(Ty); ok {
			out = append(out, t)
		}
	}
	return out
}

// Truncate returns the first n arguments.
func (s Substs) Truncate(n int) Substs {
	if n >= len(s) {
		return s
	}
	return s[:n:n]
}

func (s Substs) String() string {
	if len(s) == 0 {
		return ""
	}
	parts := make([]string, len(s))
	for i, a := range s {
		parts[i] = a.String()
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

// TypesAsSubsts builds a substitution from types.
func TypesAsSubsts(tys ...Ty) Substs {
	s := make(Substs, len(tys))
	for i, t := range tys {
		s[i] = t
	}
	return s
}

// ---------------------------------------------------------------------------
// Folding
// ---------------------------------------------------------------------------

// TypeFolder rewrites types and regions structurally. Ty is consulted on
// every type before descending into it; returning (t, true) replaces the
// whole subtree. Either hook may be nil.
type TypeFolder struct {
	Ty     func(Ty) (Ty, bool)
	Region func(Region) Region
}

// FoldTy rebuilds t with the folder applied.
func (f *TypeFolder) FoldTy(t Ty) Ty {
	if t == nil {
		return nil
	}
	if f.Ty != nil {
		if r, ok := f.Ty(t); ok {
			return r
		}
	}
	switch t := t.(type) {
	case *Prim, *Param, *Infer:
		return t
	case *Tuple:
		if len(t.Elems) == 0 {
			return t
		}
		elems := make([]Ty, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = f.FoldTy(e)
		}
		return &Tuple{Elems: elems}
	case *Adt:
		return &Adt{Def: t.Def, Substs: f.FoldSubsts(t.Substs)}
	case *Ref:
		return &Ref{Region: f.foldRegion(t.Region), Elem: f.FoldTy(t.Elem), Mut: t.Mut}
	case *RawPtr:
		return &RawPtr{Elem: f.FoldTy(t.Elem), Mut: t.Mut}
	case *Array:
		return &Array{Elem: f.FoldTy(t.Elem), Len: t.Len}
	case *Slice:
		return &Slice{Elem: f.FoldTy(t.Elem)}
	case *Dynamic:
		return &Dynamic{
			Principal: ExistentialTraitRef{Def: t.Principal.Def, Substs: f.FoldSubsts(t.Principal.Substs)},
			Region:    f.foldRegion(t.Region),
		}
	case *FnDef:
		return &FnDef{Def: t.Def, Substs: f.FoldSubsts(t.Substs)}
	}
	panic(fmt.Sprintf("TypeFolder: unhandled type %T", t))
}

// FoldArg folds a single generic argument.
func (f *TypeFolder) FoldArg(a GenericArg) GenericArg {
	switch a := a.(type) {
	case Region:
		return f.foldRegion(a)
	case Ty:
		return f.FoldTy(a)
	}
	panic(fmt.Sprintf("TypeFolder: unhandled generic arg %T", a))
}

// FoldSubsts folds every argument of s.
func (f *TypeFolder) FoldSubsts(s Substs) Substs {
	if s == nil {
		return nil
	}
	out := make(Substs, len(s))
	for i, a := range s {
		out[i] = f.FoldArg(a)
	}
	return out
}

// FoldTraitRef folds the substitution of tr.
func (f *TypeFolder) FoldTraitRef(tr TraitRef) TraitRef {
	return TraitRef{Def: tr.Def, Substs: f.FoldSubsts(tr.Substs)}
}

func (f *TypeFolder) foldRegion(r Region) Region {
	if f.Region == nil {
		return r
	}
	return f.Region(r)
}

// ---------------------------------------------------------------------------
// Substitution
// ---------------------------------------------------------------------------

func substFolder(args Substs) *TypeFolder {
	return &TypeFolder{
		Ty: func(t Ty) (Ty, bool) {
			p, ok := t.(*Param)
			if !ok {
				return nil, false
			}
			if int(p.Index) >= len(args) {
				panic(fmt.Sprintf("Subst: type parameter %s (index %d) out of range for %s", p, p.Index, args))
			}
			return args.TypeAt(int(p.Index)), true
		},
		Region: func(r Region) Region {
			if r.Kind != ReEarlyBound || int(r.Index) >= len(args) {
				return r
			}
			if sub, ok := args[r.Index].(Region); ok {
				return sub
			}
			return r
		},
	}
}

// Subst replaces generic parameters in t with the arguments in args.
func Subst(t Ty, args Substs) Ty {
	return substFolder(args).FoldTy(t)
}

// SubstSubsts applies args to every element of s.
func SubstSubsts(s Substs, args Substs) Substs {
	return substFolder(args).FoldSubsts(s)
}

// SubstTraitRef applies args to tr.
func SubstTraitRef(tr TraitRef, args Substs) TraitRef {
	return substFolder(args).FoldTraitRef(tr)
}

// ---------------------------------------------------------------------------
// Visiting
// ---------------------------------------------------------------------------

// Walk calls fn for every generic argument reachable from a, parents first.
// Returning false from fn stops the walk.
func Walk(a GenericArg, fn func(GenericArg) bool) bool {
	if !fn(a) {
		return false
	}
	switch t := a.(type) {
	case *Tuple:
		for _, e := range t.Elems {
			if !Walk(e, fn) {
				return false
			}
		}
	case *Adt:
		return walkSubsts(t.Substs, fn)
	case *Ref:
		return Walk(t.Region, fn) && Walk(t.Elem, fn)
	case *RawPtr:
		return Walk(t.Elem, fn)
	case *Array:
		return Walk(t.Elem, fn)
	case *Slice:
		return Walk(t.Elem, fn)
	case *Dynamic:
		return walkSubsts(t.Principal.Substs, fn) && Walk(t.Region, fn)
	case *FnDef:
		return walkSubsts(t.Substs, fn)
	}
	return true
}

func walkSubsts(s Substs, fn func(GenericArg) bool) bool {
	for _, a := range s {
		if !Walk(a, fn) {
			return false
		}
	}
	return true
}

// HasInfer reports whether any argument of s mentions an inference variable.
func HasInfer(s ...GenericArg) bool {
	return anyArg(s, func(a GenericArg) bool {
		_, ok := a.(*Infer)
		return ok
	})
}

// HasParams reports whether any argument of s mentions a type parameter.
func HasParams(s ...GenericArg) bool {
	return anyArg(s, func(a GenericArg) bool {
		_, ok := a.(*Param)
		return ok
	})
}

// HasRegions reports whether any argument of s mentions a non-erased region.
func HasRegions(s ...GenericArg) bool {
	return anyArg(s, func(a GenericArg) bool {
		r, ok := a.(Region)
		return ok && !r.IsErased()
	})
}

func anyArg(s []GenericArg, pred func(GenericArg) bool) bool {
	found := false
	for _, a := range s {
		Walk(a, func(x GenericArg) bool {
			if pred(x) {
				found = true
			}
			return !found
		})
		if found {
			return true
		}
	}
	return false
}
