package ir

// Equal reports whether a and b are structurally identical, regions
// included. Callers that want lifetime-insensitive comparison erase first.
func Equal(a, b Ty) bool {
	return EqualArgs(a, b)
}

// EqualArgs compares two generic arguments structurally.
func EqualArgs(a, b GenericArg) bool {
	switch a := a.(type) {
	case Region:
		bb, ok := b.(Region)
		return ok && a == bb
	case *Prim:
		bb, ok := b.(*Prim)
		return ok && a.Kind == bb.Kind
	case *Tuple:
		bb, ok := b.(*Tuple)
		if !ok || len(a.Elems) != len(bb.Elems) {
			return false
		}
		for i := range a.Elems {
			if !EqualArgs(a.Elems[i], bb.Elems[i]) {
				return false
			}
		}
		return true
	case *Adt:
		bb, ok := b.(*Adt)
		return ok && a.Def == bb.Def && EqualSubsts(a.Substs, bb.Substs)
	case *Ref:
		bb, ok := b.(*Ref)
		return ok && a.Mut == bb.Mut && a.Region == bb.Region && EqualArgs(a.Elem, bb.Elem)
	case *RawPtr:
		bb, ok := b.(*RawPtr)
		return ok && a.Mut == bb.Mut && EqualArgs(a.Elem, bb.Elem)
	case *Array:
		bb, ok := b.(*Array)
		return ok && a.Len == bb.Len && EqualArgs(a.Elem, bb.Elem)
	case *Slice:
		bb, ok := b.(*Slice)
		return ok && EqualArgs(a.Elem, bb.Elem)
	case *Dynamic:
		bb, ok := b.(*Dynamic)
		return ok && a.Region == bb.Region &&
			a.Principal.Def == bb.Principal.Def &&
			EqualSubsts(a.Principal.Substs, bb.Principal.Substs)
	case *Param:
		bb, ok := b.(*Param)
		return ok && a.Index == bb.Index
	case *FnDef:
		bb, ok := b.(*FnDef)
		return ok && a.Def == bb.Def && EqualSubsts(a.Substs, bb.Substs)
	case *Infer:
		bb, ok := b.(*Infer)
		return ok && a.Var == bb.Var
	}
	return false
}

// EqualSubsts compares substitutions element-wise.
func EqualSubsts(a, b Substs) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !EqualArgs(a[i], b[i]) {
			return false
		}
	}
	return true
}

// EqualTraitRefs compares trait references structurally.
func EqualTraitRefs(a, b TraitRef) bool {
	return a.Def == b.Def && EqualSubsts(a.Substs, b.Substs)
}
