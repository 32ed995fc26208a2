package ir

// ---------------------------------------------------------------------------
// Region erasure
//
// Lifetimes never change which impl is selected or what a vtable contains,
// so every query is canonicalized by replacing all regions with Erased
// before it is solved or used as a cache key. Two trait references that
// differ only in their lifetimes are the same query after erasure.
// ---------------------------------------------------------------------------

var eraser = &TypeFolder{
	Region: func(Region) Region { return Erased },
}

// EraseRegions returns t with every region replaced by Erased.
func EraseRegions(t Ty) Ty {
	if !HasRegions(t) {
		return t
	}
	return eraser.FoldTy(t)
}

// EraseRegionsSubsts erases every region in s, including region arguments.
func EraseRegionsSubsts(s Substs) Substs {
	if !HasRegions(s...) {
		return s
	}
	return eraser.FoldSubsts(s)
}

// EraseRegionsTraitRef erases every region in tr.
func EraseRegionsTraitRef(tr TraitRef) TraitRef {
	return TraitRef{Def: tr.Def, Substs: EraseRegionsSubsts(tr.Substs)}
}

// EraseRegionsParamEnv erases every region in the caller bounds of env.
func EraseRegionsParamEnv(env ParamEnv) ParamEnv {
	if len(env.CallerBounds) == 0 {
		return env
	}
	bounds := make([]TraitRef, len(env.CallerBounds))
	for i, b := range env.CallerBounds {
		bounds[i] = EraseRegionsTraitRef(b)
	}
	return ParamEnv{CallerBounds: bounds}
}
