package vm

import (
	"errors"

	"github.com/chazu/consteval/ir"
	"github.com/chazu/consteval/traits"
)

// ---------------------------------------------------------------------------
// Obligation fulfillment
// ---------------------------------------------------------------------------

// Fulfill selects the mechanism that satisfies traitRef under env and
// solves all of its nested obligations.
//
// Only a missing implementation is reported as an error
// (ErrUnimplementedTraitSelection). The input is assumed to have passed
// type checking, so ambiguity aborts with the recursion-limit diagnostic
// and any other solver failure aborts as an internal error.
func (ecx *EvalContext) Fulfill(span ir.Span, env ir.ParamEnv, traitRef ir.TraitRef) (*traits.Selection[traits.Resolved], error) {
	traitRef = ir.EraseRegionsTraitRef(traitRef)
	env = ir.EraseRegionsParamEnv(env)
	shown := ecx.Program.DisplayTraitRef(traitRef)
	log.Debugf("fulfill(env=%s, trait_ref=%s)", env, shown)

	if ecx.cache != nil {
		if sel, ok := ecx.cache.lookup(env, traitRef); ok {
			return sel, nil
		}
	}

	sel, err := traits.Enter(ecx.Program, func(infcx *traits.InferCtxt) (*traits.Selection[traits.Resolved], error) {
		ob := traits.NewObligation(traits.MiscCause(span), env, traitRef)

		selection, err := ecx.solver.Select(infcx, ob)
		switch {
		case errors.Is(err, traits.ErrUnimplemented):
			return nil, &EvalError{Kind: UnimplementedTraitSelection, Detail: shown, Err: err}
		case err != nil:
			bug(span, shown, "encountered error `%v` selecting `%s` during evaluation", err, shown)
		case selection == nil:
			log.Debugf("ambiguity selecting %s, presuming overflow", shown)
			fatal(span, shown, RecursionLimitMessage)
		}
		log.Debugf("fulfill: selection=%s", selection)

		// Nested obligations are solved to completion because they can
		// determine the impl's type parameters.
		fcx := traits.NewFulfillmentContext(ecx.solver)
		resolved := traits.Map(selection, func(n *traits.Obligation) traits.Resolved {
			log.Debugf("fulfill: register %s", n)
			fcx.Register(infcx, n)
			return traits.Resolved{}
		})
		if errs := fcx.SelectAllOrError(infcx); len(errs) > 0 {
			for _, e := range errs {
				if e.Ambiguous() && e.Obligation.Depth > ecx.cfg.RecursionLimit {
					fatal(span, shown, RecursionLimitMessage)
				}
			}
			bug(span, shown, "failed to fulfill nested obligation %s: %v",
				ecx.Program.DisplayTraitRef(errs[0].Obligation.Predicate), errs[0])
		}

		resolved = traits.ResolveSelection(infcx, resolved)
		if resolved.HasInfer() {
			bug(span, shown, "selection %s left inference variables unresolved", resolved)
		}
		return resolved, nil
	})
	if err != nil {
		return nil, err
	}

	if ecx.cache != nil {
		log.Infof("cache miss: %s => %s", shown, sel)
		ecx.cache.store(env, traitRef, sel)
	} else {
		log.Debugf("fulfilled: %s => %s", shown, sel)
	}
	return sel, nil
}

// ---------------------------------------------------------------------------
// Vtables
// ---------------------------------------------------------------------------

// GetVtable builds the vtable for using a value of ty as a trait object of
// traitRef, whose self type must be ty. The table is W*(3+M) bytes, for
// pointer width W and M method slots:
//
//	0      drop glue, or null if ty needs no drop
//	W      size of ty
//	2W     alignment of ty
//	(3+i)W method i, or null if it cannot be called through the object
//
// The block is frozen immutable before it is returned. Every call
// allocates a new table.
func (ecx *EvalContext) GetVtable(ty ir.Ty, traitRef ir.TraitRef) (Pointer, error) {
	ty = ir.EraseRegions(ty)
	traitRef = ir.EraseRegionsTraitRef(traitRef)
	shown := ecx.Program.DisplayTraitRef(traitRef)
	log.Debugf("get_vtable(trait_ref=%s)", shown)

	if !ir.Equal(ty, traitRef.SelfTy()) {
		bug(ir.DummySpan, shown, "vtable for %s requested with self type %s",
			ecx.Program.Display(ty), ecx.Program.Display(traitRef.SelfTy()))
	}
	size, sized, err := ecx.layout.SizeOf(ty)
	if err != nil {
		return Pointer{}, &EvalError{Kind: LayoutFailure, Err: err}
	}
	if !sized {
		bug(ir.DummySpan, shown, "can't create a vtable for an unsized type %s", ecx.Program.Display(ty))
	}
	align, err := ecx.layout.AlignOf(ty)
	if err != nil {
		return Pointer{}, &EvalError{Kind: LayoutFailure, Err: err}
	}

	mem := ecx.Memory
	w := mem.PointerSize()
	methods := ecx.Program.VtableMethods(traitRef)
	vtable, err := mem.Allocate(w*uint64(3+len(methods)), w, KindVtable)
	if err != nil {
		return Pointer{}, err
	}

	drop := Bytes(0)
	if ecx.Program.NeedsDrop(ty) {
		drop = Ptr(mem.CreateFnAlloc(ecx.ResolveDropInPlace(ty)))
	}
	if err := mem.WritePtrSizedUnsigned(vtable, drop); err != nil {
		return Pointer{}, err
	}
	if err := mem.WritePtrSizedUnsigned(vtable.Add(w), Bytes(size)); err != nil {
		return Pointer{}, err
	}
	if err := mem.WritePtrSizedUnsigned(vtable.Add(2*w), Bytes(align)); err != nil {
		return Pointer{}, err
	}

	for i, method := range methods {
		slot := Bytes(0)
		if method != nil {
			inst, err := ecx.Resolve(method.Def, method.Substs)
			if err != nil {
				return Pointer{}, err
			}
			slot = Ptr(mem.CreateFnAlloc(inst))
		}
		if err := mem.WritePtrSizedUnsigned(vtable.Add(w*uint64(3+i)), slot); err != nil {
			return Pointer{}, err
		}
	}

	if err := mem.MarkStaticInitialized(vtable.Alloc, Immutable); err != nil {
		return Pointer{}, err
	}
	return vtable, nil
}

// ReadDropType returns the drop glue recorded in a vtable, or nil if the
// type needs no drop.
func (ecx *EvalContext) ReadDropType(vtable Pointer) (*ir.Instance, error) {
	v, err := ecx.Memory.ReadPtrSizedUnsigned(vtable)
	if err != nil {
		return nil, err
	}
	switch {
	case v.IsNull():
		return nil, nil
	case v.Kind == PrimPtr:
		inst, err := ecx.Memory.GetFn(v.Ptr)
		if err != nil {
			return nil, err
		}
		return &inst, nil
	}
	return nil, errorf(ReadBytesAsPointer, "drop slot of %s holds %s", vtable, v)
}

// ReadSizeAndAlign returns the size and alignment recorded in a vtable.
func (ecx *EvalContext) ReadSizeAndAlign(vtable Pointer) (uint64, uint64, error) {
	w := ecx.Memory.PointerSize()
	sv, err := ecx.Memory.ReadPtrSizedUnsigned(vtable.Add(w))
	if err != nil {
		return 0, 0, err
	}
	size, err := sv.ToBytes()
	if err != nil {
		return 0, 0, err
	}
	av, err := ecx.Memory.ReadPtrSizedUnsigned(vtable.Add(2 * w))
	if err != nil {
		return 0, 0, err
	}
	align, err := av.ToBytes()
	if err != nil {
		return 0, 0, err
	}
	return size, align, nil
}

// ReadMethod returns the instance in method slot i of a vtable, or nil for
// a vacant slot.
func (ecx *EvalContext) ReadMethod(vtable Pointer, i int) (*ir.Instance, error) {
	w := ecx.Memory.PointerSize()
	v, err := ecx.Memory.ReadPtrSizedUnsigned(vtable.Add(w * uint64(3+i)))
	if err != nil {
		return nil, err
	}
	if v.IsNull() {
		return nil, nil
	}
	p, err := v.ToPtr()
	if err != nil {
		return nil, err
	}
	inst, err := ecx.Memory.GetFn(p)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// ---------------------------------------------------------------------------
// Associated constants
// ---------------------------------------------------------------------------

// ResolveAssociatedConst returns the item that supplies the value of the
// constant def at substs. For a trait constant whose selected impl
// overrides it, that is the impl's constant at the impl's substitution;
// otherwise it is def itself.
func (ecx *EvalContext) ResolveAssociatedConst(def ir.DefID, substs ir.Substs) (ir.Instance, error) {
	trait, ok := ecx.Program.TraitOfItem(def)
	if !ok {
		return ir.NewInstance(def, substs), nil
	}
	traitRef := ir.TraitRef{Def: trait, Substs: ecx.traitSubsts(trait, substs)}
	sel, err := ecx.Fulfill(ir.DummySpan, ecx.ParamEnv(), traitRef)
	if err != nil {
		return ir.Instance{}, err
	}
	if sel.Kind == traits.SourceImpl {
		name := ecx.Program.ItemName(def)
		for _, item := range ecx.Program.AssociatedItems(sel.Impl) {
			if item.Kind == ir.AssocConst && item.Name == name {
				return ir.NewInstance(item.ID, sel.Substs), nil
			}
		}
	}
	return ir.NewInstance(def, substs), nil
}

// traitSubsts returns the prefix of an item's substitution that belongs to
// its trait.
func (ecx *EvalContext) traitSubsts(trait ir.DefID, substs ir.Substs) ir.Substs {
	n := ecx.Program.Trait(trait).NumGenerics()
	if len(substs) < n {
		bug(ir.DummySpan, "", "substitution %s too short for %s", substs, ecx.Program.DefPath(trait))
	}
	return substs.Truncate(n)
}
