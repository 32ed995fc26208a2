package vm

import (
	"github.com/chazu/consteval/ir"
	"github.com/chazu/consteval/traits"
)

// Resolve returns the instance that runs when def is called at substs.
// Trait methods are dispatched through Fulfill: to the impl's method, the
// trait's default body, a virtual call through a trait object, or a
// built-in shim. Any other item resolves to itself.
func (ecx *EvalContext) Resolve(def ir.DefID, substs ir.Substs) (ir.Instance, error) {
	prog := ecx.Program
	trait, ok := prog.TraitOfItem(def)
	item := prog.Item(def)
	if !ok || item == nil || item.Kind != ir.AssocFn {
		return ir.NewInstance(def, substs), nil
	}

	traitSubsts := ecx.traitSubsts(trait, substs)
	own := substs[len(traitSubsts):]
	traitRef := ir.TraitRef{Def: trait, Substs: traitSubsts}
	shown := prog.DisplayTraitRef(traitRef)

	sel, err := ecx.Fulfill(ir.DummySpan, ecx.ParamEnv(), traitRef)
	if err != nil {
		return ir.Instance{}, err
	}

	switch sel.Kind {
	case traits.SourceImpl:
		for _, implItem := range prog.AssociatedItems(sel.Impl) {
			if implItem.Kind == ir.AssocFn && implItem.Name == item.Name {
				implSubsts := append(append(ir.Substs(nil), sel.Substs...), own...)
				return ir.NewInstance(implItem.ID, implSubsts), nil
			}
		}
		if item.HasDefault {
			return ir.NewInstance(def, substs), nil
		}
		bug(ir.DummySpan, shown, "impl %s has no method %s and the trait provides no default",
			prog.DefPath(sel.Impl), item.Name)

	case traits.SourceObject:
		idx, ok := prog.MethodIndex(trait, def)
		if !ok {
			bug(ir.DummySpan, shown, "method %s not found in its trait", prog.DefPath(def))
		}
		return ir.Instance{
			Kind:        ir.InstanceVirtual,
			Def:         def,
			Substs:      substs,
			VtableIndex: sel.VtableBase + idx,
		}, nil

	case traits.SourceBuiltin:
		if trait == prog.Lang.Clone {
			return ir.Instance{
				Kind:   ir.InstanceCloneShim,
				Def:    def,
				Substs: substs,
				Ty:     substs.TypeAt(0),
			}, nil
		}
		bug(ir.DummySpan, shown, "built-in %s has no callable methods", prog.DefPath(trait))

	case traits.SourceParam:
		bug(ir.DummySpan, shown, "cannot call %s through a bound that is only assumed", prog.DefPath(def))
	}
	bug(ir.DummySpan, shown, "unexpected selection %s", sel)
	return ir.Instance{}, nil
}

// ResolveDropInPlace returns the drop glue for ty.
func (ecx *EvalContext) ResolveDropInPlace(ty ir.Ty) ir.Instance {
	return ir.Instance{Kind: ir.InstanceDropGlue, Def: ecx.Program.Lang.Drop, Ty: ir.EraseRegions(ty)}
}
