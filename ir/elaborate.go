package ir

// ---------------------------------------------------------------------------
// Supertrait elaboration and vtable method tables
// ---------------------------------------------------------------------------

// Supertraits returns tr followed by every trait it transitively requires,
// depth-first in declaration order, each at most once. This order fixes
// the layout of a trait object's method slots.
func (p *Program) Supertraits(tr TraitRef) []TraitRef {
	var out []TraitRef
	seen := make(map[string]bool)
	var visit func(TraitRef)
	visit = func(t TraitRef) {
		key := t.String()
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, t)
		def := p.traits[t.Def]
		if def == nil {
			return
		}
		for _, super := range def.Supertraits {
			visit(SubstTraitRef(super, t.Substs))
		}
	}
	visit(tr)
	return out
}

// VtableEntry names the function a vtable slot dispatches to, before
// resolution to a concrete impl: the trait method and the trait's
// substitution.
type VtableEntry struct {
	Def    DefID
	Substs Substs
}

// VtableMethods returns one entry per method slot of a trait object for
// tr, supertraits included. A nil entry is a slot that cannot be called
// through the object (generic methods and methods requiring Self: Sized).
func (p *Program) VtableMethods(tr TraitRef) []*VtableEntry {
	var out []*VtableEntry
	for _, t := range p.Supertraits(tr) {
		for _, item := range p.AssociatedItems(t.Def) {
			if item.Kind != AssocFn {
				continue
			}
			if !item.Dispatchable() {
				out = append(out, nil)
				continue
			}
			out = append(out, &VtableEntry{Def: item.ID, Substs: t.Substs})
		}
	}
	return out
}

// VtableBase returns the index of the first method slot belonging to
// trait within the vtable of object, or false if trait is not among the
// supertraits of object.
func (p *Program) VtableBase(object TraitRef, trait DefID) (int, bool) {
	base := 0
	for _, t := range p.Supertraits(object) {
		if t.Def == trait {
			return base, true
		}
		base += p.methodCount(t.Def)
	}
	return 0, false
}

// MethodIndex returns the position of method among the methods of trait.
func (p *Program) MethodIndex(trait, method DefID) (int, bool) {
	idx := 0
	for _, item := range p.AssociatedItems(trait) {
		if item.Kind != AssocFn {
			continue
		}
		if item.ID == method {
			return idx, true
		}
		idx++
	}
	return 0, false
}

func (p *Program) methodCount(trait DefID) int {
	n := 0
	for _, item := range p.AssociatedItems(trait) {
		if item.Kind == AssocFn {
			n++
		}
	}
	return n
}
