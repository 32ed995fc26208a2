package ir

// IsSized reports whether values of t have a statically known size.
// Parameters are assumed sized, as they are unless explicitly relaxed.
func (p *Program) IsSized(t Ty) bool {
	switch t := t.(type) {
	case *Prim:
		return t.Kind != PrimStr
	case *Slice, *Dynamic:
		return false
	case *Tuple:
		if len(t.Elems) == 0 {
			return true
		}
		return p.IsSized(t.Elems[len(t.Elems)-1])
	case *Adt:
		fields := p.FieldTys(t)
		if len(fields) == 0 {
			return true
		}
		return p.IsSized(fields[len(fields)-1])
	}
	return true
}

// DropImpl returns the impl of the Drop lang item for the struct def, or nil.
func (p *Program) DropImpl(def DefID) *ImplDef {
	for _, impl := range p.ImplsOfTrait(p.Lang.Drop) {
		if adt, ok := impl.SelfTy.(*Adt); ok && adt.Def == def {
			return impl
		}
	}
	return nil
}

// NeedsDrop reports whether destroying a value of t runs any code: t or
// one of its components has a Drop impl. Type parameters and trait
// objects are conservatively assumed to need dropping.
func (p *Program) NeedsDrop(t Ty) bool {
	return p.needsDrop(t, make(map[string]bool))
}

func (p *Program) needsDrop(t Ty, visiting map[string]bool) bool {
	switch t := t.(type) {
	case *Prim, *Ref, *RawPtr, *FnDef:
		return false
	case *Tuple:
		for _, e := range t.Elems {
			if p.needsDrop(e, visiting) {
				return true
			}
		}
		return false
	case *Array:
		return t.Len > 0 && p.needsDrop(t.Elem, visiting)
	case *Slice:
		return p.needsDrop(t.Elem, visiting)
	case *Adt:
		if p.DropImpl(t.Def) != nil {
			return true
		}
		key := t.String()
		if visiting[key] {
			return false
		}
		visiting[key] = true
		defer delete(visiting, key)
		for _, f := range p.FieldTys(t) {
			if p.needsDrop(f, visiting) {
				return true
			}
		}
		return false
	}
	return true
}
