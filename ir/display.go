package ir

import (
	"fmt"
	"strings"
)

// Display renders a generic argument with definition names, for
// diagnostics and CLI output.
func (p *Program) Display(a GenericArg) string {
	var sb strings.Builder
	p.writeArg(&sb, a)
	return sb.String()
}

// DisplayTraitRef renders <Self as Trait<...>> with names.
func (p *Program) DisplayTraitRef(tr TraitRef) string {
	var sb strings.Builder
	sb.WriteString("<")
	if len(tr.Substs) > 0 {
		p.writeArg(&sb, tr.Substs[0])
	} else {
		sb.WriteString("?Self")
	}
	sb.WriteString(" as ")
	sb.WriteString(p.defName(tr.Def))
	if len(tr.Substs) > 1 {
		p.writeSubsts(&sb, tr.Substs[1:])
	}
	sb.WriteString(">")
	return sb.String()
}

// DisplayInstance renders an instance with names.
func (p *Program) DisplayInstance(i Instance) string {
	switch i.Kind {
	case InstanceDropGlue:
		return "drop_in_place::<" + p.Display(i.Ty) + ">"
	case InstanceCloneShim:
		return "clone_shim::<" + p.Display(i.Ty) + ">"
	}
	var sb strings.Builder
	if i.Kind == InstanceVirtual {
		sb.WriteString("virtual ")
	}
	sb.WriteString(p.DefPath(i.Def))
	if len(i.Substs) > 0 {
		sb.WriteString("::")
		p.writeSubsts(&sb, i.Substs)
	}
	if i.Kind == InstanceVirtual {
		fmt.Fprintf(&sb, "[%d]", i.VtableIndex)
	}
	return sb.String()
}

// DefPath renders a definition as Container::name where it has a container.
func (p *Program) DefPath(id DefID) string {
	d, ok := p.LookupDef(id)
	if !ok {
		return id.String()
	}
	if !d.Parent.IsValid() {
		return d.Name
	}
	if impl := p.implsBy[d.Parent]; impl != nil {
		if impl.Trait != nil {
			return "<" + p.Display(impl.SelfTy) + " as " + p.defName(impl.Trait.Def) + ">::" + d.Name
		}
		return p.Display(impl.SelfTy) + "::" + d.Name
	}
	return p.defName(d.Parent) + "::" + d.Name
}

func (p *Program) defName(id DefID) string {
	if d, ok := p.LookupDef(id); ok {
		return d.Name
	}
	return id.String()
}

func (p *Program) writeSubsts(sb *strings.Builder, s Substs) {
	if len(s) == 0 {
		return
	}
	sb.WriteString("<")
	for i, a := range s {
		if i > 0 {
			sb.WriteString(", ")
		}
		p.writeArg(sb, a)
	}
	sb.WriteString(">")
}

func (p *Program) writeArg(sb *strings.Builder, a GenericArg) {
	switch t := a.(type) {
	case *Adt:
		sb.WriteString(p.defName(t.Def))
		p.writeSubsts(sb, t.Substs)
	case *Tuple:
		sb.WriteString("(")
		for i, e := range t.Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			p.writeArg(sb, e)
		}
		if len(t.Elems) == 1 {
			sb.WriteString(",")
		}
		sb.WriteString(")")
	case *Ref:
		sb.WriteString("&")
		if !t.Region.IsErased() {
			sb.WriteString(t.Region.String())
			sb.WriteString(" ")
		}
		if t.Mut {
			sb.WriteString("mut ")
		}
		p.writeArg(sb, t.Elem)
	case *RawPtr:
		if t.Mut {
			sb.WriteString("*mut ")
		} else {
			sb.WriteString("*const ")
		}
		p.writeArg(sb, t.Elem)
	case *Array:
		sb.WriteString("[")
		p.writeArg(sb, t.Elem)
		fmt.Fprintf(sb, "; %d]", t.Len)
	case *Slice:
		sb.WriteString("[")
		p.writeArg(sb, t.Elem)
		sb.WriteString("]")
	case *Dynamic:
		sb.WriteString("dyn ")
		sb.WriteString(p.defName(t.Principal.Def))
		p.writeSubsts(sb, t.Principal.Substs)
		if !t.Region.IsErased() {
			sb.WriteString(" + ")
			sb.WriteString(t.Region.String())
		}
	case *FnDef:
		sb.WriteString("fn ")
		sb.WriteString(p.DefPath(t.Def))
		p.writeSubsts(sb, t.Substs)
	default:
		sb.WriteString(a.String())
	}
}
