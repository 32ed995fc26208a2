package ir

import "fmt"

// InstanceKind classifies a monomorphized function.
type InstanceKind int

const (
	// InstanceItem is the body of a function item.
	InstanceItem InstanceKind = iota
	// InstanceDropGlue destroys a value of Ty in place.
	InstanceDropGlue
	// InstanceVirtual is a call dispatched through vtable slot VtableIndex.
	InstanceVirtual
	// InstanceCloneShim is the built-in Clone for Ty.
	InstanceCloneShim
)

// Instance is a fully substituted, executable function. Drop glue and
// clone shims carry the type they operate on in Ty.
type Instance struct {
	Kind        InstanceKind
	Def         DefID
	Substs      Substs
	Ty          Ty
	VtableIndex int
}

// NewInstance returns the item instance def<substs>.
func NewInstance(def DefID, substs Substs) Instance {
	return Instance{Kind: InstanceItem, Def: def, Substs: substs}
}

func (i Instance) String() string {
	switch i.Kind {
	case InstanceDropGlue:
		return fmt.Sprintf("drop_in_place::<%s>", i.Ty)
	case InstanceVirtual:
		return fmt.Sprintf("virtual %s%s[%d]", i.Def, i.Substs, i.VtableIndex)
	case InstanceCloneShim:
		return fmt.Sprintf("clone_shim::<%s>", i.Ty)
	}
	return i.Def.String() + i.Substs.String()
}

// EqualInstances compares instances structurally.
func EqualInstances(a, b Instance) bool {
	if a.Kind != b.Kind || a.Def != b.Def || a.VtableIndex != b.VtableIndex {
		return false
	}
	if (a.Ty == nil) != (b.Ty == nil) {
		return false
	}
	if a.Ty != nil && !Equal(a.Ty, b.Ty) {
		return false
	}
	return EqualSubsts(a.Substs, b.Substs)
}
