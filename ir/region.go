package ir

import "fmt"

// RegionKind classifies a lifetime.
type RegionKind int

const (
	// ReErased is the zero value: a region removed before resolution.
	ReErased RegionKind = iota
	ReStatic
	// ReEarlyBound is a named lifetime parameter, substitutable by index.
	ReEarlyBound
	// ReLateBound is a lifetime bound inside a higher-ranked binder.
	ReLateBound
)

// Region is a lifetime argument. Regions never influence evaluation; they
// are carried only so that erasure has something to erase.
type Region struct {
	Kind  RegionKind
	Name  string
	Index uint32
}

// Erased is the canonical erased region.
var Erased = Region{Kind: ReErased}

// Static is the 'static region.
var Static = Region{Kind: ReStatic, Name: "static"}

// EarlyBound returns a named region parameter at the given generics index.
func EarlyBound(name string, index uint32) Region {
	return Region{Kind: ReEarlyBound, Name: name, Index: index}
}

// LateBound returns a region bound by an enclosing binder.
func LateBound(name string) Region {
	return Region{Kind: ReLateBound, Name: name}
}

func (Region) genericArg() {}

// IsErased reports whether r has been erased.
func (r Region) IsErased() bool {
	return r.Kind == ReErased
}

func (r Region) String() string {
	switch r.Kind {
	case ReErased:
		return "'_"
	case ReStatic:
		return "'static"
	case ReLateBound:
		return "'^" + r.Name
	}
	if r.Name == "" {
		return fmt.Sprintf("'r%d", r.Index)
	}
	return "'" + r.Name
}
