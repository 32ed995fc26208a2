package ir

import "strings"

// TraitRef is a trait applied to a self type and further arguments:
// <Substs[0] as Def<Substs[1:]...>>.
type TraitRef struct {
	Def    DefID
	Substs Substs
}

// NewTraitRef builds the trait reference <self as def<rest...>>.
func NewTraitRef(def DefID, self Ty, rest ...GenericArg) TraitRef {
	s := make(Substs, 0, 1+len(rest))
	s = append(s, self)
	s = append(s, rest...)
	return TraitRef{Def: def, Substs: s}
}

// SelfTy returns the implementing type.
func (tr TraitRef) SelfTy() Ty {
	return tr.Substs.TypeAt(0)
}

func (tr TraitRef) String() string {
	if len(tr.Substs) == 0 {
		return "<?Self as " + tr.Def.String() + ">"
	}
	return "<" + tr.Substs[0].String() + " as " + tr.Def.String() + Substs(tr.Substs[1:]).String() + ">"
}

// ExistentialTraitRef is a trait reference with the self type removed,
// as it appears inside a dyn type.
type ExistentialTraitRef struct {
	Def    DefID
	Substs Substs
}

// WithSelf re-attaches a self type.
func (e ExistentialTraitRef) WithSelf(self Ty) TraitRef {
	return NewTraitRef(e.Def, self, e.Substs...)
}

func (e ExistentialTraitRef) String() string {
	return e.Def.String() + e.Substs.String()
}

// Existential removes the self type from tr.
func (tr TraitRef) Existential() ExistentialTraitRef {
	var rest Substs
	if len(tr.Substs) > 1 {
		rest = append(Substs(nil), tr.Substs[1:]...)
	}
	return ExistentialTraitRef{Def: tr.Def, Substs: rest}
}

// ParamEnv is the set of bounds assumed to hold where evaluation happens.
type ParamEnv struct {
	CallerBounds []TraitRef
}

// EmptyParamEnv assumes nothing; it is the environment of fully
// monomorphic code.
var EmptyParamEnv = ParamEnv{}

func (p ParamEnv) String() string {
	if len(p.CallerBounds) == 0 {
		return "{}"
	}
	parts := make([]string, len(p.CallerBounds))
	for i, b := range p.CallerBounds {
		parts[i] = b.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
