package ir

import "fmt"

// ---------------------------------------------------------------------------
// Program: definition tables
// ---------------------------------------------------------------------------

// Field is a named struct field, typed in terms of the struct's generics.
type Field struct {
	Name string
	Ty   Ty
}

// StructDef describes a nominal struct type.
type StructDef struct {
	Def
	Generics []string
	Fields   []Field
}

// TraitDef describes a trait. Generic index 0 is Self; Generics lists the
// remaining parameters, which occupy indices 1..len(Generics).
type TraitDef struct {
	Def
	Generics    []string
	Supertraits []TraitRef // in terms of the trait's own generics
	Items       []DefID    // associated items in declaration order
}

// NumGenerics returns the length of a full substitution for the trait,
// Self included.
func (t *TraitDef) NumGenerics() int {
	return 1 + len(t.Generics)
}

// AssocKind is the kind of an associated item.
type AssocKind int

const (
	AssocFn AssocKind = iota
	AssocConst
	AssocType
)

func (k AssocKind) String() string {
	switch k {
	case AssocFn:
		return "fn"
	case AssocConst:
		return "const"
	}
	return "type"
}

// AssocItem is an item declared inside a trait or impl.
type AssocItem struct {
	Def
	Kind AssocKind
	// HasDefault is set on trait items that provide a body or value.
	HasDefault bool
	// Generic marks a method with its own type parameters. Such methods
	// cannot be called through a trait object.
	Generic bool
	// SizedSelf marks a method bounded by `where Self: Sized`.
	SizedSelf bool
}

// Dispatchable reports whether the method can occupy a vtable slot.
func (a *AssocItem) Dispatchable() bool {
	return a.Kind == AssocFn && !a.Generic && !a.SizedSelf
}

// ImplDef is an impl block. Trait is nil for inherent impls. SelfTy,
// Trait and Predicates are written in terms of the impl's generics.
type ImplDef struct {
	Def
	Generics   []string
	Trait      *TraitRef
	SelfTy     Ty
	Predicates []TraitRef
	Items      []DefID
}

// MethodOpts configures a trait method declaration.
type MethodOpts struct {
	Default   bool
	Generic   bool
	SizedSelf bool
}

// LangItems are the traits the evaluator and solver know by role.
type LangItems struct {
	Sized DefID
	Copy  DefID
	Clone DefID
	Drop  DefID
}

// SelfParam is the Self parameter of a trait.
var SelfParam = &Param{Index: 0, Name: "Self"}

// Program holds every definition visible to the evaluator. It is built
// once and then only read; it does no locking.
type Program struct {
	defs    []Def // indexed by DefID; defs[0] is unused
	byName  map[string]DefID
	structs map[DefID]*StructDef
	traits  map[DefID]*TraitDef
	impls   []*ImplDef
	implsBy map[DefID]*ImplDef
	items   map[DefID]*AssocItem

	Lang LangItems
}

// NewProgram creates a program containing only the lang-item traits
// Sized, Clone, Copy and Drop.
func NewProgram() *Program {
	p := &Program{
		defs:    []Def{{}},
		byName:  make(map[string]DefID),
		structs: make(map[DefID]*StructDef),
		traits:  make(map[DefID]*TraitDef),
		implsBy: make(map[DefID]*ImplDef),
		items:   make(map[DefID]*AssocItem),
	}
	p.Lang.Sized = p.DeclareTrait("Sized")
	p.Lang.Clone = p.DeclareTrait("Clone")
	p.AddTraitMethod(p.Lang.Clone, "clone", MethodOpts{SizedSelf: true})
	p.Lang.Copy = p.DeclareTrait("Copy")
	p.AddSupertrait(p.Lang.Copy, NewTraitRef(p.Lang.Clone, SelfParam))
	p.Lang.Drop = p.DeclareTrait("Drop")
	p.AddTraitMethod(p.Lang.Drop, "drop", MethodOpts{})
	return p
}

func (p *Program) newDef(kind DefKind, name string, parent DefID) DefID {
	id := DefID(len(p.defs))
	p.defs = append(p.defs, Def{ID: id, Kind: kind, Name: name, Parent: parent})
	return id
}

func (p *Program) declareNamed(kind DefKind, name string) DefID {
	if _, dup := p.byName[name]; dup {
		panic(fmt.Sprintf("Program: %q is already defined", name))
	}
	id := p.newDef(kind, name, NoDef)
	p.byName[name] = id
	return id
}

// DeclareStruct adds a struct with the given generic parameter names.
// Fields are attached later with SetFields so that structs may refer to
// each other regardless of declaration order.
func (p *Program) DeclareStruct(name string, generics ...string) DefID {
	id := p.declareNamed(DefStruct, name)
	p.structs[id] = &StructDef{Def: p.defs[id], Generics: generics}
	return id
}

// SetFields replaces the fields of a struct.
func (p *Program) SetFields(def DefID, fields ...Field) {
	s := p.structs[def]
	if s == nil {
		panic(fmt.Sprintf("Program.SetFields: %s is not a struct", def))
	}
	s.Fields = fields
}

// DeclareTrait adds a trait whose non-Self generic parameters are named
// by generics.
func (p *Program) DeclareTrait(name string, generics ...string) DefID {
	id := p.declareNamed(DefTrait, name)
	p.traits[id] = &TraitDef{Def: p.defs[id], Generics: generics}
	return id
}

// AddSupertrait records that every implementor of trait must implement
// super, written in terms of the trait's generics (SelfParam for Self).
func (p *Program) AddSupertrait(trait DefID, super TraitRef) {
	t := p.mustTrait(trait)
	t.Supertraits = append(t.Supertraits, super)
}

// AddTraitMethod declares a method on a trait.
func (p *Program) AddTraitMethod(trait DefID, name string, opts MethodOpts) DefID {
	t := p.mustTrait(trait)
	id := p.newDef(DefAssocFn, name, trait)
	p.items[id] = &AssocItem{
		Def:        p.defs[id],
		Kind:       AssocFn,
		HasDefault: opts.Default,
		Generic:    opts.Generic,
		SizedSelf:  opts.SizedSelf,
	}
	t.Items = append(t.Items, id)
	return id
}

// AddTraitConst declares an associated constant on a trait.
func (p *Program) AddTraitConst(trait DefID, name string, hasDefault bool) DefID {
	t := p.mustTrait(trait)
	id := p.newDef(DefAssocConst, name, trait)
	p.items[id] = &AssocItem{Def: p.defs[id], Kind: AssocConst, HasDefault: hasDefault}
	t.Items = append(t.Items, id)
	return id
}

// AddTraitType declares an associated type on a trait.
func (p *Program) AddTraitType(trait DefID, name string) DefID {
	t := p.mustTrait(trait)
	id := p.newDef(DefAssocTy, name, trait)
	p.items[id] = &AssocItem{Def: p.defs[id], Kind: AssocType}
	t.Items = append(t.Items, id)
	return id
}

// ImplSpec describes an impl header.
type ImplSpec struct {
	Generics   []string
	Trait      *TraitRef
	SelfTy     Ty
	Predicates []TraitRef
}

// DeclareImpl adds an impl block.
func (p *Program) DeclareImpl(spec ImplSpec) DefID {
	if spec.SelfTy == nil {
		panic("Program.DeclareImpl: impl without a self type")
	}
	if spec.Trait != nil {
		p.mustTrait(spec.Trait.Def)
	}
	name := "impl " + spec.SelfTy.String()
	if spec.Trait != nil {
		name = "impl " + spec.Trait.String()
	}
	id := p.newDef(DefImpl, name, NoDef)
	impl := &ImplDef{
		Def:        p.defs[id],
		Generics:   spec.Generics,
		Trait:      spec.Trait,
		SelfTy:     spec.SelfTy,
		Predicates: spec.Predicates,
	}
	p.impls = append(p.impls, impl)
	p.implsBy[id] = impl
	return id
}

// AddImplMethod adds a method body to an impl.
func (p *Program) AddImplMethod(impl DefID, name string) DefID {
	return p.addImplItem(impl, name, DefAssocFn, AssocFn)
}

// AddImplConst adds an associated constant to an impl.
func (p *Program) AddImplConst(impl DefID, name string) DefID {
	return p.addImplItem(impl, name, DefAssocConst, AssocConst)
}

func (p *Program) addImplItem(impl DefID, name string, dk DefKind, ak AssocKind) DefID {
	i := p.implsBy[impl]
	if i == nil {
		panic(fmt.Sprintf("Program: %s is not an impl", impl))
	}
	id := p.newDef(dk, name, impl)
	p.items[id] = &AssocItem{Def: p.defs[id], Kind: ak, HasDefault: true}
	i.Items = append(i.Items, id)
	return id
}

// DeclareFn adds a free function item.
func (p *Program) DeclareFn(name string) DefID {
	return p.declareNamed(DefFn, name)
}

func (p *Program) mustTrait(def DefID) *TraitDef {
	t := p.traits[def]
	if t == nil {
		panic(fmt.Sprintf("Program: %s is not a trait", def))
	}
	return t
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// LookupDef returns the header of a definition.
func (p *Program) LookupDef(id DefID) (Def, bool) {
	if !id.IsValid() || int(id) >= len(p.defs) {
		return Def{}, false
	}
	return p.defs[id], true
}

// Lookup finds a top-level struct, trait or function by name.
func (p *Program) Lookup(name string) (DefID, bool) {
	id, ok := p.byName[name]
	return id, ok
}

// Struct returns the struct definition, or nil.
func (p *Program) Struct(id DefID) *StructDef {
	return p.structs[id]
}

// Trait returns the trait definition, or nil.
func (p *Program) Trait(id DefID) *TraitDef {
	return p.traits[id]
}

// Impl returns the impl definition, or nil.
func (p *Program) Impl(id DefID) *ImplDef {
	return p.implsBy[id]
}

// Item returns the associated item, or nil.
func (p *Program) Item(id DefID) *AssocItem {
	return p.items[id]
}

// Impls returns every impl in declaration order.
func (p *Program) Impls() []*ImplDef {
	return p.impls
}

// ImplsOfTrait returns the impls of trait in declaration order.
func (p *Program) ImplsOfTrait(trait DefID) []*ImplDef {
	var out []*ImplDef
	for _, impl := range p.impls {
		if impl.Trait != nil && impl.Trait.Def == trait {
			out = append(out, impl)
		}
	}
	return out
}

// TraitOfItem returns the trait that declares def, if def is a trait item.
func (p *Program) TraitOfItem(def DefID) (DefID, bool) {
	d, ok := p.LookupDef(def)
	if !ok || !d.Parent.IsValid() {
		return NoDef, false
	}
	if _, isTrait := p.traits[d.Parent]; !isTrait {
		return NoDef, false
	}
	return d.Parent, true
}

// ItemName returns the declared name of def.
func (p *Program) ItemName(def DefID) string {
	d, ok := p.LookupDef(def)
	if !ok {
		return ""
	}
	return d.Name
}

// AssociatedItems returns the items of a trait or impl in declaration order.
func (p *Program) AssociatedItems(container DefID) []*AssocItem {
	var ids []DefID
	if t := p.traits[container]; t != nil {
		ids = t.Items
	} else if i := p.implsBy[container]; i != nil {
		ids = i.Items
	}
	out := make([]*AssocItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.items[id])
	}
	return out
}

// FieldTys returns the field types of a struct type with its arguments
// substituted.
func (p *Program) FieldTys(adt *Adt) []Ty {
	s := p.structs[adt.Def]
	if s == nil {
		panic(fmt.Sprintf("Program.FieldTys: %s is not a struct", adt.Def))
	}
	out := make([]Ty, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = Subst(f.Ty, adt.Substs)
	}
	return out
}
