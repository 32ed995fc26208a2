package manifest

import (
	"fmt"

	"github.com/chazu/consteval/ir"
)

// StructDecl is a [[struct]] table.
type StructDecl struct {
	Name     string      `toml:"name"`
	Generics []string    `toml:"generics"`
	Fields   []FieldDecl `toml:"fields"`
}

// FieldDecl is one struct field.
type FieldDecl struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

// TraitDecl is a [[trait]] table. Supertraits are trait paths with Self
// implied, e.g. "Convert<u8>".
type TraitDecl struct {
	Name        string       `toml:"name"`
	Generics    []string     `toml:"generics"`
	Supertraits []string     `toml:"supertraits"`
	Methods     []MethodDecl `toml:"methods"`
	Consts      []ConstDecl  `toml:"consts"`
	Types       []string     `toml:"types"`
}

// MethodDecl is a trait method.
type MethodDecl struct {
	Name      string `toml:"name"`
	Default   bool   `toml:"default"`
	Generic   bool   `toml:"generic"`
	SizedSelf bool   `toml:"sized-self"`
}

// ConstDecl is a trait associated constant.
type ConstDecl struct {
	Name    string `toml:"name"`
	Default bool   `toml:"default"`
}

// ImplDecl is an [[impl]] table. Trait is empty for an inherent impl.
// Where clauses are written "T: Show + Convert<u8>".
type ImplDecl struct {
	Generics []string `toml:"generics"`
	Trait    string   `toml:"trait"`
	For      string   `toml:"for"`
	Where    []string `toml:"where"`
	Methods  []string `toml:"methods"`
	Consts   []string `toml:"consts"`
}

// VtableQuery asks for the vtable of Type as a Trait object.
type VtableQuery struct {
	Type  string `toml:"type"`
	Trait string `toml:"trait"`
}

// ConstQuery asks which item supplies <Self as Trait>::Name.
type ConstQuery struct {
	Self  string `toml:"self"`
	Trait string `toml:"trait"`
	Name  string `toml:"name"`
}

// CallQuery asks which instance runs for <Self as Trait>::Method.
type CallQuery struct {
	Self   string `toml:"self"`
	Trait  string `toml:"trait"`
	Method string `toml:"method"`
}

// Plan is a built program and the queries to run against it.
type Plan struct {
	Program *ir.Program
	Vtables []Vtable
	Consts  []Item
	Calls   []Item
}

// Vtable is a resolved [[vtable]] query.
type Vtable struct {
	Ty    ir.Ty
	Trait ir.TraitRef
}

// Item is a resolved associated item query: Def at Substs.
type Item struct {
	Def    ir.DefID
	Substs ir.Substs
}

// Build declares everything in the manifest and resolves its queries.
// Names are declared before any type is parsed, so declarations may refer
// to each other in any order.
func (m *Manifest) Build() (*Plan, error) {
	prog := ir.NewProgram()

	declare := func(kind, name string, decl func()) error {
		if name == "" {
			return fmt.Errorf("%s without a name", kind)
		}
		if _, dup := prog.Lookup(name); dup {
			return fmt.Errorf("%s %s: already defined", kind, name)
		}
		decl()
		return nil
	}
	for _, name := range m.Functions {
		if err := declare("function", name, func() { prog.DeclareFn(name) }); err != nil {
			return nil, err
		}
	}
	structs := make([]ir.DefID, len(m.Structs))
	for i, s := range m.Structs {
		if err := declare("struct", s.Name, func() { structs[i] = prog.DeclareStruct(s.Name, s.Generics...) }); err != nil {
			return nil, err
		}
	}
	traits := make([]ir.DefID, len(m.Traits))
	for i, t := range m.Traits {
		if err := declare("trait", t.Name, func() { traits[i] = prog.DeclareTrait(t.Name, t.Generics...) }); err != nil {
			return nil, err
		}
	}

	for i, s := range m.Structs {
		sc := genericScope(s.Generics, 0)
		fields := make([]ir.Field, len(s.Fields))
		for j, f := range s.Fields {
			ty, err := parseTypeIn(prog, sc, f.Type)
			if err != nil {
				return nil, fmt.Errorf("struct %s: field %s: %w", s.Name, f.Name, err)
			}
			fields[j] = ir.Field{Name: f.Name, Ty: ty}
		}
		prog.SetFields(structs[i], fields...)
	}

	for i, t := range m.Traits {
		sc := traitScope(t.Generics)
		for _, super := range t.Supertraits {
			ref, err := parseTraitRef(prog, sc, ir.SelfParam, super)
			if err != nil {
				return nil, fmt.Errorf("trait %s: supertrait: %w", t.Name, err)
			}
			prog.AddSupertrait(traits[i], ref)
		}
		for _, md := range t.Methods {
			prog.AddTraitMethod(traits[i], md.Name, ir.MethodOpts{Default: md.Default, Generic: md.Generic, SizedSelf: md.SizedSelf})
		}
		for _, c := range t.Consts {
			prog.AddTraitConst(traits[i], c.Name, c.Default)
		}
		for _, ty := range t.Types {
			prog.AddTraitType(traits[i], ty)
		}
	}

	for i, decl := range m.Impls {
		if err := buildImpl(prog, decl); err != nil {
			return nil, fmt.Errorf("impl #%d for %q: %w", i+1, decl.For, err)
		}
	}

	plan := &Plan{Program: prog}
	for _, q := range m.Vtables {
		ty, err := parseTypeIn(prog, nil, q.Type)
		if err != nil {
			return nil, fmt.Errorf("vtable: %w", err)
		}
		ref, err := parseTraitRef(prog, nil, ty, q.Trait)
		if err != nil {
			return nil, fmt.Errorf("vtable for %s: %w", q.Type, err)
		}
		plan.Vtables = append(plan.Vtables, Vtable{Ty: ty, Trait: ref})
	}
	for _, q := range m.Consts {
		item, err := resolveItem(prog, q.Self, q.Trait, q.Name, ir.AssocConst)
		if err != nil {
			return nil, fmt.Errorf("const %s: %w", q.Name, err)
		}
		plan.Consts = append(plan.Consts, item)
	}
	for _, q := range m.Calls {
		item, err := resolveItem(prog, q.Self, q.Trait, q.Method, ir.AssocFn)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", q.Method, err)
		}
		plan.Calls = append(plan.Calls, item)
	}
	return plan, nil
}

func buildImpl(prog *ir.Program, decl ImplDecl) error {
	sc := genericScope(decl.Generics, 0)
	self, err := parseTypeIn(prog, sc, decl.For)
	if err != nil {
		return err
	}
	spec := ir.ImplSpec{Generics: decl.Generics, SelfTy: self}
	if decl.Trait != "" {
		ref, err := parseTraitRef(prog, sc, self, decl.Trait)
		if err != nil {
			return err
		}
		spec.Trait = &ref
	}
	for _, w := range decl.Where {
		bounds, err := parseWhere(prog, sc, w)
		if err != nil {
			return fmt.Errorf("where clause: %w", err)
		}
		spec.Predicates = append(spec.Predicates, bounds...)
	}

	if spec.Trait != nil {
		for _, name := range decl.Methods {
			if !traitHas(prog, spec.Trait.Def, name, ir.AssocFn) {
				return fmt.Errorf("method %s is not a member of %s", name, prog.DefPath(spec.Trait.Def))
			}
		}
		for _, name := range decl.Consts {
			if !traitHas(prog, spec.Trait.Def, name, ir.AssocConst) {
				return fmt.Errorf("const %s is not a member of %s", name, prog.DefPath(spec.Trait.Def))
			}
		}
	}

	impl := prog.DeclareImpl(spec)
	for _, name := range decl.Methods {
		prog.AddImplMethod(impl, name)
	}
	for _, name := range decl.Consts {
		prog.AddImplConst(impl, name)
	}
	return nil
}

func traitHas(prog *ir.Program, trait ir.DefID, name string, kind ir.AssocKind) bool {
	for _, item := range prog.AssociatedItems(trait) {
		if item.Name == name && item.Kind == kind {
			return true
		}
	}
	return false
}

// resolveItem finds the trait item name of kind and its substitution
// <self as trait>.
func resolveItem(prog *ir.Program, selfSrc, traitSrc, name string, kind ir.AssocKind) (Item, error) {
	self, err := parseTypeIn(prog, nil, selfSrc)
	if err != nil {
		return Item{}, err
	}
	ref, err := parseTraitRef(prog, nil, self, traitSrc)
	if err != nil {
		return Item{}, err
	}
	for _, item := range prog.AssociatedItems(ref.Def) {
		if item.Name == name && item.Kind == kind {
			return Item{Def: item.ID, Substs: ref.Substs}, nil
		}
	}
	return Item{}, fmt.Errorf("%s has no %s named %s", prog.DefPath(ref.Def), kind, name)
}
