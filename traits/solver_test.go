package traits

import (
	"errors"
	"testing"

	"github.com/chazu/consteval/ir"
)

type fixture struct {
	prog    *ir.Program
	show    ir.DefID
	convert ir.DefID
	point   ir.DefID
	wrapper ir.DefID
}

// newFixture declares:
//
//	trait Show
//	trait Convert<U>
//	struct Point
//	struct Wrapper<T>
//	impl Show for Point
//	impl<T> Show for Wrapper<T> where T: Show
//	impl Convert<u8> for i32
func newFixture() *fixture {
	p := ir.NewProgram()
	f := &fixture{prog: p}
	f.show = p.DeclareTrait("Show")
	p.AddTraitMethod(f.show, "render", ir.MethodOpts{})
	f.convert = p.DeclareTrait("Convert", "U")
	f.point = p.DeclareStruct("Point")
	p.SetFields(f.point, ir.Field{Name: "x", Ty: ir.I16}, ir.Field{Name: "y", Ty: ir.I16})
	f.wrapper = p.DeclareStruct("Wrapper", "T")

	tp := &ir.Param{Index: 0, Name: "T"}
	p.DeclareImpl(ir.ImplSpec{
		Trait:  &ir.TraitRef{Def: f.show, Substs: ir.Substs{ir.NewAdt(f.point)}},
		SelfTy: ir.NewAdt(f.point),
	})
	p.DeclareImpl(ir.ImplSpec{
		Generics:   []string{"T"},
		Trait:      &ir.TraitRef{Def: f.show, Substs: ir.Substs{ir.NewAdt(f.wrapper, tp)}},
		SelfTy:     ir.NewAdt(f.wrapper, tp),
		Predicates: []ir.TraitRef{ir.NewTraitRef(f.show, tp)},
	})
	p.DeclareImpl(ir.ImplSpec{
		Trait:  &ir.TraitRef{Def: f.convert, Substs: ir.Substs{ir.I32, ir.U8}},
		SelfTy: ir.I32,
	})
	return f
}

func selectOne(t *testing.T, prog *ir.Program, env ir.ParamEnv, pred ir.TraitRef) (*Selection[*Obligation], error) {
	t.Helper()
	return Enter(prog, func(infcx *InferCtxt) (*Selection[*Obligation], error) {
		return NewProgramSolver(0).Select(infcx, NewObligation(MiscCause(ir.DummySpan), env, pred))
	})
}

func TestSelectImpl(t *testing.T) {
	f := newFixture()
	sel, err := selectOne(t, f.prog, ir.EmptyParamEnv, ir.NewTraitRef(f.show, ir.NewAdt(f.point)))
	if err != nil || sel == nil {
		t.Fatalf("Select = %v, %v", sel, err)
	}
	if sel.Kind != SourceImpl || len(sel.Nested) != 0 {
		t.Errorf("selection = %s, want impl without nested obligations", sel)
	}
}

func TestSelectImplCarriesWhereClauses(t *testing.T) {
	f := newFixture()
	sel, err := selectOne(t, f.prog, ir.EmptyParamEnv,
		ir.NewTraitRef(f.show, ir.NewAdt(f.wrapper, ir.NewAdt(f.point))))
	if err != nil || sel == nil {
		t.Fatalf("Select = %v, %v", sel, err)
	}
	if len(sel.Nested) != 1 {
		t.Fatalf("nested = %d, want 1", len(sel.Nested))
	}
	n := sel.Nested[0]
	if n.Depth != 1 || n.Cause.Code != CauseWhereClause {
		t.Errorf("nested obligation = %s", n)
	}
}

func TestSelectUnimplemented(t *testing.T) {
	f := newFixture()
	_, err := selectOne(t, f.prog, ir.EmptyParamEnv, ir.NewTraitRef(f.show, ir.U64))
	if !errors.Is(err, ErrUnimplemented) {
		t.Errorf("err = %v, want ErrUnimplemented", err)
	}
}

func TestSelectAmbiguousOnUnknownSelf(t *testing.T) {
	f := newFixture()
	sel, err := Enter(f.prog, func(infcx *InferCtxt) (*Selection[*Obligation], error) {
		pred := ir.NewTraitRef(f.show, infcx.NewVar())
		return NewProgramSolver(0).Select(infcx, NewObligation(MiscCause(ir.DummySpan), ir.EmptyParamEnv, pred))
	})
	if sel != nil || err != nil {
		t.Errorf("Select = %v, %v; want ambiguous", sel, err)
	}
}

func TestSelectDepthLimitIsAmbiguous(t *testing.T) {
	f := newFixture()
	sel, err := Enter(f.prog, func(infcx *InferCtxt) (*Selection[*Obligation], error) {
		ob := NewObligation(MiscCause(ir.DummySpan), ir.EmptyParamEnv, ir.NewTraitRef(f.show, ir.NewAdt(f.point)))
		ob.Depth = 5
		return NewProgramSolver(4).Select(infcx, ob)
	})
	if sel != nil || err != nil {
		t.Errorf("Select = %v, %v; want ambiguous", sel, err)
	}
}

func TestSelectMalformed(t *testing.T) {
	f := newFixture()
	_, err := selectOne(t, f.prog, ir.EmptyParamEnv, ir.NewTraitRef(f.point, ir.I32))
	var se *SelectionError
	if !errors.As(err, &se) || se.Kind != SelectionMalformed {
		t.Errorf("err = %v, want malformed selection error", err)
	}
	if errors.Is(err, ErrUnimplemented) {
		t.Error("malformed error matched ErrUnimplemented")
	}
}

func TestSelectParamWinsOverImpl(t *testing.T) {
	f := newFixture()
	tp := &ir.Param{Index: 0, Name: "T"}
	env := ir.ParamEnv{CallerBounds: []ir.TraitRef{
		ir.NewTraitRef(f.show, tp),
		ir.NewTraitRef(f.show, tp),
	}}
	sel, err := selectOne(t, f.prog, env, ir.NewTraitRef(f.show, tp))
	if err != nil || sel == nil || sel.Kind != SourceParam {
		t.Errorf("Select = %v, %v; want param selection", sel, err)
	}
}

func TestSelectObject(t *testing.T) {
	p := ir.NewProgram()
	base := p.DeclareTrait("Base")
	p.AddTraitMethod(base, "id", ir.MethodOpts{})
	shape := p.DeclareTrait("Shape")
	p.AddSupertrait(shape, ir.NewTraitRef(base, ir.SelfParam))
	p.AddTraitMethod(shape, "area", ir.MethodOpts{})
	p.AddTraitMethod(shape, "sides", ir.MethodOpts{})

	dyn := ir.NewDynamic(ir.ExistentialTraitRef{Def: shape}, ir.Static)
	sel, err := selectOne(t, p, ir.EmptyParamEnv, ir.NewTraitRef(base, dyn))
	if err != nil || sel == nil {
		t.Fatalf("Select = %v, %v", sel, err)
	}
	if sel.Kind != SourceObject || sel.VtableBase != 2 || sel.Trait.Def != shape {
		t.Errorf("selection = %s, want object with base 2", sel)
	}
}

func TestSelectBuiltin(t *testing.T) {
	p := ir.NewProgram()
	s := p.DeclareStruct("S")

	tests := []struct {
		name   string
		pred   ir.TraitRef
		ok     bool
		nested int
	}{
		{"sized prim", ir.NewTraitRef(p.Lang.Sized, ir.I32), true, 0},
		{"sized slice", ir.NewTraitRef(p.Lang.Sized, &ir.Slice{Elem: ir.U8}), false, 0},
		{"copy tuple", ir.NewTraitRef(p.Lang.Copy, ir.NewTuple(ir.I8, ir.Bool)), true, 2},
		{"copy shared ref", ir.NewTraitRef(p.Lang.Copy, ir.NewRef(ir.Erased, ir.NewAdt(s))), true, 0},
		{"copy mut ref", ir.NewTraitRef(p.Lang.Copy, &ir.Ref{Elem: ir.I8, Mut: true}), false, 0},
		{"clone struct without impl", ir.NewTraitRef(p.Lang.Clone, ir.NewAdt(s)), false, 0},
		{"clone array", ir.NewTraitRef(p.Lang.Clone, &ir.Array{Elem: ir.U8, Len: 3}), true, 1},
	}
	for _, tt := range tests {
		sel, err := selectOne(t, p, ir.EmptyParamEnv, tt.pred)
		if !tt.ok {
			if !errors.Is(err, ErrUnimplemented) {
				t.Errorf("%s: err = %v, want ErrUnimplemented", tt.name, err)
			}
			continue
		}
		if err != nil || sel == nil || sel.Kind != SourceBuiltin {
			t.Errorf("%s: Select = %v, %v; want builtin", tt.name, sel, err)
			continue
		}
		if len(sel.Nested) != tt.nested {
			t.Errorf("%s: nested = %d, want %d", tt.name, len(sel.Nested), tt.nested)
		}
	}
}

func TestSelectOverlappingImplsAmbiguous(t *testing.T) {
	f := newFixture()
	f.prog.DeclareImpl(ir.ImplSpec{
		Trait:  &ir.TraitRef{Def: f.convert, Substs: ir.Substs{ir.I32, ir.U16}},
		SelfTy: ir.I32,
	})
	sel, err := Enter(f.prog, func(infcx *InferCtxt) (*Selection[*Obligation], error) {
		pred := ir.NewTraitRef(f.convert, ir.I32, infcx.NewVar())
		return NewProgramSolver(0).Select(infcx, NewObligation(MiscCause(ir.DummySpan), ir.EmptyParamEnv, pred))
	})
	if sel != nil || err != nil {
		t.Errorf("Select = %v, %v; want ambiguous", sel, err)
	}
}
