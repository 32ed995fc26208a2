package vm

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tliron/commonlog"

	"github.com/chazu/consteval/ir"
	"github.com/chazu/consteval/traits"
)

type showFixture struct {
	prog       *ir.Program
	show       ir.DefID
	render     ir.DefID
	point      ir.DefID
	pointShow  ir.DefID
	pointDraw  ir.DefID
	handle     ir.DefID
	handleShow ir.DefID
}

// newShowFixture declares trait Show { fn render }, a 4-byte Point and a
// Handle with a Drop impl, both implementing Show.
func newShowFixture() *showFixture {
	p := ir.NewProgram()
	f := &showFixture{prog: p}
	f.show = p.DeclareTrait("Show")
	f.render = p.AddTraitMethod(f.show, "render", ir.MethodOpts{})

	f.point = p.DeclareStruct("Point")
	p.SetFields(f.point, ir.Field{Name: "packed", Ty: ir.U32})
	f.pointShow = p.DeclareImpl(ir.ImplSpec{
		Trait:  &ir.TraitRef{Def: f.show, Substs: ir.Substs{ir.NewAdt(f.point)}},
		SelfTy: ir.NewAdt(f.point),
	})
	f.pointDraw = p.AddImplMethod(f.pointShow, "render")

	f.handle = p.DeclareStruct("Handle")
	p.SetFields(f.handle, ir.Field{Name: "fd", Ty: ir.I32}, ir.Field{Name: "flags", Ty: ir.U64})
	f.handleShow = p.DeclareImpl(ir.ImplSpec{
		Trait:  &ir.TraitRef{Def: f.show, Substs: ir.Substs{ir.NewAdt(f.handle)}},
		SelfTy: ir.NewAdt(f.handle),
	})
	p.AddImplMethod(f.handleShow, "render")
	drop := p.DeclareImpl(ir.ImplSpec{
		Trait:  &ir.TraitRef{Def: p.Lang.Drop, Substs: ir.Substs{ir.NewAdt(f.handle)}},
		SelfTy: ir.NewAdt(f.handle),
	})
	p.AddImplMethod(drop, "drop")
	return f
}

func (f *showFixture) showRef(self ir.Ty) ir.TraitRef {
	return ir.NewTraitRef(f.show, self)
}

func newContext(prog *ir.Program) *EvalContext {
	return NewEvalContext(prog, nil, DefaultConfig())
}

type solverFunc func(*traits.InferCtxt, *traits.Obligation) (*traits.Selection[*traits.Obligation], error)

func (fn solverFunc) Select(infcx *traits.InferCtxt, ob *traits.Obligation) (*traits.Selection[*traits.Obligation], error) {
	return fn(infcx, ob)
}

func catchAbort(t *testing.T, fn func() error) *Abort {
	t.Helper()
	err := Catch(fn)
	var a *Abort
	if !errors.As(err, &a) {
		t.Fatalf("err = %v, want *Abort", err)
	}
	return a
}

// ---------------------------------------------------------------------------
// Vtable building and reading
// ---------------------------------------------------------------------------

func TestPointShowVtable(t *testing.T) {
	f := newShowFixture()
	ecx := newContext(f.prog)
	point := ir.NewAdt(f.point)

	vtable, err := ecx.GetVtable(point, f.showRef(point))
	if err != nil {
		t.Fatalf("GetVtable: %v", err)
	}
	alloc, err := ecx.Memory.Get(vtable.Alloc)
	if err != nil {
		t.Fatal(err)
	}
	if len(alloc.Bytes) != 32 || alloc.Align != 8 {
		t.Errorf("vtable = %d bytes at align %d, want 32 at 8", len(alloc.Bytes), alloc.Align)
	}
	if alloc.Kind != KindVtable {
		t.Errorf("Kind = %s, want vtable", alloc.Kind)
	}

	words := make([]PrimVal, 4)
	for i := range words {
		words[i], err = ecx.Memory.ReadPtrSizedUnsigned(vtable.Add(uint64(i) * 8))
		if err != nil {
			t.Fatalf("read word %d: %v", i, err)
		}
	}
	if !words[0].IsNull() {
		t.Errorf("offset 0 = %s, want null", words[0])
	}
	if words[1] != Bytes(4) || words[2] != Bytes(4) {
		t.Errorf("offsets 8, 16 = %s, %s; want Bytes(4), Bytes(4)", words[1], words[2])
	}
	if words[3].Kind != PrimPtr {
		t.Fatalf("offset 24 = %s, want a function pointer", words[3])
	}
	inst, err := ecx.Memory.GetFn(words[3].Ptr)
	if err != nil {
		t.Fatal(err)
	}
	if want := ir.NewInstance(f.pointDraw, nil); !ir.EqualInstances(inst, want) {
		t.Errorf("offset 24 calls %s, want %s", f.prog.DisplayInstance(inst), f.prog.DisplayInstance(want))
	}

	size, align, err := ecx.ReadSizeAndAlign(vtable)
	if err != nil || size != 4 || align != 4 {
		t.Errorf("ReadSizeAndAlign = %d, %d, %v; want 4, 4", size, align, err)
	}
	drop, err := ecx.ReadDropType(vtable)
	if err != nil || drop != nil {
		t.Errorf("ReadDropType = %v, %v; want nil", drop, err)
	}
}

func TestVtableSizeMatchesMethodCount(t *testing.T) {
	for _, ptrSize := range []uint64{4, 8} {
		for methods := 0; methods <= 3; methods++ {
			p := ir.NewProgram()
			tr := p.DeclareTrait("Tr")
			s := p.DeclareStruct("S")
			p.SetFields(s, ir.Field{Name: "b", Ty: ir.U8})
			impl := p.DeclareImpl(ir.ImplSpec{
				Trait:  &ir.TraitRef{Def: tr, Substs: ir.Substs{ir.NewAdt(s)}},
				SelfTy: ir.NewAdt(s),
			})
			for i := 0; i < methods; i++ {
				name := string(rune('a' + i))
				p.AddTraitMethod(tr, name, ir.MethodOpts{})
				p.AddImplMethod(impl, name)
			}

			cfg := DefaultConfig()
			cfg.PointerSize = ptrSize
			ecx := NewEvalContext(p, nil, cfg)
			vtable, err := ecx.GetVtable(ir.NewAdt(s), ir.NewTraitRef(tr, ir.NewAdt(s)))
			if err != nil {
				t.Fatalf("W=%d M=%d: %v", ptrSize, methods, err)
			}
			alloc, _ := ecx.Memory.Get(vtable.Alloc)
			if got, want := uint64(len(alloc.Bytes)), ptrSize*uint64(3+methods); got != want || alloc.Align != ptrSize {
				t.Errorf("W=%d M=%d: %d bytes at align %d, want %d at %d",
					ptrSize, methods, got, alloc.Align, want, ptrSize)
			}
		}
	}
}

func TestVtableDropGlue(t *testing.T) {
	f := newShowFixture()
	ecx := newContext(f.prog)
	handle := ir.NewAdt(f.handle)

	vtable, err := ecx.GetVtable(handle, f.showRef(handle))
	if err != nil {
		t.Fatal(err)
	}
	drop, err := ecx.ReadDropType(vtable)
	if err != nil || drop == nil {
		t.Fatalf("ReadDropType = %v, %v; want drop glue", drop, err)
	}
	if drop.Kind != ir.InstanceDropGlue || !ir.Equal(drop.Ty, handle) {
		t.Errorf("drop = %s, want drop glue for Handle", f.prog.DisplayInstance(*drop))
	}
	size, align, _ := ecx.ReadSizeAndAlign(vtable)
	if size != 16 || align != 8 {
		t.Errorf("Handle size, align = %d, %d; want 16, 8", size, align)
	}
}

func TestVtableIsFrozen(t *testing.T) {
	f := newShowFixture()
	ecx := newContext(f.prog)
	point := ir.NewAdt(f.point)

	vtable, err := ecx.GetVtable(point, f.showRef(point))
	if err != nil {
		t.Fatal(err)
	}
	alloc, _ := ecx.Memory.Get(vtable.Alloc)
	if !alloc.Static || alloc.Mutability != Immutable {
		t.Errorf("vtable static=%v mutability=%s, want static immutable", alloc.Static, alloc.Mutability)
	}
	err = ecx.Memory.WritePtrSizedUnsigned(vtable.Add(8), Bytes(99))
	if !errors.Is(err, ErrModifiedConstantMemory) {
		t.Errorf("write into vtable: err = %v, want ErrModifiedConstantMemory", err)
	}
}

func TestVtablesAreNotDeduplicated(t *testing.T) {
	f := newShowFixture()
	ecx := newContext(f.prog)
	point := ir.NewAdt(f.point)

	a, err := ecx.GetVtable(point, f.showRef(point))
	if err != nil {
		t.Fatal(err)
	}
	b, err := ecx.GetVtable(point, f.showRef(point))
	if err != nil {
		t.Fatal(err)
	}
	if a.Alloc == b.Alloc {
		t.Error("two GetVtable calls returned the same block")
	}
	ma, _ := ecx.Memory.ReadPtrSizedUnsigned(a.Add(24))
	mb, _ := ecx.Memory.ReadPtrSizedUnsigned(b.Add(24))
	if ma != mb {
		t.Errorf("method pointers differ: %s vs %s", ma, mb)
	}
}

func TestVtableUnsizedTypeAborts(t *testing.T) {
	f := newShowFixture()
	ecx := newContext(f.prog)

	a := catchAbort(t, func() error {
		_, err := ecx.GetVtable(ir.Str, f.showRef(ir.Str))
		return err
	})
	if a.Kind != AbortBug {
		t.Errorf("abort kind = %v, want AbortBug", a.Kind)
	}
	if ids := ecx.Memory.AllocIDs(); len(ids) != 0 {
		t.Errorf("allocations after rejected vtable: %v", ids)
	}
}

func TestVtableSizeOnNarrowTarget(t *testing.T) {
	tests := []struct {
		name string
		len  uint64
		ok   bool
	}{
		{"fits", 1<<32 - 4, true},
		{"past the address space", 1<<32 + 4, false},
	}
	for _, tt := range tests {
		f := newShowFixture()
		big := f.prog.DeclareStruct("Big")
		f.prog.SetFields(big, ir.Field{Name: "buf", Ty: &ir.Array{Elem: ir.U8, Len: tt.len}})
		self := ir.NewAdt(big)
		impl := f.prog.DeclareImpl(ir.ImplSpec{Trait: &ir.TraitRef{Def: f.show, Substs: ir.Substs{self}}, SelfTy: self})
		f.prog.AddImplMethod(impl, "render")

		cfg := DefaultConfig()
		cfg.PointerSize = 4
		ecx := NewEvalContext(f.prog, nil, cfg)

		vtable, err := ecx.GetVtable(self, f.showRef(self))
		if !tt.ok {
			if !errors.Is(err, ErrLayout) {
				t.Errorf("%s: GetVtable err = %v, want ErrLayout", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: GetVtable: %v", tt.name, err)
			continue
		}
		size, align, err := ecx.ReadSizeAndAlign(vtable)
		if err != nil || size != tt.len || align != 1 {
			t.Errorf("%s: ReadSizeAndAlign = %d, %d, %v; want %d, 1", tt.name, size, align, err, tt.len)
		}
	}
}

func TestVtableSelfTypeMismatchAborts(t *testing.T) {
	f := newShowFixture()
	ecx := newContext(f.prog)

	a := catchAbort(t, func() error {
		_, err := ecx.GetVtable(ir.NewAdt(f.point), f.showRef(ir.NewAdt(f.handle)))
		return err
	})
	if a.Kind != AbortBug {
		t.Errorf("abort kind = %v, want AbortBug", a.Kind)
	}
}

func TestVtableVacantSlotsAndSupertraits(t *testing.T) {
	p := ir.NewProgram()
	base := p.DeclareTrait("Base")
	p.AddTraitMethod(base, "id", ir.MethodOpts{})
	shape := p.DeclareTrait("Shape")
	p.AddSupertrait(shape, ir.NewTraitRef(base, ir.SelfParam))
	area := p.AddTraitMethod(shape, "area", ir.MethodOpts{})
	p.AddTraitMethod(shape, "map", ir.MethodOpts{Generic: true})

	sq := p.DeclareStruct("Square")
	p.SetFields(sq, ir.Field{Name: "side", Ty: ir.U64})
	self := ir.NewAdt(sq)
	baseImpl := p.DeclareImpl(ir.ImplSpec{Trait: &ir.TraitRef{Def: base, Substs: ir.Substs{self}}, SelfTy: self})
	sqID := p.AddImplMethod(baseImpl, "id")
	shapeImpl := p.DeclareImpl(ir.ImplSpec{Trait: &ir.TraitRef{Def: shape, Substs: ir.Substs{self}}, SelfTy: self})
	sqArea := p.AddImplMethod(shapeImpl, "area")
	p.AddImplMethod(shapeImpl, "map")

	ecx := newContext(p)
	vtable, err := ecx.GetVtable(self, ir.NewTraitRef(shape, self))
	if err != nil {
		t.Fatal(err)
	}
	alloc, _ := ecx.Memory.Get(vtable.Alloc)
	if len(alloc.Bytes) != 48 {
		t.Errorf("vtable = %d bytes, want 48", len(alloc.Bytes))
	}

	want := []ir.DefID{sqArea, ir.NoDef, sqID}
	for i, def := range want {
		inst, err := ecx.ReadMethod(vtable, i)
		if err != nil {
			t.Fatalf("ReadMethod(%d): %v", i, err)
		}
		switch {
		case def == ir.NoDef && inst != nil:
			t.Errorf("slot %d = %s, want vacant", i, p.DisplayInstance(*inst))
		case def != ir.NoDef && (inst == nil || inst.Def != def):
			t.Errorf("slot %d = %v, want %s", i, inst, p.DefPath(def))
		}
	}
	v, err := ecx.Memory.ReadPtrSizedUnsigned(vtable.Add(4 * 8))
	if err != nil || !v.IsNull() {
		t.Errorf("vacant slot word = %s, %v; want Bytes(0)", v, err)
	}

	// A virtual call through dyn Shape addresses the same slots.
	dyn := ir.NewDynamic(ir.ExistentialTraitRef{Def: shape}, ir.Static)
	for _, tc := range []struct {
		def   ir.DefID
		index int
	}{
		{area, 0},
		{p.AssociatedItems(base)[0].ID, 2},
	} {
		inst, err := ecx.Resolve(tc.def, ir.Substs{dyn})
		if err != nil {
			t.Fatal(err)
		}
		if inst.Kind != ir.InstanceVirtual || inst.VtableIndex != tc.index {
			t.Errorf("Resolve(%s) = %s, want virtual slot %d", p.DefPath(tc.def), p.DisplayInstance(inst), tc.index)
		}
	}
}

func TestReadDropTypeRejectsIntegers(t *testing.T) {
	ecx := newContext(ir.NewProgram())
	p, err := ecx.Memory.Allocate(24, 8, KindHeap)
	if err != nil {
		t.Fatal(err)
	}
	if err := ecx.Memory.WritePtrSizedUnsigned(p, Bytes(7)); err != nil {
		t.Fatal(err)
	}
	if _, err := ecx.ReadDropType(p); !errors.Is(err, ErrReadBytesAsPointer) {
		t.Errorf("ReadDropType(Bytes(7)) err = %v, want ErrReadBytesAsPointer", err)
	}
	if _, _, err := ecx.ReadSizeAndAlign(p); !errors.Is(err, ErrReadUndefBytes) {
		t.Errorf("ReadSizeAndAlign(undef) err = %v, want ErrReadUndefBytes", err)
	}

	if err := ecx.Memory.WritePtrSizedUnsigned(p, Ptr(p)); err != nil {
		t.Fatal(err)
	}
	if _, err := ecx.ReadDropType(p); !errors.Is(err, ErrInvalidFunctionPointer) {
		t.Errorf("ReadDropType(data pointer) err = %v, want ErrInvalidFunctionPointer", err)
	}
}

// ---------------------------------------------------------------------------
// Fulfillment
// ---------------------------------------------------------------------------

func TestFulfillIgnoresRegions(t *testing.T) {
	p := ir.NewProgram()
	show := p.DeclareTrait("Show")
	point := p.DeclareStruct("Point")
	refTy := ir.NewRef(ir.EarlyBound("a", 0), ir.NewAdt(point))
	impl := p.DeclareImpl(ir.ImplSpec{
		Generics: []string{"'a"},
		Trait:    &ir.TraitRef{Def: show, Substs: ir.Substs{refTy}},
		SelfTy:   refTy,
	})

	for _, caching := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.CacheSelections = caching
		ecx := NewEvalContext(p, nil, cfg)

		a, err := ecx.Fulfill(ir.DummySpan, ir.EmptyParamEnv, ir.NewTraitRef(show, ir.NewRef(ir.Static, ir.NewAdt(point))))
		if err != nil {
			t.Fatal(err)
		}
		b, err := ecx.Fulfill(ir.DummySpan, ir.EmptyParamEnv, ir.NewTraitRef(show, ir.NewRef(ir.LateBound("x"), ir.NewAdt(point))))
		if err != nil {
			t.Fatal(err)
		}
		if a.Kind != b.Kind || a.Impl != b.Impl || a.Impl != impl || !ir.EqualSubsts(a.Substs, b.Substs) {
			t.Errorf("caching=%v: selections differ: %s vs %s", caching, a, b)
		}
		if ir.HasRegions(a.Trait.Substs...) {
			t.Errorf("selection mentions regions: %s", a.Trait)
		}
		stats := ecx.CacheStats()
		if caching && (stats.Hits != 1 || stats.Misses != 1) {
			t.Errorf("cache stats = %+v, want 1 hit 1 miss", stats)
		}
	}
}

// infoRecorder keeps the info-level messages sent to it.
type infoRecorder struct {
	commonlog.MockLogger
	infos []string
}

func (r *infoRecorder) Infof(format string, args ...any) {
	r.infos = append(r.infos, fmt.Sprintf(format, args...))
}

func TestCacheMissLoggedOnlyWhenCaching(t *testing.T) {
	defer func(saved commonlog.Logger) { log = saved }(log)
	f := newShowFixture()
	point := ir.NewAdt(f.point)

	for _, caching := range []bool{false, true} {
		rec := &infoRecorder{}
		log = rec
		cfg := DefaultConfig()
		cfg.CacheSelections = caching
		ecx := NewEvalContext(f.prog, nil, cfg)
		if _, err := ecx.Fulfill(ir.DummySpan, ir.EmptyParamEnv, f.showRef(point)); err != nil {
			t.Fatal(err)
		}
		logged := len(rec.infos) == 1 && strings.HasPrefix(rec.infos[0], "cache miss")
		if caching != logged || (!caching && len(rec.infos) != 0) {
			t.Errorf("caching=%v: info messages = %q", caching, rec.infos)
		}
	}
}

func TestFulfillUnimplementedIsRecoverable(t *testing.T) {
	f := newShowFixture()
	ecx := newContext(f.prog)

	_, err := ecx.Fulfill(ir.DummySpan, ir.EmptyParamEnv, f.showRef(ir.U64))
	if !errors.Is(err, ErrUnimplementedTraitSelection) {
		t.Fatalf("err = %v, want ErrUnimplementedTraitSelection", err)
	}
	if !errors.Is(err, traits.ErrUnimplemented) {
		t.Error("error does not wrap the solver's unimplemented error")
	}
	var abort *Abort
	if errors.As(err, &abort) {
		t.Error("unimplemented selection reported as an abort")
	}
}

func TestFulfillAmbiguityIsRecursionLimit(t *testing.T) {
	f := newShowFixture()
	ecx := newContext(f.prog)
	var seen *traits.InferCtxt
	ecx.UseSolver(solverFunc(func(infcx *traits.InferCtxt, _ *traits.Obligation) (*traits.Selection[*traits.Obligation], error) {
		seen = infcx
		return nil, nil
	}))

	span := ir.Span{File: "lib.rs", Line: 3, Col: 9}
	a := catchAbort(t, func() error {
		_, err := ecx.Fulfill(span, ir.EmptyParamEnv, f.showRef(ir.NewAdt(f.point)))
		return err
	})
	if a.Kind != AbortFatal || a.Message != RecursionLimitMessage {
		t.Errorf("abort = %v, want fatal recursion-limit diagnostic", a)
	}
	if a.Span != span || a.TraitRef != "<Point as Show>" {
		t.Errorf("abort context = %v %q", a.Span, a.TraitRef)
	}

	defer func() {
		if recover() == nil {
			t.Error("inference context still usable after the aborted query")
		}
	}()
	seen.NewVar()
}

func TestFulfillSolverErrorIsBug(t *testing.T) {
	f := newShowFixture()
	ecx := newContext(f.prog)
	ecx.UseSolver(solverFunc(func(*traits.InferCtxt, *traits.Obligation) (*traits.Selection[*traits.Obligation], error) {
		return nil, errors.New("projection mismatch")
	}))

	a := catchAbort(t, func() error {
		_, err := ecx.Fulfill(ir.DummySpan, ir.EmptyParamEnv, f.showRef(ir.NewAdt(f.point)))
		return err
	})
	if a.Kind != AbortBug {
		t.Errorf("abort kind = %v, want AbortBug", a.Kind)
	}
}

func TestFulfillUnresolvedNestedIsBug(t *testing.T) {
	f := newShowFixture()
	ecx := newContext(f.prog)
	ecx.UseSolver(solverFunc(func(_ *traits.InferCtxt, ob *traits.Obligation) (*traits.Selection[*traits.Obligation], error) {
		if ob.Depth > 0 {
			return nil, nil
		}
		nested := &traits.Obligation{ParamEnv: ob.ParamEnv, Predicate: f.showRef(ir.U8), Depth: 1}
		return &traits.Selection[*traits.Obligation]{
			Kind:   traits.SourceImpl,
			Impl:   f.pointShow,
			Trait:  ob.Predicate,
			Nested: []*traits.Obligation{nested},
		}, nil
	}))

	a := catchAbort(t, func() error {
		_, err := ecx.Fulfill(ir.DummySpan, ir.EmptyParamEnv, f.showRef(ir.NewAdt(f.point)))
		return err
	})
	if a.Kind != AbortBug {
		t.Errorf("abort kind = %v, want AbortBug", a.Kind)
	}
}

func TestFulfillNestedOverflowIsRecursionLimit(t *testing.T) {
	p := ir.NewProgram()
	tr := p.DeclareTrait("Deep")
	w := p.DeclareStruct("W", "T")
	tp := &ir.Param{Index: 0, Name: "T"}
	// impl<T> Deep for W<T> where W<W<T>>: Deep
	p.DeclareImpl(ir.ImplSpec{
		Generics:   []string{"T"},
		Trait:      &ir.TraitRef{Def: tr, Substs: ir.Substs{ir.NewAdt(w, tp)}},
		SelfTy:     ir.NewAdt(w, tp),
		Predicates: []ir.TraitRef{ir.NewTraitRef(tr, ir.NewAdt(w, ir.NewAdt(w, tp)))},
	})
	cfg := DefaultConfig()
	cfg.RecursionLimit = 8
	ecx := NewEvalContext(p, nil, cfg)

	a := catchAbort(t, func() error {
		_, err := ecx.Fulfill(ir.DummySpan, ir.EmptyParamEnv, ir.NewTraitRef(tr, ir.NewAdt(w, ir.U8)))
		return err
	})
	if a.Kind != AbortFatal || a.Message != RecursionLimitMessage {
		t.Errorf("abort = %v, want recursion-limit diagnostic", a)
	}
}

// ---------------------------------------------------------------------------
// Associated constants and method resolution
// ---------------------------------------------------------------------------

func TestResolveAssociatedConst(t *testing.T) {
	f := newShowFixture()
	p := f.prog
	limits := p.DeclareTrait("Limits")
	maxConst := p.AddTraitConst(limits, "MAX", true)
	p.AddTraitConst(limits, "MIN", true)

	pointImpl := p.DeclareImpl(ir.ImplSpec{
		Trait:  &ir.TraitRef{Def: limits, Substs: ir.Substs{ir.NewAdt(f.point)}},
		SelfTy: ir.NewAdt(f.point),
	})
	p.AddImplMethod(pointImpl, "MAX") // same name, wrong kind
	override := p.AddImplConst(pointImpl, "MAX")
	p.DeclareImpl(ir.ImplSpec{
		Trait:  &ir.TraitRef{Def: limits, Substs: ir.Substs{ir.NewAdt(f.handle)}},
		SelfTy: ir.NewAdt(f.handle),
	})
	ecx := newContext(p)

	got, err := ecx.ResolveAssociatedConst(maxConst, ir.Substs{ir.NewAdt(f.point)})
	if err != nil {
		t.Fatal(err)
	}
	if got.Def != override || len(got.Substs) != 0 {
		t.Errorf("MAX for Point = %s, want the impl override", p.DisplayInstance(got))
	}

	substs := ir.Substs{ir.NewAdt(f.handle)}
	got, err = ecx.ResolveAssociatedConst(maxConst, substs)
	if err != nil {
		t.Fatal(err)
	}
	if !ir.EqualInstances(got, ir.NewInstance(maxConst, substs)) {
		t.Errorf("MAX for Handle = %s, want the trait default", p.DisplayInstance(got))
	}

	free := p.DeclareFn("ANSWER")
	got, err = ecx.ResolveAssociatedConst(free, nil)
	if err != nil || got.Def != free {
		t.Errorf("inherent const = %v, %v; want itself", got, err)
	}

	if _, err := ecx.ResolveAssociatedConst(maxConst, ir.Substs{ir.I8}); !errors.Is(err, ErrUnimplementedTraitSelection) {
		t.Errorf("MAX for i8: err = %v, want ErrUnimplementedTraitSelection", err)
	}
}

func TestResolveDefaultMethodAndCloneShim(t *testing.T) {
	p := ir.NewProgram()
	greet := p.DeclareTrait("Greet")
	hello := p.AddTraitMethod(greet, "hello", ir.MethodOpts{Default: true})
	s := p.DeclareStruct("S")
	p.DeclareImpl(ir.ImplSpec{Trait: &ir.TraitRef{Def: greet, Substs: ir.Substs{ir.NewAdt(s)}}, SelfTy: ir.NewAdt(s)})
	ecx := newContext(p)

	inst, err := ecx.Resolve(hello, ir.Substs{ir.NewAdt(s)})
	if err != nil {
		t.Fatal(err)
	}
	if inst.Kind != ir.InstanceItem || inst.Def != hello {
		t.Errorf("Resolve(hello) = %s, want the trait default", p.DisplayInstance(inst))
	}

	clone := p.AssociatedItems(p.Lang.Clone)[0].ID
	inst, err = ecx.Resolve(clone, ir.Substs{ir.NewTuple(ir.I32, ir.Bool)})
	if err != nil {
		t.Fatal(err)
	}
	if inst.Kind != ir.InstanceCloneShim || inst.Ty.String() != "(i32, bool)" {
		t.Errorf("Resolve(clone) = %s, want clone shim", p.DisplayInstance(inst))
	}
}
