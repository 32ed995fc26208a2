package vm

import (
	"errors"
	"testing"

	"github.com/chazu/consteval/ir"
)

func newTestMemory() *Memory {
	return NewMemory(MemoryConfig{PointerSize: 8})
}

func TestAllocateAndReadBack(t *testing.T) {
	m := newTestMemory()
	p, err := m.Allocate(16, 8, KindHeap)
	if err != nil {
		t.Fatal(err)
	}
	if p.Alloc == 0 || p.Offset != 0 {
		t.Errorf("Allocate = %s, want a fresh allocation at offset 0", p)
	}

	if err := m.WritePtrSizedUnsigned(p.Add(8), Bytes(0xdeadbeef)); err != nil {
		t.Fatal(err)
	}
	v, err := m.ReadPtrSizedUnsigned(p.Add(8))
	if err != nil || v != Bytes(0xdeadbeef) {
		t.Errorf("read = %s, %v; want Bytes(0xdeadbeef)", v, err)
	}
	v, err = m.ReadPtrSizedUnsigned(p)
	if err != nil || v.Kind != PrimUndef {
		t.Errorf("read of unwritten word = %s, %v; want Undef", v, err)
	}
}

func TestAccessChecks(t *testing.T) {
	m := newTestMemory()
	p, _ := m.Allocate(16, 8, KindHeap)
	small, _ := m.Allocate(8, 4, KindHeap)

	tests := []struct {
		name string
		ptr  Pointer
		want error
	}{
		{"out of bounds", p.Add(16), ErrPointerOutOfBounds},
		{"straddles end", p.Add(12), ErrPointerOutOfBounds},
		{"misaligned offset", p.Add(4), ErrAlignmentCheckFailed},
		{"under-aligned allocation", small, ErrAlignmentCheckFailed},
		{"dangling", Pointer{Alloc: 999}, ErrDanglingPointerDeref},
	}
	for _, tt := range tests {
		if _, err := m.ReadPtrSizedUnsigned(tt.ptr); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestPointersAreRelocations(t *testing.T) {
	m := newTestMemory()
	target, _ := m.Allocate(8, 8, KindHeap)
	holder, _ := m.Allocate(16, 8, KindHeap)

	if err := m.WritePtrSizedUnsigned(holder, Ptr(target.Add(4))); err != nil {
		t.Fatal(err)
	}
	v, err := m.ReadPtrSizedUnsigned(holder)
	if err != nil || v != Ptr(target.Add(4)) {
		t.Errorf("read = %s, %v; want %s", v, err, Ptr(target.Add(4)))
	}
	if _, err := v.ToBytes(); !errors.Is(err, ErrReadPointerAsBytes) {
		t.Errorf("ToBytes(ptr) err = %v, want ErrReadPointerAsBytes", err)
	}

	a, _ := m.Get(holder.Alloc)
	if got := a.RelocationOffsets(); len(got) != 1 || got[0] != 0 {
		t.Errorf("relocations = %v, want [0]", got)
	}

	// Overwriting the pointer with bytes drops the relocation.
	if err := m.WritePtrSizedUnsigned(holder, Bytes(1)); err != nil {
		t.Fatal(err)
	}
	if len(a.Relocations) != 0 {
		t.Errorf("relocations after overwrite = %v", a.Relocations)
	}
}

func TestFnAllocs(t *testing.T) {
	m := newTestMemory()
	inst := ir.NewInstance(7, ir.Substs{ir.I32})

	a := m.CreateFnAlloc(inst)
	b := m.CreateFnAlloc(ir.NewInstance(7, ir.Substs{ir.I32}))
	c := m.CreateFnAlloc(ir.NewInstance(7, ir.Substs{ir.U32}))
	if a != b {
		t.Errorf("same instance got pointers %s and %s", a, b)
	}
	if a == c {
		t.Error("different instances share a function pointer")
	}

	got, err := m.GetFn(a)
	if err != nil || !ir.EqualInstances(got, inst) {
		t.Errorf("GetFn = %v, %v", got, err)
	}
	if _, err := m.GetFn(a.Add(1)); !errors.Is(err, ErrInvalidFunctionPointer) {
		t.Errorf("GetFn(offset 1) err = %v, want ErrInvalidFunctionPointer", err)
	}
	if _, err := m.Get(a.Alloc); !errors.Is(err, ErrDanglingPointerDeref) {
		t.Errorf("Get(fn) err = %v, want ErrDanglingPointerDeref", err)
	}
}

func TestMemoryLimit(t *testing.T) {
	m := NewMemory(MemoryConfig{PointerSize: 8, Limit: 32})
	if _, err := m.Allocate(24, 8, KindHeap); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Allocate(16, 8, KindHeap); !errors.Is(err, ErrMemoryExhausted) {
		t.Errorf("err = %v, want ErrMemoryExhausted", err)
	}
	if m.Used() != 24 {
		t.Errorf("Used = %d, want 24", m.Used())
	}
}

func TestBigEndianEncoding(t *testing.T) {
	m := NewMemory(MemoryConfig{PointerSize: 4, Endian: BigEndian})
	p, _ := m.Allocate(4, 4, KindHeap)
	if err := m.WritePtrSizedUnsigned(p, Bytes(0x01020304)); err != nil {
		t.Fatal(err)
	}
	a, _ := m.Get(p.Alloc)
	if a.Bytes[0] != 1 || a.Bytes[3] != 4 {
		t.Errorf("bytes = %v, want big-endian 1 2 3 4", a.Bytes)
	}
}

func TestWideValuesRejectedOnNarrowTargets(t *testing.T) {
	m := NewMemory(MemoryConfig{PointerSize: 4})
	p, _ := m.Allocate(4, 4, KindHeap)
	if err := m.WritePtrSizedUnsigned(p, Bytes(1<<32+4)); !errors.Is(err, ErrValueOutOfRange) {
		t.Errorf("write 1<<32+4: err = %v, want ErrValueOutOfRange", err)
	}
	if v, _ := m.ReadPtrSizedUnsigned(p); v != Undef {
		t.Errorf("rejected write left %s behind", v)
	}
	if err := m.WritePtrSizedUnsigned(p, Bytes(1<<32-1)); err != nil {
		t.Errorf("write 1<<32-1: %v", err)
	}
	if v, _ := m.ReadPtrSizedUnsigned(p); v != Bytes(1<<32-1) {
		t.Errorf("read = %s, want Bytes(0xffffffff)", v)
	}
}

func TestMarkStaticInitializedRecurses(t *testing.T) {
	m := newTestMemory()
	inner, _ := m.Allocate(8, 8, KindHeap)
	outer, _ := m.Allocate(16, 8, KindHeap)
	fn := m.CreateFnAlloc(ir.NewInstance(3, nil))
	m.WritePtrSizedUnsigned(outer, Ptr(inner))
	m.WritePtrSizedUnsigned(outer.Add(8), Ptr(fn))
	m.WritePtrSizedUnsigned(inner, Ptr(outer)) // cycle

	if err := m.MarkStaticInitialized(outer.Alloc, Immutable); err != nil {
		t.Fatal(err)
	}
	for _, p := range []Pointer{outer, inner} {
		if err := m.WritePtrSizedUnsigned(p, Bytes(0)); !errors.Is(err, ErrModifiedConstantMemory) {
			t.Errorf("write to %s: err = %v, want ErrModifiedConstantMemory", p, err)
		}
	}
	if err := m.MarkStaticInitialized(999, Immutable); !errors.Is(err, ErrDanglingPointerDeref) {
		t.Errorf("freeze dangling: err = %v", err)
	}
}

func TestAllocIDsAscending(t *testing.T) {
	m := newTestMemory()
	m.Allocate(1, 1, KindStack)
	m.CreateFnAlloc(ir.NewInstance(1, nil))
	m.Allocate(1, 1, KindStack)

	ids := m.AllocIDs()
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Errorf("AllocIDs = %v, want [alloc1 alloc2 alloc3]", ids)
	}
}
