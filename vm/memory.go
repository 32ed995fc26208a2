package vm

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/chazu/consteval/ir"
)

// ---------------------------------------------------------------------------
// Memory: the interpreter heap
//
// Memory is an arena of allocations addressed by AllocID plus a byte
// offset. Pointers stored in memory are kept as relocations: the bytes
// hold the offset and the relocation table holds the target allocation.
// Every allocation lives until the Memory is discarded. Function pointers
// are allocations without bytes, mapped to the instance they call.
// ---------------------------------------------------------------------------

// MemoryKind records what an allocation was created for.
type MemoryKind uint8

const (
	KindStack MemoryKind = iota
	KindHeap
	KindVtable
	KindFunction
)

func (k MemoryKind) String() string {
	switch k {
	case KindStack:
		return "stack"
	case KindHeap:
		return "heap"
	case KindVtable:
		return "vtable"
	case KindFunction:
		return "function"
	}
	return fmt.Sprintf("MemoryKind(%d)", int(k))
}

// Endian is the byte order of the target.
type Endian uint8

const (
	LittleEndian Endian = iota
	BigEndian
)

func (e Endian) String() string {
	if e == BigEndian {
		return "big"
	}
	return "little"
}

// ByteOrder returns the encoding/binary order for e.
func (e Endian) ByteOrder() binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Allocation is one block of interpreter memory.
type Allocation struct {
	Bytes       []byte
	Relocations map[uint64]AllocID // pointer start offset -> target
	Defined     []bool
	Align       uint64
	Kind        MemoryKind

	// Static is set by MarkStaticInitialized. A static immutable
	// allocation rejects all writes.
	Static     bool
	Mutability Mutability
}

// RelocationOffsets returns the offsets holding pointers, ascending.
func (a *Allocation) RelocationOffsets() []uint64 {
	offs := make([]uint64, 0, len(a.Relocations))
	for off := range a.Relocations {
		offs = append(offs, off)
	}
	sort.Slice(offs, func(i, j int) bool { return offs[i] < offs[j] })
	return offs
}

// MemoryConfig fixes the target properties of a Memory.
type MemoryConfig struct {
	PointerSize uint64
	Endian      Endian
	// Limit caps the total bytes allocated. Zero means unlimited.
	Limit uint64
}

// Memory is not safe for concurrent use.
type Memory struct {
	allocs  map[AllocID]*Allocation
	fns     map[AllocID]ir.Instance
	fnByKey map[string]AllocID
	next    AllocID
	used    uint64

	ptrSize uint64
	endian  Endian
	limit   uint64
	session uuid.UUID
}

// NewMemory creates an empty heap for the given target.
func NewMemory(cfg MemoryConfig) *Memory {
	switch cfg.PointerSize {
	case 2, 4, 8:
	default:
		panic(fmt.Sprintf("NewMemory: unsupported pointer size %d", cfg.PointerSize))
	}
	return &Memory{
		allocs:  make(map[AllocID]*Allocation),
		fns:     make(map[AllocID]ir.Instance),
		fnByKey: make(map[string]AllocID),
		next:    1,
		ptrSize: cfg.PointerSize,
		endian:  cfg.Endian,
		limit:   cfg.Limit,
		session: uuid.New(),
	}
}

// PointerSize returns the target pointer width in bytes.
func (m *Memory) PointerSize() uint64 { return m.ptrSize }

// Endian returns the target byte order.
func (m *Memory) Endian() Endian { return m.endian }

// Session identifies this heap. Snapshots carry it so that images from
// different evaluation sessions are never confused.
func (m *Memory) Session() uuid.UUID { return m.session }

// Used returns the number of bytes allocated so far.
func (m *Memory) Used() uint64 { return m.used }

// Allocate creates a block of size bytes aligned to align. Its bytes
// start out undefined.
func (m *Memory) Allocate(size, align uint64, kind MemoryKind) (Pointer, error) {
	if align == 0 || align&(align-1) != 0 {
		panic(fmt.Sprintf("Memory.Allocate: alignment %d is not a power of two", align))
	}
	if m.limit != 0 && m.used+size > m.limit {
		return Pointer{}, errorf(MemoryExhausted, "allocating %d bytes with %d of %d in use", size, m.used, m.limit)
	}
	id := m.next
	m.next++
	m.used += size
	m.allocs[id] = &Allocation{
		Bytes:       make([]byte, size),
		Relocations: make(map[uint64]AllocID),
		Defined:     make([]bool, size),
		Align:       align,
		Kind:        kind,
	}
	return Pointer{Alloc: id}, nil
}

// CreateFnAlloc returns a function pointer to inst. Calling it twice with
// the same instance returns the same pointer.
func (m *Memory) CreateFnAlloc(inst ir.Instance) Pointer {
	key := inst.String()
	if id, ok := m.fnByKey[key]; ok {
		return Pointer{Alloc: id}
	}
	id := m.next
	m.next++
	m.fns[id] = inst
	m.fnByKey[key] = id
	return Pointer{Alloc: id}
}

// GetFn returns the instance a function pointer calls.
func (m *Memory) GetFn(p Pointer) (ir.Instance, error) {
	if p.Offset != 0 {
		return ir.Instance{}, errorf(InvalidFunctionPointer, "%s has a non-zero offset", p)
	}
	if inst, ok := m.fns[p.Alloc]; ok {
		return inst, nil
	}
	if _, ok := m.allocs[p.Alloc]; ok {
		return ir.Instance{}, errorf(InvalidFunctionPointer, "%s is a data allocation", p)
	}
	return ir.Instance{}, errorf(DanglingPointerDeref, "%s", p)
}

// Fn reports the instance behind a function allocation.
func (m *Memory) Fn(id AllocID) (ir.Instance, bool) {
	inst, ok := m.fns[id]
	return inst, ok
}

// Get returns a data allocation.
func (m *Memory) Get(id AllocID) (*Allocation, error) {
	if a, ok := m.allocs[id]; ok {
		return a, nil
	}
	if _, ok := m.fns[id]; ok {
		return nil, errorf(DanglingPointerDeref, "%s is a function, not data", id)
	}
	return nil, errorf(DanglingPointerDeref, "%s", id)
}

// AllocIDs returns every allocation ID, data and function, ascending.
func (m *Memory) AllocIDs() []AllocID {
	ids := make([]AllocID, 0, len(m.allocs)+len(m.fns))
	for id := range m.allocs {
		ids = append(ids, id)
	}
	for id := range m.fns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ---------------------------------------------------------------------------
// Pointer-sized access
// ---------------------------------------------------------------------------

func (m *Memory) access(p Pointer, size, align uint64) (*Allocation, error) {
	a, err := m.Get(p.Alloc)
	if err != nil {
		return nil, err
	}
	if p.Offset+size > uint64(len(a.Bytes)) {
		return nil, errorf(PointerOutOfBounds, "access of %d bytes at %s, allocation has %d", size, p, len(a.Bytes))
	}
	if a.Align < align || p.Offset%align != 0 {
		return nil, errorf(AlignmentCheckFailed, "%s requires alignment %d, allocation has %d", p, align, a.Align)
	}
	return a, nil
}

// relocationsIn returns the relocations that overlap [off, off+size).
// A pointer occupies ptrSize bytes starting at its relocation offset.
func (m *Memory) relocationsIn(a *Allocation, off, size uint64) []uint64 {
	var out []uint64
	for start := range a.Relocations {
		if start < off+size && start+m.ptrSize > off {
			out = append(out, start)
		}
	}
	return out
}

// WritePtrSizedUnsigned stores v in the pointer-sized word at p. Bytes
// wider than the word are rejected rather than truncated.
func (m *Memory) WritePtrSizedUnsigned(p Pointer, v PrimVal) error {
	w := m.ptrSize
	a, err := m.access(p, w, w)
	if err != nil {
		return err
	}
	if v.Kind == PrimBytes && w < 8 && v.Bits>>(8*w) != 0 {
		return errorf(ValueOutOfRange, "%#x written at %s on a %d-bit target", v.Bits, p, 8*w)
	}
	if a.Static && a.Mutability == Immutable {
		return errorf(ModifiedConstantMemory, "write to %s", p)
	}
	for _, start := range m.relocationsIn(a, p.Offset, w) {
		if start != p.Offset {
			return errorf(ReadPointerAsBytes, "write at %s overlaps part of the pointer at offset %d", p, start)
		}
		delete(a.Relocations, start)
	}

	word := a.Bytes[p.Offset : p.Offset+w]
	switch v.Kind {
	case PrimUndef:
		for i := p.Offset; i < p.Offset+w; i++ {
			a.Defined[i] = false
		}
		return nil
	case PrimPtr:
		m.putUint(word, v.Ptr.Offset)
		a.Relocations[p.Offset] = v.Ptr.Alloc
	default:
		m.putUint(word, v.Bits)
	}
	for i := p.Offset; i < p.Offset+w; i++ {
		a.Defined[i] = true
	}
	return nil
}

// ReadPtrSizedUnsigned loads the pointer-sized word at p. An undefined
// word reads as Undef; callers that need bits get ReadUndefBytes from
// ToBytes.
func (m *Memory) ReadPtrSizedUnsigned(p Pointer) (PrimVal, error) {
	w := m.ptrSize
	a, err := m.access(p, w, w)
	if err != nil {
		return PrimVal{}, err
	}
	relocs := m.relocationsIn(a, p.Offset, w)
	for _, start := range relocs {
		if start != p.Offset {
			return PrimVal{}, errorf(ReadPointerAsBytes, "read at %s overlaps part of the pointer at offset %d", p, start)
		}
	}
	for i := p.Offset; i < p.Offset+w; i++ {
		if !a.Defined[i] {
			return Undef, nil
		}
	}
	bits := m.getUint(a.Bytes[p.Offset : p.Offset+w])
	if len(relocs) == 1 {
		return Ptr(Pointer{Alloc: a.Relocations[p.Offset], Offset: bits}), nil
	}
	return Bytes(bits), nil
}

func (m *Memory) putUint(b []byte, v uint64) {
	order := m.endian.ByteOrder()
	switch len(b) {
	case 2:
		order.PutUint16(b, uint16(v))
	case 4:
		order.PutUint32(b, uint32(v))
	default:
		order.PutUint64(b, v)
	}
}

func (m *Memory) getUint(b []byte) uint64 {
	order := m.endian.ByteOrder()
	switch len(b) {
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	}
	return order.Uint64(b)
}

// MarkStaticInitialized freezes an allocation and, transitively, every
// data allocation it points to. Function allocations and allocations that
// are already static are left alone.
func (m *Memory) MarkStaticInitialized(id AllocID, mut Mutability) error {
	if _, ok := m.fns[id]; ok {
		return nil
	}
	a, err := m.Get(id)
	if err != nil {
		return err
	}
	if a.Static {
		return nil
	}
	a.Static = true
	a.Mutability = mut
	for _, off := range a.RelocationOffsets() {
		if err := m.MarkStaticInitialized(a.Relocations[off], mut); err != nil {
			return fmt.Errorf("freezing %s: %w", id, err)
		}
	}
	return nil
}
