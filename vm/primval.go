package vm

import "fmt"

// AllocID names an allocation in Memory. Zero is never allocated.
type AllocID uint64

func (id AllocID) String() string {
	return fmt.Sprintf("alloc%d", uint64(id))
}

// Pointer addresses a byte inside an allocation.
type Pointer struct {
	Alloc  AllocID
	Offset uint64
}

// Add returns p advanced by n bytes.
func (p Pointer) Add(n uint64) Pointer {
	return Pointer{Alloc: p.Alloc, Offset: p.Offset + n}
}

func (p Pointer) String() string {
	return fmt.Sprintf("%s+%d", p.Alloc, p.Offset)
}

// PrimValKind distinguishes the three shapes a scalar can take in memory.
type PrimValKind uint8

const (
	// PrimBytes is plain integer bits.
	PrimBytes PrimValKind = iota
	// PrimPtr is a pointer into another allocation.
	PrimPtr
	// PrimUndef is uninitialized memory.
	PrimUndef
)

// PrimVal is a pointer-sized scalar: raw bits, a pointer, or undefined.
type PrimVal struct {
	Kind PrimValKind
	Bits uint64
	Ptr  Pointer
}

// Bytes returns a raw-bits value.
func Bytes(bits uint64) PrimVal {
	return PrimVal{Kind: PrimBytes, Bits: bits}
}

// Ptr returns a pointer value.
func Ptr(p Pointer) PrimVal {
	return PrimVal{Kind: PrimPtr, Ptr: p}
}

// Undef is an uninitialized value.
var Undef = PrimVal{Kind: PrimUndef}

// IsNull reports whether v is the null sentinel Bytes(0).
func (v PrimVal) IsNull() bool {
	return v.Kind == PrimBytes && v.Bits == 0
}

// ToBytes returns the raw bits of v.
func (v PrimVal) ToBytes() (uint64, error) {
	switch v.Kind {
	case PrimBytes:
		return v.Bits, nil
	case PrimPtr:
		return 0, errorf(ReadPointerAsBytes, "%s", v.Ptr)
	}
	return 0, &EvalError{Kind: ReadUndefBytes}
}

// ToPtr returns the pointer held by v.
func (v PrimVal) ToPtr() (Pointer, error) {
	switch v.Kind {
	case PrimPtr:
		return v.Ptr, nil
	case PrimBytes:
		return Pointer{}, errorf(ReadBytesAsPointer, "%#x", v.Bits)
	}
	return Pointer{}, &EvalError{Kind: ReadUndefBytes}
}

func (v PrimVal) String() string {
	switch v.Kind {
	case PrimBytes:
		return fmt.Sprintf("Bytes(%d)", v.Bits)
	case PrimPtr:
		return "Ptr(" + v.Ptr.String() + ")"
	}
	return "Undef"
}

// Mutability of an allocation once it has been marked static.
type Mutability uint8

const (
	Mutable Mutability = iota
	Immutable
)

func (m Mutability) String() string {
	if m == Immutable {
		return "immutable"
	}
	return "mutable"
}
