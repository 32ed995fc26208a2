// Package layout answers size and alignment queries for IR types.
//
// The evaluator consumes layouts through the Oracle interface. Calculator
// is the built-in implementation: fields are placed in declaration order,
// each at the next offset aligned for it, and the total size is rounded up
// to the aggregate alignment.
package layout

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/chazu/consteval/ir"
)

// Oracle reports the size and alignment of types.
type Oracle interface {
	// SizeOf returns the size of t in bytes. sized is false for unsized
	// types such as str, slices and trait objects.
	SizeOf(t ir.Ty) (size uint64, sized bool, err error)

	// AlignOf returns the alignment of t in bytes.
	AlignOf(t ir.Ty) (uint64, error)
}

// Layout is the computed shape of a type.
type Layout struct {
	Size    uint64
	Align   uint64
	Sized   bool
	Offsets []uint64 // field offsets for tuples and structs
}

// Error reports a type that has no layout.
type Error struct {
	Ty     ir.Ty
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("layout of %s: %s", e.Ty, e.Reason)
}

// ---------------------------------------------------------------------------
// Calculator
// ---------------------------------------------------------------------------

// Calculator computes layouts for a target pointer width. Results are
// cached by canonical type spelling; it is not safe for concurrent use.
type Calculator struct {
	prog    *ir.Program
	ptrSize uint64
	maxSize uint64
	cache   map[string]*Layout
	active  map[string]bool
}

var _ Oracle = (*Calculator)(nil)

// NewCalculator creates a calculator for a target whose pointers are
// ptrSize bytes wide.
func NewCalculator(prog *ir.Program, ptrSize uint64) *Calculator {
	if !isPowerOfTwo(ptrSize) {
		panic(fmt.Sprintf("layout.NewCalculator: pointer size %d is not a power of two", ptrSize))
	}
	maxSize := uint64(math.MaxUint64)
	if ptrSize < 8 {
		maxSize = 1<<(8*ptrSize) - 1
	}
	return &Calculator{
		prog:    prog,
		ptrSize: ptrSize,
		maxSize: maxSize,
		cache:   make(map[string]*Layout),
		active:  make(map[string]bool),
	}
}

// PointerSize returns the target pointer width in bytes.
func (c *Calculator) PointerSize() uint64 {
	return c.ptrSize
}

// SizeOf implements Oracle.
func (c *Calculator) SizeOf(t ir.Ty) (uint64, bool, error) {
	l, err := c.LayoutOf(t)
	if err != nil {
		return 0, false, err
	}
	return l.Size, l.Sized, nil
}

// AlignOf implements Oracle.
func (c *Calculator) AlignOf(t ir.Ty) (uint64, error) {
	if _, ok := t.(*ir.Dynamic); ok {
		return 0, &Error{Ty: t, Reason: "alignment of a trait object is only known at run time"}
	}
	l, err := c.LayoutOf(t)
	if err != nil {
		return 0, err
	}
	return l.Align, nil
}

// LayoutOf returns the layout of t. Regions do not affect layout, so t is
// erased before lookup.
func (c *Calculator) LayoutOf(t ir.Ty) (*Layout, error) {
	t = ir.EraseRegions(t)
	key := t.String()
	if l, ok := c.cache[key]; ok {
		return l, nil
	}
	if c.active[key] {
		return nil, &Error{Ty: t, Reason: "type has infinite size"}
	}
	c.active[key] = true
	defer delete(c.active, key)

	l, err := c.compute(t)
	if err != nil {
		return nil, err
	}
	c.cache[key] = l
	return l, nil
}

func (c *Calculator) compute(t ir.Ty) (*Layout, error) {
	switch t := t.(type) {
	case *ir.Prim:
		return c.prim(t), nil
	case *ir.Tuple:
		return c.aggregate(t, t.Elems)
	case *ir.Adt:
		if c.prog.Struct(t.Def) == nil {
			return nil, &Error{Ty: t, Reason: "not a struct"}
		}
		return c.aggregate(t, c.prog.FieldTys(t))
	case *ir.Ref:
		return c.pointer(t.Elem), nil
	case *ir.RawPtr:
		return c.pointer(t.Elem), nil
	case *ir.FnDef:
		return &Layout{Size: 0, Align: 1, Sized: true}, nil
	case *ir.Array:
		el, err := c.LayoutOf(t.Elem)
		if err != nil {
			return nil, err
		}
		if !el.Sized {
			return nil, &Error{Ty: t, Reason: "array element is unsized"}
		}
		hi, size := bits.Mul64(el.Size, t.Len)
		if hi != 0 || size > c.maxSize {
			return nil, tooBig(t)
		}
		return &Layout{Size: size, Align: el.Align, Sized: true}, nil
	case *ir.Slice:
		el, err := c.LayoutOf(t.Elem)
		if err != nil {
			return nil, err
		}
		return &Layout{Align: el.Align, Sized: false}, nil
	case *ir.Dynamic:
		return &Layout{Align: 1, Sized: false}, nil
	case *ir.Param:
		return nil, &Error{Ty: t, Reason: "type parameter was not substituted"}
	case *ir.Infer:
		return nil, &Error{Ty: t, Reason: "type is not fully inferred"}
	}
	return nil, &Error{Ty: t, Reason: fmt.Sprintf("unsupported type %T", t)}
}

func (c *Calculator) prim(p *ir.Prim) *Layout {
	scalar := func(n uint64) *Layout { return &Layout{Size: n, Align: n, Sized: true} }
	switch p.Kind {
	case ir.PrimBool, ir.PrimI8, ir.PrimU8:
		return scalar(1)
	case ir.PrimI16, ir.PrimU16:
		return scalar(2)
	case ir.PrimChar, ir.PrimI32, ir.PrimU32, ir.PrimF32:
		return scalar(4)
	case ir.PrimI64, ir.PrimU64, ir.PrimF64:
		return scalar(8)
	case ir.PrimI128, ir.PrimU128:
		return scalar(16)
	case ir.PrimIsize, ir.PrimUsize:
		return scalar(c.ptrSize)
	case ir.PrimStr:
		return &Layout{Align: 1, Sized: false}
	case ir.PrimNever:
		return &Layout{Size: 0, Align: 1, Sized: true}
	}
	panic(fmt.Sprintf("layout: unknown primitive %v", p.Kind))
}

// pointer lays out a reference or raw pointer: one word for a sized
// pointee, two words (data plus length or vtable) for an unsized one.
func (c *Calculator) pointer(elem ir.Ty) *Layout {
	if c.prog.IsSized(elem) {
		return &Layout{Size: c.ptrSize, Align: c.ptrSize, Sized: true}
	}
	return &Layout{Size: 2 * c.ptrSize, Align: c.ptrSize, Sized: true}
}

// aggregate places fields sequentially. Only the last field may be
// unsized, in which case the aggregate is unsized too.
func (c *Calculator) aggregate(t ir.Ty, fields []ir.Ty) (*Layout, error) {
	out := &Layout{Align: 1, Sized: true, Offsets: make([]uint64, len(fields))}
	var offset uint64
	for i, f := range fields {
		fl, err := c.LayoutOf(f)
		if err != nil {
			return nil, err
		}
		if !fl.Sized && i != len(fields)-1 {
			return nil, &Error{Ty: f, Reason: "only the last field may be unsized"}
		}
		var ok bool
		if offset, ok = c.alignUp(offset, fl.Align); !ok {
			return nil, tooBig(t)
		}
		out.Offsets[i] = offset
		end, carry := bits.Add64(offset, fl.Size, 0)
		if carry != 0 || end > c.maxSize {
			return nil, tooBig(t)
		}
		offset = end
		if fl.Align > out.Align {
			out.Align = fl.Align
		}
		if !fl.Sized {
			out.Sized = false
		}
	}
	out.Size = offset
	if out.Sized {
		size, ok := c.alignUp(offset, out.Align)
		if !ok {
			return nil, tooBig(t)
		}
		out.Size = size
	}
	return out, nil
}

// alignUp rounds n up to a multiple of align. It reports false when the
// result does not fit in the target's address space.
func (c *Calculator) alignUp(n, align uint64) (uint64, bool) {
	if align <= 1 {
		return n, n <= c.maxSize
	}
	sum, carry := bits.Add64(n, align-1, 0)
	r := sum &^ (align - 1)
	return r, carry == 0 && r <= c.maxSize
}

func tooBig(t ir.Ty) *Error {
	return &Error{Ty: t, Reason: "too big for the current architecture"}
}

func isPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}
