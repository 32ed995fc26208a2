package ir

import (
	"fmt"
	"strings"
)

// GenericArg is an entry of a substitution: either a Ty or a Region.
type GenericArg interface {
	genericArg()
	String() string
}

// Ty is an IR type. Concrete kinds are the pointer types below; Prim is
// the only value-like kind and is shared through the package variables.
type Ty interface {
	GenericArg
	isTy()
}

// ---------------------------------------------------------------------------
// Primitive types
// ---------------------------------------------------------------------------

// PrimKind enumerates built-in scalar and unsized primitive types.
type PrimKind int

const (
	PrimBool PrimKind = iota
	PrimChar
	PrimI8
	PrimI16
	PrimI32
	PrimI64
	PrimI128
	PrimIsize
	PrimU8
	PrimU16
	PrimU32
	PrimU64
	PrimU128
	PrimUsize
	PrimF32
	PrimF64
	PrimStr
	PrimNever
)

var primNames = [...]string{
	PrimBool:  "bool",
	PrimChar:  "char",
	PrimI8:    "i8",
	PrimI16:   "i16",
	PrimI32:   "i32",
	PrimI64:   "i64",
	PrimI128:  "i128",
	PrimIsize: "isize",
	PrimU8:    "u8",
	PrimU16:   "u16",
	PrimU32:   "u32",
	PrimU64:   "u64",
	PrimU128:  "u128",
	PrimUsize: "usize",
	PrimF32:   "f32",
	PrimF64:   "f64",
	PrimStr:   "str",
	PrimNever: "!",
}

// Prim is a primitive type.
type Prim struct {
	Kind PrimKind
}

var (
	Bool  Ty = &Prim{PrimBool}
	Char  Ty = &Prim{PrimChar}
	I8    Ty = &Prim{PrimI8}
	I16   Ty = &Prim{PrimI16}
	I32   Ty = &Prim{PrimI32}
	I64   Ty = &Prim{PrimI64}
	I128  Ty = &Prim{PrimI128}
	Isize Ty = &Prim{PrimIsize}
	U8    Ty = &Prim{PrimU8}
	U16   Ty = &Prim{PrimU16}
	U32   Ty = &Prim{PrimU32}
	U64   Ty = &Prim{PrimU64}
	U128  Ty = &Prim{PrimU128}
	Usize Ty = &Prim{PrimUsize}
	F32   Ty = &Prim{PrimF32}
	F64   Ty = &Prim{PrimF64}
	Str   Ty = &Prim{PrimStr}
	Never Ty = &Prim{PrimNever}

	// Unit is the empty tuple.
	Unit Ty = &Tuple{}
)

// PrimByName returns the primitive type with the given spelling.
func PrimByName(name string) (Ty, bool) {
	for k, n := range primNames {
		if n == name {
			return &Prim{PrimKind(k)}, true
		}
	}
	return nil, false
}

func (*Prim) genericArg() {}
func (*Prim) isTy()       {}

func (p *Prim) String() string {
	if int(p.Kind) < len(primNames) {
		return primNames[p.Kind]
	}
	return "?prim"
}

// IsInteger reports whether p is a signed or unsigned integer.
func (p *Prim) IsInteger() bool {
	return p.Kind >= PrimI8 && p.Kind <= PrimUsize
}

// IsPointerSized reports whether p is isize or usize.
func (p *Prim) IsPointerSized() bool {
	return p.Kind == PrimIsize || p.Kind == PrimUsize
}

// ---------------------------------------------------------------------------
// Compound types
// ---------------------------------------------------------------------------

// Tuple is a product of element types; the empty tuple is Unit.
type Tuple struct {
	Elems []Ty
}

// Adt is a nominal struct type applied to generic arguments.
type Adt struct {
	Def    DefID
	Substs Substs
}

// Ref is a reference &'r T or &'r mut T.
type Ref struct {
	Region Region
	Elem   Ty
	Mut    bool
}

// RawPtr is *const T or *mut T.
type RawPtr struct {
	Elem Ty
	Mut  bool
}

// Array is [T; N].
type Array struct {
	Elem Ty
	Len  uint64
}

// Slice is the unsized [T].
type Slice struct {
	Elem Ty
}

// Dynamic is the unsized trait object type dyn Trait + 'r.
type Dynamic struct {
	Principal ExistentialTraitRef
	Region    Region
}

// Param is a generic type parameter, substituted by index.
type Param struct {
	Index uint32
	Name  string
}

// FnDef is the zero-sized type of a named function item.
type FnDef struct {
	Def    DefID
	Substs Substs
}

// Infer is an inference variable owned by an inference context.
type Infer struct {
	Var uint32
}

func (*Tuple) genericArg()   {}
func (*Adt) genericArg()     {}
func (*Ref) genericArg()     {}
func (*RawPtr) genericArg()  {}
func (*Array) genericArg()   {}
func (*Slice) genericArg()   {}
func (*Dynamic) genericArg() {}
func (*Param) genericArg()   {}
func (*FnDef) genericArg()   {}
func (*Infer) genericArg()   {}

func (*Tuple) isTy()   {}
func (*Adt) isTy()     {}
func (*Ref) isTy()     {}
func (*RawPtr) isTy()  {}
func (*Array) isTy()   {}
func (*Slice) isTy()   {}
func (*Dynamic) isTy() {}
func (*Param) isTy()   {}
func (*FnDef) isTy()   {}
func (*Infer) isTy()   {}

// NewAdt returns the struct type def applied to args.
func NewAdt(def DefID, args ...GenericArg) *Adt {
	return &Adt{Def: def, Substs: Substs(args)}
}

// NewRef returns a shared reference to elem.
func NewRef(r Region, elem Ty) *Ref {
	return &Ref{Region: r, Elem: elem}
}

// NewTuple returns the tuple of elems.
func NewTuple(elems ...Ty) *Tuple {
	return &Tuple{Elems: elems}
}

// NewDynamic returns dyn principal + 'r.
func NewDynamic(principal ExistentialTraitRef, r Region) *Dynamic {
	return &Dynamic{Principal: principal, Region: r}
}

// ---------------------------------------------------------------------------
// Printing
//
// String produces the canonical spelling used for cache keys: definitions
// print as def#N. Program.Display renders names for humans.
// ---------------------------------------------------------------------------

func (t *Tuple) String() string {
	if len(t.Elems) == 1 {
		return "(" + t.Elems[0].String() + ",)"
	}
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (t *Adt) String() string {
	return t.Def.String() + t.Substs.String()
}

func (t *Ref) String() string {
	if t.Mut {
		return "&" + t.Region.String() + " mut " + t.Elem.String()
	}
	return "&" + t.Region.String() + " " + t.Elem.String()
}

func (t *RawPtr) String() string {
	if t.Mut {
		return "*mut " + t.Elem.String()
	}
	return "*const " + t.Elem.String()
}

func (t *Array) String() string {
	return fmt.Sprintf("[%s; %d]", t.Elem, t.Len)
}

func (t *Slice) String() string {
	return "[" + t.Elem.String() + "]"
}

func (t *Dynamic) String() string {
	return "dyn " + t.Principal.String() + " + " + t.Region.String()
}

func (t *Param) String() string {
	if t.Name == "" {
		return fmt.Sprintf("T%d", t.Index)
	}
	return t.Name
}

func (t *FnDef) String() string {
	return "fn " + t.Def.String() + t.Substs.String()
}

func (t *Infer) String() string {
	return fmt.Sprintf("?%d", t.Var)
}
