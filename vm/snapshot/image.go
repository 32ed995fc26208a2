// Package snapshot captures the evaluator heap as a self-contained image
// so that vtables built during evaluation can be inspected offline. Images
// are encoded as canonical CBOR.
package snapshot

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/chazu/consteval/vm"
)

// Version is the image format written by Capture.
const Version = 1

// Image is a frozen copy of a vm.Memory.
type Image struct {
	Version     uint8    `cbor:"1,keyasint"`
	Session     [16]byte `cbor:"2,keyasint"`
	PointerSize uint64   `cbor:"3,keyasint"`
	BigEndian   bool     `cbor:"4,keyasint,omitempty"`
	Allocs      []Alloc  `cbor:"5,keyasint"`
	Fns         []Fn     `cbor:"6,keyasint,omitempty"`
}

// Alloc is one data allocation.
type Alloc struct {
	ID          uint64        `cbor:"1,keyasint"`
	Kind        vm.MemoryKind `cbor:"2,keyasint"`
	Align       uint64        `cbor:"3,keyasint"`
	Bytes       []byte        `cbor:"4,keyasint"`
	Defined     []bool        `cbor:"5,keyasint"`
	Relocations []Relocation  `cbor:"6,keyasint,omitempty"`
	Static      bool          `cbor:"7,keyasint,omitempty"`
	Immutable   bool          `cbor:"8,keyasint,omitempty"`
}

// Relocation records a pointer stored at Offset into allocation Target.
type Relocation struct {
	Offset uint64 `cbor:"1,keyasint"`
	Target uint64 `cbor:"2,keyasint"`
}

// Fn is a function allocation, rendered as the instance it calls.
type Fn struct {
	ID       uint64 `cbor:"1,keyasint"`
	Instance string `cbor:"2,keyasint"`
}

// Capture copies every allocation in mem.
func Capture(mem *vm.Memory) (*Image, error) {
	img := &Image{
		Version:     Version,
		Session:     mem.Session(),
		PointerSize: mem.PointerSize(),
		BigEndian:   mem.Endian() == vm.BigEndian,
	}
	for _, id := range mem.AllocIDs() {
		if inst, ok := mem.Fn(id); ok {
			img.Fns = append(img.Fns, Fn{ID: uint64(id), Instance: inst.String()})
			continue
		}
		a, err := mem.Get(id)
		if err != nil {
			return nil, fmt.Errorf("snapshot: capture %s: %w", id, err)
		}
		out := Alloc{
			ID:        uint64(id),
			Kind:      a.Kind,
			Align:     a.Align,
			Bytes:     append([]byte(nil), a.Bytes...),
			Defined:   append([]bool(nil), a.Defined...),
			Static:    a.Static,
			Immutable: a.Mutability == vm.Immutable,
		}
		for _, off := range a.RelocationOffsets() {
			out.Relocations = append(out.Relocations, Relocation{Offset: off, Target: uint64(a.Relocations[off])})
		}
		img.Allocs = append(img.Allocs, out)
	}
	return img, nil
}

// SessionID returns the session of the heap the image was taken from.
func (img *Image) SessionID() uuid.UUID {
	return uuid.UUID(img.Session)
}

func (img *Image) alloc(id uint64) *Alloc {
	for i := range img.Allocs {
		if img.Allocs[i].ID == id {
			return &img.Allocs[i]
		}
	}
	return nil
}

func (img *Image) fn(id uint64) (string, bool) {
	for _, f := range img.Fns {
		if f.ID == id {
			return f.Instance, true
		}
	}
	return "", false
}

// Vtable is a decoded vtable. Drop and vacant Methods entries are empty.
type Vtable struct {
	Drop    string
	Size    uint64
	Align   uint64
	Methods []string
}

// DecodeVtable reads the vtable stored in allocation id.
func (img *Image) DecodeVtable(id uint64) (*Vtable, error) {
	a := img.alloc(id)
	if a == nil {
		return nil, fmt.Errorf("snapshot: no allocation %d", id)
	}
	if a.Kind != vm.KindVtable {
		return nil, fmt.Errorf("snapshot: allocation %d is a %s block, not a vtable", id, a.Kind)
	}
	w := img.PointerSize
	if w == 0 || uint64(len(a.Bytes))%w != 0 || uint64(len(a.Bytes)) < 3*w {
		return nil, fmt.Errorf("snapshot: allocation %d has %d bytes, not a vtable of %d-byte words", id, len(a.Bytes), w)
	}
	relocs := make(map[uint64]uint64, len(a.Relocations))
	for _, r := range a.Relocations {
		relocs[r.Offset] = r.Target
	}

	// fnAt returns the instance behind the word at off, or "" for null.
	fnAt := func(off uint64) (string, error) {
		target, ok := relocs[off]
		if !ok {
			if bits := img.word(a, off); bits != 0 {
				return "", fmt.Errorf("snapshot: word at %d of allocation %d holds %#x, not a pointer", off, id, bits)
			}
			return "", nil
		}
		if bits := img.word(a, off); bits != 0 {
			return "", fmt.Errorf("snapshot: word at %d of allocation %d points %d bytes into function %d", off, id, bits, target)
		}
		inst, ok := img.fn(target)
		if !ok {
			return "", fmt.Errorf("snapshot: word at %d of allocation %d points to non-function %d", off, id, target)
		}
		return inst, nil
	}

	vt := &Vtable{Size: img.word(a, w), Align: img.word(a, 2*w)}
	var err error
	if vt.Drop, err = fnAt(0); err != nil {
		return nil, err
	}
	for off := 3 * w; off < uint64(len(a.Bytes)); off += w {
		m, err := fnAt(off)
		if err != nil {
			return nil, err
		}
		vt.Methods = append(vt.Methods, m)
	}
	return vt, nil
}

func (img *Image) word(a *Alloc, off uint64) uint64 {
	order := vm.LittleEndian.ByteOrder()
	if img.BigEndian {
		order = vm.BigEndian.ByteOrder()
	}
	b := a.Bytes[off : off+img.PointerSize]
	switch img.PointerSize {
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	}
	return order.Uint64(b)
}
