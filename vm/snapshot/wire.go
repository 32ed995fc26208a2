package snapshot

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Canonical mode keeps images byte-identical for identical heaps.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes an image to CBOR bytes.
func Marshal(img *Image) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// Unmarshal deserializes an image and checks its format version.
func Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal image: %w", err)
	}
	if img.Version != Version {
		return nil, fmt.Errorf("snapshot: unsupported image version %d", img.Version)
	}
	switch img.PointerSize {
	case 2, 4, 8:
	default:
		return nil, fmt.Errorf("snapshot: unsupported pointer size %d", img.PointerSize)
	}
	for _, a := range img.Allocs {
		if len(a.Defined) != len(a.Bytes) {
			return nil, fmt.Errorf("snapshot: allocation %d has %d bytes but %d definedness flags", a.ID, len(a.Bytes), len(a.Defined))
		}
		for _, r := range a.Relocations {
			if r.Offset+img.PointerSize > uint64(len(a.Bytes)) {
				return nil, fmt.Errorf("snapshot: allocation %d has a relocation past its end", a.ID)
			}
		}
	}
	return &img, nil
}
