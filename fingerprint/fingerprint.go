// Package fingerprint computes and compares perceptual hashes: compact
// binary signatures of an image's coarse visual structure, robust to
// re-encoding and minor resizing, sensitive to layout changes.
package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	"math/bits"

	"github.com/corona10/goimagehash"
)

// Fingerprint is a fixed-length bit vector serialized as a hex string.
// Two fingerprints are only comparable when their bit lengths match.
type Fingerprint struct {
	hashBits []byte
}

// Compute produces a DCT-based 64-bit perceptual hash of the normalized
// image. Low-frequency structure only, so re-encoded or lightly resized
// copies of the same photo hash close together.
func Compute(img image.Image) (*Fingerprint, error) {
	if img == nil {
		return nil, fmt.Errorf("cannot fingerprint nil image")
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, fmt.Errorf("perceptual hash failed: %v", err)
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], hash.GetHash())
	return &Fingerprint{hashBits: buf[:]}, nil
}

// Parse reads a stored hex fingerprint of any (even) length. The bit
// length is implied by the string length, so hashes persisted by older
// builds with a different block size stay representable.
func Parse(s string) (*Fingerprint, error) {
	if s == "" {
		return nil, fmt.Errorf("empty fingerprint")
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("malformed fingerprint %q: %v", s, err)
	}
	return &Fingerprint{hashBits: raw}, nil
}

// String serializes the fingerprint for persistence.
func (f *Fingerprint) String() string {
	return hex.EncodeToString(f.hashBits)
}

// BitLen returns the number of bits in the fingerprint.
func (f *Fingerprint) BitLen() int {
	return len(f.hashBits) * 8
}

// Similarity returns a 0..1 score: 1 for identical structure, scaling
// down with Hamming distance. Absent fingerprints and bit-length
// mismatches score 0 rather than erroring.
func Similarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil {
		return 0
	}
	if len(a.hashBits) == 0 || len(a.hashBits) != len(b.hashBits) {
		return 0
	}

	distance := 0
	for i := range a.hashBits {
		distance += bits.OnesCount8(a.hashBits[i] ^ b.hashBits[i])
	}

	similarity := 1.0 - float64(distance)/float64(a.BitLen())
	if similarity < 0 {
		return 0
	}
	if similarity > 1 {
		return 1
	}
	return similarity
}
