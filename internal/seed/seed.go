// Package seed derives stable numeric seeds from identifiers.
package seed

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// Of hashes the parts (NUL separated) and returns the first eight bytes of
// the digest. The result is stable across processes and platforms.
func Of(parts ...string) uint64 {
	h := blake3.New()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.Write([]byte(p))
	}
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8])
}

// Phase maps a seed onto [0, 2π).
func Phase(s uint64) float64 {
	const twoPi = 6.283185307179586
	return float64(s%10000) / 10000 * twoPi
}
