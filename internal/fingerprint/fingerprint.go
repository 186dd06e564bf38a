// Package fingerprint computes 64-bit SimHash fingerprints for
// near-duplicate detection over free text. Two documents that share most
// of their tokens land within a few bits of each other, so duplicate
// checks reduce to a Hamming-distance comparison.
package fingerprint

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// Hash fingerprints text with word-level SimHash: each whitespace token
// is hashed with FNV-1a 64 and votes on every bit position (+1 where the
// token hash has a 1, -1 where it has a 0); positions with a positive
// tally set the corresponding fingerprint bit.
//
// Empty and whitespace-only input hash to 0.
func Hash(text string) uint64 {
	var weights [64]int

	for _, token := range strings.Fields(text) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()

		for bit := 0; bit < 64; bit++ {
			if sum&(1<<bit) != 0 {
				weights[bit]++
			} else {
				weights[bit]--
			}
		}
	}

	var fp uint64
	for bit := 0; bit < 64; bit++ {
		if weights[bit] > 0 {
			fp |= 1 << bit
		}
	}
	return fp
}

// Distance returns the Hamming distance between two fingerprints: the
// number of bit positions where they differ.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Near reports whether two fingerprints are within maxDistance bits of
// each other.
func Near(a, b uint64, maxDistance int) bool {
	return Distance(a, b) <= maxDistance
}
