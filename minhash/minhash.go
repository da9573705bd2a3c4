// Package minhash estimates Jaccard similarity between integer sets with
// fixed-size MinHash signatures. Signatures are cheap to compare and compose
// well with an index keyed by signature components.
package minhash

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/spaolacci/murmur3"
)

// mersennePrime is the modulus of the universal hash family. Multiplying and
// adding below it never overflows uint64.
const mersennePrime = (1 << 31) - 1

var (
	// ErrSignatureMismatch is returned when two signatures of different
	// lengths (or from differently seeded families) are compared.
	ErrSignatureMismatch = errors.New("minhash: signature length mismatch")
)

// MinHash is a family of numHashes universal hash functions
// h_i(x) = (a_i*x + b_i) mod 2^31-1. Two instances built with the same size
// and seed produce comparable signatures.
type MinHash struct {
	a, b []uint64
}

// New creates a hash family of the given size, derived deterministically from
// seed.
func New(numHashes int, seed int64) (*MinHash, error) {
	if numHashes < 1 {
		return nil, fmt.Errorf("minhash: number of hashes must be positive, got %d", numHashes)
	}

	rng := rand.New(rand.NewSource(seed))

	m := &MinHash{
		a: make([]uint64, numHashes),
		b: make([]uint64, numHashes),
	}
	for i := 0; i < numHashes; i++ {
		// a must be non-zero or h_i collapses to a constant.
		m.a[i] = uint64(rng.Int63n(mersennePrime-1)) + 1
		m.b[i] = uint64(rng.Int63n(mersennePrime))
	}

	return m, nil
}

// Size returns the number of hash functions, which is the signature length.
func (m *MinHash) Size() int {
	return len(m.a)
}

// Signature computes the MinHash signature of the set: per hash function, the
// minimum hash value over all elements. An empty set maps to the all-max
// signature.
func (m *MinHash) Signature(set map[uint32]struct{}) []uint32 {
	sig := make([]uint32, len(m.a))
	for i := range sig {
		sig[i] = mersennePrime
	}

	for x := range set {
		for i := range m.a {
			h := uint32((m.a[i]*uint64(x) + m.b[i]) % mersennePrime)
			if h < sig[i] {
				sig[i] = h
			}
		}
	}

	return sig
}

// Similarity estimates the Jaccard similarity of the sets behind two
// signatures as the fraction of matching components.
func (m *MinHash) Similarity(sig1, sig2 []uint32) (float64, error) {
	if len(sig1) != len(m.a) || len(sig2) != len(m.a) {
		return 0, ErrSignatureMismatch
	}

	matches := 0
	for i := range sig1 {
		if sig1[i] == sig2[i] {
			matches++
		}
	}

	return float64(matches) / float64(len(sig1)), nil
}

// HashToken maps an arbitrary token into the element universe.
func HashToken(token string) uint32 {
	return murmur3.Sum32([]byte(token)) % mersennePrime
}

// Shingles builds the set of hashed k-character shingles of text. Texts
// shorter than k yield a single shingle covering the whole text.
func Shingles(text string, k int) map[uint32]struct{} {
	set := make(map[uint32]struct{})
	if len(text) <= k {
		set[HashToken(text)] = struct{}{}
		return set
	}
	for i := 0; i+k <= len(text); i++ {
		set[HashToken(text[i:i+k])] = struct{}{}
	}
	return set
}

// ToSet converts a slice of elements into the set form Signature consumes.
func ToSet(elems []uint32) map[uint32]struct{} {
	set := make(map[uint32]struct{}, len(elems))
	for _, e := range elems {
		set[e] = struct{}{}
	}
	return set
}
