package slots

import (
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
)

// Source supplies uniform random integers in [0, n).
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
}

// Seed is the 32-byte seed of a ChaCha8 generator.
type Seed [32]byte

// String returns the seed as hex, the form ParseSeed accepts.
func (s Seed) String() string {
	return hex.EncodeToString(s[:])
}

// RandomSeed draws a fresh seed from the operating system.
func RandomSeed() (Seed, error) {
	var s Seed
	if _, err := crand.Read(s[:]); err != nil {
		return Seed{}, fmt.Errorf("failed to read random seed: %w", err)
	}
	return s, nil
}

// ParseSeed accepts a 64-character hex seed as printed by Seed.String. Any other
// non-empty text is hashed into a seed, so operators can use a memorable phrase.
func ParseSeed(text string) (Seed, error) {
	if text == "" {
		return Seed{}, fmt.Errorf("seed must not be empty")
	}
	var s Seed
	if len(text) == hex.EncodedLen(len(s)) {
		if b, err := hex.DecodeString(text); err == nil {
			copy(s[:], b)
			return s, nil
		}
	}
	return Seed(sha256.Sum256([]byte(text))), nil
}

// NewSource returns a deterministic uniform source for seed.
func NewSource(seed Seed) *rand.Rand {
	return rand.New(rand.NewChaCha8(seed))
}

// Shuffle permutes s in place with the Fisher–Yates algorithm: walking from the last
// index down, each element is swapped with a uniformly chosen element at or before
// it. Given a uniform src, every permutation is equally likely.
func Shuffle[T any](s []T, src Source) {
	for i := len(s) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
