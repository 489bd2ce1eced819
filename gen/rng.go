package gen

import (
	"hash/fnv"
	"math/rand"
)

// Seed identifies a reproducible generation run. Two runs with the same Seed
// and identical configuration must produce identical output.
type Seed int64

// Derive returns a seed for the named stream, isolated from every other
// stream derived from the same master seed.
func (s Seed) Derive(name string) int64 {
	return int64(s) ^ fnv1a64(name)
}

// Rand returns a fresh RNG for the named stream.
func (s Seed) Rand(name string) *rand.Rand {
	return rand.New(rand.NewSource(s.Derive(name)))
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
