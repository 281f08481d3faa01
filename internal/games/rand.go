package games

import (
	cryptorand "crypto/rand"
	"math/rand/v2"
	"sync"
)

// Source is the uniform randomness used by outcome generation. Outcomes are
// always drawn server-side; nothing derived from client input may seed it.
type Source interface {
	Float64() float64
	IntN(n int) int
}

// lockedSource serializes access to a ChaCha8 generator so one Source can be
// shared by concurrent bet requests.
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rng.Float64()
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rng.IntN(n)
}

// NewSource returns a concurrency-safe Source seeded from crypto/rand.
func NewSource() Source {
	var seed [32]byte

	_, err := cryptorand.Read(seed[:])
	if err != nil {
		// crypto/rand never fails on supported platforms; if it does the
		// process must not keep generating outcomes.
		panic("games: seed outcome rng: " + err.Error())
	}

	return &lockedSource{rng: rand.New(rand.NewChaCha8(seed))}
}

// NewTestSource returns a deterministic Source for tests.
func NewTestSource(seed uint64) Source {
	return &lockedSource{rng: rand.New(rand.NewPCG(seed, seed))}
}
