// Package bloom provides a probabilistic set used to admit identifiers
// without keeping an exact set of every token generated.
package bloom

import (
	"math"
	"sync"

	"github.com/spaolacci/murmur3"
)

// Filter answers "possibly present" or "definitely absent".
// It never produces false negatives: once Add returns, Contains reports true.
type Filter struct {
	mu        sync.RWMutex
	bits      []uint64
	numBits   uint64
	numHashes uint64
	count     uint64
}

// New creates a Filter with the given number of bits and hash functions.
func New(numBits, numHashes int) *Filter {
	if numBits <= 0 {
		numBits = 1024
	}
	if numHashes <= 0 {
		numHashes = 7
	}

	// Round up to whole words.
	numWords := (numBits + 63) / 64

	return &Filter{
		bits:      make([]uint64, numWords),
		numBits:   uint64(numWords * 64),
		numHashes: uint64(numHashes),
	}
}

// NewWithEstimates sizes a Filter for expectedItems at the target false
// positive rate.
func NewWithEstimates(expectedItems int, targetFPR float64) *Filter {
	numBits, numHashes := OptimalParameters(expectedItems, targetFPR)
	return New(numBits, numHashes)
}

// OptimalParameters calculates bits and hash functions for n items at rate p:
//   - m = -n * ln(p) / (ln(2)^2)
//   - k = (m/n) * ln(2)
func OptimalParameters(expectedItems int, targetFPR float64) (numBits, numHashes int) {
	if expectedItems <= 0 {
		expectedItems = 1000
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}

	n := float64(expectedItems)
	m := -n * math.Log(targetFPR) / (math.Ln2 * math.Ln2)
	numBits = int(math.Ceil(m))
	numHashes = int(math.Ceil((m / n) * math.Ln2))

	if numBits < 64 {
		numBits = 64
	}
	if numHashes < 1 {
		numHashes = 1
	}
	return numBits, numHashes
}

// Add inserts item into the filter.
func (f *Filter) Add(item []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.add(item)
}

// Contains reports whether item might be in the filter.
func (f *Filter) Contains(item []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.contains(item)
}

// TestAndAdd inserts item unless it is possibly present already.
// It returns true when the item was absent and has now been added.
// The check and the insert happen under one lock so two callers racing on
// the same token cannot both be admitted.
func (f *Filter) TestAndAdd(item []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.contains(item) {
		return false
	}
	f.add(item)
	return true
}

// AddString is Add for string tokens.
func (f *Filter) AddString(s string) { f.Add([]byte(s)) }

// ContainsString is Contains for string tokens.
func (f *Filter) ContainsString(s string) bool { return f.Contains([]byte(s)) }

// TestAndAddString is TestAndAdd for string tokens.
func (f *Filter) TestAndAddString(s string) bool { return f.TestAndAdd([]byte(s)) }

func (f *Filter) add(item []byte) {
	h1, h2 := murmur3.Sum128(item)
	for i := uint64(0); i < f.numHashes; i++ {
		// Double hashing: h(i) = h1 + i*h2
		pos := (h1 + i*h2) % f.numBits
		f.bits[pos/64] |= 1 << (pos % 64)
	}
	f.count++
}

func (f *Filter) contains(item []byte) bool {
	h1, h2 := murmur3.Sum128(item)
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// NumBits returns the number of bits in the filter.
func (f *Filter) NumBits() int {
	return int(f.numBits)
}

// NumHashes returns the number of hash functions used.
func (f *Filter) NumHashes() int {
	return int(f.numHashes)
}

// Count returns the number of items added.
func (f *Filter) Count() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}

// FalsePositiveRate estimates the current rate from the fill level:
// (1 - e^(-k*n/m))^k
func (f *Filter) FalsePositiveRate() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.count == 0 {
		return 0
	}
	k := float64(f.numHashes)
	n := float64(f.count)
	m := float64(f.numBits)
	return math.Pow(1-math.Exp(-k*n/m), k)
}
