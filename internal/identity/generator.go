// Package identity generates the meter identifiers for a run.
//
// Identifiers are sampled from a bounded integer domain and formatted as a
// fixed prefix plus a zero-padded number (MAC00012345). Candidates are
// admitted through a bloom filter instead of an exact set, so memory stays
// flat at roughly 14 bits per identifier for a 0.1% false positive rate.
package identity

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/arkilian/metergen/internal/bloom"
	merrors "github.com/arkilian/metergen/internal/errors"
)

// attemptsPerIdentifier bounds sampling to 10x the requested count.
const attemptsPerIdentifier = 10

// Format describes the fixed-width identifier token.
type Format struct {
	Prefix string
	Digits int
}

// DefaultFormat is MAC followed by eight digits.
var DefaultFormat = Format{Prefix: "MAC", Digits: 8}

// Token formats n as an identifier.
func (f Format) Token(n int64) string {
	return fmt.Sprintf("%s%0*d", f.Prefix, f.Digits, n)
}

// Matches reports whether tok has this format.
func (f Format) Matches(tok string) bool {
	if !strings.HasPrefix(tok, f.Prefix) {
		return false
	}
	digits := tok[len(f.Prefix):]
	if len(digits) != f.Digits {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}

// Options configures a Generator.
type Options struct {
	Format Format

	// DomainMax is the inclusive upper bound of sampled integers.
	DomainMax int64

	// FalsePositiveRate sizes the admission filter.
	FalsePositiveRate float64

	// Rand is the sampling source. A time-seeded PCG is used when nil.
	Rand *rand.Rand
}

// Stats describes one generation pass.
type Stats struct {
	Requested int
	Accepted  int
	Attempts  int
}

// FillRatio is Accepted/Requested.
func (s Stats) FillRatio() float64 {
	if s.Requested == 0 {
		return 1
	}
	return float64(s.Accepted) / float64(s.Requested)
}

// Underfilled reports whether fewer identifiers than requested were produced.
func (s Stats) Underfilled() bool {
	return s.Accepted < s.Requested
}

// Err returns an IDENTIFIER_UNDERFILL error when the pass came up short.
// Underfill is not fatal; callers log it and continue with what they got.
func (s Stats) Err() error {
	if !s.Underfilled() {
		return nil
	}
	return merrors.New(merrors.ErrCategoryGeneration, merrors.CodeIdentifierUnderfill,
		fmt.Sprintf("generated %d of %d identifiers after %d attempts", s.Accepted, s.Requested, s.Attempts)).
		WithDetails(map[string]interface{}{
			"requested":  s.Requested,
			"accepted":   s.Accepted,
			"attempts":   s.Attempts,
			"fill_ratio": s.FillRatio(),
		})
}

// Generator samples unique identifiers.
type Generator struct {
	opts Options
	rng  *rand.Rand
}

// NewGenerator creates a Generator.
func NewGenerator(opts Options) *Generator {
	if opts.Format.Prefix == "" && opts.Format.Digits == 0 {
		opts.Format = DefaultFormat
	}
	if opts.DomainMax <= 0 {
		opts.DomainMax = 31_000_000
	}
	if opts.FalsePositiveRate <= 0 || opts.FalsePositiveRate >= 1 {
		opts.FalsePositiveRate = 0.001
	}
	rng := opts.Rand
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &Generator{opts: opts, rng: rng}
}

// Generate returns up to count distinct identifiers in sampling order.
//
// Sampling stops after count acceptances or 10*count attempts, whichever
// comes first, so the result may be shorter than count when the domain is
// small relative to count. A false positive in the filter only costs a
// resample; it can never admit a duplicate.
func (g *Generator) Generate(count int) ([]string, Stats) {
	stats := Stats{Requested: count}
	if count <= 0 {
		return nil, stats
	}

	filter := bloom.NewWithEstimates(count, g.opts.FalsePositiveRate)
	ids := make([]string, 0, count)
	maxAttempts := attemptsPerIdentifier * count

	for len(ids) < count && stats.Attempts < maxAttempts {
		stats.Attempts++
		tok := g.opts.Format.Token(g.rng.Int64N(g.opts.DomainMax + 1))
		if filter.TestAndAddString(tok) {
			ids = append(ids, tok)
		}
	}

	stats.Accepted = len(ids)
	return ids, stats
}

// ParseToken returns the numeric part of an identifier.
func (f Format) ParseToken(tok string) (int64, error) {
	if !f.Matches(tok) {
		return 0, fmt.Errorf("identity: %q does not match %s%s", tok, f.Prefix, strings.Repeat("9", f.Digits))
	}
	return strconv.ParseInt(tok[len(f.Prefix):], 10, 64)
}
