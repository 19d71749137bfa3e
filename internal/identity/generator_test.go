package identity

import (
	"math/rand/v2"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	merrors "github.com/arkilian/metergen/internal/errors"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func TestFormat_TokenAndMatches(t *testing.T) {
	f := DefaultFormat
	if got := f.Token(42); got != "MAC00000042" {
		t.Errorf("Token(42) = %q", got)
	}
	if got := f.Token(31_000_000); got != "MAC31000000" {
		t.Errorf("Token(31000000) = %q", got)
	}

	valid := []string{"MAC00000000", "MAC12345678"}
	invalid := []string{"MAC1234567", "MAC123456789", "mac12345678", "MAC1234567a", "XYZ12345678", ""}
	for _, s := range valid {
		if !f.Matches(s) {
			t.Errorf("%q should match", s)
		}
	}
	for _, s := range invalid {
		if f.Matches(s) {
			t.Errorf("%q should not match", s)
		}
	}

	n, err := f.ParseToken("MAC00001234")
	if err != nil || n != 1234 {
		t.Errorf("ParseToken = %d, %v", n, err)
	}
	if _, err := f.ParseToken("nope"); err == nil {
		t.Error("ParseToken should reject malformed tokens")
	}
}

// TestProperty_GenerateUnique checks that for any requested count the result
// has no duplicates, is no longer than requested and is well formed.
func TestProperty_GenerateUnique(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("generated identifiers are unique and well formed", prop.ForAll(
		func(n int, seed uint64) bool {
			g := NewGenerator(Options{Format: DefaultFormat, DomainMax: 31_000_000, FalsePositiveRate: 0.001, Rand: seeded(seed)})
			ids, stats := g.Generate(n)

			if len(ids) > n || stats.Accepted != len(ids) || stats.Requested != n {
				return false
			}
			if stats.Attempts > 10*n {
				return false
			}
			seen := make(map[string]struct{}, len(ids))
			for _, id := range ids {
				if !DefaultFormat.Matches(id) {
					return false
				}
				if _, dup := seen[id]; dup {
					return false
				}
				seen[id] = struct{}{}
			}
			return true
		},
		gen.IntRange(1, 5000),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

func TestGenerate_FillsLargeDomain(t *testing.T) {
	g := NewGenerator(Options{Rand: seeded(7)})
	ids, stats := g.Generate(10000)
	if len(ids) != 10000 {
		t.Fatalf("expected a full fill from a 31M domain, got %d", len(ids))
	}
	if stats.Underfilled() || stats.Err() != nil {
		t.Errorf("unexpected underfill: %+v", stats)
	}
	if stats.FillRatio() != 1 {
		t.Errorf("FillRatio = %v", stats.FillRatio())
	}
}

func TestGenerate_UnderfillsSmallDomain(t *testing.T) {
	// Only 10 distinct tokens exist in [0, 9].
	g := NewGenerator(Options{Format: Format{Prefix: "M", Digits: 1}, DomainMax: 9, FalsePositiveRate: 0.001, Rand: seeded(3)})
	ids, stats := g.Generate(100)

	if len(ids) > 10 {
		t.Fatalf("cannot produce more than 10 unique ids, got %d", len(ids))
	}
	if stats.Attempts != 1000 {
		t.Errorf("attempt budget should be exhausted, got %d", stats.Attempts)
	}
	if !stats.Underfilled() {
		t.Fatal("expected underfill")
	}
	err := stats.Err()
	if merrors.GetCode(err) != merrors.CodeIdentifierUnderfill {
		t.Errorf("Err() code = %q", merrors.GetCode(err))
	}
}

func TestGenerate_NonPositiveCount(t *testing.T) {
	ids, stats := NewGenerator(Options{}).Generate(0)
	if len(ids) != 0 || stats.Attempts != 0 {
		t.Errorf("expected empty pass, got %d ids / %d attempts", len(ids), stats.Attempts)
	}
}
