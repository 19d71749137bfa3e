package bloom

import (
	"fmt"
	"testing"
)

func TestFilter_NoFalseNegatives(t *testing.T) {
	f := NewWithEstimates(10000, 0.001)
	for i := 0; i < 10000; i++ {
		f.AddString(fmt.Sprintf("MAC%08d", i))
	}
	for i := 0; i < 10000; i++ {
		if !f.ContainsString(fmt.Sprintf("MAC%08d", i)) {
			t.Fatalf("added item %d reported absent", i)
		}
	}
	if f.Count() != 10000 {
		t.Errorf("Count = %d, want 10000", f.Count())
	}
}

func TestFilter_FalsePositiveRateWithinBound(t *testing.T) {
	const n = 20000
	f := NewWithEstimates(n, 0.001)
	for i := 0; i < n; i++ {
		f.AddString(fmt.Sprintf("MAC%08d", i))
	}

	falsePositives := 0
	probes := 100000
	for i := n; i < n+probes; i++ {
		if f.ContainsString(fmt.Sprintf("MAC%08d", i)) {
			falsePositives++
		}
	}

	// Allow headroom over the 0.1% target for sampling noise.
	if rate := float64(falsePositives) / float64(probes); rate > 0.005 {
		t.Errorf("observed false positive rate %.4f exceeds bound", rate)
	}
	if est := f.FalsePositiveRate(); est <= 0 || est > 0.005 {
		t.Errorf("estimated false positive rate %.5f out of range", est)
	}
}

func TestFilter_TestAndAdd(t *testing.T) {
	f := NewWithEstimates(100, 0.001)
	if !f.TestAndAddString("MAC00000042") {
		t.Fatal("first insert should be admitted")
	}
	if f.TestAndAddString("MAC00000042") {
		t.Fatal("second insert of the same token should be rejected")
	}
	if f.Count() != 1 {
		t.Errorf("Count = %d, want 1", f.Count())
	}
}

func TestOptimalParameters(t *testing.T) {
	bits, hashes := OptimalParameters(1000000, 0.001)
	// ~14.38 bits per item and 10 hashes for p=0.001
	if bits < 14000000 || bits > 14500000 {
		t.Errorf("bits = %d, want ~14.38M", bits)
	}
	if hashes != 10 {
		t.Errorf("hashes = %d, want 10", hashes)
	}

	bits, hashes = OptimalParameters(0, 0)
	if bits < 64 || hashes < 1 {
		t.Errorf("defaults not applied: bits=%d hashes=%d", bits, hashes)
	}
}

func TestNew_RoundsToWords(t *testing.T) {
	f := New(100, 3)
	if f.NumBits() != 128 {
		t.Errorf("NumBits = %d, want 128", f.NumBits())
	}
	if f.NumHashes() != 3 {
		t.Errorf("NumHashes = %d, want 3", f.NumHashes())
	}
}
