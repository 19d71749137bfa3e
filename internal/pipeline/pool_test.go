package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool("write", 3)
	var inflight, peak atomic.Int32

	ctx := context.Background()
	handles := make([]*Handle, 0, 20)
	for i := 0; i < 20; i++ {
		h, err := p.Submit(ctx, func() error {
			n := inflight.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inflight.Add(-1)
			return nil
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		handles = append(handles, h)
	}
	p.Wait()

	if got := peak.Load(); got > 3 {
		t.Errorf("peak concurrency %d exceeds bound 3", got)
	}
	for i, h := range handles {
		select {
		case <-h.Done():
		default:
			t.Errorf("handle %d not resolved after Wait", i)
		}
	}
}

func TestPool_HandleCarriesError(t *testing.T) {
	p := NewPool("write", 2)
	boom := errors.New("boom")

	bad, err := p.Submit(context.Background(), func() error { return boom })
	if err != nil {
		t.Fatal(err)
	}
	good, err := p.Submit(context.Background(), func() error { return nil })
	if err != nil {
		t.Fatal(err)
	}

	if !errors.Is(bad.Wait(), boom) {
		t.Error("failing job should resolve with its error")
	}
	if good.Wait() != nil {
		t.Error("sibling job should be unaffected by a failure")
	}
}

func TestPool_SubmitCancelled(t *testing.T) {
	p := NewPool("upload", 1)
	release := make(chan struct{})
	if _, err := p.Submit(context.Background(), func() error { <-release; return nil }); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	ran := false
	h, err := p.Submit(ctx, func() error { ran = true; return nil })
	if err == nil || h != nil {
		t.Fatal("Submit on a saturated pool should fail once ctx ends")
	}

	close(release)
	p.Wait()
	if ran {
		t.Error("job must not run when Submit fails")
	}
}

func TestResolved(t *testing.T) {
	boom := errors.New("boom")
	if !errors.Is(Resolved(boom).Wait(), boom) {
		t.Error("Resolved handle should return its error")
	}
}
