package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheSingleFlight(t *testing.T) {
	ctx := context.Background()
	c := New[string, int]()

	const callers = 50
	var runs atomic.Int64
	fn := func(string) (int, error) {
		runs.Add(1)
		time.Sleep(10 * time.Millisecond)
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, callers)
	for g := 0; g < callers; g++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrCompute(ctx, "key", fn)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results[i] = v
		}(g)
	}
	wg.Wait()

	if n := runs.Load(); n != 1 {
		t.Fatalf("computation ran %d times, expected 1", n)
	}
	for i, v := range results {
		if v != 42 {
			t.Fatalf("caller %d got %d, expected 42", i, v)
		}
	}
}

func TestCacheCrossKeyNonBlocking(t *testing.T) {
	ctx := context.Background()
	c := New[string, string]()

	slowStarted := make(chan struct{})
	slowRelease := make(chan struct{})
	slowDone := make(chan struct{})

	go func() {
		defer close(slowDone)
		_, _ = c.GetOrCompute(ctx, "slow", func(string) (string, error) {
			close(slowStarted)
			<-slowRelease
			return "slow", nil
		})
	}()

	<-slowStarted
	v, err := c.GetOrCompute(ctx, "fast", func(string) (string, error) {
		return "fast", nil
	})
	if err != nil || v != "fast" {
		t.Fatalf("fast call blocked or failed: %q, %v", v, err)
	}
	select {
	case <-slowDone:
		t.Fatalf("slow call finished before being released")
	default:
	}
	close(slowRelease)
	<-slowDone
}

func TestCacheMemoizes(t *testing.T) {
	ctx := context.Background()
	c := New[string, int]()
	var runs atomic.Int64
	fn := func(string) (int, error) {
		runs.Add(1)
		return 7, nil
	}
	for i := 0; i < 5; i++ {
		if v, err := c.GetOrCompute(ctx, "k", fn); err != nil || v != 7 {
			t.Fatalf("unexpected result: %d, %v", v, err)
		}
	}
	if n := runs.Load(); n != 1 {
		t.Fatalf("computation ran %d times, expected 1", n)
	}
	m := c.Metrics()
	if m.Hits != 4 || m.Misses != 1 || m.Pending != 0 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}

func TestCacheErrorPropagatesAndClears(t *testing.T) {
	ctx := context.Background()
	c := New[string, int]()
	boom := errors.New("boom")
	var runs atomic.Int64

	_, err := c.GetOrCompute(ctx, "k", func(string) (int, error) {
		runs.Add(1)
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	// The failure must not poison the key.
	v, err := c.GetOrCompute(ctx, "k", func(string) (int, error) {
		runs.Add(1)
		return 9, nil
	})
	if err != nil || v != 9 {
		t.Fatalf("retry failed: %d, %v", v, err)
	}
	if n := runs.Load(); n != 2 {
		t.Fatalf("expected 2 runs, got %d", n)
	}
}

func TestCacheWaiterRetriesAfterError(t *testing.T) {
	ctx := context.Background()
	c := New[string, int]()
	boom := errors.New("boom")

	winnerIn := make(chan struct{})
	go func() {
		_, _ = c.GetOrCompute(ctx, "k", func(string) (int, error) {
			close(winnerIn)
			time.Sleep(50 * time.Millisecond)
			return 0, boom
		})
	}()

	<-winnerIn
	// Joins the failing flight, then retries the claim itself.
	v, err := c.GetOrCompute(ctx, "k", func(string) (int, error) {
		return 5, nil
	})
	if err != nil || v != 5 {
		t.Fatalf("waiter retry failed: %d, %v", v, err)
	}
}

func TestCacheWaiterContextCancelled(t *testing.T) {
	c := New[string, int]()
	winnerIn := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = c.GetOrCompute(context.Background(), "k", func(string) (int, error) {
			close(winnerIn)
			<-release
			return 1, nil
		})
	}()
	<-winnerIn

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := c.GetOrCompute(ctx, "k", func(string) (int, error) {
		return 2, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(release)
}

func TestCachePanicUnblocksWaiters(t *testing.T) {
	ctx := context.Background()
	c := New[string, int]()

	winnerIn := make(chan struct{})
	go func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected the winner to observe the panic")
			}
		}()
		_, _ = c.GetOrCompute(ctx, "k", func(string) (int, error) {
			close(winnerIn)
			time.Sleep(20 * time.Millisecond)
			panic("kaput")
		})
	}()

	<-winnerIn
	v, err := c.GetOrCompute(ctx, "k", func(string) (int, error) {
		return 3, nil
	})
	if err != nil || v != 3 {
		t.Fatalf("waiter did not recover from panicked flight: %d, %v", v, err)
	}
}
