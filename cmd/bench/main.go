package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mirkobrombin/go-conc/v1/cache"
	"github.com/mirkobrombin/go-conc/v1/orderedset"
	"github.com/mirkobrombin/go-conc/v1/pool"
	"github.com/mirkobrombin/go-conc/v1/stack"
	"golang.org/x/sync/errgroup"
)

var (
	concurrency = flag.Int("c", 50, "Number of concurrent clients")
	operations  = flag.Int("n", 100000, "Operations per client")
	window      = flag.Duration("w", 100*time.Microsecond, "Elimination window")
	target      = flag.String("t", "stack", "Benchmark target: stack, treiber, set, cache, pool")
)

func main() {
	flag.Parse()

	runID := uuid.NewString()
	log.Printf("Run %s: target=%s clients=%d ops/client=%d", runID, *target, *concurrency, *operations)

	start := time.Now()
	var err error
	switch *target {
	case "stack":
		err = benchStack(stack.New[int](stack.WithWindow[int](*window)))
	case "treiber":
		err = benchStack(stack.NewTreiber[int]())
	case "set":
		err = benchSet()
	case "cache":
		err = benchCache()
	case "pool":
		err = benchPool()
	default:
		log.Fatalf("unknown target %q", *target)
	}
	if err != nil {
		log.Fatalf("benchmark failed: %v", err)
	}

	elapsed := time.Since(start)
	total := int64(*concurrency) * int64(*operations)
	log.Printf("Finished in %v", elapsed)
	log.Printf("Throughput: %.0f ops/sec", float64(total)/elapsed.Seconds())
}

func benchStack(s stack.Backend[int]) error {
	var g errgroup.Group
	for c := 0; c < *concurrency; c++ {
		g.Go(func() error {
			for i := 0; i < *operations; i++ {
				s.Push(i)
				s.Pop()
			}
			return nil
		})
	}
	return g.Wait()
}

func benchSet() error {
	set := orderedset.New[int]()
	var g errgroup.Group
	for c := 0; c < *concurrency; c++ {
		c := c
		g.Go(func() error {
			for i := 0; i < *operations; i++ {
				k := (c*31 + i) % 1024
				switch i % 3 {
				case 0:
					set.Insert(k)
				case 1:
					set.Contains(k)
				default:
					set.Remove(k)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func benchCache() error {
	ctx := context.Background()
	c := cache.New[int, int]()
	var g errgroup.Group
	for w := 0; w < *concurrency; w++ {
		g.Go(func() error {
			for i := 0; i < *operations; i++ {
				_, err := c.GetOrCompute(ctx, i%256, func(k int) (int, error) {
					return k * k, nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func benchPool() error {
	p := pool.New(*concurrency)
	for i := 0; i < *operations; i++ {
		p.Execute(func() {})
	}
	p.Join()
	return p.Close()
}
