package stack

import (
	"sync"
	"testing"
)

func TestTreiberLIFO(t *testing.T) {
	s := NewTreiber[int]()
	for i := 0; i < 100; i++ {
		s.Push(i)
	}
	for i := 99; i >= 0; i-- {
		v, ok := s.Pop()
		if !ok {
			t.Fatalf("expected value, stack empty at %d", i)
		}
		if v != i {
			t.Fatalf("expected %d, got %d", i, v)
		}
	}
	if _, ok := s.Pop(); ok {
		t.Fatalf("expected empty stack")
	}
}

func TestTreiberPopEmpty(t *testing.T) {
	s := NewTreiber[string]()
	if v, ok := s.Pop(); ok {
		t.Fatalf("expected empty, got %q", v)
	}
}

func TestTreiberBalance(t *testing.T) {
	const (
		threads = 8
		perG    = 1000
	)
	s := NewTreiber[int]()

	popped := make([][]int, threads)
	var wg sync.WaitGroup
	for g := 0; g < threads; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				s.Push(id*perG + i)
				if v, ok := s.Pop(); ok {
					popped[id] = append(popped[id], v)
				}
			}
		}(g)
	}
	wg.Wait()

	seen := make(map[int]int)
	for _, vs := range popped {
		for _, v := range vs {
			seen[v]++
		}
	}
	for {
		v, ok := s.Pop()
		if !ok {
			break
		}
		seen[v]++
	}
	if len(seen) != threads*perG {
		t.Fatalf("expected %d distinct values, got %d", threads*perG, len(seen))
	}
	for v, n := range seen {
		if n != 1 {
			t.Fatalf("value %d observed %d times", v, n)
		}
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty stack, len %d", s.Len())
	}
}
