package queue

import (
	"sync"
	"testing"
)

func TestPriorityOrder(t *testing.T) {
	pq := NewPriorityQueue[string]()
	pq.Enqueue("low", 10)
	pq.Enqueue("high", 1)
	pq.Enqueue("mid", 5)

	want := []string{"high", "mid", "low"}
	for _, w := range want {
		got, ok := pq.Dequeue()
		if !ok {
			t.Fatal("Dequeue() returned empty queue")
		}
		if got != w {
			t.Errorf("Dequeue() = %q, want %q", got, w)
		}
	}

	if _, ok := pq.Dequeue(); ok {
		t.Error("Dequeue() on empty queue should return false")
	}
}

func TestEqualPrioritiesAreFIFO(t *testing.T) {
	pq := NewPriorityQueue[int]()
	for i := 0; i < 100; i++ {
		pq.Enqueue(i, 3)
	}

	values := pq.DequeueAll()
	if len(values) != 100 {
		t.Fatalf("DequeueAll() returned %d items, want 100", len(values))
	}
	for i, v := range values {
		if v != i {
			t.Fatalf("DequeueAll()[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestLen(t *testing.T) {
	pq := NewPriorityQueue[int]()
	if pq.Len() != 0 {
		t.Errorf("Len() = %d, want 0", pq.Len())
	}
	pq.Enqueue(1, 1)
	pq.Enqueue(2, 2)
	if pq.Len() != 2 {
		t.Errorf("Len() = %d, want 2", pq.Len())
	}
	pq.Dequeue()
	if pq.Len() != 1 {
		t.Errorf("Len() = %d, want 1", pq.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	pq := NewPriorityQueue[int]()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				pq.Enqueue(base*50+j, j%5)
			}
		}(i)
	}
	wg.Wait()

	if pq.Len() != 400 {
		t.Fatalf("Len() = %d, want 400", pq.Len())
	}

	seen := make(map[int]bool, 400)
	for {
		v, ok := pq.Dequeue()
		if !ok {
			break
		}
		if seen[v] {
			t.Fatalf("value %d dequeued twice", v)
		}
		seen[v] = true
	}
	if len(seen) != 400 {
		t.Errorf("dequeued %d unique values, want 400", len(seen))
	}
}
