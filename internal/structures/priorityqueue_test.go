package structures

import "testing"

func TestPriorityQueue_PushPopOrder(t *testing.T) {
	q := NewPriorityQueue[string, int](10)
	q.SetPolicy(CachePolicy{Kind: PolicyZeroWeight})

	q.Push("c", 3, 3)
	q.Push("a", 1, 1)
	q.Push("b", 2, 2)

	for _, want := range []string{"a", "b", "c"} {
		e := q.Pop()
		if e == nil || e.Key != want {
			t.Fatalf("pop = %v, want key %q", e, want)
		}
	}
	if e := q.Pop(); e != nil {
		t.Fatalf("pop on empty queue = %v, want nil", e)
	}
}

func TestPriorityQueue_EvictsLowestAtCapacity(t *testing.T) {
	q := NewPriorityQueue[int, int](2)
	q.SetPolicy(CachePolicy{Kind: PolicyLRU})

	if e := q.Push(1, 10, 0); e != nil {
		t.Fatalf("push below capacity evicted %v", e)
	}
	q.Push(2, 20, 0)
	// Touch key 1 so its priority rises above key 2.
	q.Push(1, 10, 0)

	evicted := q.Push(3, 30, 0)
	if evicted == nil || evicted.Key != 2 {
		t.Fatalf("evicted = %v, want key 2", evicted)
	}
	if !q.Contains(1) || !q.Contains(3) || q.Contains(2) {
		t.Fatalf("queue contents wrong after eviction")
	}
}

func TestPriorityQueue_RePushKeepsValue(t *testing.T) {
	q := NewPriorityQueue[string, int](4)
	q.Push("k", 42, 0)
	q.Push("k", 99, 0)

	if got := q.Get("k"); got == nil || got.Value != 42 {
		t.Fatalf("value after re-push = %v, want 42", got)
	}
	if q.Len() != 1 {
		t.Fatalf("len = %d, want 1", q.Len())
	}
}

func TestPriorityQueue_MRUEvictsRecent(t *testing.T) {
	q := NewPriorityQueue[int, int](2)
	q.SetPolicy(CachePolicy{Kind: PolicyMRU})

	q.Push(1, 0, 0)
	q.Push(2, 0, 0)
	q.Push(2, 0, 0) // 2 drops to priority -1

	evicted := q.Push(3, 0, 0)
	if evicted == nil || evicted.Key != 2 {
		t.Fatalf("evicted = %v, want key 2 under MRU", evicted)
	}
}

func TestPriorityQueue_LeakyBucketDecays(t *testing.T) {
	q := NewPriorityQueue[int, int](8)
	q.SetPolicy(CachePolicy{Kind: PolicyLeakyBucket, BucketCapacity: 5, BucketIncrement: 5})

	q.Push(1, 0, 3)
	q.Push(2, 0, 0) // decay: key 1 drops to 2
	if e := q.Get(1); e.Priority != 2 {
		t.Fatalf("priority after decay = %d, want 2", e.Priority)
	}

	q.Push(1, 0, 0) // decay to 1, then refill to min(1+5, 5)
	if e := q.Get(1); e.Priority != 5 {
		t.Fatalf("priority after refill = %d, want 5", e.Priority)
	}
}

func TestPriorityQueue_RemoveAndSetPriority(t *testing.T) {
	q := NewPriorityQueue[string, int](4)
	q.Push("a", 1, 5)
	q.Push("b", 2, 1)

	if !q.SetPriority("a", 0) {
		t.Fatal("SetPriority on present key failed")
	}
	if q.SetPriority("missing", 0) {
		t.Fatal("SetPriority on missing key succeeded")
	}
	if e := q.Pop(); e.Key != "a" {
		t.Fatalf("pop after SetPriority = %q, want a", e.Key)
	}

	if e := q.Remove("b"); e == nil || e.Value != 2 {
		t.Fatalf("remove = %v, want value 2", e)
	}
	if q.Len() != 0 {
		t.Fatalf("len after removals = %d, want 0", q.Len())
	}
}

func TestPriorityQueue_ItemsOrdered(t *testing.T) {
	q := NewPriorityQueue[int, int](8)
	q.Push(1, 0, 7)
	q.Push(2, 0, 3)
	q.Push(3, 0, 5)

	items := q.Items(true)
	if len(items) != 3 {
		t.Fatalf("items = %d entries, want 3", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i-1].Priority > items[i].Priority {
			t.Fatalf("ordered items out of order: %v", items)
		}
	}
	if len(q.Items(false)) != 3 {
		t.Fatal("unordered items incomplete")
	}
}
