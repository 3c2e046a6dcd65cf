package structures

import (
	"fmt"
	"sort"
)

// Pair is a key-value item used across the index data structures. Keys and
// values are both signed 64-bit integers: a column attribute and a RID.
type Pair struct {
	Key   int64
	Value int64
}

// HashMap is the unordered index structure. It shares its contract with
// BPlusTree: values are stored as lists per key so unique and non-unique
// modes behave uniformly. Range and extremum queries are full scans.
type HashMap struct {
	entries    map[int64][]int64
	uniqueKeys bool
	length     int
}

// NewHashMap creates an empty HashMap.
func NewHashMap(uniqueKeys bool) *HashMap {
	return &HashMap{entries: make(map[int64][]int64), uniqueKeys: uniqueKeys}
}

// Insert adds a (key, value) pair. Duplicate keys fail with ErrNonUniqueKey
// when the map was built with unique keys.
func (h *HashMap) Insert(key, value int64) error {
	if _, ok := h.entries[key]; ok && h.uniqueKeys {
		return fmt.Errorf("%w: %d", ErrNonUniqueKey, key)
	}
	h.entries[key] = append(h.entries[key], value)
	h.length++
	return nil
}

// BulkInsert inserts a batch of pairs one by one; the map has no cheaper
// construction path.
func (h *HashMap) BulkInsert(items []Pair) error {
	for _, it := range items {
		if err := h.Insert(it.Key, it.Value); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the values stored under key; empty when absent.
func (h *HashMap) Get(key int64) []int64 {
	values := h.entries[key]
	out := make([]int64, len(values))
	copy(out, values)
	return out
}

// GetRange returns every value whose key lies in [low, high], in no
// particular order.
func (h *HashMap) GetRange(low, high int64) []int64 {
	var out []int64
	for key, values := range h.entries {
		if key >= low && key <= high {
			out = append(out, values...)
		}
	}
	return out
}

// GetRangePairs is GetRange keeping the keys, sorted by key for stable
// output.
func (h *HashMap) GetRangePairs(low, high int64) []Pair {
	var out []Pair
	for key, values := range h.entries {
		if key >= low && key <= high {
			for _, v := range values {
				out = append(out, Pair{Key: key, Value: v})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Minimum returns the values under the smallest key, or nil when empty.
func (h *HashMap) Minimum() []int64 {
	first := true
	var minKey int64
	for key := range h.entries {
		if first || key < minKey {
			minKey = key
			first = false
		}
	}
	if first {
		return nil
	}
	return h.Get(minKey)
}

// Maximum returns the values under the largest key, or nil when empty.
func (h *HashMap) Maximum() []int64 {
	first := true
	var maxKey int64
	for key := range h.entries {
		if first || key > maxKey {
			maxKey = key
			first = false
		}
	}
	if first {
		return nil
	}
	return h.Get(maxKey)
}

// Contains reports whether key is present.
func (h *HashMap) Contains(key int64) bool {
	_, ok := h.entries[key]
	return ok
}

// Len returns the number of stored pairs (not distinct keys).
func (h *HashMap) Len() int {
	return h.length
}

// Keys returns the distinct keys in ascending order.
func (h *HashMap) Keys() []int64 {
	keys := make([]int64, 0, len(h.entries))
	for key := range h.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Items returns every (key, value) pair, flattened, sorted by key.
func (h *HashMap) Items() []Pair {
	out := make([]Pair, 0, h.length)
	for _, key := range h.Keys() {
		for _, v := range h.entries[key] {
			out = append(out, Pair{Key: key, Value: v})
		}
	}
	return out
}

// Remove deletes one (key, value) pair. Unique maps ignore value and drop
// the key outright. Missing keys (or missing values on non-unique maps) fail
// with ErrKeyNotFound.
func (h *HashMap) Remove(key, value int64) error {
	values, ok := h.entries[key]
	if !ok {
		return fmt.Errorf("%w: %d", ErrKeyNotFound, key)
	}
	if h.uniqueKeys {
		delete(h.entries, key)
		h.length--
		return nil
	}
	for i, v := range values {
		if v == value {
			h.entries[key] = append(values[:i], values[i+1:]...)
			if len(h.entries[key]) == 0 {
				delete(h.entries, key)
			}
			h.length--
			return nil
		}
	}
	return fmt.Errorf("%w: %d value %d", ErrKeyNotFound, key, value)
}

// Update moves a value from oldKey to newKey. If the insert under newKey
// fails with ErrNonUniqueKey the value is reinserted under oldKey and the
// error propagates, keeping the operation atomic.
func (h *HashMap) Update(oldKey, newKey, value int64) error {
	values := h.entries[oldKey]
	if len(values) == 0 {
		return fmt.Errorf("%w: %d", ErrKeyNotFound, oldKey)
	}
	if h.uniqueKeys {
		value = values[0]
	} else {
		found := false
		for _, v := range values {
			if v == value {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %d value %d", ErrKeyNotFound, oldKey, value)
		}
	}

	if err := h.Remove(oldKey, value); err != nil {
		return err
	}
	if err := h.Insert(newKey, value); err != nil {
		h.entries[oldKey] = append(h.entries[oldKey], value)
		h.length++
		return err
	}
	return nil
}
