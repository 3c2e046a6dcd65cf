package structures

import "math/rand"

// PolicyKind selects the priority-update rule a PriorityQueue applies when an
// existing key is pushed again. The queue evicts the lowest priority entry,
// so a rule that raises priorities on re-push behaves like LRU, one that
// lowers them like MRU, and so on.
type PolicyKind int

const (
	// PolicyLRU raises the priority of a re-pushed entry by one.
	PolicyLRU PolicyKind = iota
	// PolicyMRU lowers the priority of a re-pushed entry by one.
	PolicyMRU
	// PolicyZeroWeight leaves priorities untouched; entries of equal
	// priority are evicted in no defined order.
	PolicyZeroWeight
	// PolicyLeakyBucket decays every priority toward zero on each push and
	// refills a re-pushed entry up to the bucket capacity.
	PolicyLeakyBucket
	// PolicyInverseLeakyBucket is the mirror image of PolicyLeakyBucket with
	// negative ceilings.
	PolicyInverseLeakyBucket
	// PolicyStochastic assigns a uniform random priority in [Min, Max].
	PolicyStochastic
)

func (k PolicyKind) String() string {
	switch k {
	case PolicyLRU:
		return "LRU"
	case PolicyMRU:
		return "MRU"
	case PolicyZeroWeight:
		return "ZeroWeight"
	case PolicyLeakyBucket:
		return "LeakyBucket"
	case PolicyInverseLeakyBucket:
		return "InverseLeakyBucket"
	case PolicyStochastic:
		return "Stochastic"
	default:
		return "Unknown"
	}
}

// CachePolicy is a tagged variant: the kind plus the parameters the bucket
// and stochastic rules need. The zero value is a usable LRU policy; the
// queue applies the parameters as given and fills in no defaults.
type CachePolicy struct {
	Kind PolicyKind

	// BucketCapacity and BucketIncrement parameterize the leaky bucket
	// rules. Both default to 10.
	BucketCapacity  int
	BucketIncrement int

	// MinValue and MaxValue bound the stochastic rule (inclusive).
	MinValue int
	MaxValue int
}

// DefaultCachePolicy returns the LRU policy the buffer pool uses unless
// configured otherwise.
func DefaultCachePolicy() CachePolicy {
	return CachePolicy{Kind: PolicyLRU, BucketCapacity: 10, BucketIncrement: 10, MaxValue: 10}
}

// updatePriority computes the new priority for an entry that was pushed
// while already present.
func (p CachePolicy) updatePriority(old int) int {
	switch p.Kind {
	case PolicyLRU:
		return old + 1
	case PolicyMRU:
		return old - 1
	case PolicyZeroWeight:
		return old
	case PolicyLeakyBucket:
		return min(old+p.BucketIncrement, p.BucketCapacity)
	case PolicyInverseLeakyBucket:
		return max(old-p.BucketIncrement, -p.BucketCapacity)
	case PolicyStochastic:
		return p.MinValue + rand.Intn(p.MaxValue-p.MinValue+1)
	default:
		return old
	}
}
