package cuckoo

import "math/rand"

// Policy selects which resident candidate becomes the victim of a
// displacement when an insertion finds all of its candidate slots occupied.
type Policy uint8

const (
	// Random picks a uniformly random occupied candidate.
	Random Policy = iota
	// ExpireFirst prefers the candidate with the nearest expiry (ties
	// broken by earliest position in the candidate list), falling back to
	// Random when every candidate never expires.
	ExpireFirst
)

func (p Policy) String() string {
	switch p {
	case Random:
		return "random"
	case ExpireFirst:
		return "expire-first"
	default:
		return "unknown"
	}
}

// ParsePolicy accepts the values recognized by the cuckoo_policy
// configuration option.
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "random":
		return Random, true
	case "expire-first":
		return ExpireFirst, true
	default:
		return 0, false
	}
}

// choose returns the slot index, taken from candidates, of the slot to
// displace. candidates are all occupied slot indices at this point.
func (t *Table) choose(candidates []uint64) uint64 {
	switch t.policy {
	case ExpireFirst:
		best := candidates[0]
		bestExptime := t.slots[best].Exptime
		hasNeverExpiring := bestExptime == 0
		for _, c := range candidates[1:] {
			e := t.slots[c].Exptime
			if e == 0 {
				continue // Never-expiring candidates are the worst victims; skip unless all are.
			}
			if hasNeverExpiring || e < bestExptime {
				best, bestExptime, hasNeverExpiring = c, e, false
			}
		}
		if hasNeverExpiring {
			return candidates[t.rand.Intn(len(candidates))]
		}
		return best
	default:
		return candidates[t.rand.Intn(len(candidates))]
	}
}

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(rand.Int63()))
}
