//go:build !debug

package cuckoo

// checkInvariants is a no-op outside debug builds; the O(n) scan it would
// perform is too expensive to run on every mutation in production.
func (t *Table) checkInvariants() {}
