//go:build debug

package cuckoo

// checkInvariants asserts spec invariants 1-3: a key resides in at most one
// slot, and every occupied slot's key hashes to a candidate set that
// includes that slot's own index. Called after every mutating operation in
// debug builds; panics (rather than returning an error) because a broken
// invariant here means the table is already corrupted and further use is
// unsafe.
func (t *Table) checkInvariants() {
	seen := make(map[string]uint64, len(t.slots))
	for i := range t.slots {
		m := &t.slots[i]
		if !m.occupied {
			continue
		}
		if other, dup := seen[m.Key]; dup {
			panic("cuckoo: key " + m.Key + " resident in slots " + itoa(other) + " and " + itoa(uint64(i)))
		}
		seen[m.Key] = uint64(i)

		found := false
		for _, c := range t.candidates(m.Key) {
			if c == uint64(i) {
				found = true
				break
			}
		}
		if !found {
			panic("cuckoo: key " + m.Key + " resident in slot " + itoa(uint64(i)) + " which is not one of its candidates")
		}
	}
}
