// Package cuckoo implements a fixed-capacity key/value store backed by a
// cuckoo hash table. Every slot is preallocated at construction time; keys
// and values are embedded directly in their slot rather than referenced
// through a pointer, so slot storage is allocated once, at construction.
//
// A key has d candidate slots, computed from two seeded 64-bit hashes
// combined by enhanced double hashing. Insertion writes to the candidate
// already holding the same key if there is one, else to the first free (or
// logically expired) candidate; if none is free, one candidate's
// resident item is displaced to one of *its* other candidates, recursively,
// up to a bounded depth. Past that depth the resident item is evicted and
// overwritten, which bounds worst-case insertion work and doubles as the
// table's capacity-overflow eviction policy.
package cuckoo
