// Package server implements the event-driven I/O core: a listener that
// accepts connections and hands them off round-robin to a fixed pool of
// worker goroutines, each of which owns a disjoint set of connections and
// drives them against a shared cuckoo.Table through the protocol codec.
//
// There is no non-blocking socket layer here: Go's goroutine-per-connection
// model gives the same "many connections, few OS threads" property a
// hand-rolled epoll reactor would, at a fraction of the code, and blocking
// reads/writes suspend only the goroutine doing them, never a worker's
// other connections, which run on their own goroutines.
package server
