// Package bufpool provides a fixed-size arena of reusable I/O buffers.
// Unlike recycle.Pool (which serves variable-size chunks via sync.Pool and
// lets the GC reclaim what it doesn't hand back), bufpool serves
// fixed-size buffers from a preallocated slab and hands callers an index
// into that slab rather than a pointer, so a connection struct carries an
// int, never an alias into shared memory it doesn't own. The pool is
// bounded: once every buffer is checked out, Get blocks (or, with TryGet,
// reports failure) instead of growing, which is what lets buf_sock_poolsize
// and tcp_poolsize actually cap memory rather than merely hint at a size.
package bufpool
