// Package protocol implements the memcached ASCII text wire format as a
// stateless codec: Parse consumes commands from a caller-owned byte buffer
// starting at a cursor, and the Write* functions serialize responses onto a
// caller-owned writer. Nothing in this package retains a reference to a
// connection or a socket; all state (the parser cursor, buffered bytes)
// lives with the caller, matching the storage-engine-agnostic, I/O-agnostic
// codec described for the server's request pipeline.
package protocol
