package server

import (
	"bytes"
	"net"
	"strconv"
	"time"

	"github.com/rcrowley/go-metrics"

	"github.com/cuckoocache/slimcache/bufpool"
	"github.com/cuckoocache/slimcache/cuckoo"
	"github.com/cuckoocache/slimcache/log"
	"github.com/cuckoocache/slimcache/protocol"
)

const serverVersion = "1.0.0-slimcache"

type connState uint8

const (
	reading connState = iota
	processing
	writing
	closing
)

// conn is one accepted connection's state machine: input buffer with a
// parser cursor, output buffer, and a reference to the shared table. It is
// only ever driven by the single goroutine that owns it, so it needs no
// synchronization of its own.
type conn struct {
	rwc   net.Conn
	table *cuckoo.Table
	log   log.Logger
	cfg   Config

	inPool   *bufpool.Pool
	inHandle bufpool.Handle
	inBuf    []byte // grows past the pool's fixed size for oversize data blocks.
	pos, end int

	outPool   *bufpool.Pool
	outHandle bufpool.Handle
	out       *bytes.Buffer

	state connState
}

func newConn(rwc net.Conn, table *cuckoo.Table, inPool, outPool *bufpool.Pool, cfg Config, logger log.Logger) *conn {
	ih, ibuf := inPool.Get()
	oh, obuf := outPool.Get()
	return &conn{
		rwc:       rwc,
		table:     table,
		log:       logger,
		cfg:       cfg,
		inPool:    inPool,
		inHandle:  ih,
		inBuf:     ibuf,
		outPool:   outPool,
		outHandle: oh,
		out:       bytes.NewBuffer(obuf[:0]),
	}
}

func (c *conn) loop() {
	defer c.close()
	for {
		c.state = reading
		if err := c.fill(); err != nil {
			return
		}
		c.state = processing
		quit, err := c.drain()
		if err != nil {
			c.log.Debugf("connection error: %v", err)
			return
		}
		c.state = writing
		if err := c.flush(); err != nil {
			c.log.Debugf("write error: %v", err)
			return
		}
		if quit {
			return
		}
	}
}

// fill reads more bytes into inBuf, compacting already-consumed bytes out
// of the way first and growing the buffer if a pending frame (an oversize
// data block) does not fit in the pool's fixed buffer size.
func (c *conn) fill() error {
	if c.pos > 0 {
		c.end = copy(c.inBuf, c.inBuf[c.pos:c.end])
		c.pos = 0
	}
	if c.end == len(c.inBuf) {
		if len(c.inBuf) >= c.maxFrameSize() {
			return protocol.ErrTooLargeItem
		}
		grown := make([]byte, len(c.inBuf)*2)
		copy(grown, c.inBuf[:c.end])
		c.inBuf = grown
	}
	if c.cfg.IdleTimeout > 0 {
		c.rwc.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout))
	}
	n, err := c.rwc.Read(c.inBuf[c.end:])
	c.end += n
	if n == 0 && err != nil {
		return err
	}
	return nil
}

// maxFrameSize bounds how large fill will grow inBuf to accommodate one
// buffered frame: the table's own configured value-size cap plus slack for
// the command line, not the protocol-wide ceiling. A small cuckoo_item_size
// should not let a single connection balloon its buffer toward MaxItemSize
// just because a client declared a large nbytes.
func (c *conn) maxFrameSize() int {
	limit := c.table.MaxValueSize() + protocol.MaxCommandSize
	if limit <= 0 || limit > protocol.MaxItemSize {
		return protocol.MaxItemSize
	}
	return limit
}

// drain runs the codec over whatever is buffered, applying each fully
// parsed request in turn, until the codec asks for more bytes or a quit
// command is seen.
func (c *conn) drain() (quit bool, err error) {
	for c.pos < c.end {
		req, consumed, need, clientErr, perr := protocol.Parse(c.inBuf[c.pos:c.end], c.table.MaxValueSize())
		if need {
			return false, nil
		}
		if perr != nil {
			c.log.Debugf("protocol error: %v", perr)
			protocol.WriteError(c.out)
			c.pos += consumed
			continue
		}
		if clientErr != nil {
			c.pos += consumed
			if req.Bytes > 0 {
				// An oversize declared data block: its body was never fully
				// buffered, so drop it directly off the wire instead of
				// growing inBuf to hold it before discarding.
				if derr := c.discardBody(req.Bytes); derr != nil {
					return false, derr
				}
			}
			protocol.WriteClientError(c.out, clientErr)
			continue
		}
		if req.Command == protocol.Quit {
			c.pos += consumed
			return true, nil
		}
		c.apply(req)
		c.pos += consumed
	}
	return false, nil
}

// discardBody skips a rejected storage command's declared data block (n
// bytes plus its trailing separator) without ever buffering all of it:
// whatever already sits in inBuf is dropped in place, and anything still
// in flight is read straight off the connection into a small throwaway
// buffer instead of being appended to inBuf.
func (c *conn) discardBody(n int) error {
	remaining := n + len(protocol.Separator)
	if buffered := c.end - c.pos; buffered > 0 {
		if buffered > remaining {
			buffered = remaining
		}
		c.pos += buffered
		remaining -= buffered
	}
	var scratch [4096]byte
	for remaining > 0 {
		want := len(scratch)
		if remaining < want {
			want = remaining
		}
		if c.cfg.IdleTimeout > 0 {
			c.rwc.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout))
		}
		n, err := c.rwc.Read(scratch[:want])
		remaining -= n
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *conn) flush() error {
	if c.out.Len() == 0 {
		return nil
	}
	_, err := c.rwc.Write(c.out.Bytes())
	c.out.Reset()
	return err
}

func (c *conn) close() {
	c.state = closing
	c.inPool.Put(c.inHandle)
	c.outPool.Put(c.outHandle)
	c.rwc.Close()
}

// apply executes one parsed request against the table and appends its
// response to c.out, honoring NoReply.
func (c *conn) apply(req protocol.Request) {
	switch req.Command {
	case protocol.Get, protocol.Gets:
		c.applyRetrieval(req)
	case protocol.Set, protocol.Add, protocol.Replace, protocol.Cas:
		c.applyStorage(req)
	case protocol.Delete:
		res := c.table.Delete(req.Keys[0])
		if !req.NoReply {
			c.writeResult(res)
		}
	case protocol.Incr:
		c.applyDelta(req, c.table.Incr)
	case protocol.Decr:
		c.applyDelta(req, c.table.Decr)
	case protocol.Touch:
		res := c.table.Touch(req.Keys[0], c.absoluteExptime(req.Exptime))
		if !req.NoReply {
			c.writeResult(res)
		}
	case protocol.FlushAll:
		c.table.Flush(req.FlushDelay)
		if !req.NoReply {
			protocol.WriteOK(c.out)
		}
	case protocol.Stats:
		c.writeStats()
	case protocol.Version:
		protocol.WriteVersion(c.out, serverVersion)
	}
}

func (c *conn) applyRetrieval(req protocol.Request) {
	withCas := req.Command == protocol.Gets
	for _, key := range req.Keys {
		view, ok := c.table.Get(key)
		if !ok {
			continue
		}
		protocol.WriteValue(c.out, key, view.Flags, view.Value, view.Cas, withCas)
	}
	protocol.WriteEnd(c.out)
}

func (c *conn) applyStorage(req protocol.Request) {
	item := cuckoo.Item{
		ItemMeta: cuckoo.ItemMeta{
			Key:     req.Keys[0],
			Flags:   req.Flags,
			Exptime: c.absoluteExptime(req.Exptime),
		},
		Value: append([]byte(nil), req.Value...),
	}

	var res cuckoo.Result
	var err error
	switch req.Command {
	case protocol.Set:
		res, err = c.table.Set(item)
	case protocol.Add:
		res, err = c.table.Add(item)
	case protocol.Replace:
		res, err = c.table.Replace(item)
	case protocol.Cas:
		res, err = c.table.Cas(item, req.Cas)
	}
	if req.NoReply {
		return
	}
	if err != nil {
		protocol.WriteClientError(c.out, err)
		return
	}
	c.writeResult(res)
}

func (c *conn) applyDelta(req protocol.Request, op func(string, uint64) (uint64, cuckoo.Result, error)) {
	newValue, res, err := op(req.Keys[0], req.Delta)
	if req.NoReply {
		return
	}
	if err != nil {
		protocol.WriteClientError(c.out, err)
		return
	}
	if res == cuckoo.NotFound {
		protocol.WriteNotFound(c.out)
		return
	}
	protocol.WriteInteger(c.out, newValue)
}

func (c *conn) writeResult(res cuckoo.Result) {
	switch res {
	case cuckoo.Stored:
		protocol.WriteStored(c.out)
	case cuckoo.NotStored:
		protocol.WriteNotStored(c.out)
	case cuckoo.Exists:
		protocol.WriteExists(c.out)
	case cuckoo.NotFound:
		protocol.WriteNotFound(c.out)
	case cuckoo.Deleted:
		protocol.WriteDeleted(c.out)
	case cuckoo.Touched:
		protocol.WriteTouched(c.out)
	}
}

func (c *conn) writeStats() {
	c.table.Metrics().Each(func(name string, i interface{}) {
		counter, ok := i.(metrics.Counter)
		if !ok {
			return
		}
		protocol.WriteStat(c.out, name, strconv.FormatInt(counter.Count(), 10))
	})
	protocol.WriteEnd(c.out)
}

// absoluteExptime resolves a protocol-relative exptime (seconds from now)
// into the absolute unix timestamp cuckoo.ItemMeta stores, per memcached's
// convention that values beyond MaxRelativeExptime are already absolute.
func (c *conn) absoluteExptime(exptime int64) int64 {
	if exptime == 0 {
		return 0
	}
	if exptime <= protocol.MaxRelativeExptime {
		return time.Now().Unix() + exptime
	}
	return exptime
}
