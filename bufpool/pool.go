package bufpool

import (
	"github.com/pkg/errors"
)

// ErrPoolExhausted is returned by TryGet when every buffer is checked out.
var ErrPoolExhausted = errors.New("bufpool: exhausted")

// Handle is an index into a Pool's slab, from 0 to Cap()-1. Callers
// receive one from Get/TryGet and must return it exactly once via Put.
type Handle int

// Pool is a fixed-capacity slab of same-size byte buffers, addressed by
// index rather than pointer. Safe for concurrent use.
type Pool struct {
	bufSize int
	slab    [][]byte
	free    chan Handle
}

// New allocates a Pool of count buffers, each bufSize bytes.
func New(bufSize, count int) *Pool {
	if bufSize <= 0 {
		panic("bufpool: non-positive buffer size")
	}
	if count <= 0 {
		panic("bufpool: non-positive pool size")
	}
	p := &Pool{
		bufSize: bufSize,
		slab:    make([][]byte, count),
		free:    make(chan Handle, count),
	}
	for i := range p.slab {
		p.slab[i] = make([]byte, bufSize)
		p.free <- Handle(i)
	}
	return p
}

// BufSize returns the fixed size of every buffer in the pool.
func (p *Pool) BufSize() int { return p.bufSize }

// Cap returns the pool's total buffer count.
func (p *Pool) Cap() int { return len(p.slab) }

// Get blocks until a buffer is available and returns its handle and
// backing slice, reset to full length.
func (p *Pool) Get() (Handle, []byte) {
	h := <-p.free
	return h, p.slab[h][:p.bufSize]
}

// TryGet returns ErrPoolExhausted instead of blocking when no buffer is
// currently free.
func (p *Pool) TryGet() (Handle, []byte, error) {
	select {
	case h := <-p.free:
		return h, p.slab[h][:p.bufSize], nil
	default:
		return 0, nil, ErrPoolExhausted
	}
}

// At returns the buffer backing an already-checked-out handle.
func (p *Pool) At(h Handle) []byte { return p.slab[h] }

// Put returns a handle to the pool. Putting a handle not currently checked
// out corrupts the free list; callers must track ownership themselves, the
// same discipline recycle.Data.Recycle demands of its callers.
func (p *Pool) Put(h Handle) {
	p.free <- h
}
