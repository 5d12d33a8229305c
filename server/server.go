package server

import (
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/cuckoocache/slimcache/cuckoo"
	"github.com/cuckoocache/slimcache/log"
)

// Config sizes the listener and its worker pool. Field names track the
// configuration surface's option names directly (see internal/config).
type Config struct {
	Addr string

	Workers     int
	RingCap     int // ring_array_cap: per-worker hand-off channel capacity.
	ConnCap     int // tcp_poolsize: per-worker concurrently served connection cap.
	Backlog     int // tcp_backlog: stored only; net.Listen uses the OS default backlog.
	InBufSize   int // buf_init_size
	OutBufSize  int
	BufPoolSize int // buf_sock_poolsize: buffers per worker, per direction.

	IdleTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.RingCap <= 0 {
		c.RingCap = 128
	}
	if c.ConnCap <= 0 {
		c.ConnCap = 1024
	}
	if c.InBufSize <= 0 {
		c.InBufSize = 16 * (1 << 10)
	}
	if c.OutBufSize <= 0 {
		c.OutBufSize = 16 * (1 << 10)
	}
	if c.BufPoolSize <= 0 {
		c.BufPoolSize = c.ConnCap
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
}

// Server is the listener plus its fixed pool of worker reactors.
type Server struct {
	cfg     Config
	table   *cuckoo.Table
	log     log.Logger
	workers []*worker
	next    uint64 // round-robin cursor into workers, atomic.
}

// New builds a Server bound to table. Call Serve or ListenAndServe to run it.
func New(cfg Config, table *cuckoo.Table, logger log.Logger) *Server {
	cfg.setDefaults()
	if logger == nil {
		logger = log.NewLogger(log.ErrorLevel, os.Stderr)
	}
	s := &Server{cfg: cfg, table: table, log: logger}
	s.workers = make([]*worker, cfg.Workers)
	for i := range s.workers {
		s.workers[i] = newWorker(i, cfg, table, logger.WithFields(log.Fields{"worker": i}))
	}
	return s
}

// ListenAndServe binds cfg.Addr and serves until Accept fails permanently.
func (s *Server) ListenAndServe() error {
	addr := s.cfg.Addr
	if addr == "" {
		addr = ":11211"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve runs the accept loop against an already-bound listener. It starts
// every worker's dispatch loop, then blocks handing off accepted
// connections round-robin until Accept returns a non-temporary error.
func (s *Server) Serve(ln net.Listener) error {
	for _, w := range s.workers {
		go w.run()
	}

	var tempDelay time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); !(ok && ne.Temporary()) {
				return err
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if max := time.Second; tempDelay > max {
				tempDelay = max
			}
			s.log.Errorf("accept error: %v; retrying in %v", err, tempDelay)
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0
		s.handOff(c)
	}
}

// handOff distributes an accepted connection to the next worker's ring in
// round-robin order. A full ring means that worker has not yet taken its
// earlier hand-offs; per spec.md's back-pressure rule the connection is
// refused with an abrupt close rather than queued. A worker already at its
// connection cap drops connections itself, in worker.run.
func (s *Server) handOff(c net.Conn) {
	i := atomic.AddUint64(&s.next, 1) % uint64(len(s.workers))
	w := s.workers[i]
	select {
	case w.ring <- c:
	default:
		s.log.Warnf("worker %d ring full, dropping connection from %s", i, c.RemoteAddr())
		c.Close()
	}
}

// Close closes every worker's hand-off ring, which ends that worker's
// dispatch loop. Outstanding connections finish on their own; Close does not wait for
// them, matching spec.md's "outstanding responses for a closing connection
// are dropped" for a full server shutdown.
func (s *Server) Close() {
	for _, w := range s.workers {
		close(w.ring)
	}
}
