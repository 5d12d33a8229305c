package server

import (
	"net"

	"github.com/cuckoocache/slimcache/bufpool"
	"github.com/cuckoocache/slimcache/cuckoo"
	"github.com/cuckoocache/slimcache/log"
)

// worker owns a disjoint set of connections handed to it through ring by
// the listener's round-robin accept loop. It is not itself a single
// goroutine reactor: each connection it accepts runs its own short-lived
// goroutine, bounded by sem so the worker never serves more than ConnCap
// connections at once, its per-worker connection cap.
type worker struct {
	id     int
	ring   chan net.Conn
	sem    chan struct{}
	table   *cuckoo.Table
	log     log.Logger
	inPool  *bufpool.Pool
	outPool *bufpool.Pool
	cfg     Config
}

func newWorker(id int, cfg Config, table *cuckoo.Table, logger log.Logger) *worker {
	return &worker{
		id:      id,
		ring:    make(chan net.Conn, cfg.RingCap),
		sem:     make(chan struct{}, cfg.ConnCap),
		table:   table,
		log:     logger,
		inPool:  bufpool.New(cfg.InBufSize, cfg.BufPoolSize),
		outPool: bufpool.New(cfg.OutBufSize, cfg.BufPoolSize),
		cfg:     cfg,
	}
}

func (w *worker) run() {
	for c := range w.ring {
		select {
		case w.sem <- struct{}{}:
			go w.serve(c)
		default:
			w.log.Warnf("worker %d at connection cap, dropping connection from %s", w.id, c.RemoteAddr())
			c.Close()
		}
	}
}

func (w *worker) serve(c net.Conn) {
	defer func() { <-w.sem }()
	conn := newConn(c, w.table, w.inPool, w.outPool, w.cfg, w.log)
	conn.loop()
}
