package cuckoo

import (
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
)

const (
	// MaxKeySize is the largest key accepted by the table, matching the
	// memcached ASCII protocol's key length limit.
	MaxKeySize = 250

	// headerSize approximates the per-item metadata (flags, expiry, cas
	// stamp, length fields) that a preallocated slot must budget for
	// alongside key and value bytes when sizing cuckoo_item_size.
	headerSize = 32

	DefaultD    = 4
	DefaultDMax = 6
	MinDMax     = 4
	MaxDMax     = 8
)

var (
	ErrSlotTooSmall = errors.New("cuckoo_item_size too small to hold header and max key with a zero-length value")
	ErrKeyTooLarge  = errors.New("key exceeds max key size")
	ErrValueTooLarge = errors.New("value exceeds configured max value size")
	ErrInvalidD     = errors.New("d must be at least 2")
)

// Config sizes and tunes a Table. It is chosen once at startup; the table
// never resizes.
type Config struct {
	// ItemSize is the fixed byte budget per slot: header + max key + max
	// value. NewTable rejects a Config whose ItemSize cannot hold at
	// least a minimal header plus MaxKeySize plus a zero-length value.
	ItemSize int
	// NItem is the requested slot count. Rounded up to the next power of
	// two so hashing can mask instead of mod.
	NItem int
	// D is the number of independent candidate slots per key. Zero
	// selects DefaultD.
	D int
	// DMax bounds displacement chain depth. Zero selects DefaultDMax.
	DMax int
	// Policy selects the victim-selection rule used during displacement.
	Policy Policy
	// Cas enables per-item CAS stamping.
	Cas bool
}

// Table is a fixed-capacity cuckoo hash table. All exported methods are
// safe for concurrent use.
type Table struct {
	mu sync.RWMutex

	arena       []byte
	slots       []slotMeta
	mask        uint64
	perSlotKeys int
	maxValueLen int

	d          int
	dmax       int
	policy     Policy
	casEnabled bool
	casCounter uint64

	flushHorizon int64

	rand *rand.Rand
	now  func() int64

	registry        metrics.Registry
	hits            metrics.Counter
	misses          metrics.Counter
	evictions       metrics.Counter
	displacements   metrics.Counter
	casBumps        metrics.Counter
	expirations     metrics.Counter
}

type slotMeta struct {
	occupied bool
	ItemMeta
	valLen  int
	written int64 // Unix seconds of last write; compared against flushHorizon.
}

func (m slotMeta) expired(now int64) bool { return m.occupied && m.ItemMeta.expired(now) }

func nextPow2(n int) int {
	if n < 1 {
		n = 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// NewTable allocates a table per conf. The table's slot region is a single
// contiguous byte arena; keys and values are copied into their slot rather
// than referenced through a pointer.
func NewTable(conf Config) (*Table, error) {
	d := conf.D
	if d == 0 {
		d = DefaultD
	}
	if d < 2 {
		return nil, ErrInvalidD
	}
	dmax := conf.DMax
	if dmax == 0 {
		dmax = DefaultDMax
	}
	if dmax < MinDMax {
		dmax = MinDMax
	}
	if dmax > MaxDMax {
		dmax = MaxDMax
	}

	maxValueLen := conf.ItemSize - headerSize - MaxKeySize
	if maxValueLen < 0 {
		return nil, ErrSlotTooSmall
	}

	n := nextPow2(conf.NItem)
	perSlot := MaxKeySize + maxValueLen

	t := &Table{
		arena:       make([]byte, n*perSlot),
		slots:       make([]slotMeta, n),
		mask:        uint64(n - 1),
		perSlotKeys: perSlot,
		maxValueLen: maxValueLen,
		d:           d,
		dmax:        dmax,
		policy:      conf.Policy,
		casEnabled:  conf.Cas,
		rand:        newRand(),
		now:         func() int64 { return time.Now().Unix() },
		registry:    metrics.NewRegistry(),
	}
	t.hits = metrics.NewRegisteredCounter("cuckoo.hit", t.registry)
	t.misses = metrics.NewRegisteredCounter("cuckoo.miss", t.registry)
	t.evictions = metrics.NewRegisteredCounter("cuckoo.evict", t.registry)
	t.displacements = metrics.NewRegisteredCounter("cuckoo.displace", t.registry)
	t.casBumps = metrics.NewRegisteredCounter("cuckoo.cas_bump", t.registry)
	t.expirations = metrics.NewRegisteredCounter("cuckoo.expire", t.registry)
	return t, nil
}

// Metrics exposes the table's counters for an external reporter.
func (t *Table) Metrics() metrics.Registry { return t.registry }

// MaxValueSize returns the largest value the table can hold given its
// configured item size.
func (t *Table) MaxValueSize() int { return t.maxValueLen }

func (t *Table) slotKeyBytes(i uint64) []byte {
	off := int(i) * t.perSlotKeys
	return t.arena[off : off+MaxKeySize]
}

func (t *Table) slotValueBytes(i uint64) []byte {
	off := int(i)*t.perSlotKeys + MaxKeySize
	return t.arena[off : off+t.maxValueLen]
}

func (t *Table) slotKeyEqual(i uint64, key string) bool {
	m := &t.slots[i]
	if !m.occupied || len(key) != len(m.Key) {
		return false
	}
	kb := t.slotKeyBytes(i)
	for j := 0; j < len(key); j++ {
		if kb[j] != key[j] {
			return false
		}
	}
	return true
}

func (t *Table) writeSlot(i uint64, item Item) {
	m := &t.slots[i]
	copy(t.slotKeyBytes(i), item.Key)
	copy(t.slotValueBytes(i), item.Value)
	m.occupied = true
	m.Key = item.Key
	m.Flags = item.Flags
	m.Exptime = item.Exptime
	m.valLen = len(item.Value)
	m.written = t.now()
	if t.casEnabled {
		t.casCounter++
		m.Cas = t.casCounter
		t.casBumps.Inc(1)
	}
}

func (t *Table) clearSlot(i uint64) {
	t.slots[i] = slotMeta{}
}

func (t *Table) readView(i uint64) ItemView {
	m := t.slots[i]
	value := make([]byte, m.valLen)
	copy(value, t.slotValueBytes(i)[:m.valLen])
	return ItemView{ItemMeta: m.ItemMeta, Value: value}
}

// candidates returns the d candidate slot indices for key.
func (t *Table) candidates(key string) []uint64 {
	return candidateHashes(key, t.d, t.mask, make([]uint64, 0, t.d))
}

// belowFlushHorizon reports whether the item at slot i predates the last
// flush_all and should be treated as logically absent.
func (t *Table) belowFlushHorizon(i uint64) bool {
	if t.flushHorizon == 0 {
		return false
	}
	return t.slots[i].written <= t.flushHorizon
}

// findOccupied returns the candidate slot index holding key and unexpired,
// or ok=false. Must be called with at least a read lock held.
func (t *Table) findOccupied(key string, now int64) (idx uint64, ok bool) {
	var buf [8]uint64
	cands := candidateHashes(key, t.d, t.mask, buf[:0])
	for _, c := range cands {
		m := &t.slots[c]
		if !m.occupied {
			continue
		}
		if !t.slotKeyEqual(c, key) {
			continue
		}
		if m.expired(now) || t.belowFlushHorizon(c) {
			return 0, false
		}
		return c, true
	}
	return 0, false
}

// noExclude marks "no slot excluded" for insertDepth's exclude parameter;
// no real slot index can equal it since indices are masked to fewer bits.
const noExclude = ^uint64(0)

// insert writes item into the table, performing displacement as needed.
// Must be called with the write lock held.
func (t *Table) insert(item Item, now int64) {
	t.insertDepth(item, now, 0, noExclude)
}

// insertDepth tries item's candidate slots, displacing a victim and
// recursing on it if all are occupied. exclude is the slot the caller just
// evicted item's previous occupant from (or noExclude at the top level): a
// displaced item recurses only over its *other* candidate slots, not the
// one it was just displaced from, so it can't immediately re-select the
// item that displaced it as its own victim and swap back and forth
// burning depth without making progress.
func (t *Table) insertDepth(item Item, now int64, depth int, exclude uint64) {
	cands := t.candidates(item.Key)
	if exclude != noExclude {
		cands = excludeSlot(cands, exclude)
	}

	// 1: a same-key slot wins outright, so the key never ends up resident
	// in two slots; failing that, a free, expired or flushed slot does.
	for _, c := range cands {
		if t.slotKeyEqual(c, item.Key) {
			t.writeSlot(c, item)
			return
		}
	}
	for _, c := range cands {
		m := &t.slots[c]
		if !m.occupied || m.expired(now) || t.belowFlushHorizon(c) {
			if m.occupied && m.expired(now) {
				t.expirations.Inc(1)
			}
			t.writeSlot(c, item)
			return
		}
	}

	// 2: pick a victim among the occupied candidates.
	victim := t.choose(cands)

	if depth >= t.dmax {
		// 4: bounded work exceeded; evict the victim outright.
		t.evictions.Inc(1)
		t.writeSlot(victim, item)
		return
	}

	// 3: put our item in the victim's slot, then re-insert the victim's
	// item over its other candidates, with that slot excluded.
	evicted := Item{ItemMeta: t.slots[victim].ItemMeta, Value: append([]byte(nil), t.slotValueBytes(victim)[:t.slots[victim].valLen]...)}
	t.writeSlot(victim, item)
	t.displacements.Inc(1)
	t.insertDepth(evicted, now, depth+1, victim)
}

// excludeSlot removes slot from cands in place, returning the shortened
// slice. cands is always insertDepth's own private, just-allocated slice.
func excludeSlot(cands []uint64, slot uint64) []uint64 {
	out := cands[:0]
	for _, c := range cands {
		if c != slot {
			out = append(out, c)
		}
	}
	return out
}
