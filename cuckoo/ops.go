package cuckoo

import (
	"strconv"

	"github.com/pkg/errors"
)

// Result is the semantic outcome of a mutating operation, distinct from a
// Go error: a NotStored/Exists/NotFound result is not a failure, it is the
// answer.
type Result uint8

const (
	Stored Result = iota
	NotStored
	Exists
	NotFound
	Deleted
	Touched
)

func (r Result) String() string {
	switch r {
	case Stored:
		return "stored"
	case NotStored:
		return "not_stored"
	case Exists:
		return "exists"
	case NotFound:
		return "not_found"
	case Deleted:
		return "deleted"
	case Touched:
		return "touched"
	default:
		return "unknown"
	}
}

var ErrNotNumeric = errors.New("value is not a decimal 64-bit unsigned integer")

func (t *Table) validate(item Item) error {
	if len(item.Key) == 0 || len(item.Key) > MaxKeySize {
		return ErrKeyTooLarge
	}
	if len(item.Value) > t.maxValueLen {
		return ErrValueTooLarge
	}
	return nil
}

// Get returns a snapshot of key's item, or ok=false on a miss (including a
// logically-expired or flushed item).
func (t *Table) Get(key string) (view ItemView, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	now := t.now()
	idx, found := t.findOccupied(key, now)
	if !found {
		t.misses.Inc(1)
		return ItemView{}, false
	}
	t.hits.Inc(1)
	return t.readView(idx), true
}

// Set unconditionally stores item.
func (t *Table) Set(item Item) (Result, error) {
	if err := t.validate(item); err != nil {
		return NotStored, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.checkInvariants()
	t.insert(item, t.now())
	return Stored, nil
}

// Add stores item only if key is absent (or expired/flushed).
func (t *Table) Add(item Item) (Result, error) {
	if err := t.validate(item); err != nil {
		return NotStored, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.checkInvariants()
	now := t.now()
	if _, found := t.findOccupied(item.Key, now); found {
		return NotStored, nil
	}
	t.insert(item, now)
	return Stored, nil
}

// Replace stores item only if key is present and unexpired.
func (t *Table) Replace(item Item) (Result, error) {
	if err := t.validate(item); err != nil {
		return NotStored, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.checkInvariants()
	now := t.now()
	if _, found := t.findOccupied(item.Key, now); !found {
		return NotStored, nil
	}
	t.insert(item, now)
	return Stored, nil
}

// Cas stores item only if the resident item's cas stamp equals token.
func (t *Table) Cas(item Item, token uint64) (Result, error) {
	if err := t.validate(item); err != nil {
		return NotStored, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.checkInvariants()
	now := t.now()
	idx, found := t.findOccupied(item.Key, now)
	if !found {
		return NotFound, nil
	}
	if t.slots[idx].Cas != token {
		return Exists, nil
	}
	t.insert(item, now)
	return Stored, nil
}

// Delete removes key if present.
func (t *Table) Delete(key string) Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.checkInvariants()
	now := t.now()
	idx, found := t.findOccupied(key, now)
	if !found {
		return NotFound
	}
	t.clearSlot(idx)
	return Deleted
}

// Touch updates a resident item's expiry without touching its value or CAS
// stamp. It is not one of spec.md §4.1's core storage-engine operations,
// but exists to serve the ASCII protocol's touch command (§4.2) without
// forcing a value round-trip through the caller.
func (t *Table) Touch(key string, exptime int64) Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.checkInvariants()
	now := t.now()
	idx, found := t.findOccupied(key, now)
	if !found {
		return NotFound
	}
	t.slots[idx].Exptime = exptime
	return Touched
}

// Incr adds delta to the stored value, parsed as an ASCII decimal uint64,
// wrapping on overflow per memcached convention. Decr saturates at zero.
// When err is non-nil, res is meaningless: err distinguishes a
// non-numeric stored value (ErrNotNumeric, a client error) from the
// NotFound result (a semantic outcome, not a failure).
func (t *Table) Incr(key string, delta uint64) (newValue uint64, res Result, err error) {
	return t.addDelta(key, delta, false)
}

func (t *Table) Decr(key string, delta uint64) (newValue uint64, res Result, err error) {
	return t.addDelta(key, delta, true)
}

func (t *Table) addDelta(key string, delta uint64, decr bool) (newValue uint64, res Result, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.checkInvariants()
	now := t.now()
	idx, found := t.findOccupied(key, now)
	if !found {
		return 0, NotFound, nil
	}
	m := &t.slots[idx]
	cur, perr := strconv.ParseUint(string(t.slotValueBytes(idx)[:m.valLen]), 10, 64)
	if perr != nil {
		return 0, 0, ErrNotNumeric
	}
	if decr {
		if delta >= cur {
			newValue = 0
		} else {
			newValue = cur - delta
		}
	} else {
		newValue = cur + delta // Wraps at 2^64 on overflow, per memcached.
	}
	item := Item{
		ItemMeta: m.ItemMeta,
		Value:    []byte(strconv.FormatUint(newValue, 10)),
	}
	if len(item.Value) > t.maxValueLen {
		return 0, 0, ErrValueTooLarge
	}
	t.writeSlot(idx, item)
	return newValue, Stored, nil
}

// Flush marks every item written at or before now+after as logically
// absent. O(1): reclamation happens lazily on next access or collision.
func (t *Table) Flush(afterSeconds int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flushHorizon = t.now() + afterSeconds
}
