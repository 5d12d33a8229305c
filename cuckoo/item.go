package cuckoo

// ItemMeta carries the client-visible attributes of an item, separate from
// its value bytes so callers can inspect a hit without copying the value.
type ItemMeta struct {
	Key     string
	Flags   uint32
	Exptime int64 // Absolute unix seconds. Zero means "never expires".
	Cas     uint64
}

func (m ItemMeta) expired(now int64) bool {
	return m.Exptime != 0 && m.Exptime <= now
}

// Item is the unit of storage passed into Set/Add/Replace/Cas.
type Item struct {
	ItemMeta
	Value []byte
}

// ItemView is a snapshot returned by Get. Value is a copy, safe to retain
// after the call returns and independent of further table mutation.
type ItemView struct {
	ItemMeta
	Value []byte
}
