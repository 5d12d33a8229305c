package protocol

import (
	"github.com/facebookgo/stackerr"
	"github.com/pkg/errors"
)

const (
	MaxKeySize         = 250
	MaxItemSize        = 128 * (1 << 20) // 128 MB.
	DefaultMaxItemSize = 1 << 20
	MaxCommandSize     = 1 << 12

	// MaxRelativeExptime is the boundary the memcached protocol uses to
	// distinguish a relative expiry (seconds from now) from an absolute
	// unix timestamp.
	MaxRelativeExptime = 60 * 60 * 24 * 30 // 30 days.

	Separator = "\r\n"
)

// Command identifies the parsed command kind of a Request.
type Command uint8

const (
	Get Command = iota
	Gets
	Set
	Add
	Replace
	Cas
	Delete
	Incr
	Decr
	Touch
	FlushAll
	Stats
	Version
	Quit
)

var commandNames = map[string]Command{
	"get":       Get,
	"gets":      Gets,
	"set":       Set,
	"add":       Add,
	"replace":   Replace,
	"cas":       Cas,
	"delete":    Delete,
	"incr":      Incr,
	"decr":      Decr,
	"touch":     Touch,
	"flush_all": FlushAll,
	"stats":     Stats,
	"version":   Version,
	"quit":      Quit,
}

var notSupportedCommands = map[string]bool{
	"append":  true,
	"prepend": true,
}

func (c Command) String() string {
	for name, cmd := range commandNames {
		if cmd == c {
			return name
		}
	}
	return "unknown"
}

var (
	ErrTooLargeKey          = errors.New("too large key")
	ErrTooLargeItem         = errors.New("too large item")
	ErrInvalidOption        = errors.New("invalid option")
	ErrTooManyFields        = errors.New("too many fields")
	ErrMoreFieldsRequired   = errors.New("more fields required")
	ErrTooLargeCommand      = errors.New("command length is too big")
	ErrEmptyCommand         = errors.New("empty command")
	ErrFieldsParseError     = errors.New("fields parse error")
	ErrInvalidLineSeparator = errors.New("invalid line separator")
	ErrInvalidCharInKey     = errors.New("key contains invalid characters")
	ErrUnknownCommand       = errors.New("unknown command")
	ErrNotSupported         = errors.New("not supported")
)

// Request is a fully parsed command, produced by Parse. Value, when set,
// aliases the caller's input buffer and is only valid until the caller
// reuses or overwrites that buffer.
type Request struct {
	Command    Command
	Keys       []string
	Flags      uint32
	Exptime    int64
	Bytes      int
	Value      []byte
	Cas        uint64
	Delta      uint64
	FlushDelay int64
	NoReply    bool
}

func isInvalidFieldChar(b byte) bool {
	return b <= ' ' || b == 127
}

func checkKey(p []byte) error {
	if len(p) == 0 {
		return stackerr.Wrap(ErrMoreFieldsRequired)
	}
	if len(p) > MaxKeySize {
		return stackerr.Wrap(ErrTooLargeKey)
	}
	for _, b := range p {
		if isInvalidFieldChar(b) {
			return stackerr.Wrap(ErrInvalidCharInKey)
		}
	}
	return nil
}
