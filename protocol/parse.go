package protocol

import (
	"bytes"
	"strconv"

	"github.com/facebookgo/stackerr"
)

var separatorBytes = []byte(Separator)

// Parse consumes one command from buf starting at offset 0. It returns
// exactly one of:
//   - need=true: buf does not yet hold a complete frame; the caller should
//     read more bytes and call Parse again from the same offset (consumed
//     is always 0 in this case).
//   - a non-nil clientErr: the frame was malformed in a way the protocol
//     defines a CLIENT_ERROR for (oversize field, bad option, non-numeric
//     field, unsupported command); consumed bytes should still be dropped
//     from the caller's buffer to resynchronize.
//   - a non-nil err: the frame was unparseable garbage (empty line, unknown
//     command); consumed bytes should be dropped the same way.
//   - a populated Request with consumed set to the number of bytes to
//     advance the cursor by.
//
// Request.Value, when non-nil, aliases buf[:consumed] and must be copied by
// the caller before buf is reused.
//
// maxValueSize additionally bounds a storage command's declared data block,
// on top of the protocol-wide MaxItemSize ceiling: callers pass their
// cache's actual configured capacity so an oversize declared size is
// rejected without ever having to buffer it. maxValueSize <= 0 means no
// additional bound beyond MaxItemSize.
func Parse(buf []byte, maxValueSize int) (req Request, consumed int, need bool, clientErr, err error) {
	idx := bytes.Index(buf, separatorBytes)
	if idx < 0 {
		if len(buf) < MaxCommandSize {
			need = true
			return
		}
		// No line terminator within a command-size worth of bytes: this is
		// not a well-formed stream. Resync on whatever newline (if any) we
		// can find; otherwise drop everything buffered so far.
		if nl := bytes.IndexByte(buf, '\n'); nl >= 0 {
			clientErr = stackerr.Wrap(ErrTooLargeCommand)
			consumed = nl + 1
			return
		}
		clientErr = stackerr.Wrap(ErrTooLargeCommand)
		consumed = len(buf)
		return
	}

	line := buf[:idx]
	lineConsumed := idx + len(separatorBytes)
	fields := bytes.Fields(line)
	if len(fields) == 0 {
		err = stackerr.Wrap(ErrEmptyCommand)
		consumed = lineConsumed
		return
	}

	name := string(fields[0])
	args := fields[1:]

	if notSupportedCommands[name] {
		clientErr = stackerr.Wrap(ErrNotSupported)
		consumed = lineConsumed
		return
	}

	cmd, ok := commandNames[name]
	if !ok {
		err = stackerr.Wrap(ErrUnknownCommand)
		consumed = lineConsumed
		return
	}

	switch cmd {
	case Get, Gets:
		return parseRetrieval(cmd, args, lineConsumed)
	case Delete:
		return parseDelete(args, lineConsumed)
	case Incr, Decr:
		return parseDelta(cmd, args, lineConsumed)
	case Touch:
		return parseTouch(args, lineConsumed)
	case FlushAll:
		return parseFlushAll(args, lineConsumed)
	case Stats, Version, Quit:
		if len(args) != 0 && cmd != Stats {
			clientErr = stackerr.Wrap(ErrTooManyFields)
			consumed = lineConsumed
			return
		}
		req.Command = cmd
		consumed = lineConsumed
		return
	case Set, Add, Replace, Cas:
		return parseStorage(cmd, args, buf, lineConsumed, maxValueSize)
	default:
		err = stackerr.Wrap(ErrUnknownCommand)
		consumed = lineConsumed
		return
	}
}

// splitKeyFields extracts key, a fixed count of extra numeric fields, and an
// optional trailing "noreply" token from a command's argument fields.
func splitKeyFields(fields [][]byte, extraRequired int) (key []byte, extra [][]byte, noreply bool, err error) {
	if len(fields) < 1+extraRequired {
		err = stackerr.Wrap(ErrMoreFieldsRequired)
		return
	}
	key = fields[0]
	extra = fields[1:][:extraRequired]
	options := fields[1:][extraRequired:]
	const maxOptions = 1
	if len(options) > maxOptions {
		err = stackerr.Wrap(ErrTooManyFields)
		return
	}
	if len(options) != 0 {
		if string(options[0]) != "noreply" {
			err = stackerr.Wrap(ErrInvalidOption)
			return
		}
		noreply = true
	}
	return
}

func parseUints(fields [][]byte, bits int) ([]uint64, error) {
	out := make([]uint64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(string(f), 10, bits)
		if err != nil {
			return nil, stackerr.Wrap(ErrFieldsParseError)
		}
		out[i] = v
	}
	return out, nil
}

func parseRetrieval(cmd Command, args [][]byte, lineConsumed int) (req Request, consumed int, need bool, clientErr, err error) {
	consumed = lineConsumed
	if len(args) == 0 {
		clientErr = stackerr.Wrap(ErrMoreFieldsRequired)
		return
	}
	keys := make([]string, 0, len(args))
	for _, f := range args {
		if kerr := checkKey(f); kerr != nil {
			clientErr = kerr
			return
		}
		keys = append(keys, string(f))
	}
	req.Command = cmd
	req.Keys = keys
	return
}

func parseDelete(args [][]byte, lineConsumed int) (req Request, consumed int, need bool, clientErr, err error) {
	consumed = lineConsumed
	key, _, noreply, perr := splitKeyFields(args, 0)
	if perr != nil {
		clientErr = perr
		return
	}
	if kerr := checkKey(key); kerr != nil {
		clientErr = kerr
		return
	}
	req.Command = Delete
	req.Keys = []string{string(key)}
	req.NoReply = noreply
	return
}

func parseDelta(cmd Command, args [][]byte, lineConsumed int) (req Request, consumed int, need bool, clientErr, err error) {
	consumed = lineConsumed
	key, extra, noreply, perr := splitKeyFields(args, 1)
	if perr != nil {
		clientErr = perr
		return
	}
	if kerr := checkKey(key); kerr != nil {
		clientErr = kerr
		return
	}
	nums, perr := parseUints(extra, 64)
	if perr != nil {
		clientErr = perr
		return
	}
	req.Command = cmd
	req.Keys = []string{string(key)}
	req.Delta = nums[0]
	req.NoReply = noreply
	return
}

func parseTouch(args [][]byte, lineConsumed int) (req Request, consumed int, need bool, clientErr, err error) {
	consumed = lineConsumed
	key, extra, noreply, perr := splitKeyFields(args, 1)
	if perr != nil {
		clientErr = perr
		return
	}
	if kerr := checkKey(key); kerr != nil {
		clientErr = kerr
		return
	}
	nums, perr := parseUints(extra, 64)
	if perr != nil {
		clientErr = perr
		return
	}
	req.Command = Touch
	req.Keys = []string{string(key)}
	req.Exptime = int64(nums[0])
	req.NoReply = noreply
	return
}

func parseFlushAll(args [][]byte, lineConsumed int) (req Request, consumed int, need bool, clientErr, err error) {
	consumed = lineConsumed
	req.Command = FlushAll
	if len(args) == 0 {
		return
	}
	delayField := args[0]
	rest := args[1:]
	if len(rest) > 1 {
		clientErr = stackerr.Wrap(ErrTooManyFields)
		return
	}
	if len(rest) == 1 {
		if string(rest[0]) != "noreply" {
			clientErr = stackerr.Wrap(ErrInvalidOption)
			return
		}
		req.NoReply = true
	}
	delay, perr := strconv.ParseInt(string(delayField), 10, 64)
	if perr != nil {
		clientErr = stackerr.Wrap(ErrFieldsParseError)
		return
	}
	req.FlushDelay = delay
	return
}

// parseStorage handles set/add/replace/cas, which additionally carry a data
// block of exactly Bytes octets followed by a CRLF.
func parseStorage(cmd Command, args [][]byte, buf []byte, lineConsumed, maxValueSize int) (req Request, consumed int, need bool, clientErr, err error) {
	extraRequired := 3
	if cmd == Cas {
		extraRequired = 4
	}
	key, extra, noreply, perr := splitKeyFields(args, extraRequired)
	if perr != nil {
		clientErr = perr
		consumed = lineConsumed
		return
	}
	if kerr := checkKey(key); kerr != nil {
		clientErr = kerr
		consumed = lineConsumed
		return
	}
	nums, perr := parseUints(extra[:3], 32)
	if perr != nil {
		clientErr = perr
		consumed = lineConsumed
		return
	}
	var casToken uint64
	if cmd == Cas {
		casNums, cerr := parseUints(extra[3:4], 64)
		if cerr != nil {
			clientErr = cerr
			consumed = lineConsumed
			return
		}
		casToken = casNums[0]
	}

	flags := uint32(nums[0])
	// Exptime is passed through raw: values <= MaxRelativeExptime are
	// relative offsets from now, larger values are already absolute unix
	// timestamps. Parse has no wall clock of its own, so normalizing
	// against "now" is the caller's job when it builds a cuckoo.Item.
	exptime := int64(nums[1])
	nbytes := int(nums[2])
	effectiveMax := MaxItemSize
	if maxValueSize > 0 && maxValueSize < effectiveMax {
		effectiveMax = maxValueSize
	}
	if nbytes > effectiveMax || nbytes < 0 {
		clientErr = stackerr.Wrap(ErrTooLargeItem)
		consumed = lineConsumed
		req.Bytes = nbytes
		return
	}

	dataStart := lineConsumed
	frameEnd := dataStart + nbytes + len(separatorBytes)
	if len(buf) < frameEnd {
		need = true
		return
	}
	sep := buf[dataStart+nbytes : frameEnd]
	if !bytes.Equal(sep, separatorBytes) {
		clientErr = stackerr.Wrap(ErrInvalidLineSeparator)
		consumed = frameEnd
		return
	}

	req.Command = cmd
	req.Keys = []string{string(key)}
	req.Flags = flags
	req.Exptime = exptime
	req.Bytes = nbytes
	req.Value = buf[dataStart : dataStart+nbytes]
	req.Cas = casToken
	req.NoReply = noreply
	consumed = frameEnd
	return
}
