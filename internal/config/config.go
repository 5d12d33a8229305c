// Package config parses the JSON configuration file recognized by
// cmd/slimcached, merges it over built-in defaults, and translates the
// result into the concrete Config structs the cuckoo and server packages
// take.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/facebookgo/stackerr"
	"github.com/pkg/errors"

	"github.com/cuckoocache/slimcache/cuckoo"
	"github.com/cuckoocache/slimcache/internal/util"
	"github.com/cuckoocache/slimcache/log"
	"github.com/cuckoocache/slimcache/server"
)

// File is the on-disk / JSON-unmarshaled shape of the config file. Sizes
// are strings so they can carry a "10m"/"64k" magnitude suffix.
type File struct {
	Daemonize    bool   `json:"daemonize,omitempty"`
	PidFilename  string `json:"pid_filename,omitempty"`
	LogName      string `json:"log_name,omitempty"`
	LogLevel     string `json:"log_level,omitempty"`
	ServerHost   string `json:"server_host,omitempty"`
	ServerPort   int    `json:"server_port,omitempty"`
	TCPBacklog   int    `json:"tcp_backlog,omitempty"`
	TCPPoolsize  int    `json:"tcp_poolsize,omitempty"`
	BufInitSize  string `json:"buf_init_size,omitempty"`
	BufSockPoolsize int `json:"buf_sock_poolsize,omitempty"`
	RingArrayCap    int `json:"ring_array_cap,omitempty"`
	CuckooItemSize  string `json:"cuckoo_item_size,omitempty"`
	CuckooNitem     int    `json:"cuckoo_nitem,omitempty"`
	CuckooPolicy    string `json:"cuckoo_policy,omitempty"`
	CuckooItemCas   bool   `json:"cuckoo_item_cas,omitempty"`
	// ArrayNelemDelta is accepted for wire compatibility with spec.md §6 but
	// has no effect: Go slices grow themselves, there is no manual C-style
	// array increment to size here.
	ArrayNelemDelta int `json:"array_nelem_delta,omitempty"`
	RequestPoolsize int `json:"request_poolsize,omitempty"`
	Workers         int `json:"workers,omitempty"`
	IdleTimeout     string `json:"idle_timeout,omitempty"`
}

// Default returns the built-in defaults, overridden field-by-field by
// whatever a config file or later merge supplies.
func Default() *File {
	return &File{
		LogName:         "stderr",
		LogLevel:        "info",
		ServerHost:      "",
		ServerPort:      11211,
		TCPBacklog:      1024,
		TCPPoolsize:     1024,
		BufInitSize:     "16k",
		BufSockPoolsize: 1024,
		RingArrayCap:    128,
		CuckooItemSize:  "512b",
		CuckooNitem:     1 << 16,
		CuckooPolicy:    "random",
		CuckooItemCas:   true,
		RequestPoolsize: 1024,
		Workers:         4,
		IdleTimeout:     "5m",
	}
}

// Merge copies every non-zero field of override onto def, in place: a
// config file value overrides the default, and a field the file leaves
// zero keeps its default.
func Merge(def, override *File) {
	defVal := reflect.ValueOf(def).Elem()
	overrideVal := reflect.ValueOf(override).Elem()
	for i, end := 0, defVal.NumField(); i < end; i++ {
		ov := overrideVal.Field(i)
		if !util.IsZeroVal(ov) {
			defVal.Field(i).Set(ov)
		}
	}
}

// Resolved is the parsed, ready-to-use configuration: everything main needs
// to build a cuckoo.Table, a server.Server and a log.Logger.
type Resolved struct {
	Daemonize   bool
	PidFilename string

	LogDestination io.Writer
	LogLevel       log.Level

	Addr string

	Cuckoo cuckoo.Config
	Server server.Config
}

// Parse validates and translates a File into a Resolved configuration.
func Parse(f *File) (r Resolved, err error) {
	r.Daemonize = f.Daemonize
	r.PidFilename = f.PidFilename

	r.LogDestination, err = logDestination(f.LogName)
	if err != nil {
		return r, stackerr.Newf("log destination open error: %v", err)
	}
	r.LogLevel, err = log.LevelFromString(strings.ToUpper(f.LogLevel))
	if err != nil {
		return r, stackerr.Newf("log level parse error: %v", err)
	}

	r.Addr = net.JoinHostPort(f.ServerHost, strconv.Itoa(f.ServerPort))

	itemSize, err := parseSize(f.CuckooItemSize)
	if err != nil {
		return r, stackerr.Newf("cuckoo_item_size parse error: %v", err)
	}
	policy, ok := cuckoo.ParsePolicy(f.CuckooPolicy)
	if !ok {
		return r, stackerr.Newf("cuckoo_policy: unrecognized value %q", f.CuckooPolicy)
	}
	r.Cuckoo = cuckoo.Config{
		ItemSize: int(itemSize),
		NItem:    f.CuckooNitem,
		Policy:   policy,
		Cas:      f.CuckooItemCas,
	}

	bufInit, err := parseSize(f.BufInitSize)
	if err != nil {
		return r, stackerr.Newf("buf_init_size parse error: %v", err)
	}
	idleTimeout := time.Duration(0)
	if f.IdleTimeout != "" {
		idleTimeout, err = time.ParseDuration(f.IdleTimeout)
		if err != nil {
			return r, stackerr.Newf("idle_timeout parse error: %v", err)
		}
	}
	r.Server = server.Config{
		Addr:        r.Addr,
		Workers:     f.Workers,
		RingCap:     f.RingArrayCap,
		ConnCap:     f.TCPPoolsize,
		Backlog:     f.TCPBacklog,
		InBufSize:   int(bufInit),
		OutBufSize:  int(bufInit),
		BufPoolSize: f.BufSockPoolsize,
		IdleTimeout: idleTimeout,
	}
	// request_poolsize has no direct field on server.Config: parsed request
	// records don't outlive a single Parse call in this codec, so there is
	// nothing else to pool beyond BufPoolSize.
	return r, nil
}

// Marshal renders f back to JSON, e.g. to write a config file for a child
// slimcached process.
func Marshal(f *File) []byte {
	data, err := json.Marshal(f)
	if err != nil {
		panic(err)
	}
	return data
}

func parseSize(s string) (int64, error) {
	if len(s) < 2 {
		return 0, errors.New("invalid size format")
	}
	sep := len(s) - 1
	sizeStr := s[:sep]
	unit := s[sep:]
	var exponent uint32
	switch strings.ToLower(unit) {
	case "b":
		exponent = 0
	case "k":
		exponent = 10
	case "m":
		exponent = 20
	case "g":
		exponent = 30
	default:
		return 0, errors.New("invalid size suffix: only 'b', 'k', 'm', 'g' allowed")
	}
	size, err := strconv.ParseInt(sizeStr, 10, 31)
	if err != nil {
		return 0, fmt.Errorf("size parse error: %s", err)
	}
	return size << exponent, nil
}

func logDestination(dest string) (io.Writer, error) {
	switch strings.ToLower(dest) {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	default:
		return os.OpenFile(dest, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	}
}
