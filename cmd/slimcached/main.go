// Command slimcached is the ASCII-protocol cuckoo cache server: it parses a
// config file, wires together a cuckoo.Table and a server.Server, and runs
// until the process is killed or the listener fails.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/cuckoocache/slimcache/cuckoo"
	"github.com/cuckoocache/slimcache/internal/config"
	"github.com/cuckoocache/slimcache/internal/tag"
	"github.com/cuckoocache/slimcache/log"
	"github.com/cuckoocache/slimcache/server"
)

const version = "1.0.0-slimcache"

// Exit codes mirror the original C service's sysexits.h usage
// (original_source/src/slimcache/main.c).
const (
	exOK      = 0
	exUsage   = 64
	exDataErr = 65
	exConfig  = 78
)

const usage = `Usage:
  slimcached [option|config]

Description:
  slimcached is an in-memory cache that speaks the memcached ASCII
  protocol and stores small key/value pairs in a preallocated cuckoo hash
  table. Capacity and item size are fixed at startup and never resized.

Options:
  -h, --help        show this message
  -v, --version     show version number

Example:
  ./slimcached ./slimcache.json
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	fs := flag.NewFlagSet("slimcached", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	help := fs.Bool("h", false, "show this message")
	longHelp := fs.Bool("help", false, "show this message")
	ver := fs.Bool("v", false, "show version number")
	longVer := fs.Bool("version", false, "show version number")
	if err := fs.Parse(argv); err != nil {
		return exUsage
	}
	if *help || *longHelp {
		fs.Usage()
		return exOK
	}
	if *ver || *longVer {
		fmt.Println(version)
		return exOK
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return exUsage
	}

	fileConf := config.Default()
	if fs.NArg() == 1 {
		data, err := ioutil.ReadFile(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "config file read error: %v\n", err)
			return exDataErr
		}
		var override config.File
		if err := json.Unmarshal(data, &override); err != nil {
			fmt.Fprintf(os.Stderr, "config file parse error: %v\n", err)
			return exDataErr
		}
		config.Merge(fileConf, &override)
	}

	conf, err := config.Parse(fileConf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exConfig
	}

	logger := log.NewLogger(conf.LogLevel, conf.LogDestination)
	if tag.Debug {
		logger.Warn("running debug build: extra invariant checks, large performance overhead")
	}

	ignoreSIGPIPE()
	stopReopen := handleLogReopen(logger)
	defer stopReopen()

	if conf.Daemonize {
		logger.Warn("daemonize requested: not supported by this build, running in foreground")
	}

	table, err := cuckoo.NewTable(conf.Cuckoo)
	if err != nil {
		logger.Errorf("cuckoo table setup failed: %v", err)
		return exConfig
	}

	if conf.PidFilename != "" {
		if err := writePidFile(conf.PidFilename); err != nil {
			logger.Errorf("pid file write failed: %v", err)
			return exConfig
		}
		defer os.Remove(conf.PidFilename)
	}

	srv := server.New(conf.Server, table, logger)
	logger.Infof("listening on %s", conf.Addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Errorf("serve error: %v", err)
		return exConfig
	}
	return exOK
}

func writePidFile(path string) error {
	return ioutil.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}
