package integration

import (
	"io/ioutil"
	"net"
	"os/exec"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gexec"

	"github.com/cuckoocache/slimcache/internal/config"
	"github.com/cuckoocache/slimcache/internal/tag"
	"github.com/cuckoocache/slimcache/testutil"
)

// freePort asks the OS for an ephemeral port and immediately releases it,
// so the config file can pin the child process to a known address.
func freePort() int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// NewFileConfig returns a config.File sized for the integration tests:
// small enough to run fast, big enough to hold maxTestValueSize items.
func NewFileConfig() *config.File {
	f := config.Default()
	f.LogLevel = "debug"
	f.ServerPort = 0 // resolved below, once the listener has bound an ephemeral port.
	f.CuckooItemSize = "2k"
	f.CuckooNitem = 1 << 12
	return f
}

var _ = Describe("Integration", func() {
	BeforeEach(func() {
		if tag.Race {
			Skip("Integration is not running under race detector.")
		}
	})
	const SessionWaitTime = 3 * time.Second
	var (
		confFile string
		inConf   *config.File // App config to run.
		addr     string       // host:port the server actually bound.

		session *Session
	)
	BeforeEach(func() {
		ResetTestKeys()
		confFile = testutil.TmpFileName()
		inConf = NewFileConfig()
	})

	StartSlimcached := func() {
		var err error
		command := exec.Command(SlimcachedCLI, confFile)
		session, err = Start(command, GinkgoWriter, GinkgoWriter)
		Expect(err).ToNot(HaveOccurred(), "%v", err)
		time.Sleep(50 * time.Millisecond) // Wait for output.
	}
	JustBeforeEach(func() {
		// A fixed port would collide across parallel spec runs, so each
		// test picks its own free ephemeral port up front.
		if inConf.ServerPort == 0 {
			inConf.ServerHost = "127.0.0.1"
			inConf.ServerPort = freePort()
		}
		addr = net.JoinHostPort(inConf.ServerHost, strconv.Itoa(inConf.ServerPort))
		err := ioutil.WriteFile(confFile, config.Marshal(inConf), 0600)
		Expect(err).NotTo(HaveOccurred())
		StartSlimcached()
	})
	AfterEach(func() {
		session.Terminate().Wait(SessionWaitTime)
	})

	Context("simple requests", func() {
		var (
			c   *memcache.Client
			err error
		)
		JustBeforeEach(func() {
			c = memcache.New(addr)
		})
		It("get what set", func() {
			set := RandSizeItem()
			err = c.Set(set)
			Expect(err).To(BeNil())
			get, err := c.Get(set.Key)
			Expect(err).To(BeNil())
			ExpectItemsEqual(get, set)
		})

		It("overwrite", func() {
			set := RandSizeItem()
			overwrite := RandSizeItem()
			overwrite.Key = set.Key
			err = c.Set(set)
			Expect(err).To(BeNil())
			err = c.Set(overwrite)
			Expect(err).To(BeNil())

			get, err := c.Get(set.Key)
			Expect(err).To(BeNil())
			ExpectItemsEqual(get, overwrite)
		})

		It("add fails on existing key", func() {
			set := RandSizeItem()
			Expect(c.Set(set)).To(Succeed())
			err = c.Add(set)
			Expect(err).To(Equal(memcache.ErrNotStored))
		})

		It("replace fails on missing key", func() {
			it := RandSizeItem()
			err = c.Replace(it)
			Expect(err).To(Equal(memcache.ErrNotStored))
		})

		It("incr and decr", func() {
			it := &memcache.Item{Key: TestKey(), Value: []byte("10")}
			Expect(c.Set(it)).To(Succeed())

			n, err := c.Increment(it.Key, 5)
			Expect(err).To(BeNil())
			Expect(n).To(BeEquivalentTo(15))

			n, err = c.Decrement(it.Key, 3)
			Expect(err).To(BeNil())
			Expect(n).To(BeEquivalentTo(12))
		})

		It("delete", func() {
			set := RandSizeItem()
			err = c.Set(set)
			Expect(err).To(BeNil())

			err = c.Delete(set.Key)
			Expect(err).To(BeNil())
			_, err = c.Get(set.Key)
			Expect(err).To(Equal(memcache.ErrCacheMiss))
		})

		It("multi get", func() {
			var keys []string
			items := map[string]*memcache.Item{}
			for i := 0; i < 10; i++ {
				i := RandSizeItem()
				keys = append(keys, i.Key)
				items[i.Key] = i
				err = c.Set(i)
				Expect(err).To(BeNil())
			}
			gotItems, err := c.GetMulti(keys)
			Expect(err).To(BeNil())
			Expect(len(gotItems)).To(Equal(len(items)))
			for k, v := range gotItems {
				ExpectItemsEqual(v, items[k])
			}
		})

		It("flush all evicts everything", func() {
			it := RandSizeItem()
			Expect(c.Set(it)).To(Succeed())

			// gomemcache's Client has no FlushAll; send the raw command.
			raw, dialErr := net.Dial("tcp", addr)
			Expect(dialErr).NotTo(HaveOccurred())
			defer raw.Close()
			_, writeErr := raw.Write([]byte("flush_all\r\n"))
			Expect(writeErr).NotTo(HaveOccurred())
			reply := make([]byte, 32)
			n, readErr := raw.Read(reply)
			Expect(readErr).NotTo(HaveOccurred())
			Expect(string(reply[:n])).To(Equal("OK\r\n"))

			_, err = c.Get(it.Key)
			Expect(err).To(Equal(memcache.ErrCacheMiss))
		})

		It("touch extends expiry without changing value", func() {
			it := RandSizeItem()
			it.Expiration = 1
			Expect(c.Set(it)).To(Succeed())
			Expect(c.Touch(it.Key, 1000)).To(Succeed())
			got, err := c.Get(it.Key)
			Expect(err).To(BeNil())
			ExpectItemsEqual(got, it)
		})
	})

	Context("load", func() {
		BeforeEach(func() {
			inConf.LogLevel = "info" // Too large debug output.
		})

		It("survives a burst of concurrent clients", func() {
			LoadTest(addr)
		})
	})

	It("terminates on SIGTERM without hanging", func() {
		session.Terminate().Wait(SessionWaitTime)
		Expect(session.ExitCode()).ToNot(Equal(-1))
	})
})
