package protocol_test

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/cuckoocache/slimcache/internal/util"
	"github.com/cuckoocache/slimcache/protocol"
)

var _ = Describe("Parse", func() {
	var (
		buf            []byte
		req            protocol.Request
		consumed       int
		need           bool
		clientErr, err error
	)

	ParseBuf := func() {
		req, consumed, need, clientErr, err = protocol.Parse(buf, 0)
	}

	Context("incomplete command line", func() {
		BeforeEach(func() {
			buf = []byte("get foo")
		})
		It("asks for more", func() {
			ParseBuf()
			Expect(need).To(BeTrue())
			Expect(consumed).To(Equal(0))
			Expect(err).To(BeNil())
			Expect(clientErr).To(BeNil())
		})
	})

	Context("empty line", func() {
		BeforeEach(func() { buf = []byte("\r\n") })
		It("is an Error, not a ClientError", func() {
			ParseBuf()
			Expect(util.Unwrap(err)).To(Equal(protocol.ErrEmptyCommand))
			Expect(consumed).To(Equal(2))
		})
	})

	Context("unknown command", func() {
		BeforeEach(func() { buf = []byte("frobnicate x\r\n") })
		It("errors", func() {
			ParseBuf()
			Expect(util.Unwrap(err)).To(Equal(protocol.ErrUnknownCommand))
		})
	})

	Context("append/prepend", func() {
		BeforeEach(func() { buf = []byte("append foo 0 0 3\r\n") })
		It("is rejected as unsupported", func() {
			ParseBuf()
			Expect(util.Unwrap(clientErr)).To(Equal(protocol.ErrNotSupported))
			Expect(consumed).To(Equal(len(buf)))
		})
	})

	Context("get single key", func() {
		BeforeEach(func() { buf = []byte("get foo\r\n") })
		It("parses a retrieval request", func() {
			ParseBuf()
			Expect(err).To(BeNil())
			Expect(clientErr).To(BeNil())
			Expect(req.Command).To(Equal(protocol.Get))
			Expect(req.Keys).To(Equal([]string{"foo"}))
			Expect(consumed).To(Equal(len(buf)))
		})
	})

	Context("gets multi key", func() {
		BeforeEach(func() { buf = []byte("gets a b c\r\n") })
		It("parses all keys", func() {
			ParseBuf()
			Expect(req.Command).To(Equal(protocol.Gets))
			Expect(req.Keys).To(Equal([]string{"a", "b", "c"}))
		})
	})

	Context("get with too-large key", func() {
		BeforeEach(func() {
			buf = append([]byte("get "), bytes.Repeat([]byte("k"), protocol.MaxKeySize+1)...)
			buf = append(buf, '\r', '\n')
		})
		It("client errors", func() {
			ParseBuf()
			Expect(util.Unwrap(clientErr)).To(Equal(protocol.ErrTooLargeKey))
		})
	})

	Context("set with full data block available", func() {
		BeforeEach(func() { buf = []byte("set foo 1 0 3\r\nbar\r\n") })
		It("parses the request and consumes the whole frame", func() {
			ParseBuf()
			Expect(err).To(BeNil())
			Expect(clientErr).To(BeNil())
			Expect(need).To(BeFalse())
			Expect(req.Command).To(Equal(protocol.Set))
			Expect(req.Keys).To(Equal([]string{"foo"}))
			Expect(req.Flags).To(BeEquivalentTo(1))
			Expect(req.Bytes).To(Equal(3))
			Expect(req.Value).To(Equal([]byte("bar")))
			Expect(consumed).To(Equal(len(buf)))
		})
	})

	Context("set with data block not fully buffered yet", func() {
		BeforeEach(func() { buf = []byte("set foo 1 0 10\r\nbar") })
		It("asks for more", func() {
			ParseBuf()
			Expect(need).To(BeTrue())
			Expect(consumed).To(Equal(0))
		})
	})

	Context("set with bad separator after data block", func() {
		BeforeEach(func() { buf = []byte("set foo 0 0 3\r\nbarXX") })
		It("client errors", func() {
			ParseBuf()
			Expect(util.Unwrap(clientErr)).To(Equal(protocol.ErrInvalidLineSeparator))
		})
	})

	Context("set noreply", func() {
		BeforeEach(func() { buf = []byte("set foo 0 0 1 noreply\r\nx\r\n") })
		It("sets NoReply", func() {
			ParseBuf()
			Expect(err).To(BeNil())
			Expect(clientErr).To(BeNil())
			Expect(req.NoReply).To(BeTrue())
		})
	})

	Context("cas with token", func() {
		BeforeEach(func() { buf = []byte("cas foo 0 0 3 42\r\nbar\r\n") })
		It("parses the cas token", func() {
			ParseBuf()
			Expect(req.Command).To(Equal(protocol.Cas))
			Expect(req.Cas).To(BeEquivalentTo(42))
		})
	})

	Context("oversize item", func() {
		BeforeEach(func() { buf = []byte("set foo 0 0 200000000\r\n") })
		It("client errors without waiting for the body", func() {
			ParseBuf()
			Expect(util.Unwrap(clientErr)).To(Equal(protocol.ErrTooLargeItem))
			Expect(req.Bytes).To(Equal(200000000))
		})
	})

	Context("value exceeding the caller's configured cap but under MaxItemSize", func() {
		BeforeEach(func() { buf = []byte("set foo 0 0 100\r\n") })
		It("client errors against the tighter cap, without waiting for the body", func() {
			req, consumed, need, clientErr, err = protocol.Parse(buf, 10)
			Expect(err).To(BeNil())
			Expect(util.Unwrap(clientErr)).To(Equal(protocol.ErrTooLargeItem))
			Expect(need).To(BeFalse())
			Expect(req.Bytes).To(Equal(100))
			Expect(consumed).To(Equal(len(buf)))
		})
	})

	Context("delete", func() {
		BeforeEach(func() { buf = []byte("delete foo\r\n") })
		It("parses", func() {
			ParseBuf()
			Expect(req.Command).To(Equal(protocol.Delete))
			Expect(req.Keys).To(Equal([]string{"foo"}))
		})
	})

	Context("incr", func() {
		BeforeEach(func() { buf = []byte("incr n 5\r\n") })
		It("parses the delta", func() {
			ParseBuf()
			Expect(req.Command).To(Equal(protocol.Incr))
			Expect(req.Delta).To(BeEquivalentTo(5))
		})
	})

	Context("incr with non-numeric delta", func() {
		BeforeEach(func() { buf = []byte("incr n abc\r\n") })
		It("client errors", func() {
			ParseBuf()
			Expect(util.Unwrap(clientErr)).To(Equal(protocol.ErrFieldsParseError))
		})
	})

	Context("flush_all bare", func() {
		BeforeEach(func() { buf = []byte("flush_all\r\n") })
		It("parses with zero delay", func() {
			ParseBuf()
			Expect(req.Command).To(Equal(protocol.FlushAll))
			Expect(req.FlushDelay).To(BeEquivalentTo(0))
		})
	})

	Context("flush_all with delay", func() {
		BeforeEach(func() { buf = []byte("flush_all 30\r\n") })
		It("parses the delay", func() {
			ParseBuf()
			Expect(req.FlushDelay).To(BeEquivalentTo(30))
		})
	})

	Context("version", func() {
		BeforeEach(func() { buf = []byte("version\r\n") })
		It("parses", func() {
			ParseBuf()
			Expect(req.Command).To(Equal(protocol.Version))
		})
	})

	Context("pipelined commands", func() {
		BeforeEach(func() { buf = []byte("set a 0 0 1\r\n1\r\nset b 0 0 1\r\n2\r\n") })
		It("parses the first and leaves the rest for the next call", func() {
			ParseBuf()
			Expect(req.Keys).To(Equal([]string{"a"}))
			rest := buf[consumed:]
			req2, consumed2, need2, clientErr2, err2 := protocol.Parse(rest, 0)
			Expect(need2).To(BeFalse())
			Expect(err2).To(BeNil())
			Expect(clientErr2).To(BeNil())
			Expect(req2.Keys).To(Equal([]string{"b"}))
			Expect(consumed2).To(Equal(len(rest)))
		})
	})
})
