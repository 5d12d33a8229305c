package protocol_test

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/cuckoocache/slimcache/protocol"
)

var _ = Describe("serialize", func() {
	var out *bytes.Buffer
	BeforeEach(func() { out = &bytes.Buffer{} })

	It("writes a get hit as VALUE+data+END", func() {
		protocol.WriteValue(out, "foo", 0, []byte("bar"), 0, false)
		protocol.WriteEnd(out)
		Expect(out.String()).To(Equal("VALUE foo 0 3\r\nbar\r\nEND\r\n"))
	})

	It("appends the cas token for gets", func() {
		protocol.WriteValue(out, "foo", 0, []byte("bar"), 42, true)
		Expect(out.String()).To(Equal("VALUE foo 0 3 42\r\nbar\r\n"))
	})

	It("writes STORED", func() {
		protocol.WriteStored(out)
		Expect(out.String()).To(Equal("STORED\r\n"))
	})

	It("writes CLIENT_ERROR with the wrapped message", func() {
		protocol.WriteClientError(out, protocol.ErrTooLargeKey)
		Expect(out.String()).To(Equal("CLIENT_ERROR too large key\r\n"))
	})

	It("writes STAT rows", func() {
		protocol.WriteStat(out, "curr_items", "3")
		Expect(out.String()).To(Equal("STAT curr_items 3\r\n"))
	})
})
