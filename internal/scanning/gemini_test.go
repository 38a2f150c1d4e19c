package scanning

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NewGemini", func() {
	When("no API key is set", func() {
		It("should report OCR as unavailable", func() {
			g, err := NewGemini(context.Background(), "", "", time.Second)
			Expect(err).To(MatchError(ErrOCRUnavailable))
			Expect(g).To(BeNil())
		})
	})

	DescribeTable("request timeout",
		func(configured, expected time.Duration) {
			g, err := NewGemini(context.Background(), "test-key", "", configured)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(g.Close)
			Expect(g.timeout).To(Equal(expected))
		},
		Entry("uses the configured value", 5*time.Second, 5*time.Second),
		Entry("defaults when unset", time.Duration(0), DefaultOCRTimeout),
	)
})
