package expense

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("inflight", func() {
	var parses *inflight

	BeforeEach(func() {
		parses = newInflight()
	})

	When("a second parse begins for the same user", func() {
		It("should cancel the first as superseded", func() {
			first, doneFirst := parses.begin(context.Background(), "user-1")
			second, doneSecond := parses.begin(context.Background(), "user-1")
			defer doneSecond()

			Expect(first.Err()).To(MatchError(context.Canceled))
			Expect(superseded(first)).To(BeTrue())
			Expect(second.Err()).NotTo(HaveOccurred())

			doneFirst()
			Expect(parses.len()).To(Equal(1))
			Expect(second.Err()).NotTo(HaveOccurred())
		})
	})

	When("parses belong to different users", func() {
		It("should leave both running", func() {
			a, doneA := parses.begin(context.Background(), "user-1")
			b, doneB := parses.begin(context.Background(), "user-2")
			defer doneA()
			defer doneB()

			Expect(a.Err()).NotTo(HaveOccurred())
			Expect(b.Err()).NotTo(HaveOccurred())
			Expect(parses.len()).To(Equal(2))
		})
	})

	When("a parse finishes", func() {
		It("should forget it and cancel its context", func() {
			ctx, done := parses.begin(context.Background(), "user-1")
			done()

			Expect(parses.len()).To(BeZero())
			Expect(ctx.Err()).To(HaveOccurred())
			Expect(superseded(ctx)).To(BeFalse())
		})
	})

	When("the parent context is canceled", func() {
		It("should not report the parse as superseded", func() {
			parent, cancel := context.WithCancel(context.Background())
			ctx, done := parses.begin(parent, "user-1")
			defer done()

			cancel()
			Expect(ctx.Err()).To(HaveOccurred())
			Expect(superseded(ctx)).To(BeFalse())
		})
	})
})
