package scanning

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// stubNative is a PDFTextExtractor returning canned output
type stubNative struct {
	text  string
	pages int
	err   error
	calls int
}

func (s *stubNative) ExtractText(data []byte) (string, int, error) {
	s.calls++
	return s.text, s.pages, s.err
}

// mockRecognizer is a mock implementation of Recognizer
type mockRecognizer struct {
	text          string
	err           error
	calls         int
	lastMediaType string
	lastData      []byte
}

func (m *mockRecognizer) Recognize(ctx context.Context, data []byte, mediaType string) (string, error) {
	m.calls++
	m.lastMediaType = mediaType
	m.lastData = data
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

var _ = Describe("Resolver", func() {
	var (
		native     *stubNative
		recognizer *mockRecognizer
		resolver   *Resolver
		data       []byte
		declared   string
		result     ExtractedText
		err        error
	)

	pdfData := []byte("%PDF-1.7 fake body")
	pngData := []byte("\x89PNG\r\n\x1a\nfake")

	BeforeEach(func() {
		native = &stubNative{pages: 1}
		recognizer = &mockRecognizer{text: "ocr text"}
		declared = ""
	})

	JustBeforeEach(func() {
		resolver = NewResolverWithDeps(native, recognizer, nil)
		result, err = resolver.Resolve(context.Background(), data, declared)
	})

	When("a PDF has exactly 50 characters of native text", func() {
		BeforeEach(func() {
			data = pdfData
			native.text = strings.Repeat("a", 50)
		})

		It("should return the native text", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Method).To(Equal(MethodNative))
			Expect(result.Text).To(HaveLen(50))
			Expect(result.Pages).To(Equal(1))
		})

		It("should not call OCR", func() {
			Expect(recognizer.calls).To(BeZero())
		})
	})

	When("a PDF has 49 characters of native text", func() {
		BeforeEach(func() {
			data = pdfData
			native.text = strings.Repeat("a", 49)
		})

		It("should fall back to OCR", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(recognizer.calls).To(Equal(1))
			Expect(result.Method).To(Equal(MethodOCR))
			Expect(result.Text).To(Equal("ocr text"))
			Expect(result.FallbackReason).To(Equal(reasonNativeTooShort))
		})

		It("should send the PDF media type by default", func() {
			Expect(recognizer.lastMediaType).To(Equal("application/pdf"))
		})
	})

	When("native extraction fails", func() {
		BeforeEach(func() {
			data = pdfData
			native.err = errors.New("broken xref")
		})

		It("should not surface the error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should fall back to OCR", func() {
			Expect(result.Method).To(Equal(MethodOCR))
			Expect(result.FallbackReason).To(Equal(reasonNativeFailed))
		})
	})

	When("the upload is an image", func() {
		BeforeEach(func() {
			data = pngData
		})

		It("should skip native extraction", func() {
			Expect(native.calls).To(BeZero())
		})

		It("should default the media type to PNG", func() {
			Expect(recognizer.lastMediaType).To(Equal("image/png"))
			Expect(result.FallbackReason).To(Equal(reasonNotPDF))
		})

		When("a media type was declared", func() {
			BeforeEach(func() {
				declared = "image/jpeg"
			})

			It("should pass the declared type through", func() {
				Expect(recognizer.lastMediaType).To(Equal("image/jpeg"))
			})
		})
	})

	When("the bytes are a PDF but the declared type says image", func() {
		BeforeEach(func() {
			data = pdfData
			declared = "image/png"
			native.text = strings.Repeat("native ", 10)
		})

		It("should still read the PDF natively", func() {
			Expect(native.calls).To(Equal(1))
			Expect(result.Method).To(Equal(MethodNative))
		})

		When("the native text is too short", func() {
			BeforeEach(func() {
				native.text = "short"
				recognizer.text = "scanned text"
			})

			It("should send the file to OCR as a PDF", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Method).To(Equal(MethodOCR))
				Expect(recognizer.lastMediaType).To(Equal("application/pdf"))
			})
		})
	})

	When("OCR is not configured", func() {
		BeforeEach(func() {
			data = pngData
			recognizer.err = ErrOCRUnavailable
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should report the unavailable method", func() {
			Expect(result.Method).To(Equal(MethodUnavailable))
			Expect(result.Text).To(BeEmpty())
		})
	})

	When("OCR fails in transport", func() {
		BeforeEach(func() {
			data = pngData
			recognizer.err = &TransportError{Err: errors.New("connection reset")}
		})

		It("returns the error", func() {
			var terr *TransportError
			Expect(errors.As(err, &terr)).To(BeTrue())
		})
	})

	When("OCR fails to process the document", func() {
		BeforeEach(func() {
			data = pngData
			recognizer.err = &ProcessingError{Message: "No text found in file by OCR"}
		})

		It("returns the error", func() {
			var perr *ProcessingError
			Expect(errors.As(err, &perr)).To(BeTrue())
		})
	})
})

var _ = Describe("Resolver without a recognizer", func() {
	It("should report OCR as unavailable for images", func() {
		resolver := NewResolverWithDeps(&stubNative{}, nil, nil)
		result, err := resolver.Resolve(context.Background(), []byte("jpeg bytes"), "image/jpeg")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Method).To(Equal(MethodUnavailable))
	})

	It("should still return good native PDF text", func() {
		native := &stubNative{text: strings.Repeat("x", 80), pages: 2}
		resolver := NewResolverWithDeps(native, nil, nil)
		result, err := resolver.Resolve(context.Background(), []byte("%PDF-1.4"), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Method).To(Equal(MethodNative))
		Expect(result.Pages).To(Equal(2))
	})
})

var _ = Describe("IsPDF", func() {
	It("should detect the PDF signature", func() {
		Expect(IsPDF([]byte("%PDF-1.4"))).To(BeTrue())
	})

	It("should reject other data", func() {
		Expect(IsPDF([]byte("GIF89a"))).To(BeFalse())
		Expect(IsPDF(nil)).To(BeFalse())
	})
})
