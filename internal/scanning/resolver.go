package scanning

import (
	"context"
	"errors"
	"log/slog"
	"unicode/utf8"
)

// MinNativeTextLength is the shortest native PDF text we trust. Anything
// shorter is most likely a scanned PDF with no real text layer.
const MinNativeTextLength = 50

const (
	defaultPDFMediaType   = "application/pdf"
	defaultImageMediaType = "image/png"
)

const (
	reasonNotPDF         = "not a pdf"
	reasonNativeFailed   = "native extraction failed"
	reasonNativeTooShort = "native text too short"
)

type resolveState int

const (
	stateNative resolveState = iota
	stateOCR
	stateUnavailable
	stateDone
)

func (s resolveState) String() string {
	switch s {
	case stateNative:
		return "native"
	case stateOCR:
		return "ocr"
	case stateUnavailable:
		return "unavailable"
	default:
		return "done"
	}
}

// Resolver decides where the text of an upload comes from: the PDF text
// layer when it is good enough, otherwise the OCR service.
type Resolver struct {
	native     PDFTextExtractor
	recognizer Recognizer
	logger     *slog.Logger
}

// NewResolver creates a Resolver that reads PDFs with go-fitz. A nil
// recognizer means OCR is not configured.
func NewResolver(recognizer Recognizer, logger *slog.Logger) *Resolver {
	return NewResolverWithDeps(fitzExtractor{}, recognizer, logger)
}

// NewResolverWithDeps creates a Resolver with a custom PDF text extractor for testing
func NewResolverWithDeps(native PDFTextExtractor, recognizer Recognizer, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		native:     native,
		recognizer: recognizer,
		logger:     logger,
	}
}

// Resolve returns the text of data. OCR being unconfigured is not an error:
// the result comes back with MethodUnavailable. OCR transport and processing
// failures are returned as errors since there is nothing left to fall back to.
func (r *Resolver) Resolve(ctx context.Context, data []byte, declaredMediaType string) (ExtractedText, error) {
	isPDF := IsPDF(data)

	var (
		out    ExtractedText
		reason string
		state  = stateOCR
	)
	if isPDF {
		state = stateNative
	} else {
		reason = reasonNotPDF
	}

	for state != stateDone {
		next := stateDone

		switch state {
		case stateNative:
			text, pages, err := r.native.ExtractText(data)
			switch {
			case err != nil:
				r.logger.Warn("native pdf extraction failed, falling back to ocr", "error", err)
				reason = reasonNativeFailed
				next = stateOCR
			case utf8.RuneCountInString(text) < MinNativeTextLength:
				reason = reasonNativeTooShort
				next = stateOCR
			default:
				out = ExtractedText{Text: text, Method: MethodNative, Pages: pages}
			}

		case stateOCR:
			if r.recognizer == nil {
				next = stateUnavailable
				break
			}
			mediaType := ocrMediaType(declaredMediaType, isPDF)
			text, err := r.recognizer.Recognize(ctx, data, mediaType)
			if errors.Is(err, ErrOCRUnavailable) {
				next = stateUnavailable
				break
			}
			if err != nil {
				return ExtractedText{}, err
			}
			out = ExtractedText{Text: text, Method: MethodOCR, FallbackReason: reason}

		case stateUnavailable:
			out = ExtractedText{Method: MethodUnavailable, FallbackReason: reason}
		}

		r.logger.Debug("text source transition", "from", state, "to", next, "reason", reason)
		state = next
	}

	return out, nil
}

// ocrMediaType trusts the PDF signature over any declared type. Other data
// keeps its declared type or defaults to PNG.
func ocrMediaType(declared string, isPDF bool) string {
	if isPDF {
		return defaultPDFMediaType
	}
	if declared != "" {
		return declared
	}
	return defaultImageMediaType
}
