package scanning

import "context"

// Method records how the text of a document was obtained
type Method string

const (
	// MethodNative means the PDF text layer was read directly
	MethodNative Method = "native"
	// MethodOCR means the text came back from the OCR service
	MethodOCR Method = "ocr"
	// MethodUnavailable means no text could be obtained because OCR is not configured
	MethodUnavailable Method = "unavailable"
)

// ExtractedText is the text of one uploaded document plus its provenance
type ExtractedText struct {
	Text   string
	Method Method
	Pages  int // native only

	// FallbackReason explains why OCR was attempted, empty for native results
	FallbackReason string
}

// ParsedReceipt is the best-effort result handed back to the user for review.
// Nil fields were not found on the receipt.
type ParsedReceipt struct {
	Vendor   *string `json:"vendor"`
	Date     *string `json:"date"`   // YYYY-MM-DD
	Amount   *string `json:"amount"` // two fraction digits
	Category string  `json:"category"`
	Error    string  `json:"error,omitempty"`

	// Set by the caller after duplicate detection
	IsDuplicate bool   `json:"isDuplicate,omitempty"`
	DuplicateID string `json:"duplicateId,omitempty"`
}

// Scanner defines the interface for receipt scanning operations
type Scanner interface {
	// ScanReceipt extracts vendor, date and amount from a receipt image or PDF
	ScanReceipt(ctx context.Context, data []byte, contentType string) (*ParsedReceipt, error)

	// Close closes the scanner and releases resources
	Close() error
}

// Recognizer turns an image or PDF into text through an external OCR service
type Recognizer interface {
	Recognize(ctx context.Context, data []byte, mediaType string) (string, error)
}
