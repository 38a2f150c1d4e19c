package scanning

import (
	"errors"
	"fmt"
)

// ErrOCRUnavailable is returned by a Recognizer that has no service credential.
// It is a handled state, not a failure: the user gets an empty form to fill in.
var ErrOCRUnavailable = errors.New("ocr not configured")

// TransportError means the OCR service could not be reached or answered with
// a non-success HTTP status.
type TransportError struct {
	StatusCode int // zero when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ocr transport: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("ocr transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProcessingError means the OCR service answered but could not read the document.
type ProcessingError struct {
	Message string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("ocr processing failed: %s", e.Message)
}
