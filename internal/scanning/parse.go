package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ocrSpaceResponse is the subset of the OCR.space reply we read
type ocrSpaceResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// parseOCRSpaceResponse returns the text of the first parsed result.
// Later results (further pages) are ignored.
func parseOCRSpaceResponse(body []byte) (string, error) {
	var resp ocrSpaceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &ProcessingError{Message: fmt.Sprintf("unreadable response: %v", err)}
	}

	if resp.IsErroredOnProcessing {
		msg := errorMessage(resp.ErrorMessage)
		if msg == "" {
			msg = "Unknown OCR error"
		}
		return "", &ProcessingError{Message: msg}
	}

	if len(resp.ParsedResults) == 0 {
		return "", &ProcessingError{Message: "No text found in file by OCR"}
	}

	return resp.ParsedResults[0].ParsedText, nil
}

// errorMessage reads ErrorMessage, which OCR.space sends either as a string
// or as a list of strings.
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return ""
		}
		return strings.TrimSpace(list[0])
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return strings.TrimSpace(single)
	}
	return ""
}
