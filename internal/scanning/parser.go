package scanning

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/zombor/expense-tracker/internal/extract"
)

// UnavailableMessage is returned to the user when a document needs OCR but
// no OCR credential is configured.
const UnavailableMessage = "File detected but OCR not configured. Get API key at https://ocr.space/ocrapi"

// Parser implements the Scanner interface with heuristic field extraction
// over native PDF text or OCR output.
type Parser struct {
	resolver   *Resolver
	recognizer Recognizer
	logger     *slog.Logger
}

// NewParser creates a new Parser. A nil recognizer means OCR is not configured.
func NewParser(recognizer Recognizer, logger *slog.Logger) *Parser {
	return NewParserWithResolver(NewResolver(recognizer, logger), recognizer, logger)
}

// NewParserWithResolver creates a new Parser around an existing Resolver
func NewParserWithResolver(resolver *Resolver, recognizer Recognizer, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		resolver:   resolver,
		recognizer: recognizer,
		logger:     logger,
	}
}

// ScanReceipt resolves the text of a receipt and extracts its fields
func (p *Parser) ScanReceipt(ctx context.Context, data []byte, contentType string) (*ParsedReceipt, error) {
	text, err := p.resolver.Resolve(ctx, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("parsing receipt: %w", err)
	}

	if text.Method == MethodUnavailable {
		p.logger.Info("receipt needs ocr but ocr is not configured",
			"content_type", contentType,
			"file_size", len(data),
			"reason", text.FallbackReason,
		)
		return &ParsedReceipt{
			Category: extract.DefaultCategory,
			Error:    UnavailableMessage,
		}, nil
	}

	fields := extract.Extract(text.Text)

	p.logger.Debug("receipt parsed",
		"method", text.Method,
		"pages", text.Pages,
		"text_length", len(text.Text),
		"vendor_found", fields.Vendor != nil,
		"date_found", fields.Date != nil,
		"amount_found", fields.Amount != nil,
	)

	return &ParsedReceipt{
		Vendor:   fields.Vendor,
		Date:     fields.Date,
		Amount:   fields.Amount,
		Category: extract.DefaultCategory,
	}, nil
}

// Close releases the recognizer if it holds resources
func (p *Parser) Close() error {
	if c, ok := p.recognizer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
