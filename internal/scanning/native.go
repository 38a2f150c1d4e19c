package scanning

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// pdfSignature is the magic every PDF file starts with
var pdfSignature = []byte("%PDF")

// IsPDF reports whether data starts with the PDF file signature
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfSignature)
}

// PDFTextExtractor reads the embedded text layer of a PDF
type PDFTextExtractor interface {
	ExtractText(data []byte) (text string, pages int, err error)
}

// fitzExtractor reads PDF text with MuPDF through go-fitz
type fitzExtractor struct{}

// ExtractText concatenates the text of every page, one newline between pages
func (fitzExtractor) ExtractText(data []byte) (string, int, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", 0, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	var b strings.Builder
	for i := 0; i < pages; i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			return "", pages, fmt.Errorf("reading text of page %d: %w", i+1, err)
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(pageText)
	}
	return b.String(), pages, nil
}
