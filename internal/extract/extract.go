// Package extract recovers vendor, date and amount from unstructured receipt
// text. Everything here is pure and a missing field is reported as nil
// rather than an error.
package extract

// DefaultCategory is assigned to every parsed receipt; the user confirms the
// real category before saving.
const DefaultCategory = "Other"

// Fields holds what could be recovered from a receipt. Nil means not found.
type Fields struct {
	Vendor *string
	Date   *string // YYYY-MM-DD when recognized, otherwise the raw token
	Amount *string // two fraction digits
}

// Extract runs every field heuristic over text.
func Extract(text string) Fields {
	return Fields{
		Vendor: Vendor(text),
		Date:   Date(text),
		Amount: Amount(text),
	}
}
