package expense

import "time"

// Expense is a saved expense owned by a single user
type Expense struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Amount      int       `json:"amount"` // Amount in cents
	Vendor      string    `json:"vendor"`
	Category    string    `json:"category"`
	Date        string    `json:"date"` // YYYY-MM-DD
	ReceiptFile string    `json:"receiptFile,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DuplicateCandidate describes a freshly parsed receipt to check against
// a user's saved expenses. It is never persisted.
type DuplicateCandidate struct {
	UserID string
	Amount int    // cents
	Date   string // YYYY-MM-DD
	Vendor string // matched as a substring of the saved vendor
}

// matches reports whether e looks like the same purchase as c
func (c DuplicateCandidate) matches(e *Expense) bool {
	return e.Amount == c.Amount &&
		e.Date == c.Date &&
		containsVendor(e.Vendor, c.Vendor)
}
