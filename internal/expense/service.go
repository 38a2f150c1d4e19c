package expense

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/zombor/expense-tracker/internal/extract"
	"github.com/zombor/expense-tracker/internal/scanning"
)

// ErrInvalidExpense is wrapped by every validation failure when creating or
// updating an expense
var ErrInvalidExpense = errors.New("invalid expense")

var (
	reUnsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	reSpaces         = regexp.MustCompile(`\s+`)
)

// IDGenerator generates unique IDs for expenses
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemTime struct{}

func (systemTime) Now() time.Time {
	return time.Now()
}

// ExpenseInput is the user-confirmed data for a new expense. Amount accepts
// a JSON number or a numeric string.
type ExpenseInput struct {
	Amount   json.Number `json:"amount"`
	Vendor   string      `json:"vendor"`
	Category string      `json:"category"`
	Date     string      `json:"date"`
}

// Service handles expense operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with uuid IDs and the system clock
func NewService(db DB, scanner scanning.Scanner, storage Storage) *Service {
	return NewServiceWithDeps(db, scanner, storage, uuidGenerator{}, systemTime{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// ParseReceipt extracts expense fields from an uploaded receipt and flags it
// when the user already has a matching expense. Nothing is saved.
func (s *Service) ParseReceipt(ctx context.Context, userID string, data []byte, contentType string) (*scanning.ParsedReceipt, error) {
	parsed, err := s.scanner.ScanReceipt(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"user", userID,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	candidate, ok := duplicateCandidate(userID, parsed)
	if !ok {
		return parsed, nil
	}

	dup, err := s.db.FindDuplicate(candidate)
	if err != nil {
		// A failed lookup only loses the warning
		slog.Warn("Duplicate check failed", "user", userID, "error", err)
		return parsed, nil
	}
	if dup != nil {
		parsed.IsDuplicate = true
		parsed.DuplicateID = dup.ID
	}
	return parsed, nil
}

// duplicateCandidate builds a candidate only when vendor, canonical date and
// amount were all extracted.
func duplicateCandidate(userID string, parsed *scanning.ParsedReceipt) (DuplicateCandidate, bool) {
	if parsed.Error != "" || parsed.Vendor == nil || parsed.Date == nil || parsed.Amount == nil {
		return DuplicateCandidate{}, false
	}
	if !extract.IsCanonicalDate(*parsed.Date) {
		return DuplicateCandidate{}, false
	}
	cents, err := toCents(*parsed.Amount)
	if err != nil || cents <= 0 {
		return DuplicateCandidate{}, false
	}
	return DuplicateCandidate{
		UserID: userID,
		Amount: cents,
		Date:   *parsed.Date,
		Vendor: *parsed.Vendor,
	}, true
}

// toCents converts a decimal amount string to whole cents
func toCents(amount string) (int, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("amount %q is not finite", amount)
	}
	return int(math.Round(v * 100)), nil
}

// CreateExpense validates and saves a user-confirmed expense
func (s *Service) CreateExpense(userID string, in ExpenseInput) (*Expense, error) {
	vendor := strings.TrimSpace(in.Vendor)
	category := strings.TrimSpace(in.Category)
	date := strings.TrimSpace(in.Date)

	if in.Amount == "" || vendor == "" || category == "" || date == "" {
		return nil, fmt.Errorf("%w: amount, vendor, category and date are required", ErrInvalidExpense)
	}
	cents, err := toCents(in.Amount.String())
	if err != nil || cents <= 0 {
		return nil, fmt.Errorf("%w: amount must be a positive number", ErrInvalidExpense)
	}
	if !extract.IsCanonicalDate(date) {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidExpense)
	}

	now := s.timeSource.Now()
	expense := &Expense{
		ID:        s.idGenerator.Generate(),
		UserID:    userID,
		Amount:    cents,
		Vendor:    vendor,
		Category:  category,
		Date:      date,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.db.SaveExpense(expense); err != nil {
		return nil, fmt.Errorf("saving expense: %w", err)
	}
	return expense, nil
}

// GetExpense retrieves one of a user's expenses
func (s *Service) GetExpense(userID, id string) (*Expense, error) {
	expense, err := s.db.GetExpense(userID, id)
	if err != nil {
		return nil, fmt.Errorf("getting expense: %w", err)
	}
	return expense, nil
}

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// Sort orders accepted by ListFilter
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// sortKeys compare two expenses ascending by the named field
var sortKeys = map[string]func(a, b *Expense) int{
	"date":      func(a, b *Expense) int { return cmp.Compare(a.Date, b.Date) },
	"amount":    func(a, b *Expense) int { return cmp.Compare(a.Amount, b.Amount) },
	"vendor":    func(a, b *Expense) int { return cmp.Compare(a.Vendor, b.Vendor) },
	"category":  func(a, b *Expense) int { return cmp.Compare(a.Category, b.Category) },
	"createdAt": func(a, b *Expense) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

// ListFilter narrows, orders and pages a user's expenses. Zero values do
// not filter; an unknown sort field or order falls back to date, newest first.
type ListFilter struct {
	Category  string
	StartDate string // YYYY-MM-DD, inclusive
	EndDate   string // YYYY-MM-DD, inclusive
	MinAmount int    // cents
	MaxAmount int    // cents

	SortBy string // date, amount, vendor, category or createdAt
	Order  string // asc or desc
	Page   int    // 1-based
	Limit  int    // 1..100, default 10
}

func (f ListFilter) keep(e *Expense) bool {
	switch {
	case f.Category != "" && e.Category != f.Category:
		return false
	case f.StartDate != "" && e.Date < f.StartDate:
		return false
	case f.EndDate != "" && e.Date > f.EndDate:
		return false
	case f.MinAmount > 0 && e.Amount < f.MinAmount:
		return false
	case f.MaxAmount > 0 && e.Amount > f.MaxAmount:
		return false
	}
	return true
}

// normalized fills defaults and clamps paging into range
func (f ListFilter) normalized() ListFilter {
	if _, ok := sortKeys[f.SortBy]; !ok {
		f.SortBy = "date"
	}
	if f.Order != SortAsc {
		f.Order = SortDesc
	}
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.Limit < 1:
		f.Limit = defaultListLimit
	case f.Limit > maxListLimit:
		f.Limit = maxListLimit
	}
	return f
}

// Pagination describes where a page sits in the full filtered list
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// ExpensePage is one page of a user's filtered expenses
type ExpensePage struct {
	Data       []*Expense `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// ListExpenses returns one page of a user's expenses matching filter
func (s *Service) ListExpenses(userID string, filter ListFilter) (*ExpensePage, error) {
	expenses, err := s.db.ListExpenses(userID)
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}

	filter = filter.normalized()
	kept := make([]*Expense, 0, len(expenses))
	for _, e := range expenses {
		if filter.keep(e) {
			kept = append(kept, e)
		}
	}

	// Stable so ties keep the store's newest-first order
	compare := sortKeys[filter.SortBy]
	slices.SortStableFunc(kept, func(a, b *Expense) int {
		if filter.Order == SortAsc {
			return compare(a, b)
		}
		return compare(b, a)
	})

	total := len(kept)
	from := min((filter.Page-1)*filter.Limit, total)
	to := min(from+filter.Limit, total)

	return &ExpensePage{
		Data: kept[from:to],
		Pagination: Pagination{
			Page:  filter.Page,
			Limit: filter.Limit,
			Total: total,
			Pages: (total + filter.Limit - 1) / filter.Limit,
		},
	}, nil
}

// UpdateExpense changes the fields set in in. Empty fields are left alone
// but any field that is set is validated like CreateExpense does.
func (s *Service) UpdateExpense(userID, id string, in ExpenseInput) (*Expense, error) {
	expense, err := s.db.GetExpense(userID, id)
	if err != nil {
		return nil, fmt.Errorf("getting expense: %w", err)
	}

	if in.Amount != "" {
		cents, err := toCents(in.Amount.String())
		if err != nil || cents <= 0 {
			return nil, fmt.Errorf("%w: amount must be a positive number", ErrInvalidExpense)
		}
		expense.Amount = cents
	}
	if date := strings.TrimSpace(in.Date); date != "" {
		if !extract.IsCanonicalDate(date) {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidExpense)
		}
		expense.Date = date
	}
	if vendor := strings.TrimSpace(in.Vendor); vendor != "" {
		expense.Vendor = vendor
	}
	if category := strings.TrimSpace(in.Category); category != "" {
		expense.Category = category
	}
	expense.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveExpense(expense); err != nil {
		return nil, fmt.Errorf("saving expense: %w", err)
	}
	return expense, nil
}

// DeleteExpense removes an expense and its receipt file
func (s *Service) DeleteExpense(userID, id string) error {
	expense, err := s.db.GetExpense(userID, id)
	if err != nil {
		return fmt.Errorf("getting expense for deletion: %w", err)
	}

	if expense.ReceiptFile != "" {
		if err := s.storage.Delete(expense.ReceiptFile); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete receipt file", "file", expense.ReceiptFile, "error", err)
		}
	}

	if err := s.db.DeleteExpense(userID, id); err != nil {
		return fmt.Errorf("deleting expense from database: %w", err)
	}
	return nil
}

// AttachReceipt stores the original receipt file for an expense, replacing
// any earlier one.
func (s *Service) AttachReceipt(userID, id, filename string, data []byte, contentType string) (*Expense, error) {
	expense, err := s.db.GetExpense(userID, id)
	if err != nil {
		return nil, fmt.Errorf("getting expense: %w", err)
	}

	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}

	previous := expense.ReceiptFile
	name := sanitizeFilename(filename)
	key := fmt.Sprintf("%s/%s_%s", sanitizeFilename(userID), expense.ID, name)
	if key == previous {
		// The attached file must survive until the new record is saved
		key = fmt.Sprintf("%s/%s_%s_%s", sanitizeFilename(userID), expense.ID, s.idGenerator.Generate(), name)
	}

	savedKey, err := s.storage.Save(key, data)
	if err != nil {
		return nil, fmt.Errorf("saving receipt file: %w", err)
	}

	updated := *expense
	updated.ReceiptFile = savedKey
	updated.ContentType = contentType
	updated.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveExpense(&updated); err != nil {
		// Clean up file if database save fails
		s.storage.Delete(savedKey)
		return nil, fmt.Errorf("saving expense: %w", err)
	}

	if previous != "" && previous != savedKey {
		if err := s.storage.Delete(previous); err != nil {
			slog.Warn("Failed to delete replaced receipt file", "file", previous, "error", err)
		}
	}
	return &updated, nil
}

// GetReceiptFile retrieves the receipt file attached to an expense
func (s *Service) GetReceiptFile(userID, id string) ([]byte, string, error) {
	expense, err := s.db.GetExpense(userID, id)
	if err != nil {
		return nil, "", fmt.Errorf("getting expense: %w", err)
	}
	if expense.ReceiptFile == "" {
		return nil, "", fmt.Errorf("expense %s has no receipt: %w", id, ErrNotFound)
	}

	data, err := s.storage.Get(expense.ReceiptFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, expense.ContentType, nil
}

// sanitizeFilename trims phone-generated filenames down to something safe to
// use as part of a storage key.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	ext = reUnsafeFilename.ReplaceAllString(strings.TrimPrefix(ext, "."), "")
	if ext != "" {
		ext = "." + ext
	}

	base = reUnsafeFilename.ReplaceAllString(base, "")
	base = strings.TrimSpace(reSpaces.ReplaceAllString(base, " "))
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}
