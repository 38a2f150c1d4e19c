package expense

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/zombor/expense-tracker/internal/extract"
)

// maxUploadSize allows high-resolution phone photos
var maxUploadSize int64 = 50 << 20

// uploadFields are the multipart fields accepted for a receipt, in order
var uploadFields = []string{"receipt", "file"}

// writeJSON writes v as a JSON response with the given status
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body with CORS headers set
func writeError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	writeJSON(w, code, map[string]string{"error": message})
}

// readUpload reads the receipt file from a multipart request. On failure it
// returns the message and HTTP status to answer with.
func readUpload(w http.ResponseWriter, r *http.Request) (*multipart.FileHeader, []byte, string, int) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, nil, "File is too large. Maximum size is 50MB.", http.StatusRequestEntityTooLarge
		}
		return nil, nil, "Error parsing form", http.StatusBadRequest
	}

	for _, field := range uploadFields {
		f, header, err := r.FormFile(field)
		if err != nil {
			continue
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			slog.Error("Error reading file data", "error", err, "filename", header.Filename)
			return nil, nil, "Error reading file. Please try again.", http.StatusInternalServerError
		}
		if len(data) == 0 {
			return nil, nil, "Uploaded file is empty", http.StatusBadRequest
		}
		return header, data, "", http.StatusOK
	}
	return nil, nil, "No file uploaded", http.StatusBadRequest
}

// uploadContentType prefers the part's declared type and otherwise sniffs
// the bytes. Only image and PDF types are passed on; anything else is left
// empty so the parser decides from the file signature.
func uploadContentType(header *multipart.FileHeader, data []byte) string {
	declared := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	detected := mimetype.Detect(data)
	if detected.Is("application/pdf") || strings.HasPrefix(detected.String(), "image/") {
		return detected.String()
	}
	return ""
}

// handleParseReceipt extracts expense fields from an uploaded receipt
func (s *Server) handleParseReceipt(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	header, data, msg, code := readUpload(w, r)
	if msg != "" {
		writeError(w, msg, code)
		return
	}
	contentType := uploadContentType(header, data)

	ctx, done := s.parses.begin(r.Context(), user)
	defer done()

	parsed, err := s.service.ParseReceipt(ctx, user, data, contentType)

	switch {
	case superseded(ctx):
		slog.Info("Receipt parse superseded", "user", user, "filename", header.Filename)
		writeError(w, "Superseded by a newer upload", http.StatusConflict)
	case r.Context().Err() != nil:
		slog.Info("Client went away during receipt parse", "user", user, "filename", header.Filename)
	case err != nil:
		slog.Error("Error parsing receipt", "user", user, "filename", header.Filename, "error", err)
		writeError(w, "Error parsing receipt", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, parsed)
	}
}

// handleCreateExpense saves a user-confirmed expense
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var in ExpenseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	expense, err := s.service.CreateExpense(user, in)
	if errors.Is(err, ErrInvalidExpense) {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("Error creating expense", "user", user, "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, expense)
}

// listFilter reads the list query parameters. Amounts are in dollars.
func listFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{
		Category:  q.Get("category"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		SortBy:    q.Get("sortBy"),
		Order:     strings.ToLower(q.Get("order")),
	}

	for _, d := range []string{filter.StartDate, filter.EndDate} {
		if d != "" && !extract.IsCanonicalDate(d) {
			return ListFilter{}, fmt.Errorf("dates must be YYYY-MM-DD")
		}
	}

	var err error
	if v := q.Get("minAmount"); v != "" {
		if filter.MinAmount, err = toCents(v); err != nil {
			return ListFilter{}, fmt.Errorf("minAmount must be a number")
		}
	}
	if v := q.Get("maxAmount"); v != "" {
		if filter.MaxAmount, err = toCents(v); err != nil {
			return ListFilter{}, fmt.Errorf("maxAmount must be a number")
		}
	}
	if v := q.Get("page"); v != "" {
		if filter.Page, err = strconv.Atoi(v); err != nil {
			return ListFilter{}, fmt.Errorf("page must be an integer")
		}
	}
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			return ListFilter{}, fmt.Errorf("limit must be an integer")
		}
	}
	return filter, nil
}

// handleListExpenses returns the user's expenses
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	filter, err := listFilter(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	page, err := s.service.ListExpenses(user, filter)
	if err != nil {
		slog.Error("Error listing expenses", "user", user, "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if page.Data == nil {
		page.Data = []*Expense{}
	}
	writeJSON(w, http.StatusOK, page)
}

// handleUpdateExpense changes the fields sent in the body
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var in ExpenseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	expense, err := s.service.UpdateExpense(userFromContext(r.Context()), r.PathValue("id"), in)
	if errors.Is(err, ErrInvalidExpense) {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.lookupError(w, "updating expense", err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

// handleGetExpense returns a single expense
func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	expense, err := s.service.GetExpense(userFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		s.lookupError(w, "getting expense", err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

// handleDeleteExpense deletes an expense
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteExpense(userFromContext(r.Context()), r.PathValue("id")); err != nil {
		s.lookupError(w, "deleting expense", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAttachReceipt stores the receipt file for an expense
func (s *Server) handleAttachReceipt(w http.ResponseWriter, r *http.Request) {
	header, data, msg, code := readUpload(w, r)
	if msg != "" {
		writeError(w, msg, code)
		return
	}

	expense, err := s.service.AttachReceipt(
		userFromContext(r.Context()),
		r.PathValue("id"),
		header.Filename,
		data,
		uploadContentType(header, data),
	)
	if err != nil {
		s.lookupError(w, "attaching receipt", err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

// handleGetReceiptFile returns the receipt file for an expense
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReceiptFile(userFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		s.lookupError(w, "getting receipt file", err)
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// lookupError maps ErrNotFound to 404 and anything else to 500
func (s *Server) lookupError(w http.ResponseWriter, action string, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, "Expense not found", http.StatusNotFound)
		return
	}
	slog.Error("Error "+action, "error", err)
	writeError(w, "Internal server error", http.StatusInternalServerError)
}
