package expense

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

// expensesBucket holds one nested bucket per user, keyed by expense ID
const expensesBucket = "expenses"

// ErrNotFound is returned when an expense does not exist for the user
var ErrNotFound = errors.New("expense not found")

// DB defines the interface for database operations
type DB interface {
	// SaveExpense creates or replaces an expense
	SaveExpense(expense *Expense) error

	// GetExpense retrieves one of a user's expenses by ID
	GetExpense(userID, id string) (*Expense, error)

	// ListExpenses returns a user's expenses, newest date first
	ListExpenses(userID string) ([]*Expense, error)

	// DeleteExpense removes one of a user's expenses
	DeleteExpense(userID, id string) error

	// FindDuplicate returns the first saved expense matching the candidate, or nil
	FindDuplicate(candidate DuplicateCandidate) (*Expense, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) the database at path
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(expensesBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// userBucket returns the user's bucket, or nil if the user has no expenses yet
func userBucket(tx *bbolt.Tx, userID string) *bbolt.Bucket {
	return tx.Bucket([]byte(expensesBucket)).Bucket([]byte(userID))
}

// SaveExpense creates or replaces an expense
func (b *BoltDB) SaveExpense(expense *Expense) error {
	if expense.UserID == "" {
		return errors.New("expense has no user")
	}
	data, err := json.Marshal(expense)
	if err != nil {
		return fmt.Errorf("marshaling expense: %w", err)
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.Bucket([]byte(expensesBucket)).CreateBucketIfNotExists([]byte(expense.UserID))
		if err != nil {
			return fmt.Errorf("creating user bucket: %w", err)
		}
		return bucket.Put([]byte(expense.ID), data)
	})
}

// GetExpense retrieves one of a user's expenses by ID
func (b *BoltDB) GetExpense(userID, id string) (*Expense, error) {
	var expense *Expense
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := userBucket(tx, userID)
		if bucket == nil {
			return ErrNotFound
		}
		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &expense)
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// ListExpenses returns a user's expenses, newest date first
func (b *BoltDB) ListExpenses(userID string) ([]*Expense, error) {
	expenses := make([]*Expense, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := userBucket(tx, userID)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var expense Expense
			if err := json.Unmarshal(v, &expense); err != nil {
				return fmt.Errorf("unmarshaling expense: %w", err)
			}
			expenses = append(expenses, &expense)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// Canonical dates sort lexically
	sort.SliceStable(expenses, func(i, j int) bool {
		if expenses[i].Date != expenses[j].Date {
			return expenses[i].Date > expenses[j].Date
		}
		return expenses[i].CreatedAt.After(expenses[j].CreatedAt)
	})
	return expenses, nil
}

// DeleteExpense removes one of a user's expenses
func (b *BoltDB) DeleteExpense(userID, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := userBucket(tx, userID)
		if bucket == nil || bucket.Get([]byte(id)) == nil {
			return ErrNotFound
		}
		return bucket.Delete([]byte(id))
	})
}

// FindDuplicate scans the candidate user's expenses in one read transaction
// and returns the first that matches.
func (b *BoltDB) FindDuplicate(candidate DuplicateCandidate) (*Expense, error) {
	var found *Expense
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := userBucket(tx, candidate.UserID)
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var expense Expense
			if err := json.Unmarshal(v, &expense); err != nil {
				return fmt.Errorf("unmarshaling expense %s: %w", k, err)
			}
			if candidate.matches(&expense) {
				found = &expense
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

// containsVendor is a case-sensitive substring check. "Corner Deli" matches a
// saved "The Corner Deli Inc" but not "CORNER DELI".
func containsVendor(saved, candidate string) bool {
	return strings.Contains(saved, candidate)
}
