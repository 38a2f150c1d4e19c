package expense

import (
	"context"
	"errors"
	"sync"
)

// errSuperseded is the cancellation cause of a parse replaced by a newer
// upload from the same user.
var errSuperseded = errors.New("superseded by a newer upload")

// inflight tracks one running parse per key and cancels the older one when
// a new one begins.
type inflight struct {
	mu      sync.Mutex
	entries map[string]*inflightEntry
}

type inflightEntry struct {
	cancel context.CancelCauseFunc
}

func newInflight() *inflight {
	return &inflight{entries: make(map[string]*inflightEntry)}
}

// begin derives a context for a parse under key, canceling any parse
// already running under it. done must be called when the parse finishes.
func (f *inflight) begin(ctx context.Context, key string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	entry := &inflightEntry{cancel: cancel}

	f.mu.Lock()
	if prev, ok := f.entries[key]; ok {
		prev.cancel(errSuperseded)
	}
	f.entries[key] = entry
	f.mu.Unlock()

	done := func() {
		f.mu.Lock()
		if f.entries[key] == entry {
			delete(f.entries, key)
		}
		f.mu.Unlock()
		cancel(nil)
	}
	return ctx, done
}

// len returns the number of running parses
func (f *inflight) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// superseded reports whether ctx was canceled by a newer parse
func superseded(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), errSuperseded)
}
