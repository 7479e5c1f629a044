package crops

import (
	"context"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// Ledger holds one user's active crops in memory, backed by a Store.
type Ledger struct {
	mu     sync.RWMutex
	store  Store
	userID string
	active []Entry
	now    func() time.Time
}

// NewLedger creates an empty Ledger for userID. Call Refresh to load it.
func NewLedger(store Store, userID string, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, userID: userID, now: now}
}

// Add validates e, persists it and appends it to the active list. Invalid
// entries return false and ErrInvalidEntry without reaching the store.
func (l *Ledger) Add(ctx context.Context, e Entry) (bool, error) {
	e, err := Normalize(e)
	if err != nil {
		return false, err
	}
	if err := l.store.Add(ctx, l.userID, e); err != nil {
		return false, err
	}

	l.mu.Lock()
	l.active = append(l.active, e)
	l.mu.Unlock()

	klog.FromContext(ctx).V(1).Info("crop added", "user", l.userID, "crop", e.Text, "date", e.Date)
	return true, nil
}

// Refresh reloads the active list from the store. On error the previous list
// is kept.
func (l *Ledger) Refresh(ctx context.Context) error {
	entries, err := l.store.ListActive(ctx, l.userID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.active = entries
	l.mu.Unlock()
	return nil
}

// ListActive returns a copy of the active list as last loaded.
func (l *Ledger) ListActive() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.active))
	copy(out, l.active)
	return out
}

// Display returns the active list filtered and ordered for display.
func (l *Ledger) Display() []Entry {
	return DisplayActive(l.ListActive(), l.now())
}

// ListHistory fetches up to limit harvested crops.
func (l *Ledger) ListHistory(ctx context.Context, limit int) ([]Entry, error) {
	return l.store.ListHistory(ctx, l.userID, limit)
}

// UserID returns the ledger owner.
func (l *Ledger) UserID() string {
	return l.userID
}
