package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"k8s.io/klog/v2"

	"github.com/i474232898/farm-dashboard/internal/crops"
	"github.com/i474232898/farm-dashboard/internal/store"
)

// KeyPrefix prefixes the per-user dismissed set in the KV store.
const KeyPrefix = "dismissed_notifications:"

// Service lists harvested crops the user has not dismissed yet.
type Service struct {
	crops crops.Store
	kv    store.KV

	// Serializes read-modify-write of dismissed sets.
	mu sync.Mutex
}

func NewService(cropStore crops.Store, kv store.KV) *Service {
	return &Service{crops: cropStore, kv: kv}
}

func key(userID string) string {
	return KeyPrefix + userID
}

// List returns the user's harvest notifications. Active crops are listed
// first so the store migrates anything that has just expired.
func (s *Service) List(ctx context.Context, userID string) ([]crops.Entry, error) {
	if _, err := s.crops.ListActive(ctx, userID); err != nil {
		// Migration is best effort; history may just lag one poll.
		klog.FromContext(ctx).Error(err, "listing active crops before notifications", "user", userID)
	}

	history, err := s.crops.ListHistory(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	dismissed, err := s.Dismissed(ctx, userID)
	if err != nil {
		return nil, err
	}
	skip := make(map[string]bool, len(dismissed))
	for _, id := range dismissed {
		skip[id] = true
	}

	out := make([]crops.Entry, 0, len(history))
	for _, e := range history {
		if !skip[e.ID()] {
			out = append(out, e)
		}
	}
	return out, nil
}

// Dismiss hides a notification for good.
func (s *Service) Dismiss(ctx context.Context, userID string, e crops.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.Dismissed(ctx, userID)
	if err != nil {
		return err
	}
	id := e.ID()
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)

	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, key(userID), data, 0); err != nil {
		return fmt.Errorf("save dismissed notifications: %w", err)
	}
	return nil
}

// Dismissed returns the dismissed notification ids, "<text>_<date>".
func (s *Service) Dismissed(ctx context.Context, userID string) ([]string, error) {
	data, err := s.kv.Get(ctx, key(userID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load dismissed notifications: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		klog.FromContext(ctx).Info("resetting unreadable dismissed set", "user", userID, "error", err.Error())
		return nil, nil
	}
	return ids, nil
}
