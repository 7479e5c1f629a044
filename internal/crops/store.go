package crops

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/i474232898/farm-dashboard/internal/upstream"
)

// Store persists a user's crops. It is the migration authority: listing
// active crops moves any whose date has passed into history.
type Store interface {
	ListActive(ctx context.Context, userID string) ([]Entry, error)
	// ListHistory returns harvested crops, most recent date first. A
	// non-positive limit means no limit.
	ListHistory(ctx context.Context, userID string, limit int) ([]Entry, error)
	Add(ctx context.Context, userID string, e Entry) error
}

// HTTPStore talks to the backend crop API.
type HTTPStore struct {
	baseURL string
	client  *upstream.Client
}

func NewHTTPStore(baseURL string, client *upstream.Client) *HTTPStore {
	return &HTTPStore{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *HTTPStore) ListActive(ctx context.Context, userID string) ([]Entry, error) {
	values := url.Values{}
	values.Set("userID", userID)

	var out []Entry
	if err := s.client.GetJSON(ctx, fmt.Sprintf("%s/api/crops/get?%s", s.baseURL, values.Encode()), &out); err != nil {
		return nil, fmt.Errorf("list active crops: %w", err)
	}
	return out, nil
}

func (s *HTTPStore) ListHistory(ctx context.Context, userID string, limit int) ([]Entry, error) {
	values := url.Values{}
	values.Set("userID", userID)
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}

	var out []Entry
	if err := s.client.GetJSON(ctx, fmt.Sprintf("%s/api/crops/history?%s", s.baseURL, values.Encode()), &out); err != nil {
		return nil, fmt.Errorf("list crop history: %w", err)
	}
	return out, nil
}

func (s *HTTPStore) Add(ctx context.Context, userID string, e Entry) error {
	body := struct {
		UserID string `json:"userID"`
		Text   string `json:"text"`
		Date   string `json:"date"`
	}{UserID: userID, Text: e.Text, Date: e.Date}

	if err := s.client.PostJSON(ctx, s.baseURL+"/api/crops/add", body, nil); err != nil {
		return fmt.Errorf("add crop: %w", err)
	}
	return nil
}
