package profile

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/i474232898/farm-dashboard/internal/upstream"
)

// ErrNotFound is returned when the profile store has no such user.
var ErrNotFound = errors.New("user not found")

// User is the part of a stored profile the dashboard reads.
type User struct {
	ID       string `json:"_id,omitempty"`
	Name     string `json:"name,omitempty"`
	State    string `json:"state,omitempty"`
	District string `json:"district,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Store looks up user profiles.
type Store interface {
	GetUser(ctx context.Context, userID string) (User, error)
}

// HTTPStore reads profiles from the backend user API.
type HTTPStore struct {
	baseURL string
	client  *upstream.Client
}

func NewHTTPStore(baseURL string, client *upstream.Client) *HTTPStore {
	return &HTTPStore{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// GetUser fetches GET /api/user?id=<userID>.
func (s *HTTPStore) GetUser(ctx context.Context, userID string) (User, error) {
	values := url.Values{}
	values.Set("id", userID)

	var u User
	err := s.client.GetJSON(ctx, fmt.Sprintf("%s/api/user?%s", s.baseURL, values.Encode()), &u)
	if errors.Is(err, upstream.ErrNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to fetch user %s: %w", userID, err)
	}
	if u.ID == "" {
		u.ID = userID
	}
	return u, nil
}
