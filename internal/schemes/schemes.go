package schemes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/i474232898/farm-dashboard/internal/upstream"
)

// Record is a government scheme recommended for one crop.
type Record struct {
	SchemeName    string   `json:"scheme_name"`
	StateMinistry string   `json:"state_ministry"`
	Description   string   `json:"description"`
	Link          string   `json:"scheme_link"`
	Tags          []string `json:"tags,omitempty"`
	Score         float64  `json:"score,omitempty"`

	// Set by the matcher, not the service.
	CropName string `json:"crop"`
	CropDate string `json:"cropDate"`
}

// Query asks the recommendation service for the best scheme for a crop in a
// state, excluding schemes already shown.
type Query struct {
	Crop  string   `json:"crop"`
	State string   `json:"state"`
	Shown []string `json:"shown_schemes"`
	Lang  string   `json:"lang"`
}

// Service recommends schemes. A nil record with a nil error means no scheme
// matched.
type Service interface {
	MatchByCrop(ctx context.Context, q Query) (*Record, error)
}

// HTTPService calls the backend scheme recommender.
type HTTPService struct {
	baseURL string
	client  *upstream.Client
}

func NewHTTPService(baseURL string, client *upstream.Client) *HTTPService {
	return &HTTPService{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// MatchByCrop posts to /api/scheme/bycrop. The backend answers 404 when it
// has nothing left to recommend.
func (s *HTTPService) MatchByCrop(ctx context.Context, q Query) (*Record, error) {
	if q.Shown == nil {
		q.Shown = []string{}
	}

	var payload struct {
		Recommended *Record `json:"recommended_scheme"`
	}
	err := s.client.PostJSON(ctx, s.baseURL+"/api/scheme/bycrop", q, &payload)
	if errors.Is(err, upstream.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("match scheme for %q: %w", q.Crop, err)
	}
	return payload.Recommended, nil
}
