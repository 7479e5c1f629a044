package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/i474232898/farm-dashboard/internal/upstream"
)

// Service translates text from the base language into lang.
type Service interface {
	Translate(ctx context.Context, text, lang string) (string, error)
}

var errEmptyTranslation = errors.New("empty translation")

// HTTPService calls the backend translation endpoint.
type HTTPService struct {
	baseURL string
	client  *upstream.Client
}

func NewHTTPService(baseURL string, client *upstream.Client) *HTTPService {
	return &HTTPService{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Translate posts {text, lang} to /api/translate.
func (s *HTTPService) Translate(ctx context.Context, text, lang string) (string, error) {
	body := struct {
		Text string `json:"text"`
		Lang string `json:"lang"`
	}{Text: text, Lang: lang}

	var out struct {
		Translated string `json:"translated"`
	}
	if err := s.client.PostJSON(ctx, s.baseURL+"/api/translate", body, &out); err != nil {
		return "", fmt.Errorf("translate to %s: %w", lang, err)
	}
	if out.Translated == "" {
		return "", errEmptyTranslation
	}
	return out.Translated, nil
}
