package providers

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

var errMissingAPIKey = errors.New("api key is not configured")

func coords(values url.Values, latKey, lonKey string, lat, lon float64) {
	values.Set(latKey, formatCoord(lat))
	values.Set(lonKey, formatCoord(lon))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func trimBase(baseURL, fallback string) string {
	if baseURL == "" {
		return fallback
	}
	return strings.TrimRight(baseURL, "/")
}

func ptr[T any](v T) *T { return &v }
