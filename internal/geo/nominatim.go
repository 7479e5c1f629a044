package geo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/i474232898/farm-dashboard/internal/upstream"
)

// DefaultNominatimURL is the public OpenStreetMap Nominatim endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// NominatimGeocoder implements Geocoder against an OpenStreetMap Nominatim
// server. Nominatim requires an identifying User-Agent, which the upstream
// client should carry.
type NominatimGeocoder struct {
	baseURL string
	client  *upstream.Client
}

func NewNominatimGeocoder(baseURL string, client *upstream.Client) *NominatimGeocoder {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	return &NominatimGeocoder{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Reverse resolves coordinates to an address.
func (g *NominatimGeocoder) Reverse(ctx context.Context, c Coordinates) (Address, error) {
	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(c.Lon, 'f', -1, 64))
	values.Set("format", "json")

	var payload struct {
		Address *Address `json:"address"`
		Error   string   `json:"error"`
	}
	if err := g.client.GetJSON(ctx, fmt.Sprintf("%s/reverse?%s", g.baseURL, values.Encode()), &payload); err != nil {
		return Address{}, err
	}
	if payload.Error != "" {
		return Address{}, fmt.Errorf("nominatim reverse: %s", payload.Error)
	}
	if payload.Address == nil {
		return Address{}, errors.New("nominatim reverse: response has no address")
	}
	return *payload.Address, nil
}

// Forward resolves a free-form query to at most one coordinate pair.
func (g *NominatimGeocoder) Forward(ctx context.Context, query string) ([]Coordinates, error) {
	values := url.Values{}
	values.Set("q", query)
	values.Set("format", "json")
	values.Set("limit", "1")

	// Nominatim encodes coordinates as strings.
	var payload []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := g.client.GetJSON(ctx, fmt.Sprintf("%s/search?%s", g.baseURL, values.Encode()), &payload); err != nil {
		return nil, err
	}

	out := make([]Coordinates, 0, len(payload))
	for _, p := range payload {
		lat, err := strconv.ParseFloat(p.Lat, 64)
		if err != nil {
			return nil, fmt.Errorf("nominatim search: invalid latitude %q: %w", p.Lat, err)
		}
		lon, err := strconv.ParseFloat(p.Lon, 64)
		if err != nil {
			return nil, fmt.Errorf("nominatim search: invalid longitude %q: %w", p.Lon, err)
		}
		out = append(out, Coordinates{Lat: lat, Lon: lon})
	}
	return out, nil
}
