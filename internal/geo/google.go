package geo

import (
	"context"
	"fmt"
	"sync"

	"github.com/kelvins/geocoder"
)

// keyMu guards the geocoder package's global API key.
var keyMu sync.Mutex

// GoogleGeocoder implements Geocoder with the Google Geocoding API.
type GoogleGeocoder struct {
	apiKey string
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{apiKey: apiKey}
}

// Reverse maps the first Google result onto Address. Google has no
// suburb/quarter split, so neighborhood and district carry that detail.
func (g *GoogleGeocoder) Reverse(ctx context.Context, c Coordinates) (Address, error) {
	if err := ctx.Err(); err != nil {
		return Address{}, err
	}

	keyMu.Lock()
	geocoder.ApiKey = g.apiKey
	addresses, err := geocoder.GeocodingReverse(geocoder.Location{Latitude: c.Lat, Longitude: c.Lon})
	keyMu.Unlock()
	if err != nil {
		return Address{}, fmt.Errorf("google reverse geocoding: %w", err)
	}
	if len(addresses) == 0 {
		return Address{}, fmt.Errorf("google reverse geocoding: no results for %f,%f", c.Lat, c.Lon)
	}

	a := addresses[0]
	return Address{
		Neighbourhood: a.Neighborhood,
		City:          a.City,
		CityDistrict:  a.District,
		County:        a.County,
		State:         a.State,
	}, nil
}

// Forward geocodes a "<district>, <state>" style query.
func (g *GoogleGeocoder) Forward(ctx context.Context, query string) ([]Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keyMu.Lock()
	geocoder.ApiKey = g.apiKey
	loc, err := geocoder.Geocoding(geocoder.Address{City: query})
	keyMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("google geocoding %q: %w", query, err)
	}
	if loc.Latitude == 0 && loc.Longitude == 0 {
		return nil, nil
	}
	return []Coordinates{{Lat: loc.Latitude, Lon: loc.Longitude}}, nil
}
