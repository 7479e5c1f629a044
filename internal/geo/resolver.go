package geo

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/i474232898/farm-dashboard/internal/profile"
)

// DefaultLocation is used when neither the device nor the profile yields a
// position.
var DefaultLocation = Location{
	District: "New Delhi",
	State:    "Delhi",
	Coords:   &Coordinates{Lat: 28.6139, Lon: 77.2090},
	Source:   SourceDefault,
}

// Strategy is one step of the fallback chain. ok=false defers to the next
// strategy.
type Strategy struct {
	Name    string
	Resolve func(ctx context.Context) (loc Location, ok bool)
}

// Resolver determines a user's location by trying the device position, then
// the stored profile, then a fixed default.
type Resolver struct {
	geocoder Geocoder
	profiles profile.Store
	fallback Location
}

// NewResolver creates a Resolver. A zero fallback means DefaultLocation.
func NewResolver(geocoder Geocoder, profiles profile.Store, fallback Location) *Resolver {
	if fallback.Coords == nil {
		fallback = DefaultLocation
	}
	fallback.Source = SourceDefault
	return &Resolver{geocoder: geocoder, profiles: profiles, fallback: fallback}
}

// Resolve never fails: it always converges on a usable Location.
func (r *Resolver) Resolve(ctx context.Context, userID string, device Geolocator) Location {
	log := klog.FromContext(ctx)

	for _, s := range r.Strategies(userID, device) {
		if loc, ok := s.Resolve(ctx); ok {
			log.V(1).Info("location resolved", "strategy", s.Name, "district", loc.District, "state", loc.State)
			return loc
		}
		log.V(1).Info("location strategy deferred", "strategy", s.Name)
	}
	return r.Default()
}

// Strategies returns the ordered fallback chain for one resolution.
func (r *Resolver) Strategies(userID string, device Geolocator) []Strategy {
	return []Strategy{
		{Name: SourceDevice, Resolve: func(ctx context.Context) (Location, bool) {
			return r.fromDevice(ctx, device)
		}},
		{Name: SourceProfile, Resolve: func(ctx context.Context) (Location, bool) {
			return r.fromProfile(ctx, userID)
		}},
		{Name: SourceDefault, Resolve: func(context.Context) (Location, bool) {
			return r.Default(), true
		}},
	}
}

// Default returns a copy of the fallback location.
func (r *Resolver) Default() Location {
	loc := r.fallback
	c := *loc.Coords
	loc.Coords = &c
	return loc
}

func (r *Resolver) fromDevice(ctx context.Context, device Geolocator) (Location, bool) {
	if device == nil {
		return Location{}, false
	}
	log := klog.FromContext(ctx)

	pos, err := device.CurrentPosition(ctx)
	if err != nil {
		log.Info("geolocation unavailable, falling back", "error", err.Error())
		return Location{}, false
	}

	loc := Location{Coords: &pos, Source: SourceDevice}

	if r.geocoder == nil {
		loc.Note = NoteNameUnavailable
		return loc, true
	}

	addr, err := r.geocoder.Reverse(ctx, pos)
	if err != nil {
		// Coordinates are still good enough for weather.
		log.Error(err, "reverse geocoding failed", "lat", pos.Lat, "lon", pos.Lon)
		loc.Note = NoteNameUnavailable
		return loc, true
	}

	loc.District = addr.Locality()
	loc.State = addr.StateName()
	return loc, true
}

func (r *Resolver) fromProfile(ctx context.Context, userID string) (Location, bool) {
	if userID == "" || r.profiles == nil || r.geocoder == nil {
		return Location{}, false
	}
	log := klog.FromContext(ctx)

	u, err := r.profiles.GetUser(ctx, userID)
	if err != nil {
		log.Error(err, "profile lookup failed", "user", userID)
		return Location{}, false
	}
	if u.State == "" {
		return Location{}, false
	}

	district := u.District
	query := u.State
	if district != "" {
		query = fmt.Sprintf("%s, %s", district, u.State)
	} else {
		district = u.State
	}

	hits, err := r.geocoder.Forward(ctx, query)
	if err != nil {
		log.Error(err, "forward geocoding failed", "query", query)
		return Location{}, false
	}
	if len(hits) == 0 {
		return Location{}, false
	}

	pos := hits[0]
	return Location{
		District: district,
		State:    u.State,
		Coords:   &pos,
		Source:   SourceProfile,
	}, true
}
