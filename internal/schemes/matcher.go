package schemes

import (
	"context"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/i474232898/farm-dashboard/internal/crops"
	"github.com/i474232898/farm-dashboard/internal/metrics"
)

const (
	// MinActiveCrops is the active-crop count below which history is used
	// to fill the initial batch.
	MinActiveCrops = 3
	// HistoryLimit caps how many harvested crops join the initial batch.
	HistoryLimit = 3
)

// HistoryFetcher returns up to limit harvested crops, most recent first.
type HistoryFetcher func(ctx context.Context, limit int) ([]crops.Entry, error)

// Matcher picks schemes for crops without ever recommending the same scheme
// twice in one run.
type Matcher struct {
	service Service
	now     func() time.Time
}

func NewMatcher(service Service, now func() time.Time) *Matcher {
	if now == nil {
		now = time.Now
	}
	return &Matcher{service: service, now: now}
}

// MatchOne asks for a scheme for crop, excluding shown. It returns nil when
// no state is known, nothing matches or the service fails; failures are
// logged, not returned. An empty cropDate is recorded as the current time.
func (m *Matcher) MatchOne(ctx context.Context, crop, cropDate, state string, shown []string, lang string) *Record {
	if state == "" || strings.TrimSpace(crop) == "" {
		return nil
	}
	log := klog.FromContext(ctx)

	rec, err := m.service.MatchByCrop(ctx, Query{Crop: crop, State: state, Shown: shown, Lang: lang})
	if err != nil {
		metrics.RecordSchemeMatch("error")
		log.Error(err, "scheme match failed", "crop", crop, "state", state)
		return nil
	}
	if rec == nil || rec.SchemeName == "" {
		metrics.RecordSchemeMatch("none")
		log.V(1).Info("no scheme for crop", "crop", crop, "state", state)
		return nil
	}
	for _, name := range shown {
		if name == rec.SchemeName {
			metrics.RecordSchemeMatch("duplicate")
			log.Info("dropping already shown scheme", "scheme", rec.SchemeName, "crop", crop)
			return nil
		}
	}

	if cropDate == "" {
		cropDate = m.now().UTC().Format(time.RFC3339)
	}
	out := *rec
	out.CropName = crop
	out.CropDate = cropDate
	metrics.RecordSchemeMatch("matched")
	return &out
}

// MatchInitial builds the first batch of schemes for a session. With fewer
// than MinActiveCrops active crops, up to HistoryLimit harvested crops are
// appended as candidates. Candidates are matched one at a time so each call
// sees every scheme already chosen.
func (m *Matcher) MatchInitial(ctx context.Context, active []crops.Entry, history HistoryFetcher, state, lang string) []Record {
	if state == "" {
		return nil
	}

	candidates := append([]crops.Entry(nil), active...)
	if len(candidates) < MinActiveCrops && history != nil {
		past, err := history(ctx, HistoryLimit)
		if err != nil {
			klog.FromContext(ctx).Error(err, "fetching crop history for schemes")
		} else {
			if len(past) > HistoryLimit {
				past = past[:HistoryLimit]
			}
			candidates = append(candidates, past...)
		}
	}

	var (
		out   []Record
		shown []string
	)
	for _, c := range candidates {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		rec := m.MatchOne(ctx, c.Text, c.Date, state, shown, lang)
		if rec == nil {
			continue
		}
		out = append(out, *rec)
		shown = append(shown, rec.SchemeName)
	}
	return out
}

// Names returns the scheme names of records, in order.
func Names(records []Record) []string {
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.SchemeName)
	}
	return names
}
