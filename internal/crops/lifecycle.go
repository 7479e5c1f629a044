package crops

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const day = 24 * time.Hour

// Unit is the granularity of a TimeLeft.
type Unit string

const (
	UnitDays   Unit = "days"
	UnitMonths Unit = "months"
	UnitYears  Unit = "years"
)

// TimeLeft is the remaining time until harvest, kept structured so the
// unit can be localized separately from the number.
type TimeLeft struct {
	Completed bool `json:"completed"`
	Value     int  `json:"value,omitempty"`
	Unit      Unit `json:"unit,omitempty"`
}

func (t TimeLeft) String() string {
	if t.Completed {
		return "completed"
	}
	return fmt.Sprintf("%d %s", t.Value, t.Unit)
}

// TimeLeftLabel reports the time remaining until target. Whole days are
// rounded up, months are ceil(days/30) and years floor(months/12).
func TimeLeftLabel(target, now time.Time) TimeLeft {
	diff := target.Sub(now)
	if diff <= 0 {
		return TimeLeft{Completed: true}
	}

	days := int(math.Ceil(float64(diff) / float64(day)))
	months := int(math.Ceil(float64(days) / 30))
	years := months / 12

	switch {
	case years >= 1:
		return TimeLeft{Value: years, Unit: UnitYears}
	case months > 1:
		return TimeLeft{Value: months, Unit: UnitMonths}
	default:
		return TimeLeft{Value: days, Unit: UnitDays}
	}
}

// ProgressPercent estimates how far a crop is through its cycle. The cycle
// length is guessed from the time remaining: two years past 365 days, one
// year past 30 days, otherwise 30 days.
func ProgressPercent(target, now time.Time) float64 {
	diff := target.Sub(now)
	if diff <= 0 {
		return 100
	}

	days := float64(diff) / float64(day)
	cycle := 30.0
	switch {
	case days > 365:
		cycle = 730
	case days > 30:
		cycle = 365
	}

	progress := (1 - days/cycle) * 100
	return math.Min(math.Max(progress, 0), 100)
}

// DisplayActive returns entries dated strictly after now, furthest date
// first. Entries with unreadable dates are dropped.
func DisplayActive(entries []Entry, now time.Time) []Entry {
	type dated struct {
		entry Entry
		at    time.Time
	}

	kept := make([]dated, 0, len(entries))
	for _, e := range entries {
		at, err := ParseDate(e.Date)
		if err != nil || !at.After(now) {
			continue
		}
		kept = append(kept, dated{entry: e, at: at})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].at.After(kept[j].at)
	})

	out := make([]Entry, len(kept))
	for i, d := range kept {
		out[i] = d.entry
	}
	return out
}
