package weather

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// To12Hour converts an "HH:MM" clock string to the 12-hour form used for
// display: "00:30" becomes "12:30 AM", "13:05" becomes "1:05 PM".
func To12Hour(hhmm string) (string, error) {
	h, m, ok := strings.Cut(hhmm, ":")
	if !ok || len(m) != 2 {
		return "", fmt.Errorf("invalid clock %q", hhmm)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", hhmm)
	}
	if minute, err := strconv.Atoi(m); err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", hhmm)
	}

	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h12 := hour % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%s %s", h12, m, suffix), nil
}

// TransformForecast turns the raw series into display points, keeping the
// source order. Items whose timestamp cannot be read are skipped.
func TransformForecast(raw []RawForecastItem) []ForecastPoint {
	points := make([]ForecastPoint, 0, len(raw))
	for _, item := range raw {
		label, err := timeLabel(item.Time)
		if err != nil {
			continue
		}
		rain := 0.0
		if item.RainMm != nil {
			rain = *item.RainMm
		}
		points = append(points, ForecastPoint{
			TimeLabel:   label,
			TempC:       item.TempC,
			HumidityPct: item.HumidityPct,
			RainMm:      rain,
		})
	}
	return points
}

func timeLabel(ts string) (string, error) {
	t, err := time.Parse(TimeFormat, ts)
	if err != nil {
		return "", fmt.Errorf("invalid forecast timestamp %q: %w", ts, err)
	}
	return To12Hour(t.Format("15:04"))
}
