package weather

import "testing"

func TestTo12Hour(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"00:00", "12:00 AM"},
		{"00:30", "12:30 AM"},
		{"03:00", "3:00 AM"},
		{"11:59", "11:59 AM"},
		{"12:00", "12:00 PM"},
		{"12:45", "12:45 PM"},
		{"13:00", "1:00 PM"},
		{"23:59", "11:59 PM"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := To12Hour(tt.in)
			if err != nil {
				t.Fatalf("To12Hour(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("To12Hour(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTo12Hour_Invalid(t *testing.T) {
	for _, in := range []string{"", "24:00", "7", "ab:cd", "12:5", "12:60"} {
		if _, err := To12Hour(in); err == nil {
			t.Errorf("To12Hour(%q) expected error", in)
		}
	}
}

func TestTransformForecast(t *testing.T) {
	raw := []RawForecastItem{
		{Time: "2024-06-01 21:00:00", TempC: 27.5, HumidityPct: 70, RainMm: rain(0.4)},
		{Time: "garbage", TempC: 99},
		{Time: "2024-06-01 25:00:00", TempC: 99},
		{Time: "2024-06-01T22:00", TempC: 99},
		{Time: "2024-06-02 00:00:00", TempC: 25, HumidityPct: 80},
	}

	got := TransformForecast(raw)
	if len(got) != 2 {
		t.Fatalf("TransformForecast() returned %d points, want 2", len(got))
	}
	if got[0].TimeLabel != "9:00 PM" || got[0].RainMm != 0.4 || got[0].TempC != 27.5 {
		t.Errorf("first point = %+v", got[0])
	}
	if got[1].TimeLabel != "12:00 AM" || got[1].RainMm != 0 || got[1].HumidityPct != 80 {
		t.Errorf("second point = %+v", got[1])
	}
}
