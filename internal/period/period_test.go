package period

import (
	"testing"
	"time"
)

func TestIntervalContainsIsHalfOpen(t *testing.T) {
	t.Parallel()
	start := time.Date(2024, 3, 30, 9, 0, 0, 0, time.UTC)
	iv := New(start, start.Add(time.Hour))

	if !iv.Contains(start) {
		t.Fatal("start must be contained")
	}
	if iv.Contains(start.Add(time.Hour)) {
		t.Fatal("end must be excluded")
	}
	if iv.Contains(start.Add(-time.Nanosecond)) {
		t.Fatal("instant before start must be excluded")
	}
	if got := iv.Len(); got != time.Hour {
		t.Fatalf("Len = %v, want 1h", got)
	}
	if New(start, start).Len() != 0 || !New(start, start).Empty() {
		t.Fatal("zero-length interval must be empty")
	}
}

func TestUnboundedContainsEverydayTimes(t *testing.T) {
	t.Parallel()
	u := Unbounded()
	for _, ts := range []time.Time{time.Now(), time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2400, 1, 1, 0, 0, 0, 0, time.UTC)} {
		if !u.Contains(ts) {
			t.Fatalf("Unbounded does not contain %v", ts)
		}
	}
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    TimeOfDay
		wantErr bool
	}{
		{raw: "09:00", want: TimeOfDay{Hour: 9}},
		{raw: " 17:30 ", want: TimeOfDay{Hour: 17, Minute: 30}},
		{raw: "24:00", wantErr: true},
		{raw: "12:60", wantErr: true},
		{raw: "noon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTimeOfDay(%q) expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseTimeOfDay(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTimeOfDayOnUsesLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+7", 7*3600)
	ref := time.Date(2024, 3, 30, 22, 15, 0, 0, loc)
	got := MustTimeOfDay("09:30").On(ref)
	want := time.Date(2024, 3, 30, 9, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("On = %v, want %v", got, want)
	}
}
