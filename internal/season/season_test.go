package season

import (
	"testing"
	"time"
)

func TestFor(t *testing.T) {
	d := New(2025, time.January, nil)
	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"origin month start", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 1},
		{"origin month end", time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC), 1},
		{"march", time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC), 3},
		{"next year", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), 14},
		{"before origin floors", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), 1},
		{"far past floors", time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.For(tt.at); got != tt.want {
				t.Errorf("For(%s) = %d, want %d", tt.at, got, tt.want)
			}
		})
	}
}

func TestForMonotonic(t *testing.T) {
	d := New(2025, time.March, nil)
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := d.For(start)
	for at := start; at.Before(time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC)); at = at.Add(61 * time.Hour) {
		got := d.For(at)
		if got < prev {
			t.Fatalf("season decreased at %s: %d < %d", at, got, prev)
		}
		prev = got
	}
}

func TestForUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	d := New(2025, time.January, loc)
	// 22:00 UTC on Jan 31 is already February in UTC+3.
	at := time.Date(2025, 1, 31, 22, 0, 0, 0, time.UTC)
	if got := d.For(at); got != 2 {
		t.Fatalf("For() = %d, want 2", got)
	}
	if got := New(2025, time.January, nil).For(at); got != 1 {
		t.Fatalf("UTC For() = %d, want 1", got)
	}
}

func TestStartRoundTrip(t *testing.T) {
	d := New(2025, time.January, nil)
	for n := 1; n <= 30; n++ {
		if got := d.For(d.Start(n)); got != n {
			t.Fatalf("For(Start(%d)) = %d", n, got)
		}
	}
	if !d.Start(0).Equal(d.Origin()) {
		t.Fatal("expected Start(0) to clamp to origin")
	}
}

func TestParseOrigin(t *testing.T) {
	year, month, err := ParseOrigin(" 2025-01 ")
	if err != nil {
		t.Fatalf("ParseOrigin returned error: %v", err)
	}
	if year != 2025 || month != time.January {
		t.Fatalf("ParseOrigin = %d-%d", year, month)
	}
	if _, _, err := ParseOrigin("January 2025"); err == nil {
		t.Fatal("expected error for malformed origin")
	}
}
