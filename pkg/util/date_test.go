package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeLayouts(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	for _, in := range []string{
		"2024-10-10T10:10:10Z",
		"2024-10-10 10:10:10",
		strconv.FormatInt(want.Unix(), 10),
	} {
		got, ok := ParseTime(in)
		if !ok {
			t.Fatalf("ParseTime(%q) failed", in)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseTime(%q) = %v, want %v", in, got, want)
		}
	}

	got, ok := ParseTime(" 2024-10-10 ")
	if !ok || !got.Equal(time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v %v", got, ok)
	}
	if _, ok := ParseTime("yesterday"); ok {
		t.Fatalf("expected failure")
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 10, 10, 12, 0, 0, 0, time.UTC)
	cases := map[string]time.Time{
		"90m":        now.Add(-90 * time.Minute),
		"24h":        now.Add(-24 * time.Hour),
		"7d":         now.AddDate(0, 0, -7),
		"2024-10-01": time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, ok := ParseSince(in, now)
		if !ok || !got.Equal(want) {
			t.Fatalf("ParseSince(%q) = %v %v, want %v", in, got, ok, want)
		}
	}
	for _, bad := range []string{"", "-1h", "0d", "xd", "soon"} {
		if _, ok := ParseSince(bad, now); ok {
			t.Fatalf("ParseSince(%q) should fail", bad)
		}
	}
}
