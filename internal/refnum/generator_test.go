package refnum

import (
	"strings"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNextFormatsPrefixAndTimestamp(t *testing.T) {
	at := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	gen := NewGeneratorWithClock(fixedClock(at))

	if got := gen.Next(PrefixContribution); got != "PROP20250102030405" {
		t.Fatalf("unexpected contribution reference %q", got)
	}
	if got := gen.Next(PrefixRequest); got != "REQP20250102030405" {
		t.Fatalf("unexpected request reference %q", got)
	}
}

func TestNextUsesUTC(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	at := time.Date(2025, time.June, 1, 6, 30, 0, 0, loc)
	gen := NewGeneratorWithClock(fixedClock(at))

	// 06:30 ICT is 23:30 UTC the previous day.
	if got := gen.Next(PrefixContribution); got != "PROP20250531233000" {
		t.Fatalf("expected UTC timestamp, got %q", got)
	}
}

func TestNextWithSuffix(t *testing.T) {
	at := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	gen := NewGeneratorWithClock(fixedClock(at))

	ref, err := gen.NextWithSuffix(PrefixRequest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(ref, "REQP20250102030405-") {
		t.Fatalf("suffix reference should extend the base, got %q", ref)
	}
	suffix := strings.TrimPrefix(ref, "REQP20250102030405-")
	if len(suffix) != suffixLength {
		t.Fatalf("expected %d suffix chars, got %q", suffixLength, suffix)
	}
	for _, r := range suffix {
		if !strings.ContainsRune(suffixCharset, r) {
			t.Fatalf("suffix %q contains invalid char %q", suffix, r)
		}
	}
}
