package schedule_test

import (
	"testing"
	"time"

	"github.com/dgellow/mcp-stress/internal/schedule"
)

func TestParseInterval(t *testing.T) {
	s, err := schedule.Parse("5m")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.String() != "5m0s" {
		t.Errorf("String() = %q", s.String())
	}
	if !s.RunsImmediately() {
		t.Error("interval schedules should run immediately")
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if next := s.Next(now); !next.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("Next = %s", next)
	}
}

func TestParseCron(t *testing.T) {
	s, err := schedule.Parse("*/15 * * * *")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.RunsImmediately() {
		t.Error("cron schedules should wait for their first tick")
	}

	now := time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC)
	want := time.Date(2025, 6, 1, 12, 15, 0, 0, time.UTC)
	if next := s.Next(now); !next.Equal(want) {
		t.Errorf("Next = %s, want %s", next, want)
	}
}

func TestParseCronAlias(t *testing.T) {
	s, err := schedule.Parse("@hourly")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	want := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	if next := s.Next(now); !next.Equal(want) {
		t.Errorf("Next = %s, want %s", next, want)
	}
}

func TestParseAfter(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	schedule.CurrentTime = func() time.Time { return base }
	defer func() { schedule.CurrentTime = time.Now }()

	s, err := schedule.Parse("@after 30m")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.String() != "@after 30m0s" {
		t.Errorf("String() = %q", s.String())
	}

	if next := s.Next(base); !next.Equal(base.Add(30 * time.Minute)) {
		t.Errorf("Next = %s", next)
	}

	// After the firing, the next occurrence is effectively never.
	after := base.Add(time.Hour)
	if next := s.Next(after); next.Before(after.AddDate(100, 0, 0)) {
		t.Errorf("one-shot schedule fired twice: %s", next)
	}
}

func TestParseInvalid(t *testing.T) {
	for _, spec := range []string{"", "nonsense", "@after -5m", "-3s"} {
		if _, err := schedule.Parse(spec); err == nil {
			t.Errorf("Parse(%q) accepted invalid input", spec)
		}
	}
}
