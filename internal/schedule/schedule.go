// Package schedule parses the --schedule option of repeated stress runs:
// a plain interval ("30s", "5m"), a cron expression, or "@after 10m".
package schedule

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// CurrentTime returns the current time.
// This variable is for testing purposes.
var CurrentTime = time.Now

// Schedule decides when the next run fires.
type Schedule interface {
	cron.Schedule
	fmt.Stringer

	// RunsImmediately reports whether the first run fires right away rather
	// than waiting for the first tick.
	RunsImmediately() bool
}

// Parse parses a schedule specification.
func Parse(spec string) (Schedule, error) {
	if s, err := ParseAfter(spec); err == nil {
		return s, nil
	}

	if s, err := ParseInterval(spec); err == nil {
		return s, nil
	}

	return ParseCron(spec)
}

// IntervalSchedule fires every fixed interval, starting immediately.
type IntervalSchedule struct {
	Interval time.Duration
}

// ParseInterval parses an interval schedule like "30s" or "5m".
func ParseInterval(spec string) (IntervalSchedule, error) {
	d, err := time.ParseDuration(spec)
	if err != nil {
		return IntervalSchedule{}, err
	}
	if d <= 0 {
		return IntervalSchedule{}, fmt.Errorf("invalid schedule spec: %q", spec)
	}
	return IntervalSchedule{d}, nil
}

func (s IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

func (s IntervalSchedule) String() string {
	return s.Interval.String()
}

func (s IntervalSchedule) RunsImmediately() bool {
	return true
}

// CronSchedule fires on a cron expression.
type CronSchedule struct {
	spec     string
	schedule cron.Schedule
}

// ParseCron parses a cron schedule like "0 0 * * ?" or "@daily".
func ParseCron(spec string) (CronSchedule, error) {
	switch spec {
	case "@yearly", "@annually":
		spec = "0 0 1 1 ?"
	case "@monthly":
		spec = "0 0 1 * ?"
	case "@weekly":
		spec = "0 0 * * 0"
	case "@daily":
		spec = "0 0 * * ?"
	case "@hourly":
		spec = "0 * * * ?"
	default:
		delimiter := regexp.MustCompile("[ \t]+")

		ss := delimiter.Split(strings.TrimSpace(spec), -1)
		if len(ss) == 4 {
			ss = append(ss, "?")
		}
		spec = strings.Join(ss, " ")
	}

	s, err := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.DowOptional).Parse(spec)
	if err != nil {
		return CronSchedule{}, err
	}
	return CronSchedule{
		spec:     spec,
		schedule: s,
	}, nil
}

func (s CronSchedule) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

func (s CronSchedule) String() string {
	return s.spec
}

func (s CronSchedule) RunsImmediately() bool {
	return false
}

// AfterSchedule fires exactly once, a fixed delay from when it was parsed.
type AfterSchedule struct {
	Delay time.Duration
	At    time.Time
}

// ParseAfter parses a one-shot schedule like "@after 30m".
func ParseAfter(spec string) (Schedule, error) {
	if !strings.HasPrefix(spec, "@after ") {
		return nil, fmt.Errorf("invalid schedule spec: %q", spec)
	}

	delay, err := time.ParseDuration(strings.TrimSpace(spec[len("@after "):]))
	if err != nil {
		return nil, err
	}

	if delay <= 0 {
		return nil, fmt.Errorf("invalid schedule spec: %q", spec)
	}

	return AfterSchedule{
		Delay: delay,
		At:    CurrentTime().Add(delay),
	}, nil
}

func (s AfterSchedule) Next(t time.Time) time.Time {
	if t.After(s.At) {
		return time.UnixMicro(math.MaxInt64)
	}
	return s.At
}

func (s AfterSchedule) String() string {
	return "@after " + s.Delay.String()
}

func (s AfterSchedule) RunsImmediately() bool {
	return false
}
