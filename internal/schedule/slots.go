package schedule

import (
	"context"
	"fmt"
	"time"

	"price-tracker/internal/models"
)

const day = 24 * time.Hour

// SlotScheduler assigns each market a daily start time such that no two
// markets start within a minimum gap of each other, bounding simultaneous
// outbound request pressure. Slots are allocated in registration order;
// each market receives the first start at or after its preferred window
// that keeps the gap to every already assigned start.
type SlotScheduler struct {
	starts       map[string]time.Duration // offset from midnight
	order        []string
	minGap       time.Duration
	sweepWeekday time.Weekday
	sweepAt      time.Duration
	state        StateStore
}

// NewSlotScheduler allocates slots for the given markets. It fails when the
// markets cannot all fit in a day at the configured gap, or when a market
// carries an unparseable preferred slot.
func NewSlotScheduler(markets []models.Market, minGap time.Duration, sweepWeekday time.Weekday, sweepTime string, state StateStore) (*SlotScheduler, error) {
	sweepAt, err := parseClock(sweepTime)
	if err != nil {
		return nil, fmt.Errorf("invalid full sweep time %q: %w", sweepTime, err)
	}

	s := &SlotScheduler{
		starts:       make(map[string]time.Duration, len(markets)),
		minGap:       minGap,
		sweepWeekday: sweepWeekday,
		sweepAt:      sweepAt,
		state:        state,
	}

	if time.Duration(len(markets))*minGap > day {
		return nil, fmt.Errorf("%d markets cannot be spaced %s apart within one day", len(markets), minGap)
	}

	for _, m := range markets {
		preferred, err := parseClock(m.DefaultTimeSlot)
		if err != nil {
			return nil, fmt.Errorf("market %s: invalid time slot %q: %w", m.ID, m.DefaultTimeSlot, err)
		}
		start, err := s.place(preferred)
		if err != nil {
			return nil, fmt.Errorf("market %s: %w", m.ID, err)
		}
		s.starts[m.ID] = start
		s.order = append(s.order, m.ID)
	}

	return s, nil
}

// place finds the first start at or after preferred that respects the gap,
// wrapping past midnight at most once.
func (s *SlotScheduler) place(preferred time.Duration) (time.Duration, error) {
	candidate := preferred
	wrapped := false
	for {
		conflict, at := s.conflicting(candidate)
		if !conflict {
			return candidate, nil
		}
		candidate = at + s.minGap
		if candidate >= day {
			if wrapped {
				return 0, fmt.Errorf("no slot available at %s gap", s.minGap)
			}
			candidate -= day
			wrapped = true
		}
	}
}

func (s *SlotScheduler) conflicting(candidate time.Duration) (bool, time.Duration) {
	for _, start := range s.starts {
		diff := candidate - start
		if diff < 0 {
			diff = -diff
		}
		// Starts near midnight also contend across the day boundary.
		if wrap := day - diff; wrap < diff {
			diff = wrap
		}
		if diff < s.minGap {
			return true, start
		}
	}
	return false, 0
}

// StartFor returns the assigned daily start offset for a market.
func (s *SlotScheduler) StartFor(marketID string) (time.Duration, error) {
	start, ok := s.starts[marketID]
	if !ok {
		return 0, fmt.Errorf("unknown market: %s", marketID)
	}
	return start, nil
}

// NextFireTime returns the next time at or after now that the market's
// daily slot fires.
func (s *SlotScheduler) NextFireTime(marketID string, now time.Time) (time.Time, error) {
	start, err := s.StartFor(marketID)
	if err != nil {
		return time.Time{}, err
	}
	fire := midnight(now).Add(start)
	if fire.Before(now) {
		fire = fire.Add(day)
	}
	return fire, nil
}

// prevFireTime returns the most recent slot fire at or before now.
func (s *SlotScheduler) prevFireTime(marketID string, now time.Time) (time.Time, error) {
	start, err := s.StartFor(marketID)
	if err != nil {
		return time.Time{}, err
	}
	fire := midnight(now).Add(start)
	if fire.After(now) {
		fire = fire.Add(-day)
	}
	return fire, nil
}

// IsDue reports whether the market's slot has fired since its recorded last
// run, and returns the fire time the run should be recorded against.
func (s *SlotScheduler) IsDue(ctx context.Context, marketID string, now time.Time) (bool, time.Time, error) {
	fire, err := s.prevFireTime(marketID, now)
	if err != nil {
		return false, time.Time{}, err
	}
	last, err := s.state.LastRun(ctx, MarketKey(marketID))
	if err != nil {
		return false, time.Time{}, fmt.Errorf("failed to read last run for %s: %w", marketID, err)
	}
	return last.Before(fire), fire, nil
}

// IsFullSweepDue reports whether the weekly comprehensive sweep has fired
// since the recorded last sweep.
func (s *SlotScheduler) IsFullSweepDue(ctx context.Context, now time.Time) (bool, time.Time, error) {
	fire := midnight(now).Add(s.sweepAt)
	for fire.Weekday() != s.sweepWeekday || fire.After(now) {
		fire = fire.Add(-day)
	}
	last, err := s.state.LastRun(ctx, FullSweepKey)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("failed to read last sweep time: %w", err)
	}
	return last.Before(fire), fire, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func parseClock(s string) (time.Duration, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("out of range: %s", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}
