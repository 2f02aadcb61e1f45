package capture

import "time"

// EventTiming is one observed notification on the source, with the gap
// since the previous one.
type EventTiming struct {
	At       time.Time
	Kind     EventKind
	Interval time.Duration // zero for the first event
	First    bool
}

// Rate returns the instantaneous rate in Hz implied by Interval.
func (e EventTiming) Rate() float64 {
	if e.Interval <= 0 {
		return 0
	}
	return 1 / e.Interval.Seconds()
}

// RateMeter measures how often the source is notified. It sees the same
// kinds a producer generates while writing: modify, write-complete,
// attribute changes and renames.
type RateMeter struct {
	source *Source
	clock  Clock
	prev   time.Time
	count  int
}

func NewRateMeter(source *Source, clock Clock) *RateMeter {
	return &RateMeter{source: source, clock: clock}
}

// Observe records ev. It returns false for events that are not counted.
func (m *RateMeter) Observe(ev Event) (EventTiming, bool) {
	if !m.source.Matches(ev.Path) {
		return EventTiming{}, false
	}
	switch ev.Kind {
	case Modify, WriteComplete, Attrib, Rename:
	default:
		return EventTiming{}, false
	}

	now := m.clock.Now()
	t := EventTiming{At: now, Kind: ev.Kind, First: m.count == 0}
	if !t.First {
		t.Interval = now.Sub(m.prev)
	}
	m.prev = now
	m.count++
	return t, true
}

// Count returns the number of counted events.
func (m *RateMeter) Count() int { return m.count }
