// Package fetchplan decides how far back to search for each startup.
package fetchplan

import (
	"time"

	"horse.fit/sentiflow/internal/globaltime"
)

const (
	DefaultBackfill    = 30 * 24 * time.Hour
	DefaultMaintenance = 24 * time.Hour
)

type Mode string

const (
	// ModeBackfill is used for startups with no stored sentiment yet.
	ModeBackfill Mode = "backfill"
	// ModeMaintenance is the short rolling window once history exists.
	ModeMaintenance Mode = "maintenance"
)

// Window is a half-open [Since, Until) publication-time range.
type Window struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
	Mode  Mode      `json:"mode"`
}

func (w Window) Duration() time.Duration {
	return w.Until.Sub(w.Since)
}

// Contains reports whether t falls inside the window. A zero t is accepted
// since some sources omit publication times.
func (w Window) Contains(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	return !t.Before(w.Since) && t.Before(w.Until)
}

type Planner struct {
	Backfill    time.Duration
	Maintenance time.Duration
	Now         func() time.Time
}

func New(backfill, maintenance time.Duration) Planner {
	return normalizePlanner(Planner{Backfill: backfill, Maintenance: maintenance})
}

// Plan returns the window for one startup. hasHistory is true when at least
// one sentiment row already exists for it. The window depends only on
// history, so the startup id is accepted but unused.
func (p Planner) Plan(_ string, hasHistory bool) Window {
	p = normalizePlanner(p)

	until := p.Now().UTC()
	span, mode := p.Backfill, ModeBackfill
	if hasHistory {
		span, mode = p.Maintenance, ModeMaintenance
	}
	return Window{
		Since: until.Add(-span),
		Until: until,
		Mode:  mode,
	}
}

func normalizePlanner(p Planner) Planner {
	if p.Backfill <= 0 {
		p.Backfill = DefaultBackfill
	}
	if p.Maintenance <= 0 {
		p.Maintenance = DefaultMaintenance
	}
	if p.Now == nil {
		p.Now = globaltime.Now
	}
	return p
}
