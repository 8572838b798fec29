package pipeline

import (
	"context"
	"fmt"

	"horse.fit/sentiflow/internal/fetchplan"
	"horse.fit/sentiflow/internal/source"
)

// PlannedFetch is what Run would ask the source for, without fetching.
type PlannedFetch struct {
	StartupID string           `json:"startup_id"`
	Name      string           `json:"name"`
	Sector    string           `json:"sector,omitempty"`
	Keywords  int              `json:"keywords"`
	Query     string           `json:"query"`
	Window    fetchplan.Window `json:"window"`
}

func (s *Service) Plan(ctx context.Context) ([]PlannedFetch, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("%w: pipeline service is not fully initialized", ErrConfiguration)
	}
	startups, env, err := s.loadCycle(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]PlannedFetch, 0, len(startups))
	for _, st := range startups {
		_, hasHistory := env.history[st.ID]
		out = append(out, PlannedFetch{
			StartupID: st.ID,
			Name:      st.Name,
			Sector:    st.SectorName,
			Keywords:  len(st.Keywords),
			Query:     source.BuildQuery(st.Name, st.Keywords),
			Window:    s.planner.Plan(st.ID, hasHistory),
		})
	}
	return out, nil
}
