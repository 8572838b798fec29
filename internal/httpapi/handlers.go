package httpapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/sentiflow/internal/db"
	"horse.fit/sentiflow/internal/globaltime"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "sentiflow",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	dayStart := globaltime.Today()
	stats, err := s.store.QueryPipelineStats(c.Request().Context(), dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		s.logger.Error().Err(err).Msg("query stats failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, stats)
}

func (s *Server) handleSectors(c echo.Context) error {
	rows, err := s.store.ListSectors(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query sectors failed")
		return internalError(c, "Failed to load sectors")
	}
	return success(c, map[string]any{
		"items": rows,
	})
}

func (s *Server) handleStartups(c echo.Context) error {
	sectorID, err := parsePositiveInt(c.QueryParam("sector_id"), 0, 1, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"sector_id": err.Error()})
	}

	rows, err := s.store.ListStartups(c.Request().Context(), sectorID)
	if err != nil {
		s.logger.Error().Err(err).Int("sector_id", sectorID).Msg("query startups failed")
		return internalError(c, "Failed to load startups")
	}
	return success(c, map[string]any{
		"items":     rows,
		"sector_id": sectorID,
	})
}

func (s *Server) handleStartup(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return failValidation(c, map[string]string{"id": "is required"})
	}

	row, err := s.store.GetStartup(c.Request().Context(), id)
	if err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "Startup not found")
		}
		s.logger.Error().Err(err).Str("startup_id", id).Msg("query startup failed")
		return internalError(c, "Failed to load startup")
	}
	return success(c, row)
}

func (s *Server) handleStartupSentiments(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return failValidation(c, map[string]string{"id": "is required"})
	}
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultLimit, 1, maxLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	ctx := c.Request().Context()
	if _, err := s.store.GetStartup(ctx, id); err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "Startup not found")
		}
		s.logger.Error().Err(err).Str("startup_id", id).Msg("query startup failed")
		return internalError(c, "Failed to load startup")
	}

	rows, err := s.store.ListStartupSentiments(ctx, id, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("startup_id", id).Msg("query startup sentiments failed")
		return internalError(c, "Failed to load sentiments")
	}
	return success(c, map[string]any{
		"items":      rows,
		"startup_id": id,
		"limit":      limit,
	})
}

func (s *Server) handleArticles(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultLimit, 1, maxLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	rows, err := s.store.ListRecentArticles(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("query articles failed")
		return internalError(c, "Failed to load articles")
	}
	return success(c, map[string]any{
		"items": rows,
		"limit": limit,
	})
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
