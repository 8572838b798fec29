package db

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm/clause"
)

// TrackedStartup is a startup as the pipeline sees it: keywords already decoded.
type TrackedStartup struct {
	ID         string
	Name       string
	SectorID   int
	SectorName string
	Keywords   []string
}

// ListTrackedStartups loads every startup with its sector and decoded keywords.
func (p *Pool) ListTrackedStartups(ctx context.Context) ([]TrackedStartup, error) {
	const q = `
SELECT
	s.id,
	s.name,
	s.sector_id,
	COALESCE(sec.name, ''),
	s.finding_keywords::text
FROM sentiflow.startups s
LEFT JOIN sentiflow.sectors sec
	ON sec.id = s.sector_id
ORDER BY s.sector_id, s.name, s.id
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query tracked startups: %w", err)
	}
	defer rows.Close()

	out := make([]TrackedStartup, 0, 128)
	for rows.Next() {
		var (
			row        TrackedStartup
			rawKeyword string
		)
		if err := rows.Scan(&row.ID, &row.Name, &row.SectorID, &row.SectorName, &rawKeyword); err != nil {
			return nil, fmt.Errorf("scan tracked startup: %w", err)
		}
		keywords, err := DecodeKeywords([]byte(rawKeyword))
		if err != nil {
			return nil, fmt.Errorf("decode keywords for startup %s: %w", row.ID, err)
		}
		row.Keywords = keywords
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracked startups: %w", err)
	}
	return out, nil
}

// DecodeKeywords turns the finding_keywords column into a clean string list.
// Older rows were written as a JSON string holding the array, so one level of
// string encoding is unwrapped.
func DecodeKeywords(raw []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []string{}, nil
	}

	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("decode keyword string: %w", err)
		}
		return DecodeKeywords([]byte(inner))
	}

	var values []string
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return nil, fmt.Errorf("decode keyword array: %w", err)
	}

	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		key := strings.ToLower(value)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, value)
	}
	return out, nil
}

// EncodeKeywords is the inverse of DecodeKeywords for writes.
func EncodeKeywords(keywords []string) ([]byte, error) {
	if keywords == nil {
		keywords = []string{}
	}
	raw, err := json.Marshal(keywords)
	if err != nil {
		return nil, fmt.Errorf("encode keywords: %w", err)
	}
	return raw, nil
}

// StartupIDsWithSentiment returns the startups that already have at least one
// sentiment row. The fetch planner treats them as having history.
func (p *Pool) StartupIDsWithSentiment(ctx context.Context) (map[string]struct{}, error) {
	rows, err := p.Query(ctx, `SELECT DISTINCT startup_id FROM sentiflow.article_sentiments`)
	if err != nil {
		return nil, fmt.Errorf("query startups with sentiment: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{}, 128)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan startup id: %w", err)
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate startups with sentiment: %w", err)
	}
	return out, nil
}

// UpsertSectors inserts sectors, renaming existing ids in place.
func (p *Pool) UpsertSectors(ctx context.Context, sectors []Sector) (int64, error) {
	if len(sectors) == 0 {
		return 0, nil
	}
	if p == nil || p.gdb == nil {
		return 0, fmt.Errorf("database pool is not initialized")
	}

	res := p.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).
		Create(&sectors)
	if res.Error != nil {
		if IsUniqueViolation(res.Error) {
			return 0, fmt.Errorf("upsert sectors: sector name already used by another id: %w", res.Error)
		}
		return 0, fmt.Errorf("upsert sectors: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// UpsertStartups inserts startups, refreshing descriptive fields and keywords
// for ids that already exist.
func (p *Pool) UpsertStartups(ctx context.Context, startups []Startup) (int64, error) {
	if len(startups) == 0 {
		return 0, nil
	}
	if p == nil || p.gdb == nil {
		return 0, fmt.Errorf("database pool is not initialized")
	}

	res := p.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"name":             clause.Column{Table: "excluded", Name: "name"},
				"description":      clause.Column{Table: "excluded", Name: "description"},
				"image_url":        clause.Column{Table: "excluded", Name: "image_url"},
				"finding_keywords": clause.Column{Table: "excluded", Name: "finding_keywords"},
				"updated_at":       clause.Column{Table: "excluded", Name: "updated_at"},
			}),
		}).
		Create(&startups)
	if res.Error != nil {
		return 0, fmt.Errorf("upsert startups: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// SectorSummary is a sector with its startup count.
type SectorSummary struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	StartupCount int64  `json:"startup_count"`
}

func (p *Pool) ListSectors(ctx context.Context) ([]SectorSummary, error) {
	const q = `
SELECT sec.id, sec.name, COUNT(s.id)::BIGINT
FROM sentiflow.sectors sec
LEFT JOIN sentiflow.startups s
	ON s.sector_id = sec.id
GROUP BY sec.id, sec.name
ORDER BY sec.id
`
	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query sectors: %w", err)
	}
	defer rows.Close()

	out := make([]SectorSummary, 0, 32)
	for rows.Next() {
		var row SectorSummary
		if err := rows.Scan(&row.ID, &row.Name, &row.StartupCount); err != nil {
			return nil, fmt.Errorf("scan sector: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sectors: %w", err)
	}
	return out, nil
}

// StartupListItem is the read model for startup listings.
type StartupListItem struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	SectorID       int        `json:"sector_id"`
	SectorName     string     `json:"sector_name"`
	Description    string     `json:"description"`
	ImageURL       *string    `json:"image_url,omitempty"`
	Keywords       []string   `json:"finding_keywords"`
	SentimentCount int64      `json:"sentiment_count"`
	Positive       int64      `json:"positive"`
	Neutral        int64      `json:"neutral"`
	Negative       int64      `json:"negative"`
	LastArticleAt  *time.Time `json:"last_article_at,omitempty"`
}

// ListStartups lists startups, optionally restricted to one sector (sectorID > 0).
func (p *Pool) ListStartups(ctx context.Context, sectorID int) ([]StartupListItem, error) {
	rows, err := p.Query(ctx, startupListQuery(`WHERE ($1 = 0 OR s.sector_id = $1)`), sectorID)
	if err != nil {
		return nil, fmt.Errorf("query startups: %w", err)
	}
	defer rows.Close()

	out := make([]StartupListItem, 0, 64)
	for rows.Next() {
		row, err := scanStartupListItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate startups: %w", err)
	}
	return out, nil
}

// GetStartup returns one startup or ErrNoRows.
func (p *Pool) GetStartup(ctx context.Context, id string) (*StartupListItem, error) {
	rows, err := p.Query(ctx, startupListQuery(`WHERE s.id = $1`), strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("query startup: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate startup: %w", err)
		}
		return nil, ErrNoRows
	}
	row, err := scanStartupListItem(rows)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func startupListQuery(where string) string {
	return `
SELECT
	s.id,
	s.name,
	s.sector_id,
	COALESCE(sec.name, ''),
	s.description,
	s.image_url,
	s.finding_keywords::text,
	COUNT(ase.id)::BIGINT,
	COUNT(ase.id) FILTER (WHERE ase.sentiment = 'positive')::BIGINT,
	COUNT(ase.id) FILTER (WHERE ase.sentiment = 'neutral')::BIGINT,
	COUNT(ase.id) FILTER (WHERE ase.sentiment = 'negative')::BIGINT,
	MAX(a.published_at)
FROM sentiflow.startups s
LEFT JOIN sentiflow.sectors sec
	ON sec.id = s.sector_id
LEFT JOIN sentiflow.article_sentiments ase
	ON ase.startup_id = s.id
LEFT JOIN sentiflow.articles a
	ON a.id = ase.article_id
` + where + `
GROUP BY s.id, s.name, s.sector_id, sec.name, s.description, s.image_url, s.finding_keywords
ORDER BY s.sector_id, s.name, s.id
`
}

func scanStartupListItem(rows *Rows) (StartupListItem, error) {
	var (
		row        StartupListItem
		rawKeyword string
	)
	if err := rows.Scan(
		&row.ID,
		&row.Name,
		&row.SectorID,
		&row.SectorName,
		&row.Description,
		&row.ImageURL,
		&rawKeyword,
		&row.SentimentCount,
		&row.Positive,
		&row.Neutral,
		&row.Negative,
		&row.LastArticleAt,
	); err != nil {
		return StartupListItem{}, fmt.Errorf("scan startup row: %w", err)
	}
	keywords, err := DecodeKeywords([]byte(rawKeyword))
	if err != nil {
		return StartupListItem{}, fmt.Errorf("decode keywords for startup %s: %w", row.ID, err)
	}
	row.Keywords = keywords
	return row, nil
}
