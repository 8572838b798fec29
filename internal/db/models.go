package db

import (
	"time"

	"gorm.io/datatypes"
)

// Sector maps sentiflow.sectors.
type Sector struct {
	ID        int       `gorm:"column:id;primaryKey;autoIncrement:false"`
	Name      string    `gorm:"column:name;type:text;not null;uniqueIndex:idx_sectors_name"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Sector) TableName() string { return "sentiflow.sectors" }

// Startup maps sentiflow.startups. FindingKeywords holds a JSON array of strings.
type Startup struct {
	ID              string         `gorm:"column:id;type:text;primaryKey"`
	Name            string         `gorm:"column:name;type:text;not null"`
	SectorID        int            `gorm:"column:sector_id;type:integer;not null;index:idx_startups_sector"`
	Description     string         `gorm:"column:description;type:text;not null;default:''"`
	ImageURL        *string        `gorm:"column:image_url;type:text"`
	FindingKeywords datatypes.JSON `gorm:"column:finding_keywords;type:jsonb;not null;default:'[]'"`
	CreatedAt       time.Time      `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Startup) TableName() string { return "sentiflow.startups" }

// Article maps sentiflow.articles. Content is the stored excerpt, not the full text.
type Article struct {
	ID          string     `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	Title       string     `gorm:"column:title;type:text;not null"`
	URL         string     `gorm:"column:url;type:text;not null;uniqueIndex:idx_articles_url"`
	Content     string     `gorm:"column:content;type:text;not null;default:''"`
	Language    string     `gorm:"column:language;type:text;not null;default:und"`
	PublishedAt *time.Time `gorm:"column:published_at;type:timestamptz;index:idx_articles_published_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Article) TableName() string { return "sentiflow.articles" }

// ArticleSentiment maps sentiflow.article_sentiments.
type ArticleSentiment struct {
	ID            string    `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	ArticleID     string    `gorm:"column:article_id;type:uuid;not null;uniqueIndex:idx_article_sentiments_pair,priority:1"`
	StartupID     string    `gorm:"column:startup_id;type:text;not null;uniqueIndex:idx_article_sentiments_pair,priority:2;index:idx_article_sentiments_startup"`
	PositiveScore float64   `gorm:"column:positive_score;type:double precision;not null"`
	NeutralScore  float64   `gorm:"column:neutral_score;type:double precision;not null"`
	NegativeScore float64   `gorm:"column:negative_score;type:double precision;not null"`
	Sentiment     string    `gorm:"column:sentiment;type:text;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ArticleSentiment) TableName() string { return "sentiflow.article_sentiments" }

// ScoringFailure maps sentiflow.scoring_failures.
type ScoringFailure struct {
	ArticleID string    `gorm:"column:article_id;type:uuid;primaryKey"`
	StartupID string    `gorm:"column:startup_id;type:text;primaryKey"`
	Reason    string    `gorm:"column:reason;type:text;not null"`
	Attempts  int       `gorm:"column:attempts;type:integer;not null;default:1"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (ScoringFailure) TableName() string { return "sentiflow.scoring_failures" }

// PipelineRun maps sentiflow.pipeline_runs.
type PipelineRun struct {
	RunID        int64          `gorm:"column:run_id;primaryKey;autoIncrement"`
	RunUUID      string         `gorm:"column:run_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Command      string         `gorm:"column:command;type:text;not null"`
	Status       string         `gorm:"column:status;type:text;not null;default:running"`
	StartedAt    time.Time      `gorm:"column:started_at;type:timestamptz;not null;default:now()"`
	FinishedAt   *time.Time     `gorm:"column:finished_at;type:timestamptz"`
	Summary      datatypes.JSON `gorm:"column:summary;type:jsonb"`
	ErrorMessage *string        `gorm:"column:error_message;type:text"`
}

func (PipelineRun) TableName() string { return "sentiflow.pipeline_runs" }

func autoMigrateModels() []any {
	return []any{
		&Sector{},
		&Startup{},
		&Article{},
		&ArticleSentiment{},
		&ScoringFailure{},
		&PipelineRun{},
	}
}
