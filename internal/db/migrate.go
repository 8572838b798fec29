package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Schema, extension and constraints gorm tags cannot express live in SQL
// around AutoMigrate. Every statement is idempotent.
var (
	//go:embed sql/pre_automigrate.sql
	preAutoMigrateSQL string

	//go:embed sql/post_automigrate.sql
	postAutoMigrateSQL string
)

type migrationStep struct {
	name string
	run  func(ctx context.Context, gdb *gorm.DB) error
}

func migrationSteps() []migrationStep {
	return []migrationStep{
		{name: "pre-auto-migrate SQL", run: sqlStep(preAutoMigrateSQL)},
		{name: "gorm auto-migrate models", run: func(ctx context.Context, gdb *gorm.DB) error {
			return gdb.WithContext(ctx).AutoMigrate(autoMigrateModels()...)
		}},
		{name: "post-auto-migrate SQL", run: sqlStep(postAutoMigrateSQL)},
	}
}

func (p *Pool) autoMigrate(ctx context.Context) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	for _, step := range migrationSteps() {
		if err := step.run(ctx, p.gdb); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return nil
}

func sqlStep(sqlText string) func(context.Context, *gorm.DB) error {
	trimmed := strings.TrimSpace(sqlText)
	return func(ctx context.Context, gdb *gorm.DB) error {
		if trimmed == "" {
			return nil
		}
		return gdb.WithContext(ctx).Exec(trimmed).Error
	}
}
