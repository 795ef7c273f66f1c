package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/ridoystarlord/tplgen/config"
	"github.com/ridoystarlord/tplgen/database"
	"github.com/ridoystarlord/tplgen/generator"
	"github.com/ridoystarlord/tplgen/introspect"
	"github.com/ridoystarlord/tplgen/loader"
	"github.com/ridoystarlord/tplgen/macro"
	"github.com/ridoystarlord/tplgen/schema"
)

// loadTables reads the schema from the configured source.
func loadTables(ctx context.Context) ([]schema.Table, error) {
	switch cfg.Schema.Source {
	case config.SourceYAML:
		return loader.LoadTablesFromYAML(cfg.Schema.File)
	case config.SourceTags:
		return loader.LoadTablesFromTags(cfg.Schema.ModelsDir)
	}

	h, err := database.Open(ctx, cfg.Schema.Source, cfg.Schema.DSN)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	name := cfg.Schema.Name
	if name == "" && cfg.Schema.Source == config.SourceMySQL {
		if name, err = database.MySQLDatabase(cfg.Schema.DSN); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	tables, err := introspect.Load(ctx, h, name)
	if err != nil {
		return nil, fmt.Errorf("introspecting %s: %w", cfg.Schema.Source, err)
	}
	logger.Debug("schema introspected", "source", cfg.Schema.Source, "tables", len(tables), "duration", time.Since(start))
	return tables, nil
}

// loadProject loads the schema and the template set named by the config.
func loadProject(ctx context.Context) ([]schema.Table, *loader.TemplateSet, error) {
	tables, err := loadTables(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading schema: %w", err)
	}

	set, err := loader.LoadTemplates(cfg.Templates.Manifest)
	if err != nil {
		return nil, nil, fmt.Errorf("loading templates: %w", err)
	}
	return tables, set, nil
}

// expandProject runs the templates against tables in memory.
func expandProject(ctx context.Context, tables []schema.Table, set *loader.TemplateSet) (*generator.Result, error) {
	return generator.Generate(ctx, generator.Request{
		Templates: set.Files,
		Tables:    tables,
		Scalars:   cfg.Scalars(),
		Workers:   cfg.Generate.Workers,
		Cache:     macro.NewCache(cfg.Cache.MaxSize),
		Logger:    logger,

		StaticRoot: set.StaticRoot,
	})
}
