package config

import (
	"io"
	"log/slog"
	"strings"

	"github.com/ridoystarlord/tplgen/macro"
)

// Schema sources.
const (
	SourceYAML     = "yaml"
	SourceTags     = "tags"
	SourcePostgres = "postgres"
	SourceMySQL    = "mysql"
	SourceSQLite   = "sqlite"
)

type ProjectConfig struct {
	Name string `mapstructure:"name" validate:"required"`
	URL  string `mapstructure:"url" validate:"omitempty,url"`
	// Extra scalars for every template. Keys are lowercased by the loader.
	Scalars map[string]string `mapstructure:"scalars"`
}

type SchemaConfig struct {
	Source    string `mapstructure:"source" validate:"required,oneof=yaml tags postgres mysql sqlite"`
	File      string `mapstructure:"file" validate:"required_if=Source yaml"`
	ModelsDir string `mapstructure:"models_dir" validate:"required_if=Source tags"`
	DSN       string `mapstructure:"dsn"`
	Name      string `mapstructure:"name"` // postgres schema or mysql database
}

// IsDatabase reports whether the schema is introspected from a live database.
func (s SchemaConfig) IsDatabase() bool {
	return s.Source == SourcePostgres || s.Source == SourceMySQL || s.Source == SourceSQLite
}

type TemplatesConfig struct {
	Manifest string `mapstructure:"manifest" validate:"required"`
}

type OutputConfig struct {
	Dir      string `mapstructure:"dir" validate:"required"`
	Archive  string `mapstructure:"archive"`
	Manifest string `mapstructure:"manifest"`
}

type GenerateConfig struct {
	Workers int `mapstructure:"workers" validate:"gte=0,lte=256"` // 0: one per CPU
}

type CacheConfig struct {
	MaxSize int `mapstructure:"max_size" validate:"gte=0"` // 0 disables the parse cache
}

type HistoryConfig struct {
	Path string `mapstructure:"path"` // empty disables run history
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// Config is the content of tplgen.yaml.
type Config struct {
	Project   ProjectConfig   `mapstructure:"project"`
	Schema    SchemaConfig    `mapstructure:"schema"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Output    OutputConfig    `mapstructure:"output"`
	Generate  GenerateConfig  `mapstructure:"generate"`
	Cache     CacheConfig     `mapstructure:"cache"`
	History   HistoryConfig   `mapstructure:"history"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

func NewDefaultConfig() Config {
	return Config{
		Project: ProjectConfig{
			Name: "tplgen-project",
		},
		Schema: SchemaConfig{
			Source:    SourceYAML,
			File:      "schema.yaml",
			ModelsDir: "models",
		},
		Templates: TemplatesConfig{
			Manifest: "templates.yaml",
		},
		Output: OutputConfig{
			Dir: "generated",
		},
		Cache: CacheConfig{
			MaxSize: 64,
		},
		History: HistoryConfig{
			Path: ".tplgen/history.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Scalars returns the project scalars bound in every template.
func (c Config) Scalars() macro.Scalars {
	s := make(macro.Scalars, len(c.Project.Scalars)+2)
	for k, v := range c.Project.Scalars {
		s[k] = v
	}
	s["projectname"] = c.Project.Name
	s["projecturl"] = c.Project.URL
	return s
}

// NewLogger builds the diagnostic logger described by the logging section.
func (l LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(l.Level)}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
