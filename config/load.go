package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/ridoystarlord/tplgen/utils"
)

// LoadConfig loads configuration from defaults, tplgen.yaml (or configPath
// when given), TPLGEN_* environment variables and .env. DATABASE_URL fills
// schema.dsn when nothing else sets it.
func LoadConfig(configPath string) (Config, error) {
	if _, err := utils.LoadEnv(); err != nil {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	cfg := NewDefaultConfig()

	v.SetDefault("project.name", cfg.Project.Name)
	v.SetDefault("project.url", cfg.Project.URL)
	v.SetDefault("schema.source", cfg.Schema.Source)
	v.SetDefault("schema.file", cfg.Schema.File)
	v.SetDefault("schema.models_dir", cfg.Schema.ModelsDir)
	v.SetDefault("schema.dsn", "")
	v.SetDefault("schema.name", "")
	v.SetDefault("templates.manifest", cfg.Templates.Manifest)
	v.SetDefault("output.dir", cfg.Output.Dir)
	v.SetDefault("output.archive", "")
	v.SetDefault("output.manifest", "")
	v.SetDefault("generate.workers", cfg.Generate.Workers)
	v.SetDefault("cache.max_size", cfg.Cache.MaxSize)
	v.SetDefault("history.path", cfg.History.Path)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetEnvPrefix("TPLGEN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("tplgen")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return cfg, fmt.Errorf("error reading configuration file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshaling configuration: %w", err)
	}

	if cfg.Schema.DSN == "" {
		cfg.Schema.DSN = utils.GetDatabaseURL()
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks struct constraints plus the rules spanning sections.
func Validate(cfg Config) error {
	var problems []string

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		for _, fe := range validationErrors {
			problems = append(problems, fmt.Sprintf("Field '%s' failed validation on '%s'", fe.Namespace(), fe.Tag()))
		}
	}

	if cfg.Schema.IsDatabase() && cfg.Schema.DSN == "" {
		problems = append(problems, fmt.Sprintf("schema.dsn (or DATABASE_URL) is required for source %s", cfg.Schema.Source))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
