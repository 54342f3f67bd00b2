package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/insightdelivered/bank-statement-analyzer/internal/extractor"
	"github.com/insightdelivered/bank-statement-analyzer/internal/normalize"
	"github.com/insightdelivered/bank-statement-analyzer/internal/report"
)

// ErrMissingDefaultYear is returned by Validate when default_year is unset.
var ErrMissingDefaultYear = errors.New("default_year is required")

// Config represents the application configuration
type Config struct {
	DefaultYear       int               `mapstructure:"default_year"`
	InitialBalance    string            `mapstructure:"initial_balance"`
	CategoryThreshold string            `mapstructure:"category_threshold"`
	BalanceKeywords   []string          `mapstructure:"balance_keywords"`
	BalanceTypeTags   []string          `mapstructure:"balance_type_tags"`
	Workers           int               `mapstructure:"workers"`
	LogLevel          string            `mapstructure:"log_level"`
	Locale            normalize.Locale  `mapstructure:"locale"`
	Spreadsheet       SpreadsheetConfig `mapstructure:"spreadsheet"`
	Server            ServerConfig      `mapstructure:"server"`
}

// SpreadsheetConfig maps spreadsheet header names to record fields.
type SpreadsheetConfig struct {
	// Columns maps an accepted header name to a canonical field
	// (date, description, detail, amount, marker, type).
	Columns map[string]string `mapstructure:"columns"`
	// FallbackDescriptionColumn is the zero-based column used when no header
	// matches the description field.
	FallbackDescriptionColumn int `mapstructure:"fallback_description_column"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// DefaultColumns is the built-in header table for Brazilian bank exports.
var DefaultColumns = map[string]string{
	"data":            "date",
	"data lancamento": "date",
	"data mov":        "date",
	"dt":              "date",
	"historico":       "description",
	"descricao":       "description",
	"lancamento":      "description",
	"detalhe":         "detail",
	"complemento":     "detail",
	"documento":       "detail",
	"valor":           "amount",
	"valor r$":        "amount",
	"montante":        "amount",
	"d/c":             "marker",
	"natureza":        "marker",
	"tipo":            "type",
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("default_year", 0)
	v.SetDefault("initial_balance", "0")
	v.SetDefault("category_threshold", report.DefaultCategoryThreshold.String())
	v.SetDefault("balance_keywords", report.DefaultBalanceKeywords)
	v.SetDefault("balance_type_tags", report.DefaultBalanceTypeTags)
	v.SetDefault("workers", 4)
	v.SetDefault("log_level", "info")

	loc := normalize.BrazilianLocale()
	v.SetDefault("locale.decimal_separator", loc.DecimalSeparator)
	v.SetDefault("locale.grouping_separator", loc.GroupingSeparator)
	v.SetDefault("locale.day_first", loc.DayFirst)

	v.SetDefault("spreadsheet.columns", DefaultColumns)
	v.SetDefault("spreadsheet.fallback_description_column", 1)
	v.SetDefault("server.addr", ":8080")
}

// Load reads configPath (if not empty) into v and unmarshals the result.
// Environment variables prefixed with STATEMENT_ override file values.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("STATEMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Spreadsheet.Columns = mergeColumns(cfg.Spreadsheet.Columns)
	return &cfg, nil
}

// mergeColumns adds the built-in headers a configured table does not already
// name. A configured header wins over a default that folds to the same name.
func mergeColumns(configured map[string]string) map[string]string {
	merged := make(map[string]string, len(configured)+len(DefaultColumns))
	taken := make(map[string]bool, len(configured))
	for name, field := range configured {
		merged[name] = field
		taken[extractor.FoldHeader(name)] = true
	}
	for name, field := range DefaultColumns {
		if !taken[name] {
			merged[name] = field
		}
	}
	return merged
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	return Load(viper.New(), configPath)
}

// Validate checks the settings the pipeline cannot run without. A missing
// default year is reported last so callers that accept it per request can
// ignore ErrMissingDefaultYear.
func (c *Config) Validate() error {
	if err := c.Locale.Validate(); err != nil {
		return fmt.Errorf("invalid locale: %w", err)
	}
	if _, err := c.Initial(); err != nil {
		return err
	}
	if _, err := c.Threshold(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.DefaultYear <= 0 {
		return ErrMissingDefaultYear
	}
	return nil
}

// Initial returns the initial balance as a decimal.
func (c *Config) Initial() (decimal.Decimal, error) {
	if c.InitialBalance == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(c.InitialBalance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid initial_balance %q: %w", c.InitialBalance, err)
	}
	return d, nil
}

// Threshold returns the category share threshold as a decimal.
func (c *Config) Threshold() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.CategoryThreshold)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid category_threshold %q: %w", c.CategoryThreshold, err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("category_threshold must be between 0 and 1, got %s", d)
	}
	return d, nil
}
