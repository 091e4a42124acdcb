package sheetgrid

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gnemet/sheetgrid/source"
	"github.com/joho/godotenv"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema/config.schema.json
var configSchema []byte

// Config is the application configuration read from config.yaml
type Config struct {
	Application struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"application"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Source  source.Config `yaml:"source"`
	Table   TableConfig   `yaml:"table"`
	Session SessionConfig `yaml:"session"`
}

// TableConfig describes the columns and the initial sort.
type TableConfig struct {
	SortColumn string       `yaml:"sort_column"`
	Columns    []ColumnSpec `yaml:"columns"`
	// ToggleBeforeRender flips a column's direction before the sort click
	// renders rather than after.
	ToggleBeforeRender bool `yaml:"toggle_before_render"`
}

// SessionConfig tunes the per-browser controller pool
type SessionConfig struct {
	MaxSessions int    `yaml:"max_sessions"`
	IdleTimeout string `yaml:"idle_timeout"`
	AbsTimeout  string `yaml:"abs_timeout"`
}

// Timeouts parses the configured durations, falling back to 30 minutes
// idle and 8 hours absolute.
func (s SessionConfig) Timeouts() (idle, abs time.Duration) {
	idle, _ = time.ParseDuration(s.IdleTimeout)
	if idle == 0 {
		idle = 30 * time.Minute
	}
	abs, _ = time.ParseDuration(s.AbsTimeout)
	if abs == 0 {
		abs = 8 * time.Hour
	}
	return idle, abs
}

// Fields lists the column ids in order.
func (c *Config) Fields() []string {
	ids := make([]string, len(c.Table.Columns))
	for i, col := range c.Table.Columns {
		ids[i] = col.ID
	}
	return ids
}

// LoadConfig reads a YAML config file. A .env file in the working
// directory is loaded first so ${VAR} references can be expanded. The
// expanded document is checked against the embedded JSON schema.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig([]byte(os.ExpandEnv(string(data))))
}

// ParseConfig decodes and schema-checks an already expanded document.
func ParseConfig(data []byte) (*Config, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// SchemaError lists JSON schema violations.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "config does not match schema: " + strings.Join(e.Problems, "; ")
}

// ValidateSchema checks a YAML document against the config schema.
func ValidateSchema(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(configSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return &SchemaError{Problems: problems}
}

// Validate checks the settings required before any fetch. The first
// problem found is returned as a *ConfigError.
func (c *Config) Validate() error {
	src := c.Source
	switch src.Kind() {
	case source.TypeSheets:
		if src.Key == "" {
			return configErrorf("source.key", "please define a key that has your Google API key")
		}
		if src.SheetsID == "" {
			return configErrorf("source.sheets_id", "please define a sheets_id that has your Google sheets ID")
		}
		if src.TabName == "" {
			return configErrorf("source.tab_name", "please define a tab_name that has the name of the tab (e.g., Sheet1)")
		}
	case source.TypePostgres:
		if src.Postgres.Host == "" || src.Postgres.Database == "" {
			return configErrorf("source.postgres", "host and database are required")
		}
		if src.TabName == "" {
			return configErrorf("source.tab_name", "please define a tab_name naming the table to read")
		}
	case source.TypeXLSX:
		if src.Path == "" {
			return configErrorf("source.path", "please define the path of the workbook")
		}
		if src.TabName == "" {
			return configErrorf("source.tab_name", "please define a tab_name naming the sheet to read")
		}
	default:
		return configErrorf("source.type", "unknown source type %q", src.Type)
	}

	if len(c.Table.Columns) == 0 {
		return configErrorf("table.columns", "at least one column is required")
	}
	seen := map[string]bool{}
	sortable := map[string]bool{}
	for i, col := range c.Table.Columns {
		field := fmt.Sprintf("table.columns[%d]", i)
		if col.ID == "" {
			return configErrorf(field+".id", "column id is required")
		}
		if seen[col.ID] {
			return configErrorf(field+".id", "duplicate column id %q", col.ID)
		}
		seen[col.ID] = true
		sortable[col.ID] = col.Sortable == nil || *col.Sortable
		switch col.DataType {
		case "", TypeText, TypeURL, TypeTags:
		default:
			return configErrorf(field+".data_type", "unknown data type %q", col.DataType)
		}
	}
	if key := c.Table.SortColumn; key != "" {
		if !seen[key] {
			return configErrorf("table.sort_column", "%q is not a column", key)
		}
		if !sortable[key] {
			return configErrorf("table.sort_column", "%q is not sortable", key)
		}
	}
	return nil
}

// DefaultSortColumn is the configured sort column, or the first column.
func (c *Config) DefaultSortColumn() string {
	if c.Table.SortColumn != "" {
		return c.Table.SortColumn
	}
	if len(c.Table.Columns) > 0 {
		return c.Table.Columns[0].ID
	}
	return ""
}
