// Package source retrieves the raw 2D string grid a table is built from.
// Every implementation returns the header row first; callers drop it.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Source types accepted in configuration
const (
	TypeSheets   = "sheets"
	TypePostgres = "postgres"
	TypeXLSX     = "xlsx"
)

// ErrNoValues is returned when a response carries no values grid.
var ErrNoValues = errors.New("response has no values field")

// Source yields the raw grid of a data source, header row included.
type Source interface {
	Values(ctx context.Context) ([][]string, error)
}

// Config selects and parameterises a Source.
type Config struct {
	Type     string         `yaml:"type" json:"type"`
	Key      string         `yaml:"key" json:"key"`
	SheetsID string         `yaml:"sheets_id" json:"sheets_id"`
	TabName  string         `yaml:"tab_name" json:"tab_name"`
	BaseURL  string         `yaml:"base_url" json:"base_url"`
	Referrer string         `yaml:"referrer" json:"referrer"`
	Path     string         `yaml:"path" json:"path"` // xlsx workbook
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
}

// Kind returns the configured source type, defaulting to sheets.
func (c Config) Kind() string {
	if c.Type == "" {
		return TypeSheets
	}
	return c.Type
}

// New builds the Source described by cfg. fields lists the column ids in
// order; sources that select by name (postgres) use it as the projection.
func New(cfg Config, fields []string, client *http.Client) (Source, error) {
	switch cfg.Kind() {
	case TypeSheets:
		return NewSheets(cfg, client), nil
	case TypePostgres:
		return NewPostgres(cfg.Postgres, cfg.TabName, fields)
	case TypeXLSX:
		return NewWorkbook(cfg.Path, cfg.TabName), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Type)
	}
}
