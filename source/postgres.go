package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// PostgresConfig holds connection settings for a postgres source
type PostgresConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     string `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
	Schema   string `yaml:"schema" json:"schema"`
}

// ConnString renders the lib/pq keyword/value DSN.
func (c PostgresConfig) ConnString() string {
	port := c.Port
	if port == "" {
		port = "5432"
	}
	s := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, port, c.User, c.Password, c.Database)
	if c.Schema != "" {
		s += fmt.Sprintf(" search_path=%s,public", c.Schema)
	}
	return s
}

// Postgres reads a table (or view) as a grid of strings. The table name
// plays the role of the sheet tab.
type Postgres struct {
	db     *sql.DB
	table  string
	fields []string
}

// NewPostgres opens a connection pool; no round trip happens until Values.
func NewPostgres(cfg PostgresConfig, table string, fields []string) (*Postgres, error) {
	db, err := sql.Open("postgres", cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewPostgresDB(db, table, fields), nil
}

// NewPostgresDB wraps an existing pool.
func NewPostgresDB(db *sql.DB, table string, fields []string) *Postgres {
	return &Postgres{db: db, table: table, fields: fields}
}

// Close releases the pool
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Query is the SELECT issued by Values.
func (p *Postgres) Query() string {
	cols := make([]string, len(p.fields))
	for i, f := range p.fields {
		cols[i] = pq.QuoteIdentifier(f) + "::text"
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), quoteQualified(p.table))
}

func (p *Postgres) Values(ctx context.Context) ([][]string, error) {
	rows, err := p.db.QueryContext(ctx, p.Query())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", p.table, err)
	}
	defer rows.Close()

	header := append([]string(nil), p.fields...)
	grid := [][]string{header}
	for rows.Next() {
		values := make([]sql.NullString, len(p.fields))
		pointers := make([]interface{}, len(values))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", p.table, err)
		}

		rec := make([]string, len(values))
		for i, v := range values {
			rec[i] = v.String
		}
		grid = append(grid, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", p.table, err)
	}
	return grid, nil
}

// quoteQualified quotes each dot-separated part of a possibly schema
// qualified name.
func quoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = pq.QuoteIdentifier(part)
	}
	return strings.Join(parts, ".")
}
