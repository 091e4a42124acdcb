package sheetgrid

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig matches every *ConfigError.
	ErrConfig        = errors.New("invalid configuration")
	ErrUnknownColumn = errors.New("unknown column")
	ErrNotSortable   = errors.New("column is not sortable")
	ErrNotFilterable = errors.New("column is not filterable")
	ErrNotReady      = errors.New("table is not ready")
	ErrBatchMode     = errors.New("unknown batch mode")
)

// ConfigError reports a missing or invalid static setting. It is raised
// before any fetch or render takes place.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

func configErrorf(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}
