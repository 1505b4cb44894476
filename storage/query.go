package storage

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Fields maps declared column names to values.
type Fields map[string]any

// Keys returns the column names in sorted order so generated statements are stable.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// Query describes a filtered read over a single table.
// Conditions are combined with AND and compared for equality.
type Query struct {
	Conditions Fields
	// Limit of zero means no limit.
	Limit int
	// Offset requires a Limit.
	Offset          int
	OrderBy         string
	Direction       Direction
	WithColumnNames bool
}

// Validate checks the query against the declared column list.
func (q Query) Validate(columns []string) error {
	if err := ValidateColumns(columns, q.Conditions); err != nil {
		return err
	}
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("%w: negative limit or offset", ErrValidation)
	}
	if q.Offset > 0 && q.Limit == 0 {
		return fmt.Errorf("%w: offset without limit", ErrValidation)
	}
	if q.OrderBy != "" && !slices.Contains(columns, q.OrderBy) {
		return fmt.Errorf("%w: unknown order column %q", ErrValidation, q.OrderBy)
	}
	switch Direction(strings.ToUpper(string(q.Direction))) {
	case "", Ascending, Descending:
	default:
		return fmt.Errorf("%w: invalid direction %q", ErrValidation, q.Direction)
	}
	return nil
}

// ValidateColumns fails with ErrValidation when fields reference an undeclared column.
func ValidateColumns(columns []string, fields Fields) error {
	for _, k := range fields.Keys() {
		if !slices.Contains(columns, k) {
			return fmt.Errorf("%w: unknown column %q", ErrValidation, k)
		}
	}
	return nil
}

// Row is one result row. Columns is only populated when the query asked for column names.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value of the named column, or nil when the row carries no names.
func (r Row) Get(column string) any {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i]
		}
	}
	return nil
}

// Result holds the rows a read returned.
type Result struct {
	Rows []Row
}

// Unwrap returns the single row when exactly one matched.
// With zero or several rows ok is false and callers iterate Rows instead.
func (r Result) Unwrap() (row Row, ok bool) {
	if len(r.Rows) != 1 {
		return Row{}, false
	}
	return r.Rows[0], true
}

// Len returns the number of rows.
func (r Result) Len() int {
	return len(r.Rows)
}
