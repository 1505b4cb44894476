package sqlite

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/poiesic/mediastash/storage"
)

// Table is a table-agnostic record store over one declared table.
// Every statement is parameterized and validated against the declared columns.
type Table struct {
	backend *Backend
	name    string
	columns []string
	// schema creates the table, and anything it references, when it is missing.
	schema []string
	// qualified maps a column to the expression used in WHERE and ORDER BY
	// when reads select from a join.
	qualified map[string]string
	// selectFrom overrides "SELECT <columns> FROM <name>" for reads.
	selectFrom string
}

// TableDef declares a table.
type TableDef struct {
	Name      string
	Columns   []string
	Schema    []string
	Qualified map[string]string
	// SelectFrom replaces the default select clause for reads; it must
	// produce the declared columns in order.
	SelectFrom string
}

// NewTable binds a declared table to the backend.
func NewTable(backend *Backend, def TableDef) *Table {
	selectFrom := def.SelectFrom
	if selectFrom == "" {
		selectFrom = fmt.Sprintf("SELECT %s FROM %s", strings.Join(def.Columns, ", "), def.Name)
	}
	return &Table{
		backend:    backend,
		name:       def.Name,
		columns:    def.Columns,
		schema:     def.Schema,
		qualified:  def.Qualified,
		selectFrom: selectFrom,
	}
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Columns returns the declared columns.
func (t *Table) Columns() []string {
	return t.columns
}

// Create runs the table's creation statements. They are idempotent.
func (t *Table) Create(ctx context.Context) error {
	return t.backend.run(ctx, t.name, t.schema, func(q querier) error {
		for _, stmt := range t.schema {
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// Add inserts one row. With replace, an existing row with the same key is replaced.
// inserted reports whether a row was written; id is its rowid.
func (t *Table) Add(ctx context.Context, fields storage.Fields, replace bool) (inserted bool, id int64, err error) {
	stmt, args, err := t.insertStatement(fields, replace)
	if err != nil {
		return false, 0, err
	}
	err = t.backend.run(ctx, t.name, t.schema, func(q querier) error {
		inserted, id, err = execInsert(ctx, q, stmt, args)
		return err
	})
	return inserted, id, err
}

// AddMany inserts several rows in one transaction.
func (t *Table) AddMany(ctx context.Context, rows []storage.Fields, replace bool) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: no rows to insert", storage.ErrValidation)
	}
	stmts := make([]string, len(rows))
	args := make([][]any, len(rows))
	for i, fields := range rows {
		var err error
		if stmts[i], args[i], err = t.insertStatement(fields, replace); err != nil {
			return err
		}
	}
	return t.backend.withTx(ctx, t.name, t.schema, func(tx querier) error {
		for i := range stmts {
			if _, _, err := execInsert(ctx, tx, stmts[i], args[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get reads the rows matching q.
func (t *Table) Get(ctx context.Context, q storage.Query) (storage.Result, error) {
	stmt, args, err := t.selectStatement(q)
	if err != nil {
		return storage.Result{}, err
	}
	var result storage.Result
	err = t.backend.run(ctx, t.name, t.schema, func(db querier) error {
		result, err = queryRows(ctx, db, stmt, args, q.WithColumnNames)
		return err
	})
	return result, err
}

// CountWhere counts rows matching every condition. Conditions must not be empty.
func (t *Table) CountWhere(ctx context.Context, conditions storage.Fields) (int, error) {
	if len(conditions) == 0 {
		return 0, fmt.Errorf("%w: no conditions provided for count", storage.ErrValidation)
	}
	if err := storage.ValidateColumns(t.columns, conditions); err != nil {
		return 0, err
	}
	where, args := t.whereClause(conditions)
	return t.count(ctx, where, args)
}

// Count counts every row.
func (t *Table) Count(ctx context.Context) (int, error) {
	return t.count(ctx, "", nil)
}

func (t *Table) count(ctx context.Context, where string, args []any) (int, error) {
	stmt := countStatement(t.selectFrom) + where
	var n int
	err := t.backend.run(ctx, t.name, t.schema, func(q querier) error {
		return q.QueryRowContext(ctx, stmt, args...).Scan(&n)
	})
	return n, err
}

// Set updates matching rows with values and reports whether any row changed.
func (t *Table) Set(ctx context.Context, conditions, values storage.Fields) (bool, error) {
	if len(conditions) == 0 {
		return false, fmt.Errorf("%w: no conditions provided for update", storage.ErrValidation)
	}
	if len(values) == 0 {
		return false, fmt.Errorf("%w: no values provided for update", storage.ErrValidation)
	}
	if err := storage.ValidateColumns(t.columns, conditions); err != nil {
		return false, err
	}
	if err := storage.ValidateColumns(t.columns, values); err != nil {
		return false, err
	}

	keys := values.Keys()
	sets := make([]string, len(keys))
	args := make([]any, 0, len(values)+len(conditions))
	for i, k := range keys {
		sets[i] = k + " = ?"
		args = append(args, values[k])
	}
	where, whereArgs := plainWhere(conditions)
	args = append(args, whereArgs...)
	stmt := fmt.Sprintf("UPDATE %s SET %s%s", t.name, strings.Join(sets, ", "), where)
	return t.execAffected(ctx, stmt, args)
}

// Delete removes matching rows and reports whether any were removed.
func (t *Table) Delete(ctx context.Context, conditions storage.Fields) (bool, error) {
	if len(conditions) == 0 {
		return false, fmt.Errorf("%w: no conditions provided for delete", storage.ErrValidation)
	}
	if err := storage.ValidateColumns(t.columns, conditions); err != nil {
		return false, err
	}
	where, args := plainWhere(conditions)
	return t.execAffected(ctx, "DELETE FROM "+t.name+where, args)
}

func (t *Table) execAffected(ctx context.Context, stmt string, args []any) (bool, error) {
	var affected int64
	err := t.backend.run(ctx, t.name, t.schema, func(q querier) error {
		res, err := q.ExecContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected > 0, err
}

func (t *Table) insertStatement(fields storage.Fields, replace bool) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("%w: no data provided for insertion", storage.ErrValidation)
	}
	if err := storage.ValidateColumns(t.columns, fields); err != nil {
		return "", nil, err
	}
	keys := fields.Keys()
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = fields[k]
	}
	verb := "INSERT"
	if replace {
		verb = "INSERT OR REPLACE"
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
	stmt := fmt.Sprintf("%s INTO %s (%s) VALUES (%s)", verb, t.name, strings.Join(keys, ", "), placeholders)
	return stmt, args, nil
}

func (t *Table) selectStatement(q storage.Query) (string, []any, error) {
	if err := q.Validate(t.columns); err != nil {
		return "", nil, err
	}
	var sb strings.Builder
	sb.WriteString(t.selectFrom)
	where, args := t.whereClause(q.Conditions)
	sb.WriteString(where)
	if q.OrderBy != "" {
		dir := storage.Direction(strings.ToUpper(string(q.Direction)))
		if dir == "" {
			dir = storage.Ascending
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", t.column(q.OrderBy), dir)
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
		if q.Offset > 0 {
			sb.WriteString(" OFFSET ?")
			args = append(args, q.Offset)
		}
	}
	return sb.String(), args, nil
}

// whereClause renders conditions using qualified column names.
func (t *Table) whereClause(conditions storage.Fields) (string, []any) {
	if len(conditions) == 0 {
		return "", nil
	}
	keys := conditions.Keys()
	parts := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		parts[i] = t.column(k) + " = ?"
		args[i] = conditions[k]
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func (t *Table) column(name string) string {
	if q, ok := t.qualified[name]; ok {
		return q
	}
	return name
}

func plainWhere(conditions storage.Fields) (string, []any) {
	return (&Table{}).whereClause(conditions)
}

// countStatement turns "SELECT <cols> FROM ..." into "SELECT COUNT(*) FROM ...".
func countStatement(selectFrom string) string {
	loc := fromKeyword.FindStringIndex(selectFrom)
	return "SELECT COUNT(*)" + selectFrom[loc[0]:]
}

var fromKeyword = regexp.MustCompile(`(?i)\sFROM\s`)

func execInsert(ctx context.Context, q querier, stmt string, args []any) (bool, int64, error) {
	res, err := q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return false, 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, 0, err
	}
	return affected > 0, id, nil
}

func queryRows(ctx context.Context, q querier, stmt string, args []any, withNames bool) (storage.Result, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return storage.Result{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return storage.Result{}, err
	}
	var result storage.Result
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return storage.Result{}, err
		}
		row := storage.Row{Values: values}
		if withNames {
			row.Columns = cols
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}
