// Package store provides SQLite-backed access to the retail dataset.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/datadesk/retail-copilot/internal/domain"
)

// compatViews exposes lowercase view names over the canonical Northwind
// tables so generated queries can reference either spelling.
const compatViews = `
CREATE VIEW IF NOT EXISTS orders AS SELECT * FROM Orders;
CREATE VIEW IF NOT EXISTS order_items AS SELECT * FROM "Order Details";
CREATE VIEW IF NOT EXISTS products AS SELECT * FROM Products;
CREATE VIEW IF NOT EXISTS customers AS SELECT * FROM Customers;
CREATE VIEW IF NOT EXISTS categories AS SELECT * FROM Categories;
`

// Store wraps a SQLite database holding the retail dataset. It performs
// no retries and no repair: every driver-level failure is converted to a
// typed store error for the caller to handle.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at path with recommended pragmas.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, domain.WrapCopilotError(domain.ErrStoreInit.Code, "open database", err)
	}

	// Limit connections to 1 for SQLite (WAL allows concurrent reads but single writer).
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, domain.WrapCopilotError(domain.ErrStoreInit.Code, "ping database", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for collaborators that share the
// connection, such as the trace sink.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EnsureViews creates the lowercase compatibility views when the
// canonical Northwind tables exist. Missing tables are not an error; the
// dataset may use the lowercase names natively.
func (s *Store) EnsureViews(ctx context.Context) error {
	tables, err := s.Tables(ctx)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(tables))
	for _, t := range tables {
		have[t] = true
	}
	if !have["Orders"] {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, compatViews); err != nil {
		return domain.WrapCopilotError(domain.ErrStoreInit.Code, "create compatibility views", err)
	}
	return nil
}

// Query executes a read query and returns the ordered result set with
// named columns. Any driver error is converted to a typed execution
// error rather than propagated.
func (s *Store) Query(ctx context.Context, query string) (*domain.ResultSet, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, domain.WrapCopilotError(domain.ErrExecutionFailed.Code, domain.ErrExecutionFailed.Message, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, domain.WrapCopilotError(domain.ErrExecutionFailed.Code, "read columns", err)
	}

	rs := &domain.ResultSet{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, domain.WrapCopilotError(domain.ErrExecutionFailed.Code, "scan row", err)
		}
		row := make(domain.Row, len(cols))
		for i, c := range cols {
			row[c] = normalizeValue(values[i])
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapCopilotError(domain.ErrExecutionFailed.Code, "iterate rows", err)
	}
	return rs, nil
}

// Tables lists the tables in the database, sorted by name.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	const q = `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, domain.WrapCopilotError(domain.ErrStoreQuery.Code, "list tables", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, domain.WrapCopilotError(domain.ErrStoreQuery.Code, "scan table name", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Columns lists the column names of a table in declaration order.
func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	q := fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, domain.WrapCopilotError(domain.ErrStoreQuery.Code, "table info", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return nil, domain.WrapCopilotError(domain.ErrStoreQuery.Code, "scan column info", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// Schema returns the full table-to-columns mapping.
func (s *Store) Schema(ctx context.Context) (map[string][]string, error) {
	tables, err := s.Tables(ctx)
	if err != nil {
		return nil, err
	}
	schema := make(map[string][]string, len(tables))
	for _, t := range tables {
		cols, err := s.Columns(ctx, t)
		if err != nil {
			return nil, err
		}
		schema[t] = cols
	}
	return schema, nil
}

// quoteIdent wraps an identifier in double quotes, doubling any embedded
// quotes, so names like "Order Details" are safe.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// normalizeValue maps driver values into the small set of types the
// pipeline works with: int64, float64, string, nil.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return v
	}
}
