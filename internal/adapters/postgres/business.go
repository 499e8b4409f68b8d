package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"agora/internal/adapters/config"
	"agora/internal/metrics"
	"agora/pkg/errors"
	"agora/pkg/logger"
)

const tableCacheTTL = 5 * time.Minute

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]{0,62}$`)

// read-only statement prefixes; the transaction is READ ONLY as well
var readOnlyPrefixes = []string{"select", "with", "show", "explain", "values", "table"}

// SchemaCache stores table listings between db agent calls. Implemented by the redis client.
type SchemaCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ColumnInfo describes a single table column.
type ColumnInfo struct {
	Name       string `db:"name" json:"name"`
	Type       string `db:"type" json:"type"`
	Nullable   bool   `db:"nullable" json:"nullable"`
	PrimaryKey bool   `db:"primary_key" json:"primary_key"`
}

// TableInfo describes a business table.
type TableInfo struct {
	Name        string       `json:"name"`
	Database    string       `json:"database"`
	Columns     []ColumnInfo `json:"columns"`
	PrimaryKeys []string     `json:"primary_keys"`
}

// QueryResult holds rows of an ad-hoc read-only query.
type QueryResult struct {
	Rows      []map[string]interface{} `json:"rows"`
	Truncated bool                     `json:"truncated"`
}

// BusinessManager owns one connection pool per business database.
type BusinessManager struct {
	names    []string
	dbs      map[string]*sqlx.DB
	rowLimit int
	cache    SchemaCache
	log      *logger.Logger
}

// OpenBusiness connects to every configured business database.
// A database that fails to connect is fatal: the db agent would otherwise report stale metadata.
func OpenBusiness(ctx context.Context, cfg config.BusinessConfig, cache SchemaCache) (*BusinessManager, error) {
	m := newBusinessManager(cfg.RowLimit, cache)

	for _, raw := range cfg.Databases {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		db, err := connect(ctx, cfg.DSN(name), cfg.MaxConns)
		if err != nil {
			_ = m.Close()
			return nil, errors.Wrapf(err, "business database %s", name)
		}
		m.add(name, db)
		m.log.Infow("Connected business database", "database", name)
	}

	return m, nil
}

func newBusinessManager(rowLimit int, cache SchemaCache) *BusinessManager {
	if rowLimit <= 0 {
		rowLimit = 1000
	}
	return &BusinessManager{
		dbs:      make(map[string]*sqlx.DB),
		rowLimit: rowLimit,
		cache:    cache,
		log:      logger.Component("business_db"),
	}
}

func (m *BusinessManager) add(name string, db *sqlx.DB) {
	m.names = append(m.names, name)
	m.dbs[name] = db
}

// Databases returns configured database names in configuration order.
func (m *BusinessManager) Databases() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// resolve picks the named database, or the first configured one when name is empty.
func (m *BusinessManager) resolve(name string) (string, *sqlx.DB, error) {
	if name == "" {
		if len(m.names) == 0 {
			return "", nil, errors.Wrap(errors.ErrUnavailable, "no business databases configured")
		}
		name = m.names[0]
	}
	db, ok := m.dbs[name]
	if !ok {
		return "", nil, errors.Wrapf(errors.ErrNotFound, "business database %q", name)
	}
	return name, db, nil
}

// ListTables returns base tables of the current schema.
func (m *BusinessManager) ListTables(ctx context.Context, database string) ([]string, error) {
	name, db, err := m.resolve(database)
	if err != nil {
		return nil, err
	}

	cacheKey := "schema:tables:" + name
	if m.cache != nil {
		var cached []string
		if err := m.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	tables := []string{}
	start := time.Now()
	err = db.SelectContext(ctx, &tables, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	metrics.RecordDBQuery(name, "list_tables", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrapf(err, "list tables in %s", name)
	}

	if m.cache != nil {
		if err := m.cache.Set(ctx, cacheKey, tables, tableCacheTTL); err != nil {
			m.log.Debugw("Table cache write failed", "database", name, "error", err)
		}
	}

	return tables, nil
}

// TableInfo returns column metadata and primary keys of a table.
func (m *BusinessManager) TableInfo(ctx context.Context, database, table string) (*TableInfo, error) {
	name, db, err := m.resolve(database)
	if err != nil {
		return nil, err
	}
	if err := ValidateIdentifier(table); err != nil {
		return nil, err
	}

	var cols []ColumnInfo
	start := time.Now()
	err = db.SelectContext(ctx, &cols, `
		SELECT
			c.column_name AS name,
			c.data_type AS type,
			c.is_nullable = 'YES' AS nullable,
			EXISTS (
				SELECT 1
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage k
					ON tc.constraint_name = k.constraint_name
					AND tc.table_schema = k.table_schema
					AND tc.table_name = k.table_name
				WHERE tc.constraint_type = 'PRIMARY KEY'
					AND tc.table_schema = c.table_schema
					AND tc.table_name = c.table_name
					AND k.column_name = c.column_name
			) AS primary_key
		FROM information_schema.columns c
		WHERE c.table_schema = current_schema() AND c.table_name = $1
		ORDER BY c.ordinal_position`, table)
	metrics.RecordDBQuery(name, "table_info", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrapf(err, "describe %s.%s", name, table)
	}
	if len(cols) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "table %s.%s", name, table)
	}

	info := &TableInfo{Name: table, Database: name, Columns: cols, PrimaryKeys: []string{}}
	for _, c := range cols {
		if c.PrimaryKey {
			info.PrimaryKeys = append(info.PrimaryKeys, c.Name)
		}
	}
	return info, nil
}

// CountRows returns the exact row count of a table.
func (m *BusinessManager) CountRows(ctx context.Context, database, table string) (int64, error) {
	name, db, err := m.resolve(database)
	if err != nil {
		return 0, err
	}
	if err := ValidateIdentifier(table); err != nil {
		return 0, err
	}

	var count int64
	start := time.Now()
	err = db.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+pq.QuoteIdentifier(table))
	metrics.RecordDBQuery(name, "count", time.Since(start), err)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
			return 0, errors.Wrapf(errors.ErrNotFound, "table %s.%s", name, table)
		}
		return 0, errors.Wrapf(err, "count rows of %s.%s", name, table)
	}
	return count, nil
}

// Query runs a read-only statement. Parameters bind to :name placeholders.
// Statements without params are sent verbatim.
func (m *BusinessManager) Query(ctx context.Context, database, statement string, params map[string]interface{}) (*QueryResult, error) {
	name, db, err := m.resolve(database)
	if err != nil {
		return nil, err
	}
	if err := CheckReadOnly(statement); err != nil {
		return nil, err
	}

	query, args := statement, []interface{}(nil)
	if len(params) > 0 {
		query, args, err = bindNamed(statement, params)
		if err != nil {
			return nil, err
		}
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "begin read-only transaction")
	}
	defer func() { _ = tx.Rollback() }()

	start := time.Now()
	rows, err := tx.QueryxContext(ctx, query, args...)
	metrics.RecordDBQuery(name, "query", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "query failed: %v", err)
	}
	defer rows.Close()

	result := &QueryResult{Rows: []map[string]interface{}{}}
	for rows.Next() {
		if len(result.Rows) >= m.rowLimit {
			result.Truncated = true
			break
		}
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate rows")
	}

	return result, nil
}

// Health pings every business database.
func (m *BusinessManager) Health(ctx context.Context) error {
	var merr errors.MultiError
	for _, name := range m.names {
		if err := m.dbs[name].PingContext(ctx); err != nil {
			merr.Add(errors.Wrapf(err, "business database %s", name))
		}
	}
	return merr.ToError()
}

// Close closes every pool.
func (m *BusinessManager) Close() error {
	var merr errors.MultiError
	for _, name := range m.names {
		merr.Add(m.dbs[name].Close())
	}
	return merr.ToError()
}

// ValidateIdentifier rejects anything that is not a plain SQL identifier.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return errors.NewValidationError("table", "must be a plain identifier", name)
	}
	return nil
}

// CheckReadOnly rejects multi-statement input and anything that does not start with a read keyword.
func CheckReadOnly(statement string) error {
	s := strings.TrimSpace(statement)
	s = strings.TrimRight(s, "; \t\n")
	if s == "" {
		return errors.NewValidationError("sql", "must not be empty", statement)
	}
	if strings.Contains(s, ";") {
		return errors.Wrap(errors.ErrReadOnlyViolation, "multiple statements")
	}

	first := strings.ToLower(strings.Fields(s)[0])
	for _, p := range readOnlyPrefixes {
		if first == p {
			return nil
		}
	}
	return errors.Wrap(errors.ErrReadOnlyViolation, fmt.Sprintf("%s statements are not permitted", strings.ToUpper(first)))
}

// placeholderCast matches a :name placeholder directly followed by a cast.
var placeholderCast = regexp.MustCompile(`(^|[^:]):([A-Za-z_][A-Za-z0-9_]*)::`)

// bindNamed turns :name placeholders into $n. sqlx reads "::" as an escaped
// colon and rejects a name running into one, so :id::int is split to :id ::int
// and every cast is doubled to come out unchanged.
func bindNamed(statement string, params map[string]interface{}) (string, []interface{}, error) {
	escaped := placeholderCast.ReplaceAllString(statement, "${1}:${2} ::")
	escaped = strings.ReplaceAll(escaped, "::", "::::")
	query, args, err := sqlx.Named(escaped, params)
	if err != nil {
		return "", nil, errors.Wrapf(errors.ErrInvalidInput, "bind parameters: %v", err)
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args, nil
}
