package mockplatform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(collection, id)
)`

// SQLiteStore implements Store with SQLite. Records are kept as JSON
// documents so any schema can be stored without migrations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path. ":memory:" gives
// a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	// Set pragmas for performance
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Insert adds a record.
func (s *SQLiteStore) Insert(ctx context.Context, collection string, rec map[string]any) error {
	id, _ := rec["id"].(string)
	if id == "" {
		return fmt.Errorf("insert into %s: record has no id", collection)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO records (collection, id, data) VALUES (?, ?, ?)",
		collection, id, string(data))
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

// Get retrieves a record by id.
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM records WHERE collection = ? AND id = ?",
		collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(data)
}

// List returns matching records in insertion order.
func (s *SQLiteStore) List(ctx context.Context, collection string, opts ListOptions) ([]map[string]any, int, error) {
	where := []string{"collection = ?"}
	args := []any{collection}

	// Sorted for a stable statement; field names travel as bound JSON paths.
	keys := make([]string, 0, len(opts.Filters))
	for k := range opts.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		path := `$."` + strings.ReplaceAll(k, `"`, `""`) + `"`
		where = append(where, `(CASE json_type(data, ?)
			WHEN 'true' THEN 'true'
			WHEN 'false' THEN 'false'
			ELSE CAST(json_extract(data, ?) AS TEXT) END) = ?`)
		args = append(args, path, path, opts.Filters[k])
	}
	whereClause := " WHERE " + strings.Join(where, " AND ")

	// Get count
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	query := fmt.Sprintf("SELECT data FROM records%s ORDER BY seq ASC LIMIT %d OFFSET %d", whereClause, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []map[string]any
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, 0, err
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, rec)
	}
	return results, total, rows.Err()
}

// Update merges fields into a record.
func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields map[string]any) (map[string]any, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx,
		"SELECT data FROM records WHERE collection = ? AND id = ?",
		collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		rec[k] = v
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE records SET data = ?, updated_at = CURRENT_TIMESTAMP WHERE collection = ? AND id = ?",
		string(encoded), collection, id); err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record.
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM records WHERE collection = ? AND id = ?", collection, id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeRecord(data string) (map[string]any, error) {
	var rec map[string]any
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

var _ Store = (*SQLiteStore)(nil)
