// Package store persists processed articles and request logs in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"marketwire/internal/core"
)

// ErrNotFound is returned when an article ID does not exist.
var ErrNotFound = errors.New("article not found")

// DuplicateError reports an insert whose source URL is already stored.
type DuplicateError struct {
	Source     string
	ExistingID int64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("article for %s already exists with id %d", e.Source, e.ExistingID)
}

// RequestLog is one recorded API request.
type RequestLog struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	RemoteAddr string    `json:"remote_addr"`
	Status     int       `json:"status"`
	Duration   float64   `json:"duration_ms"`
}

// Retention policy for request logs: once the table exceeds keepLogRows,
// entries older than keepLogAge are dropped.
const (
	keepLogRows = 100
	keepLogAge  = 7 * 24 * time.Hour
)

// Store is the SQLite-backed article store.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (creating if needed) the database under dataDir.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "marketwire.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	articlesTable := `
	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT,
		body TEXT,
		source TEXT NOT NULL UNIQUE,
		timestamp DATETIME,
		sector TEXT,
		sub_sector TEXT,
		tags TEXT,
		tickers TEXT,
		dimension TEXT,
		score INTEGER
	);`

	logsTable := `
	CREATE TABLE IF NOT EXISTS request_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME,
		method TEXT,
		path TEXT,
		remote_addr TEXT,
		status INTEGER,
		duration_ms REAL
	);`

	for _, table := range []string{articlesTable, logsTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores a new article and fills in its ID. Inserting a source URL
// that is already stored fails with a DuplicateError naming the existing row.
func (s *Store) Insert(article *core.Article) error {
	query := `
	INSERT INTO articles
	(title, body, source, timestamp, sector, sub_sector, tags, tickers, dimension, score)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.Exec(query,
		article.Title,
		article.Body,
		article.Source,
		article.Timestamp.UTC(),
		article.Sector,
		marshalJSON(article.SubSectors),
		marshalJSON(article.Tags),
		marshalJSON(article.Tickers),
		marshalJSON(article.Dimensions),
		article.Score,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return s.duplicateError(article.Source)
		}
		return fmt.Errorf("failed to insert article: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted id: %w", err)
	}
	article.ID = id
	return nil
}

func (s *Store) duplicateError(source string) error {
	var existingID int64
	if err := s.db.QueryRow("SELECT id FROM articles WHERE source = ?", source).Scan(&existingID); err != nil {
		return fmt.Errorf("duplicate source %s: %w", source, err)
	}
	return &DuplicateError{Source: source, ExistingID: existingID}
}

// Get returns a single article by ID.
func (s *Store) Get(id int64) (*core.Article, error) {
	row := s.db.QueryRow(selectArticle+" WHERE id = ?", id)
	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return article, err
}

// ListFilter narrows List results. Zero values mean no filtering.
type ListFilter struct {
	ID        int64
	SubSector string
}

// List returns stored articles, newest first.
func (f ListFilter) clauses() (string, []any) {
	var conds []string
	var args []any
	if f.ID != 0 {
		conds = append(conds, "id = ?")
		args = append(args, f.ID)
	}
	if f.SubSector != "" {
		// Sub-sectors are stored as a JSON array of slugs.
		conds = append(conds, "sub_sector LIKE ?")
		args = append(args, `%"`+f.SubSector+`"%`)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) List(filter ListFilter) ([]core.Article, error) {
	where, args := filter.clauses()
	rows, err := s.db.Query(selectArticle+where+" ORDER BY timestamp DESC, id DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var out []core.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *article)
	}
	return out, rows.Err()
}

// Update rewrites every mutable field of an existing article.
func (s *Store) Update(article *core.Article) error {
	query := `
	UPDATE articles
	SET title = ?, body = ?, source = ?, timestamp = ?, sector = ?,
	    sub_sector = ?, tags = ?, tickers = ?, dimension = ?, score = ?
	WHERE id = ?`

	res, err := s.db.Exec(query,
		article.Title,
		article.Body,
		article.Source,
		article.Timestamp.UTC(),
		article.Sector,
		marshalJSON(article.SubSectors),
		marshalJSON(article.Tags),
		marshalJSON(article.Tickers),
		marshalJSON(article.Dimensions),
		article.Score,
		article.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes articles by ID. Unknown IDs are ignored.
func (s *Store) Delete(ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := s.db.Exec("DELETE FROM articles WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete articles: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// LogRequest appends one request log row and applies the retention policy.
func (s *Store) LogRequest(entry RequestLog) error {
	_, err := s.db.Exec(
		"INSERT INTO request_logs (timestamp, method, path, remote_addr, status, duration_ms) VALUES (?, ?, ?, ?, ?, ?)",
		entry.Timestamp.UTC(), entry.Method, entry.Path, entry.RemoteAddr, entry.Status, entry.Duration,
	)
	if err != nil {
		return fmt.Errorf("failed to log request: %w", err)
	}
	return s.TrimLogs()
}

// ListLogs returns the most recent request logs, newest first.
func (s *Store) ListLogs(limit int) ([]RequestLog, error) {
	if limit <= 0 {
		limit = keepLogRows
	}
	rows, err := s.db.Query(
		"SELECT id, timestamp, method, path, remote_addr, status, duration_ms FROM request_logs ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	var out []RequestLog
	for rows.Next() {
		var l RequestLog
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Method, &l.Path, &l.RemoteAddr, &l.Status, &l.Duration); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// TrimLogs drops week-old log rows once the table has grown past the
// retention threshold.
func (s *Store) TrimLogs() error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM request_logs").Scan(&count); err != nil {
		return fmt.Errorf("failed to count logs: %w", err)
	}
	if count <= keepLogRows {
		return nil
	}
	cutoff := time.Now().UTC().Add(-keepLogAge)
	if _, err := s.db.Exec("DELETE FROM request_logs WHERE timestamp < ?", cutoff); err != nil {
		return fmt.Errorf("failed to trim logs: %w", err)
	}
	return nil
}

const selectArticle = `
	SELECT id, title, body, source, timestamp, sector, sub_sector, tags, tickers, dimension, score
	FROM articles`

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (*core.Article, error) {
	var a core.Article
	var timestamp time.Time
	var subSectors, tags, tickers, dimensions string

	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Body,
		&a.Source,
		&timestamp,
		&a.Sector,
		&subSectors,
		&tags,
		&tickers,
		&dimensions,
		&a.Score,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan article: %w", err)
	}

	a.Timestamp = timestamp
	unmarshalJSON(subSectors, &a.SubSectors)
	unmarshalJSON(tags, &a.Tags)
	unmarshalJSON(tickers, &a.Tickers)
	unmarshalJSON(dimensions, &a.Dimensions)
	return &a, nil
}

func marshalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func unmarshalJSON[T any](raw string, dst *T) {
	if raw == "" {
		return
	}
	_ = json.Unmarshal([]byte(raw), dst)
}
