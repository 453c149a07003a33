package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/idna"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/raysh454/asyncreq/internal/logging"
	"github.com/raysh454/asyncreq/internal/request"
	"github.com/raysh454/asyncreq/internal/response"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("request not found")

// Entry is one finished request as stored in the journal. Bodies and headers
// are not kept.
type Entry struct {
	ID             string             `json:"id"`
	URL            string             `json:"url"`
	Domain         string             `json:"domain"`
	Method         string             `json:"method"`
	Success        bool               `json:"success"`
	StatusCode     int                `json:"status_code"`
	ErrorMessage   string             `json:"error_message,omitempty"`
	Kind           response.ErrorKind `json:"kind,omitempty"`
	ElapsedSeconds float64            `json:"elapsed_seconds"`
	CreatedAt      time.Time          `json:"created_at"`
}

// NewEntry builds an Entry for a finished request.
func NewEntry(id string, spec request.Spec, r response.Result) Entry {
	return Entry{
		ID:             id,
		URL:            spec.URL,
		Domain:         asciiDomain(request.ExtractDomain(spec.URL)),
		Method:         strings.ToUpper(spec.Method),
		Success:        r.Success,
		StatusCode:     r.StatusCode,
		ErrorMessage:   r.ErrorMessage,
		Kind:           r.Kind,
		ElapsedSeconds: r.ElapsedSeconds,
		CreatedAt:      time.Now().UTC(),
	}
}

// asciiDomain converts internationalized host names to their punycode form so
// that lookups by domain match however the caller spelled it. Ports are kept.
// Hosts idna rejects are stored lower-cased as-is.
func asciiDomain(domain string) string {
	host, port, hasPort := strings.Cut(domain, ":")
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		ascii = strings.ToLower(host)
	}
	if hasPort {
		return ascii + ":" + port
	}
	return ascii
}

// Store is a SQLite-backed request journal. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

// NewStore runs the schema migration on db and returns a Store.
func NewStore(db *sql.DB, logger logging.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &Store{db: db, logger: logger.With(logging.Field{Key: "component", Value: "history"})}, nil
}

// Open opens (or creates) the SQLite database at path and returns a Store
// that owns it.
func Open(path string, logger logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;`); err != nil {
		if logger != nil {
			logger.Warn("setting history pragmas", logging.Field{Key: "error", Value: err})
		}
	}
	s, err := NewStore(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Record inserts e.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("entry id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (id, url, domain, method, success, status_code, error_message, kind, elapsed_seconds, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.URL, e.Domain, e.Method, e.Success, e.StatusCode, e.ErrorMessage, string(e.Kind),
		e.ElapsedSeconds, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert request %s: %w", e.ID, err)
	}
	return nil
}

const selectColumns = `id, url, domain, method, success, status_code, error_message, kind, elapsed_seconds, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e       Entry
		kind    string
		created int64
	)
	if err := row.Scan(&e.ID, &e.URL, &e.Domain, &e.Method, &e.Success, &e.StatusCode,
		&e.ErrorMessage, &kind, &e.ElapsedSeconds, &created); err != nil {
		return nil, err
	}
	e.Kind = response.ErrorKind(kind)
	e.CreatedAt = time.Unix(0, created).UTC()
	return &e, nil
}

// Get returns the entry with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM requests WHERE id = ? LIMIT 1`, id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get request %s: %w", id, err)
	}
	return e, nil
}

// List returns up to limit entries, newest first. limit <= 0 means 100.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	return s.list(ctx, `SELECT `+selectColumns+` FROM requests ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
}

// ListByDomain is List restricted to one domain. domain may be given in
// Unicode or punycode form.
func (s *Store) ListByDomain(ctx context.Context, domain string, limit int) ([]Entry, error) {
	return s.list(ctx, `SELECT `+selectColumns+` FROM requests WHERE domain = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit, asciiDomain(domain))
}

func (s *Store) list(ctx context.Context, query string, limit int, args ...any) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Observe records a finished request. It matches client.Observer and runs on
// the execution loop, so failures are logged rather than returned.
func (s *Store) Observe(id string, spec request.Spec, r response.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Record(ctx, NewEntry(id, spec, r)); err != nil {
		s.logger.Warn("recording request", logging.Field{Key: "request_id", Value: id}, logging.Field{Key: "error", Value: err})
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
