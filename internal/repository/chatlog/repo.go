// Package chatlog persists question/answer turns in a SQL table.
package chatlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // Postgres driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kailas-cloud/docsage/internal/domain"
)

// Supported database/sql drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the backing database.
type Config struct {
	Driver string // sqlite | postgres
	DSN    string // file path for sqlite, connection URL for postgres
}

// Repo appends and reads chat turns.
type Repo struct {
	db     *sql.DB
	driver string
}

// Open connects to the configured database and creates the chat table.
func Open(ctx context.Context, cfg Config) (*Repo, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		path, dsn := sqliteDSN(cfg.DSN)
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		db, err = sql.Open(DriverSQLite, dsn)
		cfg.Driver = DriverSQLite
	case DriverPostgres:
		db, err = sql.Open(DriverPostgres, cfg.DSN)
		if err == nil {
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(5 * time.Minute)
		}
	default:
		return nil, fmt.Errorf("unsupported chat log driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	r := New(db, cfg.Driver)
	if err := r.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := r.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// sqliteDSN returns the database file path of dsn and dsn with the WAL and
// busy-timeout pragmas appended to whatever query it already carries.
func sqliteDSN(dsn string) (path, withPragmas string) {
	path, query, hasQuery := strings.Cut(dsn, "?")
	path = strings.TrimPrefix(path, "file:")
	sep := "?"
	if hasQuery {
		sep = "&"
		if query == "" {
			sep = ""
		}
	}
	return path, dsn + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// New wraps an open database. driver decides placeholder syntax.
func New(db *sql.DB, driver string) *Repo {
	return &Repo{db: db, driver: driver}
}

// Migrate creates the chat table if it does not exist.
func (r *Repo) Migrate(ctx context.Context) error {
	id := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if r.driver == DriverPostgres {
		id = "id BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat (
			` + id + `,
			email TEXT NOT NULL,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			"timestamp" TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS chat_email_idx ON chat (email)`,
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate chat table: %w", err)
		}
	}
	return nil
}

// Append stores one turn. An empty UserID is stored as the anonymous marker.
func (r *Repo) Append(ctx context.Context, turn domain.ChatTurn) error {
	user := turn.UserID
	if user == "" {
		user = domain.AnonymousUser
	}
	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	q := r.rebind(`INSERT INTO chat (email, question, answer, "timestamp") VALUES (?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, q, user, turn.Question, turn.Answer, ts.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("insert chat turn: %w", err)
	}
	return nil
}

// History returns up to limit turns of userID, newest first. limit <= 0 means all.
func (r *Repo) History(ctx context.Context, userID string, limit int) ([]domain.ChatTurn, error) {
	// sqlite tables created before the id column existed still order by rowid
	order := "rowid"
	if r.driver == DriverPostgres {
		order = "id"
	}
	q := `SELECT email, question, answer, "timestamp" FROM chat WHERE email = ? ORDER BY ` + order + ` DESC`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	var turns []domain.ChatTurn
	for rows.Next() {
		var (
			t  domain.ChatTurn
			ts string
		)
		if err := rows.Scan(&t.UserID, &t.Question, &t.Answer, &ts); err != nil {
			return nil, fmt.Errorf("scan chat turn: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			t.Timestamp = parsed
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat history: %w", err)
	}
	return turns, nil
}

// Ping checks connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", r.driver, err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repo) Close() error {
	return r.db.Close()
}

// rebind turns "?" placeholders into "$n" for Postgres.
func (r *Repo) rebind(q string) string {
	if r.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
