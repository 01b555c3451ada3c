package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"shotdeck/internal/config"
)

func init() {
	sqlx.BindDriver(config.DriverSQLite, sqlx.QUESTION)
}

// Store persists projects, tasks, generations and shots over sqlx.
type Store struct {
	db     *sqlx.DB
	driver string
	dsn    string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open connects to the configured database and applies pending migrations.
func Open(cfg *config.Config) (*Store, error) {
	s, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Connect opens the database without touching the schema.
func Connect(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("store: config is nil")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenDSN(cfg.Database.Driver, cfg.DatabaseDSN(), cfg.Database.MaxOpenConns)
}

// OpenDSN connects using an explicit driver and data source name.
func OpenDSN(driver, dsn string, maxOpenConns int) (*Store, error) {
	driver = strings.TrimSpace(driver)
	if driver == "" {
		driver = config.DriverSQLite
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("store: empty dsn for driver %q", driver)
	}

	source := dsn
	switch driver {
	case config.DriverSQLite:
		source = sqliteDSN(dsn)
	case config.DriverPostgres:
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", driver, err)
	}

	return &Store{db: db, driver: driver, dsn: dsn}, nil
}

// sqliteDSN turns a plain path into a modernc DSN whose pragmas apply to every
// pooled connection.
func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") || strings.Contains(path, "_pragma=") {
		return path
	}
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver returns the SQL dialect in use.
func (s *Store) Driver() string {
	return s.driver
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ensureContext(ctx))
}

// SchemaVersion reports the applied migration version and whether the last
// migration left the schema dirty.
func (s *Store) SchemaVersion(ctx context.Context) (uint, bool, error) {
	var row struct {
		Version int64 `db:"version"`
		Dirty   bool  `db:"dirty"`
	}
	err := sqlx.GetContext(ensureContext(ctx), s.db, &row, `SELECT version, dirty FROM schema_migrations LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return uint(row.Version), row.Dirty, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	query = s.db.Rebind(query)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) get(ctx context.Context, dest any, query string, args ...any) error {
	ctx = ensureContext(ctx)
	query = s.db.Rebind(query)
	return retryOnBusy(ctx, func() error {
		return sqlx.GetContext(ctx, s.db, dest, query, args...)
	})
}

func (s *Store) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	ctx = ensureContext(ctx)
	query = s.db.Rebind(query)
	return retryOnBusy(ctx, func() error {
		return sqlx.SelectContext(ctx, s.db, dest, query, args...)
	})
}

// tx wraps *sqlx.Tx so queries written with ? placeholders run on both dialects.
type tx struct {
	*sqlx.Tx
}

func (t tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.ExecContext(ctx, t.Rebind(query), args...)
}

func (t tx) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, t.Tx, dest, t.Rebind(query), args...)
}

func (t tx) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, t.Tx, dest, t.Rebind(query), args...)
}

// in expands slice arguments with sqlx.In; get, selectAll and exec rebind.
func (t tx) in(query string, args ...any) (string, []any, error) {
	return sqlx.In(query, args...)
}

// withTx runs fn in a transaction, retrying the whole unit when SQLite reports
// the database busy.
func (s *Store) withTx(ctx context.Context, fn func(tx) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		sqlTx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if err := fn(tx{sqlTx}); err != nil {
			_ = sqlTx.Rollback()
			return err
		}
		if err := sqlTx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}

func (s *Store) in(query string, args ...any) (string, []any, error) {
	return sqlx.In(query, args...)
}

func rowsAffected(res sql.Result) int64 {
	if res == nil {
		return 0
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
