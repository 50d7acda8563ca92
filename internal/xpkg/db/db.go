package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"order-router/internal/xpkg/config"
	xerrors "order-router/internal/xpkg/errors"
	"order-router/internal/xpkg/logger"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jpillora/backoff"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	pingTimeout  = 5 * time.Second
	RetryAttempt = 3
)

type DB struct {
	pool  *pgxpool.Pool
	mylog logger.Logger
}

// Start opens a connection pool and verifies it with a ping.
func Start(ctx context.Context, dbCfg *config.Postgres, mylog logger.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = dbCfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrDBConn, err)
	}

	d := &DB{pool: pool, mylog: mylog}
	if err := d.IsAlive(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	mylog.Action("db_connected").Info("Database pool ready", "host", dbCfg.Host, "database", dbCfg.Database, "max_conns", dbCfg.MaxConns)
	return d, nil
}

func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}

// IsAlive pings the database.
func (d *DB) IsAlive(ctx context.Context) error {
	if d.pool == nil {
		return fmt.Errorf("%w: pool is not initialized", xerrors.ErrDBConn)
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := d.pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("%w: %v", xerrors.ErrDBConn, err)
	}
	return nil
}

func (d *DB) Close() error {
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}

// EnsureSchema applies the embedded migrations in file name order.
// Every migration is idempotent.
func (d *DB) EnsureSchema(ctx context.Context) error {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, name := range files {
		body, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := d.pool.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		d.mylog.Action("migration_applied").Info("Migration applied", "file", name)
	}
	return nil
}

// TryAdvisoryLock takes a session level advisory lock on a dedicated
// connection. ok is false when another session holds the lock.
func (d *DB) TryAdvisoryLock(ctx context.Context, key int64) (release func(), ok bool, err error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", xerrors.ErrDBConn, err)
	}

	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}

	release = func() {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, key); err != nil {
			d.mylog.Action("advisory_unlock_failed").Error("Failed to release advisory lock", err, "key", key)
			// drop the connection so the server frees the lock with the session
			conn.Conn().Close(ctx)
		}
		conn.Release()
	}
	return release, true, nil
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "57P01", "53300":
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08")
	}
	return false
}

// Retry runs fn until it succeeds, returns a non transient error, or
// attempts are exhausted. Only use it for idempotent work.
func Retry(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil || !IsTransient(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return err
}
