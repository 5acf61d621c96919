package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"kharcha/internal/core"
)

// Dialect selects the SQL flavour of a SQLStore.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	return string(d)
}

const (
	selectExpensesSQL = `SELECT "timestamp", "date", purpose, amount FROM expenses`

	existsExpenseSQL = `SELECT 1 FROM expenses WHERE "timestamp" = ?`

	upsertExpenseSQL = `
		INSERT INTO expenses ("timestamp", "date", purpose, amount)
		VALUES (?, ?, ?, ?)
		ON CONFLICT ("timestamp") DO UPDATE SET
			"date"  = excluded."date",
			purpose = excluded.purpose,
			amount  = excluded.amount`

	deleteExpenseSQL = `DELETE FROM expenses WHERE "timestamp" = ?`
)

// queryer is the subset of *sql.DB and *sql.Tx used by the store.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store on top of database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

var _ Store = (*SQLStore)(nil)

// NewSQLiteStore opens (creating if needed) the SQLite database at dbPath
// and brings its schema up to date.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open(DialectSQLite.driverName(), dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection serializes writers and keeps the pragmas below in effect.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	if err := RunMigrations(DialectSQLite, dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("SQLite store ready", "db_path", dbPath)
	return &SQLStore{db: db, dialect: DialectSQLite}, nil
}

// NewPostgresStore connects to PostgreSQL using dsn and brings the schema
// up to date.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open(DialectPostgres.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(DialectPostgres, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("PostgreSQL store ready")
	return &SQLStore{db: db, dialect: DialectPostgres}, nil
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Find(ctx context.Context, f Filter) ([]core.Expense, error) {
	return find(ctx, s.db, s.dialect, f)
}

func (s *SQLStore) All(ctx context.Context) ([]core.Expense, error) {
	return find(ctx, s.db, s.dialect, Filter{})
}

func (s *SQLStore) Upsert(ctx context.Context, e core.Expense) (bool, error) {
	var existed bool
	err := s.Update(ctx, func(tx Tx) error {
		var err error
		existed, err = tx.Upsert(ctx, e)
		return err
	})
	return existed, err
}

func (s *SQLStore) Delete(ctx context.Context, timestamp int64) error {
	return s.Update(ctx, func(tx Tx) error {
		return tx.Delete(ctx, timestamp)
	})
}

func (s *SQLStore) Update(ctx context.Context, fn func(tx Tx) error) (err error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := dbTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(&sqlTx{tx: dbTx, dialect: s.dialect}); err != nil {
		return err
	}

	if err = dbTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *sqlTx) Find(ctx context.Context, f Filter) ([]core.Expense, error) {
	return find(ctx, t.tx, t.dialect, f)
}

func (t *sqlTx) All(ctx context.Context) ([]core.Expense, error) {
	return find(ctx, t.tx, t.dialect, Filter{})
}

func (t *sqlTx) Upsert(ctx context.Context, e core.Expense) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}

	var one int
	existed := true
	err := t.tx.QueryRowContext(ctx, rebind(t.dialect, existsExpenseSQL), e.Timestamp).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		existed = false
	} else if err != nil {
		return false, fmt.Errorf("check expense %d: %w", e.Timestamp, err)
	}

	if _, err := t.tx.ExecContext(ctx, rebind(t.dialect, upsertExpenseSQL),
		e.Timestamp, e.Date, e.Purpose, e.Amount); err != nil {
		return false, fmt.Errorf("upsert expense %d: %w", e.Timestamp, err)
	}
	return existed, nil
}

func (t *sqlTx) Delete(ctx context.Context, timestamp int64) error {
	if _, err := t.tx.ExecContext(ctx, rebind(t.dialect, deleteExpenseSQL), timestamp); err != nil {
		return fmt.Errorf("delete expense %d: %w", timestamp, err)
	}
	return nil
}

func find(ctx context.Context, q queryer, dialect Dialect, f Filter) ([]core.Expense, error) {
	query := selectExpensesSQL
	where, args := dateWhere(f)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY "timestamp"`

	rows, err := q.QueryContext(ctx, rebind(dialect, query), args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		var e core.Expense
		if err := rows.Scan(&e.Timestamp, &e.Date, &e.Purpose, &e.Amount); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// dateWhere turns f into conditions on the date column. The leading
// year[-month[-day]] part becomes an equality or a half-open range so the
// date index can serve it; a month or day without its parent falls back to
// substr.
func dateWhere(f Filter) ([]string, []any) {
	var (
		where []string
		args  []any
	)

	prefix := ""
	rest := []struct{ value, expr string }{
		{f.Year, `substr("date", 1, 4) = ?`},
		{f.Month, `substr("date", 6, 2) = ?`},
		{f.Day, `substr("date", 9, 2) = ?`},
	}
	for len(rest) > 0 && rest[0].value != "" {
		if prefix != "" {
			prefix += "-"
		}
		prefix += rest[0].value
		rest = rest[1:]
	}

	switch {
	case prefix == "":
	case len(rest) == 0:
		where = append(where, `"date" = ?`)
		args = append(args, prefix)
	default:
		where = append(where, `"date" >= ?`)
		args = append(args, prefix)
		if upper, ok := nextPrefix(prefix); ok {
			where = append(where, `"date" < ?`)
			args = append(args, upper)
		}
	}

	for _, r := range rest {
		if r.value != "" {
			where = append(where, r.expr)
			args = append(args, r.value)
		}
	}
	return where, args
}

// nextPrefix increments the trailing digits of p, so "2025-07" becomes
// "2025-08" and "2025-09" becomes "2025-10". It fails when every digit
// carries over, as for "9999".
func nextPrefix(p string) (string, bool) {
	b := []byte(p)
	for i := len(b) - 1; i >= 0; i-- {
		switch {
		case b[i] == '-':
			continue
		case b[i] < '0' || b[i] > '9':
			return "", false
		case b[i] < '9':
			b[i]++
			return string(b), true
		default:
			b[i] = '0'
		}
	}
	return "", false
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
