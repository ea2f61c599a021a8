package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"tokoban/backend/internal/domain"
	"tokoban/backend/internal/store"
)

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ store.Repository = (*Store)(nil)

func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return newWithDB(db, logger), nil
}

func newWithDB(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.Named("postgres")}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RunInTx runs fn in a READ COMMITTED transaction. Row locks taken with
// SELECT ... FOR UPDATE serialize writers; waiters re-read the committed row
// once the lock is released.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		return mapError(err)
	}
	if err := sqlTx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type pgTx struct {
	tx *sql.Tx
}

var _ store.Tx = (*pgTx)(nil)

// mapError turns constraint failures into domain.ErrInvalidData. Anything
// else is returned unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("%w: already exists (%s)", domain.ErrInvalidData, pgErr.ConstraintName)
	case "23503":
		return fmt.Errorf("%w: unknown reference (%s)", domain.ErrInvalidData, pgErr.ConstraintName)
	case "23514":
		return fmt.Errorf("%w: constraint %s violated", domain.ErrInvalidData, pgErr.ConstraintName)
	case "22P02":
		return fmt.Errorf("%w: malformed value", domain.ErrInvalidData)
	default:
		return err
	}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrReferenceNotFound
	}
	return mapError(err)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func expectAffected(res sql.Result, missing error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return missing
	}
	return nil
}
