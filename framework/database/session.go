package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/km-arc/go-modular/framework/errs"
	"github.com/km-arc/go-modular/framework/logging"
)

// Session is one checked-out connection. It is not safe for concurrent use.
type Session struct {
	conn *sqlx.Conn
	log  *logging.Logger
}

// Select runs query and scans every row into dest, a pointer to a slice.
func (s *Session) Select(ctx context.Context, dest any, query string, args ...any) error {
	s.log.WithField("params", len(args)).Debugf("execute query: %s", query)
	if err := s.conn.SelectContext(ctx, dest, query, args...); err != nil {
		return errs.Database(err, "select")
	}
	return nil
}

// Get runs query and scans the single resulting row into dest.
// sql.ErrNoRows is returned unwrapped.
func (s *Session) Get(ctx context.Context, dest any, query string, args ...any) error {
	s.log.WithField("params", len(args)).Debugf("execute query: %s", query)
	err := s.conn.GetContext(ctx, dest, query, args...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return err
	default:
		return errs.Database(err, "get")
	}
}

// Exec runs a statement.
func (s *Session) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.log.WithField("params", len(args)).Debugf("execute query: %s", query)
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Database(err, "exec")
	}
	return res, nil
}

// NamedExec runs a statement with :name placeholders bound from arg's db tags.
func (s *Session) NamedExec(ctx context.Context, query string, arg any) (sql.Result, error) {
	bound, args, err := sqlx.Named(query, arg)
	if err != nil {
		return nil, errs.Database(err, "bind %q", query)
	}
	return s.Exec(ctx, sqlx.Rebind(sqlx.DOLLAR, bound), args...)
}

// Close returns the connection to the pool.
func (s *Session) Close() error {
	if err := s.conn.Close(); err != nil {
		return errs.Database(err, "release connection")
	}
	return nil
}
