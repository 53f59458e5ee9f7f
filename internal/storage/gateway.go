package storage

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/sirupsen/logrus"
)

// ErrStatement marks a single failed statement. The run continues; callers
// must treat rows that depend on the failed one as missing.
var ErrStatement = errors.New("statement failed")

// Gateway executes statements against the store. It is the only place that
// talks to the engine, so failure mapping, logging and counting happen once.
//
// All statements run through a prepared-statement cache bound to either the
// database or the run's transaction.
type Gateway struct {
	cache   *sq.StmtCache
	log     *logrus.Logger
	metrics *Metrics
}

func newGateway(prep sq.PreparerContext, log *logrus.Logger, metrics *Metrics) *Gateway {
	return &Gateway{
		cache:   sq.NewStmtCache(prep),
		log:     log,
		metrics: metrics,
	}
}

// use rebinds the gateway to prep (the database or a transaction).
func (g *Gateway) use(prep sq.PreparerContext) {
	if err := g.cache.Clear(); err != nil {
		g.log.WithError(err).Debug("closing cached statements")
	}
	g.cache = sq.NewStmtCache(prep)
}

// Insert executes an INSERT and returns the new row id. For INSERT OR
// IGNORE statements that hit an existing key, inserted is false and id is 0.
func (g *Gateway) Insert(s Statement) (id int64, inserted bool, err error) {
	res, err := g.exec(s)
	if err != nil {
		return 0, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, g.fail(s, err)
	}
	if n == 0 {
		return 0, false, nil
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, false, g.fail(s, err)
	}
	return id, true, nil
}

// Exec executes a statement and returns the number of affected rows.
func (g *Gateway) Exec(s Statement) (int64, error) {
	res, err := g.exec(s)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, g.fail(s, err)
	}
	return n, nil
}

// Scalar runs a single-column lookup. found is false when no row matches.
func (g *Gateway) Scalar(s Statement, dest any) (found bool, err error) {
	query, args, err := s.ToSql()
	if err != nil {
		return false, g.fail(s, err)
	}
	g.metrics.observeStatement(s.Op())
	if err := g.cache.QueryRow(query, args...).Scan(dest); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, g.fail(s, err)
	}
	return true, nil
}

// ScalarInt is Scalar for integer results, with NULL read as not found.
func (g *Gateway) ScalarInt(s Statement) (int64, bool, error) {
	var v sql.NullInt64
	found, err := g.Scalar(s, &v)
	if err != nil || !found || !v.Valid {
		return 0, false, err
	}
	return v.Int64, true, nil
}

func (g *Gateway) exec(s Statement) (sql.Result, error) {
	query, args, err := s.ToSql()
	if err != nil {
		return nil, g.fail(s, err)
	}
	g.metrics.observeStatement(s.Op())
	res, err := g.cache.Exec(query, args...)
	if err != nil {
		return nil, g.fail(s, err)
	}
	return res, nil
}

// fail maps an engine error to the caller's outcome. A dead connection or
// finished transaction is returned as is, because no later statement can
// succeed either. Everything else is a statement failure.
func (g *Gateway) fail(s Statement, err error) error {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%s %s: %w", s.Op(), s.Table(), err)
	}
	g.metrics.observeFailure(s.Op(), s.Table())
	g.log.WithFields(logrus.Fields{
		"op":        s.Op(),
		"table":     s.Table(),
		"statement": s.String(),
	}).WithError(err).Warn("statement failed")
	return fmt.Errorf("%s %s: %w: %w", s.Op(), s.Table(), ErrStatement, err)
}
