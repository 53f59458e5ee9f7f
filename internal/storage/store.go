package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// MemoryPath opens a private in-memory store.
const MemoryPath = ":memory:"

// ErrStoreLocked means another builder holds the store's lock file.
var ErrStoreLocked = errors.New("store is locked by another process")

// Options configure Open.
type Options struct {
	Path   string
	Remove bool // delete the database file before opening
	Lock   bool // take <Path>.lock for the lifetime of the store

	// ResolverCacheSize is the capacity of the identity cache. Zero disables it.
	ResolverCacheSize int

	Logger *logrus.Logger
}

// Store owns the database connection for one builder. All writes go through
// its Gateway; the Resolver, Writer and Hierarchy share it.
type Store struct {
	db      *sql.DB
	path    string
	lock    *flock.Flock
	log     *logrus.Logger
	metrics *Metrics

	gateway   *Gateway
	resolver  *Resolver
	writer    *Writer
	hierarchy *Hierarchy

	tx *sql.Tx
}

// Open opens (creating if needed) the store at opts.Path. The schema is
// created on first use. Any failure here is fatal for a run.
func Open(opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.WarnLevel)
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("store path is empty")
	}

	memory := opts.Path == MemoryPath
	var lock *flock.Flock
	if opts.Lock && !memory {
		lock = flock.New(opts.Path + ".lock")
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire store lock: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("%s: %w", opts.Path, ErrStoreLocked)
		}
	}
	unlock := func() {
		if lock != nil {
			lock.Unlock()
		}
	}

	if opts.Remove && !memory {
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(opts.Path + suffix); err != nil && !os.IsNotExist(err) {
				unlock()
				return nil, fmt.Errorf("failed to remove %s: %w", opts.Path+suffix, err)
			}
		}
		log.WithField("path", opts.Path).Debug("removed existing store")
	}

	dsn := opts.Path + "?_foreign_keys=on"
	if !memory {
		dsn += "&_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database exists per connection, and
	// reads during a run must see the run's own writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		unlock()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		unlock()
		return nil, err
	}

	metrics := NewMetrics()
	gw := newGateway(db, log, metrics)
	resolver, err := newResolver(gw, opts.ResolverCacheSize)
	if err != nil {
		db.Close()
		unlock()
		return nil, err
	}

	s := &Store{
		db:       db,
		path:     opts.Path,
		lock:     lock,
		log:      log,
		metrics:  metrics,
		gateway:  gw,
		resolver: resolver,
	}
	s.writer = &Writer{gw: gw}
	s.hierarchy = &Hierarchy{gw: gw, log: log}

	log.WithField("path", opts.Path).Debug("store opened")
	return s, nil
}

func ensureSchema(db *sql.DB) error {
	n, err := tableCount(db)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchema, err)
	}
	if n == 0 {
		if err := CreateSchema(db); err != nil {
			return fmt.Errorf("%w: %w", ErrSchema, err)
		}
		return nil
	}
	version, err := GetSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchema, err)
	}
	if version != SchemaVersion {
		return fmt.Errorf("%w: found version %q, want %q", ErrSchema, version, SchemaVersion)
	}
	return nil
}

func (s *Store) Resolver() *Resolver   { return s.resolver }
func (s *Store) Writer() *Writer       { return s.writer }
func (s *Store) Hierarchy() *Hierarchy { return s.hierarchy }
func (s *Store) Metrics() *Metrics     { return s.metrics }
func (s *Store) Logger() *logrus.Logger {
	return s.log
}

// DB returns the underlying connection. Do not use it while a transaction
// is open: the pool has a single connection and the call would block.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database path the store was opened with.
func (s *Store) Path() string { return s.path }

// Clear deletes every row and keeps the schema. Identity counters are reset
// and the resolver cache is emptied.
func (s *Store) Clear() error {
	for i := len(Tables) - 1; i >= 0; i-- {
		if _, err := s.gateway.Exec(Delete(Tables[i])); err != nil {
			return fmt.Errorf("failed to clear %s: %w", Tables[i], err)
		}
	}
	reset := rawStmt{op: "delete", table: "sqlite_sequence", Sqlizer: sq.Delete("sqlite_sequence")}
	if _, err := s.gateway.Exec(reset); err != nil {
		return fmt.Errorf("failed to reset identity counters: %w", err)
	}
	s.resolver.Purge()
	s.log.Debug("store cleared")
	return nil
}

// Begin starts a transaction that every later statement runs in until
// Commit or Rollback.
func (s *Store) Begin() error {
	if s.tx != nil {
		return fmt.Errorf("transaction already open")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	s.gateway.use(tx)
	return nil
}

// Commit commits the open transaction. It is a no-op without one.
func (s *Store) Commit() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	// Cached statements belong to the transaction and must close before it ends.
	s.gateway.use(s.db)
	if err := tx.Commit(); err != nil {
		s.resolver.Purge()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback discards the open transaction. Cached identities may point at
// rolled back rows, so the resolver cache is purged.
func (s *Store) Rollback() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	s.gateway.use(s.db)
	s.resolver.Purge()
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// SetMetadata upserts one index_metadata entry.
func (s *Store) SetMetadata(key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	q := sq.Insert("index_metadata").
		Columns("key", "value", "updated_at").
		Values(key, value, now).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at")
	_, err := s.gateway.Exec(rawStmt{op: "insert", table: "index_metadata", Sqlizer: q})
	return err
}

// Metadata reads one index_metadata entry. Missing keys read as "".
func (s *Store) Metadata(key string) (string, error) {
	var v sql.NullString
	if _, err := s.gateway.Scalar(SelectColumn("index_metadata", "value").Where("key", Text(key)), &v); err != nil {
		return "", err
	}
	return v.String, nil
}

// StartRun records a fresh run id and start time and returns the id.
func (s *Store) StartRun() (string, error) {
	runID := uuid.NewString()
	if err := s.SetMetadata("run_id", runID); err != nil {
		return "", err
	}
	if err := s.SetMetadata("started_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return "", err
	}
	if err := s.SetMetadata("finished_at", ""); err != nil {
		return "", err
	}
	s.log.WithField("run_id", runID).Info("index run started")
	return runID, nil
}

// FinishRun records the finish time of the current run.
func (s *Store) FinishRun() error {
	return s.SetMetadata("finished_at", time.Now().UTC().Format(time.RFC3339))
}

// Close rolls back an open transaction, closes the database and releases
// the lock.
func (s *Store) Close() error {
	var errs []error
	if err := s.Rollback(); err != nil {
		errs = append(errs, err)
	}
	if err := s.gateway.cache.Clear(); err != nil {
		errs = append(errs, err)
	}
	s.resolver.close()
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("failed to release store lock: %w", err))
		}
	}
	return errors.Join(errs...)
}
