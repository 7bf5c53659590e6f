package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/myrjola/doppel/internal/errors"
	"github.com/myrjola/doppel/internal/models"

	_ "embed"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaScript string

// DB holds the SQLite connections backing the persistent stores.
//
// It establishes two database connections, one for read/write operations and
// one for read-only operations. This is a best practice mentioned in
// https://github.com/mattn/go-sqlite3/issues/1179#issuecomment-1638083995
type DB struct {
	readWrite *sqlx.DB
	readOnly  *sqlx.DB
}

// NewDB connects to the SQLite database at url and synchronizes the schema.
// Use ":memory:" for an in-memory database.
func NewDB(ctx context.Context, url string) (*DB, error) {
	// For in-memory databases, we need shared cache mode so that both
	// connections access the same data.
	isInMemory := url == ":memory:"
	cacheConfig := "&cache=private"
	if isInMemory {
		cacheConfig = "&cache=shared"
	}
	readConfig := fmt.Sprintf(
		"file:%s?mode=ro&_txlock=deferred&_journal_mode=wal&_busy_timeout=5000&_synchronous=normal%s",
		url, cacheConfig)
	readWriteConfig := fmt.Sprintf(
		"file:%s?mode=rwc&_txlock=immediate&_journal_mode=wal&_busy_timeout=5000&_synchronous=normal%s",
		url, cacheConfig)

	readWriteDB, err := sqlx.ConnectContext(ctx, "sqlite3", readWriteConfig)
	if err != nil {
		return nil, errors.Wrap(err, "connect read/write database")
	}
	readWriteDB.SetMaxOpenConns(1)

	if _, err = readWriteDB.ExecContext(ctx, schemaScript); err != nil {
		return nil, errors.Wrap(err, "synchronize schema")
	}

	readOnlyDB, err := sqlx.ConnectContext(ctx, "sqlite3", readConfig)
	if err != nil {
		return nil, errors.Wrap(err, "connect read-only database")
	}

	return &DB{readWrite: readWriteDB, readOnly: readOnlyDB}, nil
}

// Close closes both connections.
func (db *DB) Close() error {
	return errors.Join(db.readWrite.Close(), db.readOnly.Close())
}

// documentStore persists records as JSON documents in a two-column table.
// The tables for investigations and sessions share this shape.
type documentStore[T any] struct {
	db    *DB
	table string
}

func (s *documentStore[T]) get(ctx context.Context, id string) (T, error) {
	var (
		zero T
		data string
	)
	stmt := fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, s.table)
	if err := s.db.readOnly.QueryRowxContext(ctx, stmt, id).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, ErrNotFound
		}
		return zero, errors.Wrap(err, "read document")
	}
	var value T
	if err := json.Unmarshal([]byte(data), &value); err != nil {
		return zero, errors.Wrap(err, "unmarshal document")
	}
	return value, nil
}

func (s *documentStore[T]) put(ctx context.Context, id string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "marshal document")
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (id, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`, s.table)
	if _, err = s.db.readWrite.ExecContext(ctx, stmt, id, string(data), time.Now().UTC()); err != nil {
		return errors.Wrap(err, "upsert document")
	}
	return nil
}

func (s *documentStore[T]) update(ctx context.Context, id string, mutate func(*T) error) (T, error) {
	var zero T
	tx, err := s.db.readWrite.BeginTxx(ctx, nil)
	if err != nil {
		return zero, errors.Wrap(err, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var data string
	stmt := fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, s.table)
	if err = tx.QueryRowxContext(ctx, stmt, id).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, ErrNotFound
		}
		return zero, errors.Wrap(err, "read document for update")
	}
	var value T
	if err = json.Unmarshal([]byte(data), &value); err != nil {
		return zero, errors.Wrap(err, "unmarshal document")
	}
	if err = mutate(&value); err != nil {
		return zero, err
	}
	updated, err := json.Marshal(value)
	if err != nil {
		return zero, errors.Wrap(err, "marshal document")
	}
	stmt = fmt.Sprintf(`UPDATE %s SET data = ?, updated_at = ? WHERE id = ?`, s.table)
	if _, err = tx.ExecContext(ctx, stmt, string(updated), time.Now().UTC(), id); err != nil {
		return zero, errors.Wrap(err, "write document")
	}
	if err = tx.Commit(); err != nil {
		return zero, errors.Wrap(err, "commit transaction")
	}
	return value, nil
}

func (s *documentStore[T]) delete(ctx context.Context, id string) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table)
	result, err := s.db.readWrite.ExecContext(ctx, stmt, id)
	if err != nil {
		return errors.Wrap(err, "delete document")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SQLiteInvestigations is the SQLite-backed InvestigationStore.
type SQLiteInvestigations struct {
	store documentStore[models.Investigation]
}

// NewSQLiteInvestigations creates a SQLite-backed investigation store.
func NewSQLiteInvestigations(db *DB) *SQLiteInvestigations {
	return &SQLiteInvestigations{store: documentStore[models.Investigation]{db: db, table: "investigations"}}
}

func (s *SQLiteInvestigations) Get(ctx context.Context, id string) (*models.Investigation, error) {
	investigation, err := s.store.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &investigation, nil
}

func (s *SQLiteInvestigations) Put(ctx context.Context, investigation *models.Investigation) error {
	return s.store.put(ctx, investigation.TargetID, *investigation)
}

func (s *SQLiteInvestigations) Update(
	ctx context.Context,
	id string,
	mutate func(*models.Investigation) error,
) (*models.Investigation, error) {
	investigation, err := s.store.update(ctx, id, mutate)
	if err != nil {
		return nil, err
	}
	return &investigation, nil
}

func (s *SQLiteInvestigations) Delete(ctx context.Context, id string) error {
	return s.store.delete(ctx, id)
}

// SQLiteSessions is the SQLite-backed SessionStore.
type SQLiteSessions struct {
	store documentStore[models.ConversationSession]
}

// NewSQLiteSessions creates a SQLite-backed session store.
func NewSQLiteSessions(db *DB) *SQLiteSessions {
	return &SQLiteSessions{store: documentStore[models.ConversationSession]{db: db, table: "sessions"}}
}

func (s *SQLiteSessions) Get(ctx context.Context, id string) (*models.ConversationSession, error) {
	session, err := s.store.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SQLiteSessions) Put(ctx context.Context, session *models.ConversationSession) error {
	return s.store.put(ctx, session.ID, *session)
}

func (s *SQLiteSessions) Update(
	ctx context.Context,
	id string,
	mutate func(*models.ConversationSession) error,
) (*models.ConversationSession, error) {
	session, err := s.store.update(ctx, id, mutate)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SQLiteSessions) Delete(ctx context.Context, id string) error {
	return s.store.delete(ctx, id)
}
