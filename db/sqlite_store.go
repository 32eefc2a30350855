// ABOUTME: SQLite implementation of the document Store
// ABOUTME: Stores documents as JSON text and filters them with json_extract
package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore keeps every collection in the documents table.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

// NewSQLiteStore wraps an already opened database. The schema must exist.
func NewSQLiteStore(db *sql.DB, log *zap.Logger) *SQLiteStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLiteStore{db: db, log: log}
}

// OpenSQLiteStore opens the database file at path and wraps it.
func OpenSQLiteStore(path string, log *zap.Logger) (*SQLiteStore, error) {
	db, err := OpenDatabase(path)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return NewSQLiteStore(db, log), nil
}

// DB exposes the underlying handle for maintenance commands.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Close() error {
	return Error.Wrap(s.db.Close())
}

func (s *SQLiteStore) Get(ctx context.Context, collection string, id int64) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND public_id = ?`,
		collection, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound.New("%s %d", collection, id)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return []byte(body), nil
}

func (s *SQLiteStore) FindAll(ctx context.Context, collection string, filter Filter) ([][]byte, error) {
	query := `SELECT body FROM documents WHERE collection = ?`
	args := []interface{}{collection}

	if len(filter) > 0 {
		where, fargs, err := filter.sqlWhere()
		if err != nil {
			return nil, err
		}
		query += " AND " + where
		args = append(args, fargs...)
	}
	query += " ORDER BY public_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { _ = rows.Close() }()

	var docs [][]byte
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, Error.Wrap(err)
		}
		docs = append(docs, []byte(body))
	}
	return docs, Error.Wrap(rows.Err())
}

func (s *SQLiteStore) Insert(ctx context.Context, collection string, id int64, doc []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, public_id, body) VALUES (?, ?, ?)`,
		collection, id, string(doc),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrDuplicate.New("%s %d", collection, id)
		}
		return Error.Wrap(err)
	}
	s.log.Debug("document inserted", zap.String("collection", collection), zap.Int64("id", id))
	return nil
}

func (s *SQLiteStore) Replace(ctx context.Context, collection string, id int64, doc []byte) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET body = ?, updated_at = CURRENT_TIMESTAMP WHERE collection = ? AND public_id = ?`,
		string(doc), collection, id,
	)
	if err != nil {
		return Error.Wrap(err)
	}
	return s.requireRow(res, collection, id)
}

func (s *SQLiteStore) Delete(ctx context.Context, collection string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND public_id = ?`,
		collection, id,
	)
	if err != nil {
		return Error.Wrap(err)
	}
	if err := s.requireRow(res, collection, id); err != nil {
		return err
	}
	s.log.Debug("document deleted", zap.String("collection", collection), zap.Int64("id", id))
	return nil
}

func (s *SQLiteStore) requireRow(res sql.Result, collection string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if n == 0 {
		return ErrNotFound.New("%s %d", collection, id)
	}
	return nil
}

func (s *SQLiteStore) NextID(ctx context.Context, collection string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq, maxID int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT value FROM sequences WHERE collection = ?), 0),
		        COALESCE((SELECT MAX(public_id) FROM documents WHERE collection = ?), 0)`,
		collection, collection,
	).Scan(&seq, &maxID)
	if err != nil {
		return 0, Error.Wrap(err)
	}

	next := seq
	if maxID > next {
		next = maxID
	}
	next++

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sequences (collection, value) VALUES (?, ?)
		 ON CONFLICT(collection) DO UPDATE SET value = excluded.value`,
		collection, next,
	)
	if err != nil {
		return 0, Error.Wrap(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, Error.Wrap(err)
	}
	return next, nil
}
