// Package postgres implements the document store on a Postgres documents
// table with a Redis change feed.
//
// Documents live as jsonb rows keyed by (collection, id). Every mutation
// publishes the affected collection on a Redis pub/sub channel; a
// subscription re-reads its collection on every notification, so
// subscribers see the same snapshot-per-change shape the in-memory store
// produces.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"github.com/classyapps/securechat/internal/common"
	"github.com/classyapps/securechat/internal/docstore"
	"github.com/classyapps/securechat/internal/docstore/postgres/migrations"
	"github.com/classyapps/securechat/internal/logging"
)

const changeChannelPrefix = "securechat:changes:"

type Store struct {
	db  *sql.DB
	rdb *redis.Client
	log logging.Logger
}

var _ docstore.Store = (*Store)(nil)

// NewStore opens the database, runs pending schema migrations and wires
// the Redis client used for change notifications.
func NewStore(ctx context.Context, dsn string, rdb *redis.Client, log logging.Logger) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	s := &Store{db: db, rdb: rdb, log: log}
	if err := s.runMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return s, nil
}

func (s *Store) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	return goose.UpContext(ctx, s.db, ".")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetDocument(ctx context.Context, path string) (docstore.Fields, error) {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = s.db.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %q: %w", path, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", path, err)
	}
	return decodeFields(path, raw)
}

func (s *Store) SetDocument(ctx context.Context, path string, fields docstore.Fields) error {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %q: %w", path, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id)
		 DO UPDATE SET fields = EXCLUDED.fields, updated_at = now()`,
		collection, id, raw)
	if err != nil {
		return fmt.Errorf("set %q: %w", path, err)
	}

	s.notify(ctx, collection)
	return nil
}

// UpdateFields merges fields into the document with jsonb concatenation,
// creating the document when absent.
func (s *Store) UpdateFields(ctx context.Context, path string, fields docstore.Fields) error {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %q: %w", path, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id)
		 DO UPDATE SET fields = documents.fields || EXCLUDED.fields, updated_at = now()`,
		collection, id, raw)
	if err != nil {
		return fmt.Errorf("update %q: %w", path, err)
	}

	s.notify(ctx, collection)
	return nil
}

// DeleteDocument removes the document. Deleting an absent document is a
// success, which is what makes racing expiry enforcers safe.
func (s *Store) DeleteDocument(ctx context.Context, path string) error {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %q: %w", path, err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.notify(ctx, collection)
	}
	return nil
}

func (s *Store) ListDocuments(ctx context.Context, path string, q docstore.Query) ([]docstore.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fields FROM documents WHERE collection = $1`, path)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", path, err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("list %q: %w", path, err)
		}
		fields, err := decodeFields(docstore.JoinPath(path, id), raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, docstore.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %q: %w", path, err)
	}

	// Ordering and limiting happen here rather than in SQL so all store
	// backends share one comparison of jsonb-typed order fields.
	return docstore.SortDocuments(docs, q), nil
}

// SubscribeToCollection emits the current collection contents immediately
// and again after every notified mutation. Notifications carry no payload;
// each one triggers a re-read, so bursts naturally coalesce into the
// latest state.
func (s *Store) SubscribeToCollection(ctx context.Context, path string, q docstore.Query) (<-chan docstore.Snapshot, docstore.CancelFunc, error) {
	pubsub := s.rdb.Subscribe(ctx, changeChannelPrefix+path)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %q: %w", path, err)
	}

	out := make(chan docstore.Snapshot, 8)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}

	go func() {
		defer close(out)

		emit := func() {
			docs, err := s.ListDocuments(ctx, path, q)
			if err != nil {
				s.log.Warn(ctx, "snapshot read failed", "collection", path, "err", err)
				return
			}
			deliver(out, docstore.Snapshot{Documents: docs})
		}

		emit()
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				cancel()
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				emit()
			}
		}
	}()

	return out, cancel, nil
}

func (s *Store) GenerateID() string {
	return uuid.NewString()
}

// notify is best effort: a lost notification delays subscribers until the
// next mutation but never corrupts stored data.
func (s *Store) notify(ctx context.Context, collection string) {
	if err := s.rdb.Publish(ctx, changeChannelPrefix+collection, collection).Err(); err != nil {
		s.log.Warn(ctx, "change notification failed", "collection", collection, "err", err)
	}
}

func decodeFields(path string, raw []byte) (docstore.Fields, error) {
	var fields docstore.Fields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode %q: %w", path, err)
	}
	return fields, nil
}

// deliver pushes the newest snapshot without blocking, dropping a stale
// queued snapshot when the subscriber lags.
func deliver(ch chan docstore.Snapshot, snap docstore.Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
