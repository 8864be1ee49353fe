// Package memory provides an in-memory docstore.Store. It backs tests and
// single-process setups, and doubles as the reference implementation of
// subscription semantics: one snapshot right after subscribing, then one on
// every mutation of the collection.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/classyapps/securechat/internal/common"
	"github.com/classyapps/securechat/internal/docstore"
)

type subscriber struct {
	query docstore.Query
	ch    chan docstore.Snapshot
	once  sync.Once
}

type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]docstore.Fields
	subscribers map[string][]*subscriber
}

var _ docstore.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		collections: make(map[string]map[string]docstore.Fields),
		subscribers: make(map[string][]*subscriber),
	}
}

func (s *Store) GetDocument(ctx context.Context, path string) (docstore.Fields, error) {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyFields(doc), nil
}

func (s *Store) SetDocument(ctx context.Context, path string, fields docstore.Fields) error {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]docstore.Fields)
	}
	s.collections[collection][id] = copyFields(fields)
	s.notifyLocked(collection)
	s.mu.Unlock()

	return nil
}

func (s *Store) UpdateFields(ctx context.Context, path string, fields docstore.Fields) error {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]docstore.Fields)
	}
	doc := s.collections[collection][id]
	if doc == nil {
		doc = make(docstore.Fields)
		s.collections[collection][id] = doc
	}
	for k, v := range fields {
		doc[k] = v
	}
	s.notifyLocked(collection)
	s.mu.Unlock()

	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, path string) error {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.collections[collection][id]; ok {
		delete(s.collections[collection], id)
		s.notifyLocked(collection)
	}
	s.mu.Unlock()

	// Deleting an absent document is success.
	return nil
}

func (s *Store) ListDocuments(ctx context.Context, path string, q docstore.Query) ([]docstore.Document, error) {
	s.mu.Lock()
	docs := s.snapshotLocked(path, q)
	s.mu.Unlock()
	return docs, nil
}

func (s *Store) SubscribeToCollection(ctx context.Context, path string, q docstore.Query) (<-chan docstore.Snapshot, docstore.CancelFunc, error) {
	sub := &subscriber{
		query: q,
		ch:    make(chan docstore.Snapshot, 8),
	}

	s.mu.Lock()
	s.subscribers[path] = append(s.subscribers[path], sub)
	sub.deliver(docstore.Snapshot{Documents: s.snapshotLocked(path, q)})
	s.mu.Unlock()

	cancel := func() { s.unsubscribe(path, sub) }

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return sub.ch, cancel, nil
}

func (s *Store) GenerateID() string {
	return uuid.NewString()
}

func (s *Store) unsubscribe(path string, sub *subscriber) {
	s.mu.Lock()
	subs := s.subscribers[path]
	for i, candidate := range subs {
		if candidate == sub {
			s.subscribers[path] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	sub.once.Do(func() { close(sub.ch) })
}

// snapshotLocked builds the current ordered view of a collection. Caller
// holds s.mu.
func (s *Store) snapshotLocked(collection string, q docstore.Query) []docstore.Document {
	docs := make([]docstore.Document, 0, len(s.collections[collection]))
	for id, fields := range s.collections[collection] {
		docs = append(docs, docstore.Document{ID: id, Fields: copyFields(fields)})
	}
	return docstore.SortDocuments(docs, q)
}

func (s *Store) notifyLocked(collection string) {
	for _, sub := range s.subscribers[collection] {
		sub.deliver(docstore.Snapshot{Documents: s.snapshotLocked(collection, sub.query)})
	}
}

// deliver hands a snapshot to the subscriber without ever blocking the
// store. Snapshots are full states, so dropping the oldest queued one in
// favor of the newest is lossless for the consumer.
func (sub *subscriber) deliver(snap docstore.Snapshot) {
	for {
		select {
		case sub.ch <- snap:
			return
		default:
			select {
			case <-sub.ch:
			default:
			}
		}
	}
}

func copyFields(fields docstore.Fields) docstore.Fields {
	out := make(docstore.Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
