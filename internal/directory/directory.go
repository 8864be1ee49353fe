// Package directory maps identities to their published public keys through
// the users collection of the document store. Writes happen once per
// key-generation event; reads are on demand and deliberately forgiving:
// a missing key or a transient store failure degrades to "no key", letting
// senders fall back to the undeliverable sentinel instead of failing.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/classyapps/securechat/internal/common"
	"github.com/classyapps/securechat/internal/docstore"
	"github.com/classyapps/securechat/internal/logging"
	"github.com/classyapps/securechat/internal/models"
)

// UsersCollection is the shared identity collection.
const UsersCollection = "users"

type Service struct {
	store docstore.Store
	log   logging.Logger
}

func NewService(store docstore.Store, log logging.Logger) *Service {
	return &Service{store: store, log: log}
}

// Publish upserts the identity's public-key field, leaving the rest of the
// profile untouched.
func (s *Service) Publish(ctx context.Context, userID, publicKey string) error {
	path := docstore.JoinPath(UsersCollection, userID)
	if err := s.store.UpdateFields(ctx, path, docstore.Fields{"publicKey": publicKey}); err != nil {
		return fmt.Errorf("publish key for %s: %w", userID, err)
	}
	return nil
}

// LookupByID returns the published public key of an identity, or "" when
// the identity is unknown or has not published one.
func (s *Service) LookupByID(ctx context.Context, userID string) (string, error) {
	fields, err := s.store.GetDocument(ctx, docstore.JoinPath(UsersCollection, userID))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("lookup key for %s: %w", userID, err)
	}

	key, _ := fields["publicKey"].(string)
	return key, nil
}

// LookupByName returns the public key of the first identity with the given
// display name, or "" when none matches.
func (s *Service) LookupByName(ctx context.Context, displayName string) (string, error) {
	users, err := s.listUsers(ctx)
	if err != nil {
		return "", err
	}
	for _, u := range users {
		if u.DisplayName == displayName {
			return u.PublicKey, nil
		}
	}
	return "", nil
}

// Contacts lists every known identity except the local one. Users with a
// blank email (incomplete sign-up) and corrupt documents are skipped; one
// bad record never aborts the rest of the listing.
func (s *Service) Contacts(ctx context.Context, selfID string) ([]models.User, error) {
	users, err := s.listUsers(ctx)
	if err != nil {
		return nil, err
	}

	contacts := make([]models.User, 0, len(users))
	for _, u := range users {
		if u.ID == selfID || u.Email == "" {
			continue
		}
		contacts = append(contacts, u)
	}
	return contacts, nil
}

func (s *Service) listUsers(ctx context.Context) ([]models.User, error) {
	docs, err := s.store.ListDocuments(ctx, UsersCollection, docstore.Query{OrderBy: "displayName"})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		u, err := models.UserFromFields(doc.ID, doc.Fields)
		if err != nil {
			s.log.Warn(ctx, "skipping corrupted user document", "id", doc.ID, "err", err)
			continue
		}
		users = append(users, u)
	}
	return users, nil
}
