package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classyapps/securechat/internal/docstore"
	"github.com/classyapps/securechat/internal/docstore/memory"
	"github.com/classyapps/securechat/internal/logging"
	"github.com/classyapps/securechat/internal/models"
)

func seedUser(t *testing.T, store *memory.Store, u models.User) {
	t.Helper()
	err := store.SetDocument(context.Background(), docstore.JoinPath(UsersCollection, u.ID), u.Fields())
	require.NoError(t, err)
}

func TestPublishAndLookup(t *testing.T) {
	store := memory.NewStore()
	dir := NewService(store, logging.NewNop())
	ctx := context.Background()

	seedUser(t, store, models.User{ID: "u1", DisplayName: "alice", Email: "a@x.io"})

	key, err := dir.LookupByID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, key, "no key published yet")

	require.NoError(t, dir.Publish(ctx, "u1", "PK-1"))

	key, err = dir.LookupByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "PK-1", key)

	// publish keeps the rest of the profile intact
	fields, err := store.GetDocument(ctx, "users/u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", fields["displayName"])
}

func TestLookupByID_UnknownUserIsNotFatal(t *testing.T) {
	dir := NewService(memory.NewStore(), logging.NewNop())

	key, err := dir.LookupByID(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestLookupByName(t *testing.T) {
	store := memory.NewStore()
	dir := NewService(store, logging.NewNop())
	ctx := context.Background()

	seedUser(t, store, models.User{ID: "u1", DisplayName: "alice", Email: "a@x.io", PublicKey: "PK-A"})
	seedUser(t, store, models.User{ID: "u2", DisplayName: "bob", Email: "b@x.io", PublicKey: "PK-B"})

	key, err := dir.LookupByName(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "PK-B", key)

	key, err = dir.LookupByName(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestContacts_ExcludesSelfIncompleteAndCorrupt(t *testing.T) {
	store := memory.NewStore()
	dir := NewService(store, logging.NewNop())
	ctx := context.Background()

	seedUser(t, store, models.User{ID: "me", DisplayName: "me", Email: "m@x.io"})
	seedUser(t, store, models.User{ID: "u1", DisplayName: "alice", Email: "a@x.io"})
	seedUser(t, store, models.User{ID: "u2", DisplayName: "incomplete"}) // blank email
	// corrupt document: no displayName
	require.NoError(t, store.SetDocument(ctx, "users/u3", docstore.Fields{"email": "broken@x.io"}))

	contacts, err := dir.Contacts(ctx, "me")
	require.NoError(t, err)

	require.Len(t, contacts, 1)
	assert.Equal(t, "alice", contacts[0].DisplayName)
}
