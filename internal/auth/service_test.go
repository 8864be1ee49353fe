package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classyapps/securechat/internal/common"
	"github.com/classyapps/securechat/internal/docstore"
	"github.com/classyapps/securechat/internal/docstore/memory"
	"github.com/classyapps/securechat/internal/logging"
)

func newTestService() *Service {
	return NewService(memory.NewStore(), "test-secret", time.Hour, logging.NewNop())
}

func TestSignUpAndSignIn(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	created, err := s.SignUp(ctx, "alice@x.io", "s3cret", "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, created.UserID)
	assert.Equal(t, "alice", created.DisplayName)
	assert.NotEmpty(t, created.Token)

	session, err := s.SignIn(ctx, "alice@x.io", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, created.UserID, session.UserID)
	assert.Equal(t, "alice", session.DisplayName)
}

func TestSignUp_Validation(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	_, err := s.SignUp(ctx, "", "pw", "alice")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = s.SignUp(ctx, "a@x.io", "", "alice")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = s.SignUp(ctx, "a@x.io", "pw", "")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	_, err := s.SignUp(ctx, "alice@x.io", "pw", "alice")
	require.NoError(t, err)

	_, err = s.SignUp(ctx, "alice@x.io", "other", "alice2")
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestSignIn_WrongCredentials(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	_, err := s.SignUp(ctx, "alice@x.io", "pw", "alice")
	require.NoError(t, err)

	_, err = s.SignIn(ctx, "alice@x.io", "wrong")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = s.SignIn(ctx, "ghost@x.io", "pw")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestToken_RoundTrip(t *testing.T) {
	s := newTestService()

	session, err := s.SignUp(context.Background(), "alice@x.io", "pw", "alice")
	require.NoError(t, err)

	userID, err := s.ParseToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.UserID, userID)
}

func TestToken_Expired(t *testing.T) {
	s := NewService(memory.NewStore(), "test-secret", -time.Minute, logging.NewNop())

	session, err := s.SignUp(context.Background(), "alice@x.io", "pw", "alice")
	require.NoError(t, err)

	_, err = s.ParseToken(session.Token)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("u1", []byte("secret-a"), time.Hour)
	require.NoError(t, err)

	_, err = GetUserIDFromToken(token, []byte("secret-b"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestSignUp_SkipsCorruptAccountDocuments(t *testing.T) {
	store := memory.NewStore()
	s := NewService(store, "test-secret", time.Hour, logging.NewNop())
	ctx := context.Background()

	// corrupt record in the users collection must not break sign-up
	require.NoError(t, store.SetDocument(ctx, "users/broken", docstore.Fields{"email": "x"}))

	_, err := s.SignUp(ctx, "alice@x.io", "pw", "alice")
	require.NoError(t, err)
}
