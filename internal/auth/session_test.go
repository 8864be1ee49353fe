package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")

	// no file yet
	s, err := LoadSession(path)
	require.NoError(t, err)
	assert.Nil(t, s)

	want := &Session{UserID: "u1", DisplayName: "alice", Email: "a@x.io", Token: "tok"}
	require.NoError(t, SaveSession(path, want))

	got, err := LoadSession(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, ClearSession(path))
	require.NoError(t, ClearSession(path), "clearing twice must succeed")

	s, err = LoadSession(path)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestLoadSession_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, SaveSession(path, &Session{UserID: "u1"}))

	// truncate to something unparsable
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := LoadSession(path)
	assert.Error(t, err)
}
