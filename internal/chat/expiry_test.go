package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/require"

	"github.com/classyapps/securechat/internal/common"
	"github.com/classyapps/securechat/internal/docstore"
	"github.com/classyapps/securechat/internal/docstore/memory"
	"github.com/classyapps/securechat/internal/logging"
)

func seedDoc(t *testing.T, store *memory.Store, path string) {
	t.Helper()
	err := store.SetDocument(context.Background(), path, docstore.Fields{"x": 1})
	require.NoError(t, err)
}

func docExists(t *testing.T, store *memory.Store, path string) bool {
	t.Helper()
	_, err := store.GetDocument(context.Background(), path)
	if errors.Is(err, common.ErrNotFound) {
		return false
	}
	require.NoError(t, err)
	return true
}

func TestSweeperDeletesAtDeadline(t *testing.T) {
	store := memory.NewStore()
	clk := clock.NewMock()
	w := newSweeper(store, clk, logging.NewNop())
	defer w.close()

	path := "chats/a_b/messages/m1"
	seedDoc(t, store, path)

	w.schedule(path, clk.Now().Add(20*time.Second).UnixMilli())
	require.True(t, docExists(t, store, path))

	clk.Add(20 * time.Second)
	require.Eventually(t, func() bool {
		return !docExists(t, store, path)
	}, time.Second, 5*time.Millisecond)
}

func TestSweeperKeepsEarliestDeadline(t *testing.T) {
	store := memory.NewStore()
	clk := clock.NewMock()
	w := newSweeper(store, clk, logging.NewNop())
	defer w.close()

	path := "chats/a_b/messages/m1"
	seedDoc(t, store, path)

	w.schedule(path, clk.Now().Add(10*time.Second).UnixMilli())
	// A later deadline for the same document must not push back the timer.
	w.schedule(path, clk.Now().Add(time.Hour).UnixMilli())

	clk.Add(10 * time.Second)
	require.Eventually(t, func() bool {
		return !docExists(t, store, path)
	}, time.Second, 5*time.Millisecond)
}

func TestSweeperDeleteNowCancelsTimer(t *testing.T) {
	store := memory.NewStore()
	clk := clock.NewMock()
	w := newSweeper(store, clk, logging.NewNop())
	defer w.close()

	path := "chats/a_b/messages/m1"
	seedDoc(t, store, path)

	w.schedule(path, clk.Now().Add(10*time.Second).UnixMilli())
	w.deleteNow(context.Background(), path)
	require.False(t, docExists(t, store, path))

	// A new document under the same path must survive the old deadline.
	seedDoc(t, store, path)
	clk.Add(time.Minute)
	time.Sleep(20 * time.Millisecond)
	require.True(t, docExists(t, store, path))
}

func TestSweeperDeleteNowIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	w := newSweeper(store, clock.NewMock(), logging.NewNop())
	defer w.close()

	// Deleting a document that never existed is fine.
	w.deleteNow(context.Background(), "chats/a_b/messages/ghost")
	w.deleteNow(context.Background(), "chats/a_b/messages/ghost")
}

func TestSweeperCloseStopsTimers(t *testing.T) {
	store := memory.NewStore()
	clk := clock.NewMock()
	w := newSweeper(store, clk, logging.NewNop())

	path := "chats/a_b/messages/m1"
	seedDoc(t, store, path)

	w.schedule(path, clk.Now().Add(10*time.Second).UnixMilli())
	w.close()

	clk.Add(time.Minute)
	time.Sleep(20 * time.Millisecond)
	require.True(t, docExists(t, store, path))

	// Scheduling after close is a no-op too.
	w.schedule(path, clk.Now().Add(time.Second).UnixMilli())
	clk.Add(time.Minute)
	time.Sleep(20 * time.Millisecond)
	require.True(t, docExists(t, store, path))
}
