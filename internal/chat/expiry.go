package chat

import (
	"context"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"

	"github.com/classyapps/securechat/internal/docstore"
	"github.com/classyapps/securechat/internal/logging"
)

// sweeper enforces message self-destruction for one subscription. There is
// no central expiry authority: every connected client runs its own sweeper,
// and whichever one observes a message past its deadline first deletes it.
// Deletes are idempotent at the store level, so racing enforcers all
// succeed.
type sweeper struct {
	store docstore.Store
	clk   clock.Clock
	log   logging.Logger

	mu     sync.Mutex
	timers map[string]*clock.Timer
	closed bool
}

func newSweeper(store docstore.Store, clk clock.Clock, log logging.Logger) *sweeper {
	return &sweeper{
		store:  store,
		clk:    clk,
		log:    log,
		timers: make(map[string]*clock.Timer),
	}
}

// schedule arms a local deletion timer for the document. A path already
// scheduled keeps its original timer: deadlines are monotonic and never
// extended.
func (w *sweeper) schedule(path string, deadlineMillis int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if _, ok := w.timers[path]; ok {
		return
	}

	delay := time.Duration(deadlineMillis-w.clk.Now().UnixMilli()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	w.timers[path] = w.clk.AfterFunc(delay, func() { w.fire(path) })
}

// deleteNow removes an already-expired document immediately, cancelling any
// pending timer for it. A timer firing later for the same document is a
// no-op because the store treats deleting an absent document as success.
func (w *sweeper) deleteNow(ctx context.Context, path string) {
	w.mu.Lock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	if err := w.store.DeleteDocument(ctx, path); err != nil {
		w.log.Warn(ctx, "failed to delete expired message", "path", path, "err", err)
	}
}

func (w *sweeper) fire(path string) {
	w.mu.Lock()
	delete(w.timers, path)
	closed := w.closed
	w.mu.Unlock()

	if closed {
		return
	}

	ctx := context.Background()
	if err := w.store.DeleteDocument(ctx, path); err != nil {
		w.log.Warn(ctx, "expiry timer failed to delete message", "path", path, "err", err)
	}
}

// close stops every pending timer. Timers that already fired become no-ops.
func (w *sweeper) close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}
