package chat

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/andres-erbsen/clock"

	"github.com/classyapps/securechat/internal/cryptox"
	"github.com/classyapps/securechat/internal/docstore"
	"github.com/classyapps/securechat/internal/logging"
	"github.com/classyapps/securechat/internal/models"
)

// SecretPreview replaces the decrypted text of a secret message in
// conversation lists until its recipient opens the conversation.
const SecretPreview = "Secret message 🔒"

// Inbox maintains a live, sorted list of conversation summaries, one per
// contact. Each contact gets its own newest-message subscription; the
// results are folded into a single slice guarded by a mutex and re-emitted
// whole on every change.
type Inbox struct {
	store docstore.Store
	codec *cryptox.Codec
	clk   clock.Clock
	self  Identity
	log   logging.Logger

	mu        sync.Mutex
	summaries map[string]models.ConversationSummary
	cancels   []docstore.CancelFunc
	updates   chan []models.ConversationSummary
}

func NewInbox(store docstore.Store, codec *cryptox.Codec, clk clock.Clock, self Identity, log logging.Logger) *Inbox {
	return &Inbox{
		store:     store,
		codec:     codec,
		clk:       clk,
		self:      self,
		log:       log,
		summaries: make(map[string]models.ConversationSummary),
		updates:   make(chan []models.ConversationSummary, 1),
	}
}

// Start subscribes to the latest message of every contact's conversation
// and returns a channel carrying the full re-sorted summary list after each
// change. A contact whose subscription cannot be established is still
// listed, just without message data.
func (in *Inbox) Start(ctx context.Context, contacts []models.User) <-chan []models.ConversationSummary {
	for _, contact := range contacts {
		in.setSummary(models.ConversationSummary{Contact: contact})

		collection := messagesPath(ChannelID(in.self.DisplayName, contact.DisplayName))
		snaps, cancel, err := in.store.SubscribeToCollection(ctx, collection, docstore.Query{
			OrderBy:    models.FieldSentAt,
			Descending: true,
			Limit:      1,
		})
		if err != nil {
			in.log.Warn(ctx, "inbox subscription failed, contact listed without messages",
				"contact", contact.DisplayName, "err", err)
			continue
		}

		in.mu.Lock()
		in.cancels = append(in.cancels, cancel)
		in.mu.Unlock()

		go in.follow(ctx, contact, collection, snaps)
	}

	deliverLatest(in.updates, in.Current())
	return in.updates
}

func (in *Inbox) follow(ctx context.Context, contact models.User, collection string, snaps <-chan docstore.Snapshot) {
	for snap := range snaps {
		in.setSummary(in.summarize(ctx, contact, collection, snap))
		deliverLatest(in.updates, in.Current())
	}
}

func (in *Inbox) summarize(ctx context.Context, contact models.User, collection string, snap docstore.Snapshot) models.ConversationSummary {
	summary := models.ConversationSummary{Contact: contact}
	if len(snap.Documents) == 0 {
		return summary
	}

	doc := snap.Documents[0]
	msg, err := models.MessageFromFields(doc.ID, doc.Fields)
	if err != nil {
		in.log.Warn(ctx, "skipping corrupted message document", "id", doc.ID, "err", err)
		return summary
	}

	// Redundant expiry enforcement: the inbox may be the only subscriber
	// left watching this conversation, so it deletes dead messages too.
	if msg.Expiry().Phase(in.clk.Now().UnixMilli()) == models.PhaseExpired {
		path := docstore.JoinPath(collection, msg.ID)
		if err := in.store.DeleteDocument(ctx, path); err != nil {
			in.log.Warn(ctx, "failed to delete expired message", "id", msg.ID, "err", err)
		}
		return summary
	}

	summary.LastMessageAtMillis = msg.SentAtMillis
	summary.HasUnread = !msg.Read && msg.SenderID != in.self.ID
	summary.LastMessagePreview = in.preview(msg)
	return summary
}

// preview keeps incoming secrets opaque until the conversation is opened:
// a pending-arm secret from someone else shows a fixed placeholder, never
// its decrypted text.
func (in *Inbox) preview(msg models.Message) string {
	if _, armed := msg.Expiry().Deadline(); msg.Secret && !armed && msg.SenderID != in.self.ID {
		return SecretPreview
	}
	return in.codec.DisplayText(msg.CipherFor(in.self.ID))
}

func (in *Inbox) setSummary(s models.ConversationSummary) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.summaries[s.Contact.ID] = s
}

// Current returns a sorted copy of the summary list: conversations with
// messages first, newest first, then the rest alphabetically.
func (in *Inbox) Current() []models.ConversationSummary {
	in.mu.Lock()
	result := make([]models.ConversationSummary, 0, len(in.summaries))
	for _, s := range in.summaries {
		result = append(result, s)
	}
	in.mu.Unlock()

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.HasMessage() != b.HasMessage() {
			return a.HasMessage()
		}
		if a.LastMessageAtMillis != b.LastMessageAtMillis {
			return a.LastMessageAtMillis > b.LastMessageAtMillis
		}
		return a.Contact.DisplayName < b.Contact.DisplayName
	})
	return result
}

// Close cancels every per-contact subscription. Safe to call twice.
func (in *Inbox) Close() {
	in.mu.Lock()
	cancels := in.cancels
	in.cancels = nil
	in.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// FilterSummaries returns the summaries whose contact name contains q,
// case-insensitively, preserving order. An empty query returns the input.
func FilterSummaries(summaries []models.ConversationSummary, q string) []models.ConversationSummary {
	if q == "" {
		return summaries
	}
	q = strings.ToLower(q)
	result := make([]models.ConversationSummary, 0, len(summaries))
	for _, s := range summaries {
		if strings.Contains(strings.ToLower(s.Contact.DisplayName), q) {
			result = append(result, s)
		}
	}
	return result
}
