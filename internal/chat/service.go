package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/andres-erbsen/clock"

	"github.com/classyapps/securechat/internal/cryptox"
	"github.com/classyapps/securechat/internal/directory"
	"github.com/classyapps/securechat/internal/docstore"
	"github.com/classyapps/securechat/internal/logging"
	"github.com/classyapps/securechat/internal/models"
)

// Identity is the local signed-in participant.
type Identity struct {
	ID          string
	DisplayName string
}

// Policy controls how secret messages self-destruct.
//
// With ArmOnSend the countdown starts immediately at send time with
// SendLifetime. Otherwise the message is stored unarmed and the first
// observation by a non-sender arms it with ReadArmWindow, which is
// deliberately longer than SendLifetime so the recipient has time to read
// before the countdown runs out.
type Policy struct {
	ArmOnSend     bool
	SendLifetime  time.Duration
	ReadArmWindow time.Duration
}

// DefaultPolicy matches the read-triggered behavior: arm on first read,
// twenty seconds to live.
func DefaultPolicy() Policy {
	return Policy{
		ArmOnSend:     false,
		SendLifetime:  10 * time.Second,
		ReadArmWindow: 20 * time.Second,
	}
}

// DecryptedMessage is one message as handed to rendering collaborators:
// ciphertext already resolved for this reader, expiry already evaluated.
type DecryptedMessage struct {
	ID                string
	Text              string
	SenderID          string
	SenderDisplayName string
	SentAtMillis      int64
	Mine              bool
	Secret            bool
	Read              bool
	Expiry            models.Expiry
}

// Service sends and receives messages for one signed-in identity.
type Service struct {
	store  docstore.Store
	codec  *cryptox.Codec
	dir    *directory.Service
	clk    clock.Clock
	policy Policy
	self   Identity
	log    logging.Logger
}

func NewService(store docstore.Store, codec *cryptox.Codec, dir *directory.Service, clk clock.Clock, policy Policy, self Identity, log logging.Logger) *Service {
	return &Service{
		store:  store,
		codec:  codec,
		dir:    dir,
		clk:    clk,
		policy: policy,
		self:   self,
		log:    log,
	}
}

// Send encrypts text twice (once for the contact, once for the sender's own
// history) and appends it to the conversation channel. A contact without a
// published key still receives a message document, marked undeliverable by
// the NoKey sentinel.
func (s *Service) Send(ctx context.Context, contact models.User, text string, secret bool) error {
	channel := ChannelID(s.self.DisplayName, contact.DisplayName)
	id := s.store.GenerateID()

	recipientKey, err := s.dir.LookupByID(ctx, contact.ID)
	if err != nil {
		s.log.Warn(ctx, "recipient key lookup failed, sending undeliverable", "contact", contact.ID, "err", err)
	}
	senderKey, err := s.dir.LookupByID(ctx, s.self.ID)
	if err != nil {
		s.log.Warn(ctx, "own key lookup failed, sender copy will be unreadable", "err", err)
	}

	cipherForRecipient, err := s.codec.EncryptFor(text, recipientKey)
	if err != nil {
		return fmt.Errorf("encrypt for recipient: %w", err)
	}
	cipherForSender, err := s.codec.EncryptFor(text, senderKey)
	if err != nil {
		return fmt.Errorf("encrypt for sender: %w", err)
	}

	now := s.clk.Now().UnixMilli()

	msg := models.Message{
		ID:                 id,
		CipherForRecipient: cipherForRecipient,
		CipherForSender:    cipherForSender,
		SenderID:           s.self.ID,
		SenderDisplayName:  s.self.DisplayName,
		SentAtMillis:       now,
		Secret:             secret,
	}
	if secret && s.policy.ArmOnSend {
		msg.ExpiresAtMillis = now + s.policy.SendLifetime.Milliseconds()
	}

	path := docstore.JoinPath(messagesPath(channel), id)
	if err := s.store.SetDocument(ctx, path, msg.Fields()); err != nil {
		return fmt.Errorf("store message: %w", err)
	}
	return nil
}

// Open subscribes to the conversation with contact and streams its
// decrypted state, oldest first. Each snapshot pass also runs the local
// share of the self-destruct protocol: expired messages are deleted
// eagerly, unread incoming messages are marked read, pending secrets are
// armed exactly once, and one timer per armed message is scheduled on the
// injected clock. Cancelling tears down the subscription and all timers.
func (s *Service) Open(ctx context.Context, contact models.User) (<-chan []DecryptedMessage, docstore.CancelFunc, error) {
	channel := ChannelID(s.self.DisplayName, contact.DisplayName)
	collection := messagesPath(channel)

	snaps, cancelSub, err := s.store.SubscribeToCollection(ctx, collection, docstore.Query{OrderBy: models.FieldSentAt})
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe to %s: %w", collection, err)
	}

	sweep := newSweeper(s.store, s.clk, s.log.With("chat", channel))
	out := make(chan []DecryptedMessage, 8)

	go func() {
		defer close(out)
		// Deadlines this client assigned, kept until the store echoes them
		// back, so one arming never happens twice from here.
		armedLocally := make(map[string]int64)

		for snap := range snaps {
			deliverLatest(out, s.processSnapshot(ctx, collection, snap, sweep, armedLocally))
		}
	}()

	cancel := func() {
		cancelSub()
		sweep.close()
	}
	return out, cancel, nil
}

func (s *Service) processSnapshot(ctx context.Context, collection string, snap docstore.Snapshot, sweep *sweeper, armedLocally map[string]int64) []DecryptedMessage {
	result := make([]DecryptedMessage, 0, len(snap.Documents))

	for _, doc := range snap.Documents {
		msg, err := models.MessageFromFields(doc.ID, doc.Fields)
		if err != nil {
			s.log.Warn(ctx, "skipping corrupted message document", "id", doc.ID, "err", err)
			continue
		}

		path := docstore.JoinPath(collection, msg.ID)
		expiry := msg.Expiry()
		if _, armed := expiry.Deadline(); armed {
			// Store caught up with an arming, ours or another client's.
			delete(armedLocally, msg.ID)
		} else if deadline, ok := armedLocally[msg.ID]; ok {
			expiry = expiry.Arm(deadline)
		}

		now := s.clk.Now().UnixMilli()

		// Eager sweep: anything already past its deadline dies now rather
		// than waiting for a timer.
		if expiry.Phase(now) == models.PhaseExpired {
			sweep.deleteNow(ctx, path)
			continue
		}

		if msg.SenderID != s.self.ID {
			if !msg.Read {
				if err := s.store.UpdateFields(ctx, path, docstore.Fields{models.FieldIsRead: true}); err != nil {
					s.log.Warn(ctx, "failed to mark message read", "id", msg.ID, "err", err)
				} else {
					msg.Read = true
				}
			}

			// Read-triggered arming: first non-sender observation starts
			// the countdown. An existing deadline is never overwritten.
			if _, armed := expiry.Deadline(); !armed && msg.Secret {
				deadline := now + s.policy.ReadArmWindow.Milliseconds()
				if err := s.store.UpdateFields(ctx, path, docstore.Fields{models.FieldExpiresAt: deadline}); err != nil {
					s.log.Warn(ctx, "failed to arm secret message", "id", msg.ID, "err", err)
				} else {
					armedLocally[msg.ID] = deadline
					expiry = expiry.Arm(deadline)
				}
			}
		}

		if deadline, armed := expiry.Deadline(); armed {
			sweep.schedule(path, deadline)
		}

		result = append(result, DecryptedMessage{
			ID:                msg.ID,
			Text:              s.codec.DisplayText(msg.CipherFor(s.self.ID)),
			SenderID:          msg.SenderID,
			SenderDisplayName: msg.SenderDisplayName,
			SentAtMillis:      msg.SentAtMillis,
			Mine:              msg.SenderID == s.self.ID,
			Secret:            msg.Secret,
			Read:              msg.Read,
			Expiry:            expiry,
		})
	}

	return result
}

// deliverLatest pushes the newest state without blocking: a stale queued
// state is dropped in favor of the value being delivered.
func deliverLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
