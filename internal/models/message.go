package models

import (
	"fmt"

	"github.com/classyapps/securechat/internal/docstore"
)

// Message is one encrypted message document inside a chat channel.
//
// Every message carries two ciphertexts of the same plaintext: one
// encrypted for the recipient and one for the sender, so the sender's own
// history stays readable without the recipient's private key. A reader
// picks the ciphertext to decrypt by comparing its identity to SenderID.
//
// ExpiresAtMillis is zero until the message is armed; once set it is never
// cleared or extended. A message whose deadline has passed is logically
// dead and gets deleted by whichever subscriber sees it first.
type Message struct {
	ID                 string
	CipherForRecipient string
	CipherForSender    string
	SenderID           string
	SenderDisplayName  string
	SentAtMillis       int64
	Secret             bool
	ExpiresAtMillis    int64
	Read               bool
}

const (
	// FieldSentAt is exported for use as an ordering key in queries.
	FieldSentAt = "sentAt"
	// FieldExpiresAt and FieldIsRead are the two mutable message fields.
	FieldExpiresAt = "expiresAt"
	FieldIsRead    = "isRead"

	fieldCipherForRecipient = "cipherForRecipient"
	fieldCipherForSender    = "cipherForSender"
	fieldSenderID           = "senderId"
	fieldSenderName         = "senderName"
	fieldIsSecret           = "isSecret"
)

// MessageFromFields decodes a message document. Documents missing the
// required fields are reported as corrupt; optional fields default to their
// zero values so partially-written records still parse.
func MessageFromFields(id string, f docstore.Fields) (Message, error) {
	senderID, ok := asString(f[fieldSenderID])
	if !ok || senderID == "" {
		return Message{}, fmt.Errorf("message %q: missing senderId", id)
	}
	sentAt, ok := asInt64(f[FieldSentAt])
	if !ok {
		return Message{}, fmt.Errorf("message %q: missing sentAt", id)
	}

	cipherForRecipient, _ := asString(f[fieldCipherForRecipient])
	cipherForSender, _ := asString(f[fieldCipherForSender])
	senderName, _ := asString(f[fieldSenderName])
	secret, _ := asBool(f[fieldIsSecret])
	read, _ := asBool(f[FieldIsRead])

	var expiresAt int64
	if v, ok := asInt64(f[FieldExpiresAt]); ok {
		expiresAt = v
	}

	return Message{
		ID:                 id,
		CipherForRecipient: cipherForRecipient,
		CipherForSender:    cipherForSender,
		SenderID:           senderID,
		SenderDisplayName:  senderName,
		SentAtMillis:       sentAt,
		Secret:             secret,
		ExpiresAtMillis:    expiresAt,
		Read:               read,
	}, nil
}

// Fields encodes the message for storage. The expiry field is only written
// when armed, matching the "absent until set" shape of the data model.
func (m Message) Fields() docstore.Fields {
	f := docstore.Fields{
		fieldCipherForRecipient: m.CipherForRecipient,
		fieldCipherForSender:    m.CipherForSender,
		fieldSenderID:           m.SenderID,
		fieldSenderName:         m.SenderDisplayName,
		FieldSentAt:             m.SentAtMillis,
		fieldIsSecret:           m.Secret,
		FieldIsRead:             m.Read,
	}
	if m.ExpiresAtMillis > 0 {
		f[FieldExpiresAt] = m.ExpiresAtMillis
	}
	return f
}

// CipherFor returns the ciphertext the given reader should decrypt.
func (m Message) CipherFor(readerID string) string {
	if m.SenderID == readerID && m.CipherForSender != "" {
		return m.CipherForSender
	}
	return m.CipherForRecipient
}

// Expiry returns the message's expiration state as a sum-type value.
func (m Message) Expiry() Expiry {
	switch {
	case m.ExpiresAtMillis > 0:
		return ArmedUntil(m.ExpiresAtMillis)
	case m.Secret:
		return PendingArm()
	default:
		return NotExpiring()
	}
}
