package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classyapps/securechat/internal/docstore"
)

func TestMessage_FieldsRoundTrip(t *testing.T) {
	m := Message{
		ID:                 "m1",
		CipherForRecipient: "ct-r",
		CipherForSender:    "ct-s",
		SenderID:           "u1",
		SenderDisplayName:  "alice",
		SentAtMillis:       1234,
		Secret:             true,
		ExpiresAtMillis:    5678,
		Read:               true,
	}

	got, err := MessageFromFields("m1", m.Fields())
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestMessage_ExpiryFieldAbsentUntilArmed(t *testing.T) {
	m := Message{ID: "m1", SenderID: "u1", SentAtMillis: 1, Secret: true}

	_, present := m.Fields()[FieldExpiresAt]
	assert.False(t, present, "unarmed message must not persist an expiry field")
}

func TestMessageFromFields_FloatNumbers(t *testing.T) {
	// JSON-backed stores decode integers as float64.
	m, err := MessageFromFields("m1", docstore.Fields{
		"senderId": "u1",
		"sentAt":   float64(1234),
		"expiresAt": float64(5678),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1234), m.SentAtMillis)
	assert.Equal(t, int64(5678), m.ExpiresAtMillis)
}

func TestMessageFromFields_Corrupt(t *testing.T) {
	_, err := MessageFromFields("m1", docstore.Fields{"sentAt": int64(1)})
	assert.Error(t, err, "missing senderId")

	_, err = MessageFromFields("m1", docstore.Fields{"senderId": "u1"})
	assert.Error(t, err, "missing sentAt")
}

func TestMessage_CipherFor(t *testing.T) {
	m := Message{SenderID: "u1", CipherForRecipient: "ct-r", CipherForSender: "ct-s"}

	assert.Equal(t, "ct-s", m.CipherFor("u1"), "sender reads own copy")
	assert.Equal(t, "ct-r", m.CipherFor("u2"), "everyone else reads the recipient copy")

	// legacy records without a sender copy fall back to the recipient copy
	legacy := Message{SenderID: "u1", CipherForRecipient: "ct-r"}
	assert.Equal(t, "ct-r", legacy.CipherFor("u1"))
}

func TestMessage_ExpiryVariants(t *testing.T) {
	assert.Equal(t, PhasePersistent, Message{SenderID: "u1"}.Expiry().Phase(0))
	assert.Equal(t, PhasePendingArm, Message{SenderID: "u1", Secret: true}.Expiry().Phase(0))
	assert.Equal(t, PhaseArmed, Message{SenderID: "u1", Secret: true, ExpiresAtMillis: 10}.Expiry().Phase(5))
}

func TestUser_FieldsRoundTripAndCorrupt(t *testing.T) {
	u := User{
		ID:           "u1",
		DisplayName:  "alice",
		Email:        "a@x.io",
		PublicKey:    "PK",
		PasswordHash: "hash",
		Salt:         "salt",
	}

	got, err := UserFromFields("u1", u.Fields())
	require.NoError(t, err)
	assert.Equal(t, u, got)

	_, err = UserFromFields("u2", docstore.Fields{"email": "b@x.io"})
	assert.Error(t, err, "missing displayName")
}
