package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelID(t *testing.T) {
	t.Run("symmetric for both participants", func(t *testing.T) {
		assert.Equal(t, ChannelID("alice", "bob"), ChannelID("bob", "alice"))
	})

	t.Run("sorted pair", func(t *testing.T) {
		assert.Equal(t, "alice_bob", ChannelID("bob", "alice"))
		assert.Equal(t, "alice_bob", ChannelID("alice", "bob"))
	})
}

func TestMessagesPath(t *testing.T) {
	assert.Equal(t, "chats/alice_bob/messages", messagesPath(ChannelID("bob", "alice")))
}
