// Package chat implements the messaging engine: sending dual-encrypted
// messages into a channel, live decrypted subscriptions with redundant
// self-destruct enforcement, and the aggregated conversation-list view.
package chat

import (
	"sort"
	"strings"
)

// ChannelID returns the canonical channel key for a conversation between
// two participants: their display names, sorted and joined, so both sides
// derive the same key regardless of who initiates.
//
// Known limitation carried over from the data layout: two distinct identity
// pairs that happen to share the same sorted display-name pair collide on
// one channel. Fixing this with identity-based keys would change where
// existing conversations live, so the scheme stays as is.
func ChannelID(nameA, nameB string) string {
	names := []string{nameA, nameB}
	sort.Strings(names)
	return strings.Join(names, "_")
}

// messagesPath is the collection holding a channel's message documents.
func messagesPath(channelID string) string {
	return "chats/" + channelID + "/messages"
}
