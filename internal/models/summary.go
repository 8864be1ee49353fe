package models

// ConversationSummary is one row of the chat-list view, derived in memory
// from the latest message of a channel. Never persisted.
type ConversationSummary struct {
	Contact             User
	LastMessageAtMillis int64
	LastMessagePreview  string
	HasUnread           bool
}

// HasMessage reports whether any message was ever observed for this
// conversation.
func (s ConversationSummary) HasMessage() bool {
	return s.LastMessageAtMillis > 0
}
