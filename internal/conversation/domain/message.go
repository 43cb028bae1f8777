package domain

import "time"

// SenderType identifies who wrote a message.
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderAgent    SenderType = "agent"
	SenderSystem   SenderType = "system"
)

// Message belongs to one conversation and, redundantly for filtering, to its business.
// System messages record mode transitions; they are an audit trail, not user content.
type Message struct {
	ID             string
	ConversationID string
	BusinessID     string
	SenderType     SenderType
	SenderID       string
	Content        string
	CreatedAt      time.Time
}

// JoinedText is the system message recorded when an operator takes over.
func JoinedText(operator string) string { return operator + " joined the conversation" }

// HandedBackText is the system message recorded when an operator hands back to AI.
func HandedBackText(operator string) string { return operator + " handed conversation back to AI" }

// ClearedText is the system message recorded when a clear also changed the mode.
func ClearedText(operator string) string {
	return operator + " cleared the conversation and handed it back to AI"
}

// RemovedText is the system message recorded when an assigned operator is deleted.
func RemovedText(operator string) string {
	return operator + " was removed and the conversation was handed back to AI"
}
