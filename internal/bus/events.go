package bus

import "time"

// InboundMessage is a user utterance arriving from any channel.
type InboundMessage struct {
	Channel   string
	SenderID  string
	ChatID    string
	Content   string
	Timestamp time.Time
	Metadata  map[string]any
}

// SessionKey identifies the conversation an inbound message belongs to.
// Each chat on each channel gets its own conversation state.
func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

// OutboundMessage is a reply routed back to the channel it came from.
type OutboundMessage struct {
	Channel   string
	ChatID    string
	Content   string
	ReplyTo   string
	FollowUps []string
	Metadata  map[string]any
}
