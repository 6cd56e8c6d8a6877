package conversation

import "context"

// EventType names a progress event on the live channel.
type EventType string

const (
	EventConversation         EventType = "conversation"
	EventRoundStart           EventType = "round_start"
	EventModelStart           EventType = "model_start"
	EventModelChunk           EventType = "model_chunk"
	EventModelComplete        EventType = "model_complete"
	EventModelError           EventType = "model_error"
	EventRoundComplete        EventType = "round_complete"
	EventConversationComplete EventType = "conversation_complete"

	// EventError is reserved for stream-level failures. The orchestrator
	// never emits it; the transport adapter uses it when it cannot deliver
	// an event.
	EventError EventType = "error"
)

// Event is one progress event. Data shape depends on Type: a conversation
// snapshot, round/model identifiers, an incremental text delta, or an error
// message.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// EventSink receives a copy of every progress event, e.g. for AMQP fan-out.
// Sink failures are logged and never affect the conversation.
type EventSink interface {
	Publish(ctx context.Context, conversationID string, ev Event) error
}
