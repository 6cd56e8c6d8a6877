package conversation

import (
	"fmt"
	"time"
)

// ResponseType selects the response-shape directive given to every model.
type ResponseType string

const (
	ResponsePrecise  ResponseType = "precise"
	ResponseNormal   ResponseType = "normal"
	ResponseDetailed ResponseType = "detailed"
	ResponseVoice    ResponseType = "voice"
)

// MaxModels bounds the number of participants per conversation. Resource
// protection, not a business rule.
const MaxModels = 6

// ModelRef identifies one participant of a conversation. ID is the
// provider-qualified identifier (e.g. "openai/gpt-4o"), Name the display
// name used for relabeling and peer awareness.
type ModelRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is one entry of the shared, append-only history. This system only
// ever constructs "user" and "system" roles: peer replies are relabeled so
// every model reads them as external context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Relabel rewrites a participant's reply as an attributed user message.
func Relabel(modelName, text string) Message {
	return Message{
		Role:    "user",
		Content: fmt.Sprintf("Here's what %s said: %s", modelName, text),
	}
}

// Response is one model's reply in one round. Created exactly once per
// (model, round) pair, immutable afterwards. Error responses carry the
// failure description as their text.
type Response struct {
	Model     ModelRef  `json:"model"`
	Round     int       `json:"round"`
	Text      string    `json:"text"`
	Error     bool      `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the in-memory state of one run. Never persisted; the
// orchestrator's single control goroutine is the only writer.
type Conversation struct {
	ID           string            `json:"id"`
	Topic        string            `json:"topic"`
	Models       []ModelRef        `json:"models"`
	Prompts      map[string]string `json:"prompts,omitempty"`
	Tones        map[string]string `json:"tones,omitempty"`
	Rounds       int               `json:"rounds"`
	ResponseType ResponseType      `json:"response_type"`
	Messages     []Message         `json:"messages"`
	Responses    []Response        `json:"responses"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Snapshot returns a copy safe to hand to a concurrent reader while the
// orchestrator keeps appending. The struct is copied shallowly and the two
// mutable slices deeply; the remaining fields never change after creation.
func (c *Conversation) Snapshot() *Conversation {
	cp := *c
	cp.Messages = append([]Message(nil), c.Messages...)
	cp.Responses = append([]Response(nil), c.Responses...)
	return &cp
}

// StartRequest starts a fresh conversation.
type StartRequest struct {
	Topic        string            `json:"topic"`
	Models       []ModelRef        `json:"models"`
	Prompts      map[string]string `json:"prompts,omitempty"`
	Tones        map[string]string `json:"tones,omitempty"`
	Rounds       int               `json:"rounds"`
	ResponseType ResponseType      `json:"response_type"`
	APIKey       string            `json:"-"`
}

// ContinueRequest runs one implicit round over caller-supplied history. The
// caller's messages are authoritative; the service keeps no state between
// requests.
type ContinueRequest struct {
	Messages     []Message         `json:"messages"`
	Models       []ModelRef        `json:"models"`
	Prompt       string            `json:"prompt"`
	Prompts      map[string]string `json:"prompts,omitempty"`
	Tones        map[string]string `json:"tones,omitempty"`
	ResponseType ResponseType      `json:"response_type"`
	APIKey       string            `json:"-"`
}

// ValidationError rejects a request before any model is invoked.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }
