package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/colloquium-dev/colloquium/internal/ai"
)

type recordedCall struct {
	Model        string
	Messages     []ai.Message
	SystemPrompt string
}

type fakeClient struct {
	calls   []recordedCall
	replies map[string]string
	fail    map[string]error
	deltas  map[string][]string
}

func (f *fakeClient) replyFor(model string) (string, error) {
	if err, ok := f.fail[model]; ok {
		return "", err
	}
	if r, ok := f.replies[model]; ok {
		return r, nil
	}
	return "reply from " + model, nil
}

func (f *fakeClient) Chat(ctx context.Context, model string, messages []ai.Message, systemPrompt string, temperature float64, apiKey string) (string, error) {
	_ = ctx
	f.calls = append(f.calls, recordedCall{
		Model:        model,
		Messages:     append([]ai.Message(nil), messages...),
		SystemPrompt: systemPrompt,
	})
	return f.replyFor(model)
}

func (f *fakeClient) ChatStream(ctx context.Context, model string, messages []ai.Message, systemPrompt string, temperature float64, apiKey string) (<-chan string, <-chan error) {
	f.calls = append(f.calls, recordedCall{
		Model:        model,
		Messages:     append([]ai.Message(nil), messages...),
		SystemPrompt: systemPrompt,
	})
	chunks := make(chan string, 16)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		if err, ok := f.fail[model]; ok {
			errs <- err
			return
		}
		if ds, ok := f.deltas[model]; ok {
			for _, d := range ds {
				chunks <- d
			}
			return
		}
		reply, _ := f.replyFor(model)
		chunks <- reply
	}()
	return chunks, errs
}

func twoModels() []ModelRef {
	return []ModelRef{
		{ID: "openai/gpt-4o", Name: "GPT"},
		{ID: "anthropic/claude-3.5-sonnet", Name: "Claude"},
	}
}

func TestStart_ResponseAndMessageCounts(t *testing.T) {
	fc := &fakeClient{}
	svc := NewService(fc, nil, nil)

	conv, err := svc.Start(context.Background(), StartRequest{
		Topic:  "future of AI",
		Models: twoModels(),
		Rounds: 2,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if len(conv.Responses) != 4 {
		t.Fatalf("expected 4 responses, got %d", len(conv.Responses))
	}
	// round-major, model-minor order
	want := []struct {
		round int
		model string
	}{
		{1, "openai/gpt-4o"},
		{1, "anthropic/claude-3.5-sonnet"},
		{2, "openai/gpt-4o"},
		{2, "anthropic/claude-3.5-sonnet"},
	}
	for i, w := range want {
		r := conv.Responses[i]
		if r.Round != w.round || r.Model.ID != w.model {
			t.Fatalf("response %d: got round=%d model=%s, want round=%d model=%s",
				i, r.Round, r.Model.ID, w.round, w.model)
		}
	}

	// 1 initial prompt + 4 relabeled entries
	if len(conv.Messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(conv.Messages))
	}
	for _, m := range conv.Messages {
		if m.Role == "assistant" {
			t.Fatalf("history must never contain assistant roles: %+v", m)
		}
	}
}

func TestStart_LaterModelsSeeEarlierReplies(t *testing.T) {
	fc := &fakeClient{replies: map[string]string{
		"openai/gpt-4o": "the first opinion",
	}}
	svc := NewService(fc, nil, nil)

	_, err := svc.Start(context.Background(), StartRequest{
		Topic:  "testing",
		Models: twoModels(),
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if len(fc.calls) != 2 {
		t.Fatalf("expected 2 provider calls, got %d", len(fc.calls))
	}
	second := fc.calls[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != "user" {
		t.Fatalf("peer reply must be relabeled as user, got %q", last.Role)
	}
	if !strings.Contains(last.Content, "Here's what GPT said: the first opinion") {
		t.Fatalf("second model should see first model's relabeled reply, got %q", last.Content)
	}
}

func TestStart_FailureDoesNotHaltRound(t *testing.T) {
	fc := &fakeClient{fail: map[string]error{
		"openai/gpt-4o": &ai.UpstreamError{Status: 401, Message: "Invalid API key"},
	}}
	svc := NewService(fc, nil, nil)

	conv, err := svc.Start(context.Background(), StartRequest{
		Topic:  "resilience",
		Models: twoModels(),
		Rounds: 2,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if len(conv.Responses) != 4 {
		t.Fatalf("expected 4 responses despite failures, got %d", len(conv.Responses))
	}
	first := conv.Responses[0]
	if !first.Error {
		t.Fatalf("expected error-flagged response")
	}
	if !strings.Contains(first.Text, "Invalid API key") {
		t.Fatalf("error response should carry the failure text, got %q", first.Text)
	}
	if conv.Responses[1].Error {
		t.Fatalf("second model should still succeed")
	}

	// placeholder keeps turn continuity
	if !strings.Contains(conv.Messages[1].Content, "[Error: Unable to generate response]") {
		t.Fatalf("expected placeholder relabel, got %q", conv.Messages[1].Content)
	}
}

func TestStart_Validation(t *testing.T) {
	svc := NewService(&fakeClient{}, nil, nil)

	var ve *ValidationError

	_, err := svc.Start(context.Background(), StartRequest{Models: twoModels()})
	if !errors.As(err, &ve) {
		t.Fatalf("empty topic: expected ValidationError, got %v", err)
	}

	_, err = svc.Start(context.Background(), StartRequest{Topic: "x"})
	if !errors.As(err, &ve) {
		t.Fatalf("no models: expected ValidationError, got %v", err)
	}

	many := make([]ModelRef, MaxModels+1)
	for i := range many {
		many[i] = ModelRef{ID: fmt.Sprintf("m/%d", i), Name: fmt.Sprintf("M%d", i)}
	}
	_, err = svc.Start(context.Background(), StartRequest{Topic: "x", Models: many})
	if !errors.As(err, &ve) {
		t.Fatalf("too many models: expected ValidationError, got %v", err)
	}
}

func TestStart_RoundsDefaultToOne(t *testing.T) {
	fc := &fakeClient{}
	svc := NewService(fc, nil, nil)

	conv, err := svc.Start(context.Background(), StartRequest{
		Topic:  "defaults",
		Models: twoModels(),
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if conv.Rounds != 1 || len(conv.Responses) != 2 {
		t.Fatalf("expected single implicit round, got rounds=%d responses=%d",
			conv.Rounds, len(conv.Responses))
	}
}

func TestStart_VoiceModeStripsFence(t *testing.T) {
	fc := &fakeClient{replies: map[string]string{
		"openai/gpt-4o": "```json\n{\"input\":\"hello\",\"instructions\":\"calm\"}\n```",
	}}
	svc := NewService(fc, nil, nil)

	conv, err := svc.Start(context.Background(), StartRequest{
		Topic:        "voices",
		Models:       []ModelRef{{ID: "openai/gpt-4o", Name: "GPT"}},
		ResponseType: ResponseVoice,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := conv.Responses[0].Text; got != `{"input":"hello","instructions":"calm"}` {
		t.Fatalf("expected fence stripped, got %q", got)
	}
}

func TestStartStream_EventOrdering(t *testing.T) {
	fc := &fakeClient{deltas: map[string][]string{
		"openai/gpt-4o":               {"he", "llo"},
		"anthropic/claude-3.5-sonnet": {"hi"},
	}}
	svc := NewService(fc, nil, nil)

	events, err := svc.StartStream(context.Background(), StartRequest{
		Topic:  "streaming",
		Models: twoModels(),
	})
	if err != nil {
		t.Fatalf("start stream: %v", err)
	}

	var types []EventType
	var final *Conversation
	for ev := range events {
		types = append(types, ev.Type)
		if ev.Type == EventConversationComplete {
			final = ev.Data.(*Conversation)
		}
	}

	want := []EventType{
		EventConversation,
		EventRoundStart,
		EventModelStart, EventModelChunk, EventModelChunk, EventModelComplete,
		EventModelStart, EventModelChunk, EventModelComplete,
		EventRoundComplete,
		EventConversationComplete,
	}
	if len(types) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(types), types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event %d: got %s, want %s (all: %v)", i, types[i], want[i], types)
		}
	}

	if final == nil {
		t.Fatalf("missing final conversation")
	}
	if len(final.Responses) != 2 || final.Responses[0].Text != "hello" {
		t.Fatalf("unexpected final conversation: %+v", final.Responses)
	}
}

// Consumes the stream the way the SSE transport does: every event payload is
// marshaled from the consumer goroutine while the orchestrator is still
// appending. Run with -race; it also pins the conversation event to a
// creation-time snapshot.
func TestStartStream_EventPayloadsAreSnapshots(t *testing.T) {
	fc := &fakeClient{deltas: map[string][]string{
		"openai/gpt-4o":               {"one ", "two"},
		"anthropic/claude-3.5-sonnet": {"three"},
	}}
	svc := NewService(fc, nil, nil)

	events, err := svc.StartStream(context.Background(), StartRequest{
		Topic:  "isolation",
		Models: twoModels(),
		Rounds: 2,
	})
	if err != nil {
		t.Fatalf("start stream: %v", err)
	}

	var initial, final *Conversation
	for ev := range events {
		if _, err := json.Marshal(ev); err != nil {
			t.Fatalf("marshal %s: %v", ev.Type, err)
		}
		switch ev.Type {
		case EventConversation:
			initial = ev.Data.(*Conversation)
		case EventConversationComplete:
			final = ev.Data.(*Conversation)
		}
	}

	if initial == nil || final == nil {
		t.Fatalf("missing conversation events")
	}
	// the initial event reflects the conversation at creation, not a live view
	if len(initial.Messages) != 1 || len(initial.Responses) != 0 {
		t.Fatalf("initial event must be a creation-time snapshot, got %d messages %d responses",
			len(initial.Messages), len(initial.Responses))
	}
	if len(final.Responses) != 4 || len(final.Messages) != 5 {
		t.Fatalf("unexpected final snapshot: %d responses %d messages",
			len(final.Responses), len(final.Messages))
	}
	// appending to the final snapshot must not reach into the initial one
	if &initial.Messages[0] == &final.Messages[0] {
		t.Fatalf("snapshots must not share backing arrays")
	}
}

func TestStartStream_ModelErrorEventAndContinuation(t *testing.T) {
	fc := &fakeClient{fail: map[string]error{
		"openai/gpt-4o": errors.New("boom"),
	}}
	svc := NewService(fc, nil, nil)

	events, err := svc.StartStream(context.Background(), StartRequest{
		Topic:  "still streams",
		Models: twoModels(),
	})
	if err != nil {
		t.Fatalf("start stream: %v", err)
	}

	sawError, sawComplete, sawFinal := false, false, false
	for ev := range events {
		switch ev.Type {
		case EventModelError:
			sawError = true
		case EventModelComplete:
			sawComplete = true
		case EventConversationComplete:
			sawFinal = true
		}
	}
	if !sawError || !sawComplete || !sawFinal {
		t.Fatalf("expected error, complete and final events: error=%v complete=%v final=%v",
			sawError, sawComplete, sawFinal)
	}
}

func TestContinue_SingleRoundOverSuppliedHistory(t *testing.T) {
	fc := &fakeClient{}
	svc := NewService(fc, nil, nil)

	history := []Message{
		{Role: "user", Content: "Let's have a conversation about: testing"},
		{Role: "user", Content: "Here's what GPT said: earlier remark"},
	}
	conv, err := svc.Continue(context.Background(), ContinueRequest{
		Messages: history,
		Models:   twoModels(),
		Prompt:   "what about edge cases?",
	})
	if err != nil {
		t.Fatalf("continue: %v", err)
	}

	if len(conv.Responses) != 2 {
		t.Fatalf("expected one implicit round, got %d responses", len(conv.Responses))
	}
	first := fc.calls[0]
	if len(first.Messages) != 3 {
		t.Fatalf("expected supplied history + new prompt, got %d messages", len(first.Messages))
	}
	if first.Messages[1].Content != "Here's what GPT said: earlier remark" {
		t.Fatalf("supplied history must be preserved in order, got %q", first.Messages[1].Content)
	}
	if first.Messages[2].Content != "what about edge cases?" {
		t.Fatalf("new prompt must be appended last, got %q", first.Messages[2].Content)
	}
}

type recordingSink struct {
	ids    []string
	events []Event
	err    error
}

func (r *recordingSink) Publish(ctx context.Context, conversationID string, ev Event) error {
	r.ids = append(r.ids, conversationID)
	r.events = append(r.events, ev)
	return r.err
}

func TestStart_SinkReceivesEventsAndFailuresAreAbsorbed(t *testing.T) {
	sink := &recordingSink{err: errors.New("amqp down")}
	svc := NewService(&fakeClient{}, sink, nil)

	conv, err := svc.Start(context.Background(), StartRequest{
		Topic:  "fan-out",
		Models: twoModels(),
	})
	if err != nil {
		t.Fatalf("sink errors must not fail the conversation: %v", err)
	}
	if len(sink.events) == 0 {
		t.Fatalf("expected events on the sink")
	}
	if sink.ids[0] != conv.ID {
		t.Fatalf("sink should receive the conversation id")
	}
	if sink.events[len(sink.events)-1].Type != EventConversationComplete {
		t.Fatalf("last sink event should be conversation_complete")
	}
}
