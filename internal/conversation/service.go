package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/colloquium-dev/colloquium/internal/ai"
	"github.com/colloquium-dev/colloquium/internal/common"
)

const defaultTemperature = 0.7

const errorPlaceholder = "[Error: Unable to generate response]"

// ModelClient is the upstream chat-completion boundary.
type ModelClient interface {
	Chat(ctx context.Context, model string, messages []ai.Message, systemPrompt string, temperature float64, apiKey string) (string, error)
	ChatStream(ctx context.Context, model string, messages []ai.Message, systemPrompt string, temperature float64, apiKey string) (<-chan string, <-chan error)
}

// Service drives N models through R sequential rounds over one shared,
// append-only message history. Rounds and models-within-a-round execute
// strictly sequentially so later models see earlier output; parallelizing
// within a round would break the shared-history contract.
type Service struct {
	client      ModelClient
	sink        EventSink
	logger      logrus.FieldLogger
	temperature float64
}

// NewService builds an orchestrator. sink and logger may be nil.
func NewService(client ModelClient, sink EventSink, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		client:      client,
		sink:        sink,
		logger:      logger,
		temperature: defaultTemperature,
	}
}

// Start runs all rounds to completion and returns the aggregate conversation.
func (s *Service) Start(ctx context.Context, req StartRequest) (*Conversation, error) {
	conv, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	s.run(ctx, conv, req.APIKey, false, nil)
	return conv, nil
}

// StartStream runs the same loop but emits progress events as they happen.
// The returned channel closes after the final conversation_complete event.
func (s *Service) StartStream(ctx context.Context, req StartRequest) (<-chan Event, error) {
	conv, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		s.run(ctx, conv, req.APIKey, true, out)
	}()
	return out, nil
}

// Continue runs one implicit round over the caller-supplied history.
func (s *Service) Continue(ctx context.Context, req ContinueRequest) (*Conversation, error) {
	conv, err := s.prepareContinue(req)
	if err != nil {
		return nil, err
	}
	s.run(ctx, conv, req.APIKey, false, nil)
	return conv, nil
}

// ContinueStream is Continue with live progress events.
func (s *Service) ContinueStream(ctx context.Context, req ContinueRequest) (<-chan Event, error) {
	conv, err := s.prepareContinue(req)
	if err != nil {
		return nil, err
	}
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		s.run(ctx, conv, req.APIKey, true, out)
	}()
	return out, nil
}

func validateModels(models []ModelRef) error {
	if len(models) == 0 {
		return &ValidationError{Reason: "at least one model is required"}
	}
	if len(models) > MaxModels {
		return &ValidationError{Reason: "too many models"}
	}
	return nil
}

func normalizeResponseType(rt ResponseType) ResponseType {
	switch rt {
	case ResponsePrecise, ResponseNormal, ResponseDetailed, ResponseVoice:
		return rt
	default:
		return ResponseNormal
	}
}

func (s *Service) prepare(req StartRequest) (*Conversation, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, &ValidationError{Reason: "topic is required"}
	}
	if err := validateModels(req.Models); err != nil {
		return nil, err
	}
	rounds := req.Rounds
	if rounds < 1 {
		rounds = 1
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Conversation{
		ID:           id,
		Topic:        req.Topic,
		Models:       req.Models,
		Prompts:      req.Prompts,
		Tones:        req.Tones,
		Rounds:       rounds,
		ResponseType: normalizeResponseType(req.ResponseType),
		Messages: []Message{
			{Role: "user", Content: "Let's have a conversation about: " + req.Topic},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *Service) prepareContinue(req ContinueRequest) (*Conversation, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, &ValidationError{Reason: "prompt is required"}
	}
	if err := validateModels(req.Models); err != nil {
		return nil, err
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}

	// caller-supplied history is authoritative; copy so we can append freely
	msgs := make([]Message, 0, len(req.Messages)+1)
	msgs = append(msgs, req.Messages...)
	msgs = append(msgs, Message{Role: "user", Content: req.Prompt})

	now := time.Now()
	return &Conversation{
		ID:           id,
		Topic:        req.Prompt,
		Models:       req.Models,
		Prompts:      req.Prompts,
		Tones:        req.Tones,
		Rounds:       1,
		ResponseType: normalizeResponseType(req.ResponseType),
		Messages:     msgs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func peerNames(models []ModelRef) string {
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	return strings.Join(names, ", ")
}

func providerMessages(msgs []Message) []ai.Message {
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ai.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// run executes the shared round loop. streaming selects the incremental
// provider call and per-chunk events; the final conversation is identical in
// either mode. Individual model failures are absorbed as error responses and
// never abort the round.
func (s *Service) run(ctx context.Context, conv *Conversation, apiKey string, streaming bool, out chan<- Event) {
	emit := func(ev Event) {
		if out != nil {
			out <- ev
		}
		if s.sink != nil {
			if err := s.sink.Publish(ctx, conv.ID, ev); err != nil {
				s.logger.WithError(err).WithField("conversation_id", conv.ID).
					Warn("event sink publish failed")
			}
		}
	}

	// snapshot: consumers read event payloads from their own goroutine while
	// this one keeps appending to conv
	emit(Event{Type: EventConversation, Data: conv.Snapshot()})

	peers := peerNames(conv.Models)
	for round := 1; round <= conv.Rounds; round++ {
		emit(Event{Type: EventRoundStart, Data: map[string]any{"round": round}})

		for _, m := range conv.Models {
			emit(Event{Type: EventModelStart, Data: map[string]any{
				"round": round,
				"model": m.ID,
			}})

			systemPrompt := BuildSystemPrompt(
				conv.Prompts[m.ID],
				conv.Tones[m.ID],
				conv.ResponseType,
				m.Name,
				peers,
			)

			text, err := s.invoke(ctx, conv, m, systemPrompt, apiKey, streaming, round, emit)

			resp := Response{
				Model:     m,
				Round:     round,
				Timestamp: time.Now(),
			}
			if err != nil {
				s.logger.WithError(err).WithFields(logrus.Fields{
					"conversation_id": conv.ID,
					"model":           m.ID,
					"round":           round,
				}).Warn("model call failed")

				resp.Error = true
				resp.Text = err.Error()
				conv.Responses = append(conv.Responses, resp)
				// placeholder keeps turn continuity for later models
				conv.Messages = append(conv.Messages, Relabel(m.Name, errorPlaceholder))
				conv.UpdatedAt = time.Now()

				emit(Event{Type: EventModelError, Data: map[string]any{
					"round":    round,
					"model":    m.ID,
					"message":  err.Error(),
					"response": resp,
				}})
				continue
			}

			if conv.ResponseType == ResponseVoice {
				text = StripFence(text)
			}
			resp.Text = text
			conv.Responses = append(conv.Responses, resp)
			conv.Messages = append(conv.Messages, Relabel(m.Name, text))
			conv.UpdatedAt = time.Now()

			emit(Event{Type: EventModelComplete, Data: map[string]any{
				"round":    round,
				"model":    m.ID,
				"response": resp,
			}})
		}

		emit(Event{Type: EventRoundComplete, Data: map[string]any{"round": round}})
	}

	emit(Event{Type: EventConversationComplete, Data: conv.Snapshot()})
}

// invoke performs one model call in the requested delivery mode, draining
// the stream fully before returning in streaming mode.
func (s *Service) invoke(ctx context.Context, conv *Conversation, m ModelRef, systemPrompt, apiKey string, streaming bool, round int, emit func(Event)) (string, error) {
	msgs := providerMessages(conv.Messages)

	if !streaming {
		return s.client.Chat(ctx, m.ID, msgs, systemPrompt, s.temperature, apiKey)
	}

	chunks, errs := s.client.ChatStream(ctx, m.ID, msgs, systemPrompt, s.temperature, apiKey)

	var b strings.Builder
	for delta := range chunks {
		b.WriteString(delta)
		emit(Event{Type: EventModelChunk, Data: map[string]any{
			"round": round,
			"model": m.ID,
			"delta": delta,
		}})
	}
	if err := <-errs; err != nil {
		return "", err
	}
	return b.String(), nil
}
