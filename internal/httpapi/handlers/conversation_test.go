package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/colloquium-dev/colloquium/internal/ai"
	"github.com/colloquium-dev/colloquium/internal/conversation"
)

// slowClient stalls long enough for heartbeat ticks to land mid-stream.
type slowClient struct {
	delay time.Duration
}

func (s *slowClient) Chat(ctx context.Context, model string, messages []ai.Message, systemPrompt string, temperature float64, apiKey string) (string, error) {
	time.Sleep(s.delay)
	return "reply", nil
}

func (s *slowClient) ChatStream(ctx context.Context, model string, messages []ai.Message, systemPrompt string, temperature float64, apiKey string) (<-chan string, <-chan error) {
	chunks := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		time.Sleep(s.delay)
		chunks <- "reply"
	}()
	return chunks, errs
}

func streamRouter(client conversation.ModelClient) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(conversation.NewService(client, nil, nil), nil, nil, nil, nil)
	r := gin.New()
	r.POST("/stream", h.StreamConversation)
	return r
}

func TestStreamConversation_HeartbeatDuringSlowModel(t *testing.T) {
	old := heartbeatInterval
	heartbeatInterval = 10 * time.Millisecond
	defer func() { heartbeatInterval = old }()

	r := streamRouter(&slowClient{delay: 80 * time.Millisecond})

	body := `{"topic":"latency","models":[{"id":"m/a","name":"A"}]}`
	req := httptest.NewRequest(http.MethodPost, "/stream", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := w.Body.String()
	if !strings.Contains(out, "event: ping") {
		t.Fatalf("expected keep-alive pings during the stall, got:\n%s", out)
	}
	if !strings.Contains(out, "event: conversation_complete") {
		t.Fatalf("stream should still finish normally, got:\n%s", out)
	}
}

func TestStreamConversation_EventFraming(t *testing.T) {
	r := streamRouter(&slowClient{})

	body := `{"topic":"framing","models":[{"id":"m/a","name":"A"}]}`
	req := httptest.NewRequest(http.MethodPost, "/stream", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: got %q", ct)
	}
	out := w.Body.String()
	for _, ev := range []string{"event: conversation\n", "event: model_complete\n", "event: conversation_complete\n"} {
		if !strings.Contains(out, ev) {
			t.Fatalf("missing %q in:\n%s", ev, out)
		}
	}
	if strings.Contains(out, "event: error") {
		t.Fatalf("no stream-level failure expected, got:\n%s", out)
	}
}
