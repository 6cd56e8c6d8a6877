package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/colloquium-dev/colloquium/internal/ai"
	"github.com/colloquium-dev/colloquium/internal/common"
	"github.com/colloquium-dev/colloquium/internal/conversation"
)

// heartbeatInterval paces SSE keep-alive pings; a var so tests can shorten it.
var heartbeatInterval = 15 * time.Second

type startConversationReq struct {
	Topic        string                    `json:"topic" binding:"required"`
	Models       []conversation.ModelRef   `json:"models" binding:"required"`
	Prompts      map[string]string         `json:"prompts"`
	Tones        map[string]string         `json:"tones"`
	Rounds       int                       `json:"rounds"`
	ResponseType conversation.ResponseType `json:"response_type"`
	Stream       bool                      `json:"stream"`
}

type continueConversationReq struct {
	Messages     []conversation.Message    `json:"messages"`
	Models       []conversation.ModelRef   `json:"models" binding:"required"`
	Prompt       string                    `json:"prompt" binding:"required"`
	Prompts      map[string]string         `json:"prompts"`
	Tones        map[string]string         `json:"tones"`
	ResponseType conversation.ResponseType `json:"response_type"`
	Stream       bool                      `json:"stream"`
}

func (h *Handler) failFromError(c *gin.Context, err error) {
	var ve *conversation.ValidationError
	if errors.As(err, &ve) {
		common.Fail(c, http.StatusBadRequest, 10001, ve.Error())
		return
	}
	if errors.Is(err, ai.ErrMissingAPIKey) {
		common.Fail(c, http.StatusUnauthorized, 40102, "api key required")
		return
	}
	var ue *ai.UpstreamError
	if errors.As(err, &ue) {
		common.Fail(c, http.StatusBadGateway, 50201, ue.Error())
		return
	}
	common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
}

// StartConversation runs a conversation. With stream=true the response is an
// SSE channel; otherwise the aggregate conversation returns as one JSON
// object after all rounds complete.
func (h *Handler) StartConversation(c *gin.Context) {
	var req startConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	sr := conversation.StartRequest{
		Topic:        req.Topic,
		Models:       req.Models,
		Prompts:      req.Prompts,
		Tones:        req.Tones,
		Rounds:       req.Rounds,
		ResponseType: req.ResponseType,
		APIKey:       h.apiKey(c),
	}

	if req.Stream {
		events, err := h.Conv.StartStream(c.Request.Context(), sr)
		if err != nil {
			h.failFromError(c, err)
			return
		}
		h.streamEvents(c, events)
		return
	}

	conv, err := h.Conv.Start(c.Request.Context(), sr)
	if err != nil {
		h.failFromError(c, err)
		return
	}
	common.OK(c, gin.H{"conversation": conv})
}

// StreamConversation always delivers over SSE.
func (h *Handler) StreamConversation(c *gin.Context) {
	var req startConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	events, err := h.Conv.StartStream(c.Request.Context(), conversation.StartRequest{
		Topic:        req.Topic,
		Models:       req.Models,
		Prompts:      req.Prompts,
		Tones:        req.Tones,
		Rounds:       req.Rounds,
		ResponseType: req.ResponseType,
		APIKey:       h.apiKey(c),
	})
	if err != nil {
		h.failFromError(c, err)
		return
	}
	h.streamEvents(c, events)
}

// ContinueConversation runs one implicit round over the caller's history.
// With stream=true the round is delivered over SSE.
func (h *Handler) ContinueConversation(c *gin.Context) {
	var req continueConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	cr := conversation.ContinueRequest{
		Messages:     req.Messages,
		Models:       req.Models,
		Prompt:       req.Prompt,
		Prompts:      req.Prompts,
		Tones:        req.Tones,
		ResponseType: req.ResponseType,
		APIKey:       h.apiKey(c),
	}

	if req.Stream {
		events, err := h.Conv.ContinueStream(c.Request.Context(), cr)
		if err != nil {
			h.failFromError(c, err)
			return
		}
		h.streamEvents(c, events)
		return
	}

	conv, err := h.Conv.Continue(c.Request.Context(), cr)
	if err != nil {
		h.failFromError(c, err)
		return
	}
	common.OK(c, gin.H{"conversation": conv})
}

// streamEvents serializes progress events onto the SSE channel, flushing
// each event as it is produced. The channel closes exactly once, after the
// final conversation_complete event, however many model errors occurred.
func (h *Handler) streamEvents(c *gin.Context, events <-chan conversation.Event) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "event: %s\ndata: {\"message\":\"streaming not supported\"}\n\n", conversation.EventError)
		return
	}

	writeEvent := func(ev conversation.Event) {
		b, err := json.Marshal(ev)
		if err != nil {
			// last-resort: a simple payload that won't break SSE framing
			fmt.Fprintf(c.Writer, "event: %s\ndata: {\"message\":\"json marshal failed\"}\n\n", conversation.EventError)
			flusher.Flush()
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\n", ev.Type)
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(b))
		flusher.Flush()
	}

	// heartbeat ticker (keeps connections alive through proxy idle timeouts)
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			writeEvent(ev)
		case <-ticker.C:
			fmt.Fprintf(c.Writer, "event: ping\ndata: {\"ts\":%d}\n\n", time.Now().Unix())
			flusher.Flush()
		case <-ctx.Done():
			// the client went away; the orchestrator keeps generating, we
			// just stop forwarding
			go func() {
				for range events {
				}
			}()
			return
		}
	}
}
