package playback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/colloquium-dev/colloquium/internal/conversation"
)

// DefaultInstructions describes delivery when a model violated the voice
// contract and gave us plain text.
const DefaultInstructions = "Speak in a natural, conversational tone."

// SpeechRequest is one synthesis call.
type SpeechRequest struct {
	Voice        string
	Input        string
	Instructions string
}

// Synthesizer converts text into a complete audio payload. No streaming
// synthesis in this design.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error)
}

// ParseSpeechPayload extracts the voice-contract fields from a model reply.
// The contract is enforced only by prompt text, so every parse is fallible:
// on failure the whole payload becomes the literal spoken text with default
// delivery. Never returns an error.
func ParseSpeechPayload(raw string) (input, instructions string) {
	cleaned := conversation.StripFence(raw)

	var v struct {
		Input        string `json:"input"`
		Instructions string `json:"instructions"`
	}
	if err := json.Unmarshal([]byte(cleaned), &v); err == nil && strings.TrimSpace(v.Input) != "" {
		if strings.TrimSpace(v.Instructions) == "" {
			return v.Input, DefaultInstructions
		}
		return v.Input, v.Instructions
	}
	return cleaned, DefaultInstructions
}

// OpenAISynthesizer calls the OpenAI speech endpoint and returns the full
// mp3 payload.
type OpenAISynthesizer struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

type speechAPIRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	Instructions   string `json:"instructions,omitempty"`
	ResponseFormat string `json:"response_format"`
}

// NewOpenAISynthesizer builds a synthesizer client.
func NewOpenAISynthesizer(baseURL, apiKey, model string) *OpenAISynthesizer {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini-tts"
	}
	return &OpenAISynthesizer{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, fmt.Errorf("speech: api key is required")
	}

	b, err := json.Marshal(speechAPIRequest{
		Model:          s.Model,
		Voice:          req.Voice,
		Input:          req.Input,
		Instructions:   req.Instructions,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(s.BaseURL, "/") + "/audio/speech"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("speech: %s", msg)
	}

	return io.ReadAll(resp.Body)
}
