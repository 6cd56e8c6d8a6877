package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	maxReplyTokens = 1000
	errorBodyLimit = 4 * 1024
	requestTimeout = 90 * time.Second
)

// Client talks to the OpenRouter chat-completion API. APIKey is the
// process-level fallback; every call accepts an explicit per-call key that
// takes precedence.
type Client struct {
	BaseURL string
	APIKey  string
	SiteURL string
	AppName string

	// Client serves buffered calls; StreamClient has no global timeout so
	// long generations are bounded by ctx only.
	Client       *http.Client
	StreamClient *http.Client

	Logger logrus.FieldLogger
}

type chatRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Stream           bool      `json:"stream"`
	Temperature      float64   `json:"temperature"`
	MaxTokens        int       `json:"max_tokens"`
	TopP             float64   `json:"top_p"`
	FrequencyPenalty float64   `json:"frequency_penalty"`
	PresencePenalty  float64   `json:"presence_penalty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type modelsResponse struct {
	Data []Model `json:"data"`
}

// NewClient builds a client. logger may be nil.
func NewClient(baseURL, apiKey, siteURL, appName string, logger logrus.FieldLogger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		SiteURL:      siteURL,
		AppName:      appName,
		Client:       &http.Client{Timeout: requestTimeout},
		StreamClient: &http.Client{},
		Logger:       logger,
	}
}

func (c *Client) resolveKey(key string) (string, error) {
	if strings.TrimSpace(key) != "" {
		return key, nil
	}
	if strings.TrimSpace(c.APIKey) != "" {
		return c.APIKey, nil
	}
	return "", ErrMissingAPIKey
}

func (c *Client) newRequest(ctx context.Context, method, path, key string, body []byte) (*http.Request, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+key)
	if c.SiteURL != "" {
		req.Header.Set("HTTP-Referer", c.SiteURL)
	}
	if c.AppName != "" {
		req.Header.Set("X-Title", c.AppName)
	}
	return req, nil
}

// upstreamError reads a non-2xx body and translates it into *UpstreamError,
// preferring the provider's own error message.
func upstreamError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	var decoded struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Error != nil {
		msg = decoded.Error.Message
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	return &UpstreamError{Status: resp.StatusCode, Message: msg}
}

func buildMessages(messages []Message, systemPrompt string) []Message {
	out := make([]Message, 0, len(messages)+1)
	if strings.TrimSpace(systemPrompt) != "" {
		out = append(out, Message{Role: "system", Content: systemPrompt})
	}
	return append(out, messages...)
}

// Chat issues one buffered chat-completion request and returns the first
// choice's text. The system prompt is prepended when non-empty. Never retried
// at this layer.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, systemPrompt string, temperature float64, apiKey string) (string, error) {
	key, err := c.resolveKey(apiKey)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(model) == "" {
		return "", errors.New("openrouter: model is required")
	}

	b, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    buildMessages(messages, systemPrompt),
		Stream:      false,
		Temperature: temperature,
		MaxTokens:   maxReplyTokens,
		TopP:        1,
	})
	if err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", key, b)
	if err != nil {
		return "", err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", &UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", upstreamError(resp)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &UpstreamError{Message: fmt.Sprintf("decode response: %v", err)}
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", &UpstreamError{Message: decoded.Error.Message}
	}
	if len(decoded.Choices) == 0 {
		return "", &UpstreamError{Message: "empty response"}
	}
	return decoded.Choices[0].Message.Content, nil
}

// ChatStream issues a streaming chat-completion request and emits content
// deltas as they arrive. Both channels close when the stream ends; at most
// one error is sent.
func (c *Client) ChatStream(ctx context.Context, model string, messages []Message, systemPrompt string, temperature float64, apiKey string) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		key, err := c.resolveKey(apiKey)
		if err != nil {
			errs <- err
			return
		}
		if strings.TrimSpace(model) == "" {
			errs <- errors.New("openrouter: model is required")
			return
		}

		b, err := json.Marshal(chatRequest{
			Model:       model,
			Messages:    buildMessages(messages, systemPrompt),
			Stream:      true,
			Temperature: temperature,
			MaxTokens:   maxReplyTokens,
			TopP:        1,
		})
		if err != nil {
			errs <- err
			return
		}

		req, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", key, b)
		if err != nil {
			errs <- err
			return
		}

		resp, err := c.StreamClient.Do(req)
		if err != nil {
			errs <- &UpstreamError{Message: err.Error()}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			errs <- upstreamError(resp)
			return
		}

		dec := NewFrameDecoder(c.Logger)
		buf := make([]byte, 32*1024)
		for {
			n, rerr := resp.Body.Read(buf)
			if n > 0 {
				deltas, derr := dec.Feed(buf[:n])
				for _, d := range deltas {
					select {
					case chunks <- d:
					case <-ctx.Done():
						errs <- ctx.Err()
						return
					}
				}
				if derr != nil {
					errs <- &UpstreamError{Message: derr.Error()}
					return
				}
				if dec.Done() {
					return
				}
			}
			if rerr == io.EOF {
				deltas, derr := dec.Close()
				for _, d := range deltas {
					chunks <- d
				}
				if derr != nil {
					errs <- &UpstreamError{Message: derr.Error()}
				}
				return
			}
			if rerr != nil {
				errs <- &UpstreamError{Message: rerr.Error()}
				return
			}
		}
	}()

	return chunks, errs
}

// Models fetches the provider catalog with free-tier entries filtered out.
func (c *Client) Models(ctx context.Context, apiKey string) ([]Model, error) {
	key, err := c.resolveKey(apiKey)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/models", key, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamError(resp)
	}

	var decoded modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("decode catalog: %v", err)}
	}

	out := make([]Model, 0, len(decoded.Data))
	for _, m := range decoded.Data {
		if m.Free() {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// CheckKey validates a key with a single authenticated GET.
func (c *Client) CheckKey(ctx context.Context, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return ErrMissingAPIKey
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/auth/key", apiKey, nil)
	if err != nil {
		return err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return &UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return upstreamError(resp)
	}
	return nil
}
