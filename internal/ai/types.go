package ai

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Message is one entry of the chat history sent upstream.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FlexFloat decodes a JSON number that may arrive as a string. OpenRouter
// reports per-token pricing as decimal strings.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		if str == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return err
		}
		*f = FlexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

// Pricing holds normalized per-token costs.
type Pricing struct {
	Prompt     FlexFloat `json:"prompt"`
	Completion FlexFloat `json:"completion"`
}

// Model is a catalog entry from the model-routing provider. Provider-specific
// metadata is passed through untouched.
type Model struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	ContextLength int             `json:"context_length"`
	Pricing       Pricing         `json:"pricing"`
	TopProvider   json.RawMessage `json:"top_provider,omitempty"`
}

// Free reports whether the model is a free-tier entry. The catalog endpoint
// filters these out as a quality floor.
func (m Model) Free() bool {
	if strings.HasSuffix(m.ID, ":free") {
		return true
	}
	return m.Pricing.Prompt == 0 && m.Pricing.Completion == 0
}
