package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/colloquium-dev/colloquium/internal/ai"
	"github.com/colloquium-dev/colloquium/internal/common"
)

// popularModelIDs is a curated subset shown as a starting point.
var popularModelIDs = []string{
	"openai/gpt-4o",
	"openai/gpt-4o-mini",
	"anthropic/claude-3.5-sonnet",
	"anthropic/claude-3-haiku",
	"google/gemini-pro-1.5",
	"meta-llama/llama-3.1-70b-instruct",
	"mistralai/mistral-large",
	"x-ai/grok-2",
}

func (h *Handler) catalog(c *gin.Context) ([]ai.Model, error) {
	ctx := c.Request.Context()

	if h.Cache != nil {
		if models, hit, err := h.Cache.GetModels(ctx); err != nil {
			h.Logger.WithError(err).Warn("catalog cache read failed")
		} else if hit {
			return models, nil
		}
	}

	models, err := h.AI.Models(ctx, h.apiKey(c))
	if err != nil {
		return nil, err
	}

	if h.Cache != nil {
		if err := h.Cache.SetModels(ctx, models); err != nil {
			h.Logger.WithError(err).Warn("catalog cache write failed")
		}
	}
	return models, nil
}

// ListModels returns the upstream catalog, free-tier entries excluded.
func (h *Handler) ListModels(c *gin.Context) {
	models, err := h.catalog(c)
	if err != nil {
		h.failFromError(c, err)
		return
	}
	common.OK(c, gin.H{"models": models})
}

// ListPopularModels filters the catalog down to the curated subset.
func (h *Handler) ListPopularModels(c *gin.Context) {
	models, err := h.catalog(c)
	if err != nil {
		h.failFromError(c, err)
		return
	}

	byID := make(map[string]ai.Model, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}
	out := make([]ai.Model, 0, len(popularModelIDs))
	for _, id := range popularModelIDs {
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		// catalog drift; better to show something than nothing
		if len(models) > 8 {
			models = models[:8]
		}
		out = models
	}
	common.OK(c, gin.H{"models": out})
}
