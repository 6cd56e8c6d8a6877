package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/colloquium-dev/colloquium/internal/ai"
	"github.com/colloquium-dev/colloquium/internal/conversation"
	"github.com/colloquium-dev/colloquium/internal/store/keystore"
	"github.com/colloquium-dev/colloquium/internal/store/redisstore"
)

// APIKeyHeader carries an explicit per-request credential that overrides
// the stored and configured keys.
const APIKeyHeader = "X-API-Key"

// Handler bundles the API dependencies. Keys and Cache may be nil.
type Handler struct {
	Conv   *conversation.Service
	AI     *ai.Client
	Keys   *keystore.Store
	Cache  *redisstore.Store
	Logger logrus.FieldLogger
}

// NewHandler builds the handler set.
func NewHandler(conv *conversation.Service, aiClient *ai.Client, keys *keystore.Store, cache *redisstore.Store, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		Conv:   conv,
		AI:     aiClient,
		Keys:   keys,
		Cache:  cache,
		Logger: logger,
	}
}

// apiKey resolves the credential for one request: explicit header first,
// then the stored key. An empty result lets the model client fall back to
// its process-level key.
func (h *Handler) apiKey(c *gin.Context) string {
	if k := strings.TrimSpace(c.GetHeader(APIKeyHeader)); k != "" {
		return k
	}
	if h.Keys != nil {
		k, err := h.Keys.Get(c.Request.Context(), keystore.DefaultProvider)
		if err != nil {
			h.Logger.WithError(err).Warn("keystore read failed")
			return ""
		}
		return k
	}
	return ""
}

// Ping is the health probe.
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
