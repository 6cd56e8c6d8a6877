package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/colloquium-dev/colloquium/internal/common"
	"github.com/colloquium-dev/colloquium/internal/httpapi/handlers"
	"github.com/colloquium-dev/colloquium/internal/httpapi/middleware"
)

// NewRouter wires the HTTP surface.
func NewRouter(h *handlers.Handler, logger logrus.FieldLogger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/healthz", h.Ping)

	api := r.Group("/api")
	api.POST("/conversations", h.StartConversation)
	api.POST("/conversations/stream", h.StreamConversation)
	api.POST("/conversations/continue", h.ContinueConversation)

	api.GET("/models", h.ListModels)
	api.GET("/models/popular", h.ListPopularModels)
	api.GET("/tones", h.ListTones)

	api.POST("/keys/validate", h.ValidateKey)
	api.POST("/keys", h.SaveKey)
	api.GET("/keys/status", h.KeyStatus)

	return r
}
