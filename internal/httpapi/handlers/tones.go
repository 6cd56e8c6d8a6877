package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/colloquium-dev/colloquium/internal/common"
	"github.com/colloquium-dev/colloquium/internal/conversation"
)

// ListTones returns the static tone catalog.
func (h *Handler) ListTones(c *gin.Context) {
	common.OK(c, gin.H{"tones": conversation.Tones()})
}
