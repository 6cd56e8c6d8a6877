package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/colloquium-dev/colloquium/internal/common"
	"github.com/colloquium-dev/colloquium/internal/store/keystore"
)

type keyReq struct {
	APIKey string `json:"api_key" binding:"required"`
}

// ValidateKey checks a credential against the provider without storing it.
func (h *Handler) ValidateKey(c *gin.Context) {
	var req keyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if err := h.AI.CheckKey(c.Request.Context(), strings.TrimSpace(req.APIKey)); err != nil {
		common.OK(c, gin.H{"valid": false, "reason": err.Error()})
		return
	}
	common.OK(c, gin.H{"valid": true})
}

// SaveKey validates a credential and persists it for later requests.
func (h *Handler) SaveKey(c *gin.Context) {
	if h.Keys == nil {
		common.Fail(c, http.StatusNotImplemented, 50101, "key storage disabled")
		return
	}

	var req keyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	key := strings.TrimSpace(req.APIKey)

	if err := h.AI.CheckKey(c.Request.Context(), key); err != nil {
		common.Fail(c, http.StatusBadRequest, 10030, "api key rejected by provider")
		return
	}
	if err := h.Keys.Save(c.Request.Context(), keystore.DefaultProvider, key); err != nil {
		h.Logger.WithError(err).Error("keystore save failed")
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to save key")
		return
	}
	common.OK(c, gin.H{"saved": true, "key": keystore.Mask(key)})
}

// KeyStatus reports whether a credential is stored, with a masked tail.
func (h *Handler) KeyStatus(c *gin.Context) {
	if h.Keys == nil {
		common.OK(c, gin.H{"present": false})
		return
	}

	present, masked, err := h.Keys.Status(c.Request.Context(), keystore.DefaultProvider)
	if err != nil {
		h.Logger.WithError(err).Error("keystore status failed")
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to read key status")
		return
	}
	common.OK(c, gin.H{"present": present, "key": masked})
}
