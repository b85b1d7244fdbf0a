package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HandleVerificationPush accepts provider-pushed updates for the
// verification channel. The shared-secret check has already run.
func (s *Server) HandleVerificationPush(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.channel.HandlePush(c.Request.Context(), payload); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ManageVerificationWebhook drives webhook registration so the channel's
// delivery mode can be switched at runtime.
func (s *Server) ManageVerificationWebhook(c *gin.Context) {
	action := strings.ToLower(strings.TrimSpace(c.Query("action")))
	if action == "" {
		action = "info"
	}

	result, err := s.channel.ManageWebhook(c.Request.Context(), action)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"action": action, "result": result})
}
