package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleGetConfig returns the effective configuration. The MQTT password
// is never serialized.
func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"config":        s.cfg,
		"message_every": s.cfg.MessageIntervalDuration().String(),
		"report_every":  s.cfg.ReportIntervalDuration().String(),
	})
}
