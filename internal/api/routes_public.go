package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clankers-project/clankers/internal/protocol"
	"github.com/clankers-project/clankers/internal/util"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  "clankers",
		"protocol": protocol.ProtocolVersion,
	})
}

// handleGetSystemInfo returns the host the fleet runs on.
func (s *Server) handleGetSystemInfo(c *gin.Context) {
	c.JSON(http.StatusOK, util.GetSystemInfo())
}
