package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// handleDisconnectSession closes the connection held by a slot. The slot
// treats it like any other failure and reconnects under a new name.
func (s *Server) handleDisconnectSession(c *gin.Context) {
	slot, err := parseSlot(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot"})
		return
	}

	conn, ok := s.registry.Get(slot)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no connection in slot", "slot": slot})
		return
	}

	if err := conn.Close(); err != nil {
		s.logger.Debug().Err(err).Int("slot", slot).Msg("close returned error")
	}

	s.logger.Info().
		Int("slot", slot).
		Str("clanker", conn.Name()).
		Str("client_ip", c.ClientIP()).
		Msg("API: session disconnected")

	c.JSON(http.StatusOK, gin.H{
		"status":  "disconnected",
		"slot":    slot,
		"clanker": conn.Name(),
	})
}

// parseSlot extracts and validates the :slot path parameter.
func parseSlot(c *gin.Context) (int, error) {
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		return 0, err
	}
	if slot < 0 {
		return 0, strconv.ErrRange
	}
	return slot, nil
}
