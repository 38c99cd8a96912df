package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clankers-project/clankers/internal/util"
)

const (
	defaultLogEntries = 100
	maxLogEntries     = 1000
	tailChunkSize     = 64 * 1024
)

// handleGetStats returns the fleet counters.
func (s *Server) handleGetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"destination": s.cfg.Destination,
		"clankers":    s.cfg.Clankers,
		"connected":   s.registry.Count(),
		"stats":       s.stats.Snapshot(),
	})
}

// handleGetSessions returns every open connection.
func (s *Server) handleGetSessions(c *gin.Context) {
	sessions := s.registry.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// handleGetSession returns the connection held by one slot.
func (s *Server) handleGetSession(c *gin.Context) {
	slot, err := parseSlot(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot"})
		return
	}

	for _, info := range s.registry.Snapshot() {
		if info.Slot == slot {
			c.JSON(http.StatusOK, info)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "no connection in slot", "slot": slot})
}

// handleGetUsage returns the process resource footprint.
func (s *Server) handleGetUsage(c *gin.Context) {
	usage, err := util.GetProcessUsage()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, usage)
}

// handleGetLogEntries returns recent log entries.
func (s *Server) handleGetLogEntries(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", strconv.Itoa(defaultLogEntries)))
	if err != nil || count < 1 {
		count = defaultLogEntries
	}
	if count > maxLogEntries {
		count = maxLogEntries
	}

	entries, err := readRecentLogEntries(s.cfg.Logging.Directory, count)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// logEntry is a parsed log entry for the API response.
type logEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// readRecentLogEntries parses the last count lines of the active log file.
// Zerolog writes JSON lines; anything else is returned as a bare message.
func readRecentLogEntries(logDir string, count int) ([]logEntry, error) {
	lines, err := tailLines(util.LogFilePath(logDir), count)
	if errors.Is(err, fs.ErrNotExist) {
		return []logEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	knownKeys := map[string]bool{
		"level": true, "time": true, "message": true,
		"caller": true, "app": true,
	}

	result := make([]logEntry, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var raw map[string]any
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			result = append(result, logEntry{Message: line})
			continue
		}

		entry := logEntry{
			Timestamp: stringFromMap(raw, "time"),
			Level:     stringFromMap(raw, "level"),
			Message:   stringFromMap(raw, "message"),
		}

		extra := make(map[string]any)
		for k, v := range raw {
			if !knownKeys[k] {
				extra[k] = v
			}
		}
		if len(extra) > 0 {
			entry.Fields = extra
		}

		result = append(result, entry)
	}

	return result, nil
}

// tailLines returns the last count lines of the file at path. The file is
// read backwards in chunks until enough lines are found.
func tailLines(path string, count int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	offset := info.Size()
	var buf []byte
	newlines := 0
	// count+1 newlines guarantee count complete lines, trailing newline included.
	for offset > 0 && newlines <= count {
		n := min(int64(tailChunkSize), offset)
		offset -= n

		chunk := make([]byte, n)
		if _, err := f.ReadAt(chunk, offset); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		newlines += bytes.Count(chunk, []byte{'\n'})
		buf = append(chunk, buf...)
	}

	lines := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	if offset > 0 {
		// The first line started before the data read.
		lines = lines[1:]
	}
	if len(lines) > count {
		lines = lines[len(lines)-count:]
	}
	return lines, nil
}

// stringFromMap extracts a string value from a map, returning "" if missing.
func stringFromMap(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}
