package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadLines reads a newline-separated list file. Lines are trimmed and blank
// lines are dropped.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open list %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read list %s: %w", path, err)
	}
	return lines, nil
}
