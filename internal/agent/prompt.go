package agent

import (
	_ "embed"
	"errors"
	"log/slog"
	"os"
	"strings"
)

//go:embed prompts/system.txt
var defaultSystemPrompt string

// LoadSystemPrompt reads the system prompt from path, falling back to the
// built-in prompt when the file does not exist.
func LoadSystemPrompt(path string, logger *slog.Logger) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("Cannot find system prompts file, using built-in prompt", "path", path)
			return DefaultSystemPrompt(), nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// DefaultSystemPrompt returns the built-in system prompt.
func DefaultSystemPrompt() string {
	return strings.TrimSpace(defaultSystemPrompt)
}
