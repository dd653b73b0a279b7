// Package llm adapts the OpenAI chat-completions API (or Azure OpenAI) to the
// agent Reasoner and the hierarchy Summarizer.
package llm

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"hrag/internal/domain"
)

// Config selects the provider and credentials.
type Config struct {
	Provider   string
	BaseURL    string
	Endpoint   string
	APIVersion string
	APIKeyEnv  string
	Timeout    time.Duration
	MaxRetries int
}

// NewClient builds an OpenAI or Azure OpenAI client.
func NewClient(cfg Config) (openai.Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return openai.Client{}, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	opts := []option.RequestOption{option.WithMaxRetries(cfg.MaxRetries)}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	switch cfg.Provider {
	case "azure":
		if cfg.Endpoint == "" || cfg.APIVersion == "" {
			return openai.Client{}, errors.New("azure provider requires endpoint and api_version")
		}
		opts = append(opts, azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion), azure.WithAPIKey(key))
	case "openai", "":
		opts = append(opts, option.WithAPIKey(key))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	default:
		return openai.Client{}, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	return openai.NewClient(opts...), nil
}

// classify maps provider content-filter rejections to domain.ErrContentFiltered.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.Code == "content_filter" {
		return fmt.Errorf("%w: %v", domain.ErrContentFiltered, err)
	}
	return err
}
