package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"hrag/internal/domain"
	"hrag/internal/retrieval"
)

const (
	ToolByLevel      = "retrieve_by_level"
	ToolAcrossLevels = "retrieve_across_level"
	ToolCite         = "cite_from_documents"
)

// Narrower is the retrieval surface the tools call into.
type Narrower interface {
	ByLevel(ctx context.Context, query string, level int) ([]domain.Chunk, error)
	AcrossLevels(ctx context.Context, query string, high, low int) ([]domain.Chunk, *retrieval.Descent, error)
	Cite(ctx context.Context, keyword string, high int) ([]retrieval.Citation, *retrieval.Descent, error)
}

// Toolbox maps tool calls onto the retrieval engine.
type Toolbox struct {
	engine Narrower
}

func NewToolbox(engine Narrower) *Toolbox {
	return &Toolbox{engine: engine}
}

// Specs returns the tool definitions offered to the model.
func (t *Toolbox) Specs() []ToolSpec {
	return []ToolSpec{
		{
			Name: ToolByLevel,
			Description: "Search the document at a single level using similarity search. " +
				"Level 1 holds raw text, level 5 the broadest summaries.",
			Parameters: objectSchema(map[string]any{
				"query": stringProp("The question the user asks"),
				"level": intProp("The single level to search, 1 to 5"),
			}, "query", "level"),
		},
		{
			Name: ToolAcrossLevels,
			Description: "Search from high_level (summaries) down to low_level (details). " +
				"Matches at each level restrict the search at the next finer level.",
			Parameters: objectSchema(map[string]any{
				"query":      stringProp("The question the user asks"),
				"high_level": intProp("The level where searching starts; must be greater than low_level"),
				"low_level":  intProp("The level where searching stops"),
			}, "query", "high_level", "low_level"),
		},
		{
			Name: ToolCite,
			Description: "Search from high_level straight down to level 1 and return the raw text " +
				"with its page number, for quoting sources.",
			Parameters: objectSchema(map[string]any{
				"keyword":    stringProp("A keyword from a result found at high_level"),
				"high_level": intProp("The level where searching starts; must be greater than 1"),
			}, "keyword", "high_level"),
		},
	}
}

// Execute runs one tool call and returns the text handed back to the model.
// Mistakes the model can correct (unknown tool, bad arguments, invalid level
// range, unknown level) come back as messages; search failures are returned
// as errors.
func (t *Toolbox) Execute(ctx context.Context, call ToolCall) (string, error) {
	var (
		out string
		err error
	)
	switch call.Name {
	case ToolByLevel:
		var args struct {
			Query string `json:"query"`
			Level int    `json:"level"`
		}
		if msg, ok := decodeArgs(call, &args); !ok {
			return msg, nil
		}
		var chunks []domain.Chunk
		chunks, err = t.engine.ByLevel(ctx, args.Query, args.Level)
		out = retrieval.FormatPassages(chunks)
	case ToolAcrossLevels:
		var args struct {
			Query string `json:"query"`
			High  int    `json:"high_level"`
			Low   int    `json:"low_level"`
		}
		if msg, ok := decodeArgs(call, &args); !ok {
			return msg, nil
		}
		var chunks []domain.Chunk
		chunks, _, err = t.engine.AcrossLevels(ctx, args.Query, args.High, args.Low)
		out = retrieval.FormatPassages(chunks)
	case ToolCite:
		var args struct {
			Keyword string `json:"keyword"`
			High    int    `json:"high_level"`
		}
		if msg, ok := decodeArgs(call, &args); !ok {
			return msg, nil
		}
		var cites []retrieval.Citation
		cites, _, err = t.engine.Cite(ctx, args.Keyword, args.High)
		out = retrieval.FormatCitations(cites)
	default:
		return fmt.Sprintf("Tool '%s' not found.", call.Name), nil
	}

	var ire *domain.InvalidRangeError
	var ce *domain.ConfigurationError
	switch {
	case err == nil:
		return out, nil
	case errors.As(err, &ire):
		return retrieval.InvalidRangeMessage, nil
	case errors.As(err, &ce):
		return ce.Error(), nil
	default:
		return "", fmt.Errorf("%s: %w", call.Name, err)
	}
}

func decodeArgs(call ToolCall, v any) (string, bool) {
	raw := call.Arguments
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Sprintf("Invalid arguments for %s: %v", call.Name, err), false
	}
	return "", true
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func intProp(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}
