package llm

import (
	"context"
	"errors"

	"github.com/openai/openai-go"

	"hrag/internal/agent"
	"hrag/internal/domain"
)

// Reasoner calls a chat model with tool definitions.
type Reasoner struct {
	client openai.Client
	model  string
}

func NewReasoner(client openai.Client, model string) *Reasoner {
	return &Reasoner{client: client, model: model}
}

func (r *Reasoner) Reason(ctx context.Context, system string, messages []agent.Message, tools []agent.ToolSpec) (agent.Message, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(r.model),
		Messages:    toParams(system, messages),
		Temperature: openai.Float(0),
	}
	for _, t := range tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.Parameters),
			},
		})
	}
	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return agent.Message{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return agent.Message{}, errors.New("chat completion returned no choices")
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return agent.Message{}, domain.ErrContentFiltered
	}
	out := agent.Message{Role: agent.RoleAssistant, Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, agent.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func toParams(system string, messages []agent.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}
	for _, m := range messages {
		switch m.Role {
		case agent.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case agent.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case agent.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			asst := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				asst.Content.OfString = openai.String(m.Content)
			}
			for _, tc := range m.ToolCalls {
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		}
	}
	return out
}
