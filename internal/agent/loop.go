package agent

import (
	"context"
	"errors"
	"log/slog"

	"hrag/internal/metrics"
)

// ErrTurnLimit is returned when the model keeps requesting tools past the
// configured number of turns.
var ErrTurnLimit = errors.New("agent: turn limit reached")

// Loop alternates Reason and Act until the model answers without tool calls.
type Loop struct {
	reasoner Reasoner
	tools    *Toolbox
	system   string
	maxTurns int
	logger   *slog.Logger
}

func NewLoop(reasoner Reasoner, tools *Toolbox, system string, maxTurns int, logger *slog.Logger) *Loop {
	if maxTurns <= 0 {
		maxTurns = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{reasoner: reasoner, tools: tools, system: system, maxTurns: maxTurns, logger: logger}
}

// Run continues the transcript and returns it extended with every message
// produced, including tool results. The final message is the model's answer
// unless an error is returned.
func (l *Loop) Run(ctx context.Context, transcript []Message) ([]Message, error) {
	messages := append([]Message(nil), transcript...)
	specs := l.tools.Specs()
	for turn := 0; turn < l.maxTurns; turn++ {
		metrics.AgentTurnsTotal.Inc()
		reply, err := l.reasoner.Reason(ctx, l.system, messages, specs)
		if err != nil {
			return messages, err
		}
		reply.Role = RoleAssistant
		messages = append(messages, reply)
		if len(reply.ToolCalls) == 0 {
			return messages, nil
		}
		for _, call := range reply.ToolCalls {
			l.logger.Info("Calling tool", "name", call.Name, "args", call.Arguments, "turn", turn)
			content, err := l.tools.Execute(ctx, call)
			if err != nil {
				metrics.ToolCallsTotal.WithLabelValues(call.Name, "error").Inc()
				return messages, err
			}
			metrics.ToolCallsTotal.WithLabelValues(call.Name, "ok").Inc()
			messages = append(messages, Message{
				Role:       RoleTool,
				Content:    content,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}
	l.logger.Warn("Turn limit reached", "max_turns", l.maxTurns)
	return messages, ErrTurnLimit
}
