package agent

import (
	"context"
	"errors"
	"sync"

	"hrag/internal/domain"
)

// ContentFilteredReply is shown when the provider rejects a prompt on policy grounds.
const ContentFilteredReply = "Sorry, something went wrong. Please try a different prompt."

// Session keeps one conversation across questions. Calls to Ask are serialized.
type Session struct {
	loop *Loop

	mu         sync.Mutex
	transcript []Message
}

func NewSession(loop *Loop) *Session {
	return &Session{loop: loop}
}

// Ask appends question to the conversation, runs the loop and returns the
// model's answer. A failed turn leaves the transcript unchanged.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in := append(append([]Message(nil), s.transcript...), Message{Role: RoleUser, Content: question})
	out, err := s.loop.Run(ctx, in)
	if err != nil {
		return "", err
	}
	s.transcript = out
	return out[len(out)-1].Content, nil
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.transcript...)
}

// Reset forgets the conversation.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = nil
}

// DegradedReply turns a failed turn into text for the user so front ends can
// keep the session alive.
func DegradedReply(err error) string {
	switch {
	case errors.Is(err, domain.ErrContentFiltered):
		return ContentFilteredReply
	case errors.Is(err, ErrTurnLimit):
		return "I could not finish within the allowed number of steps. Please try a more specific question."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out. Please try again."
	default:
		return "Sorry, I could not search the document right now. Please try again."
	}
}
