package domain

import (
	"errors"
	"fmt"
)

// ErrContentFiltered marks a provider rejection on content-policy grounds.
var ErrContentFiltered = errors.New("content filtered by provider")

// ConfigurationError reports a lookup of a level that has no registered retriever.
type ConfigurationError struct {
	Level string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s not found in retrievers", e.Level)
}

// InvalidRangeError reports a narrowing request whose low level is not below its high level.
type InvalidRangeError struct {
	High int
	Low  int
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid level range: high_level=%d must be greater than low_level=%d", e.High, e.Low)
}

// SummarizationFailure is a per-group build failure. It is logged and skipped.
type SummarizationFailure struct {
	Level         int
	Group         int
	ContentPolicy bool
	Err           error
}

func (e *SummarizationFailure) Error() string {
	kind := "error"
	if e.ContentPolicy {
		kind = "content policy rejection"
	}
	return fmt.Sprintf("summarize level %d group %d: %s: %v", e.Level, e.Group, kind, e.Err)
}

func (e *SummarizationFailure) Unwrap() error { return e.Err }
