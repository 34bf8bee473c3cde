package orchestrator

import (
	"maps"
	"slices"
)

// RetryState tracks self-correction for a single turn. It is created fresh
// for every Respond call and never shared.
type RetryState struct {
	Attempts         int
	EmptyResultCount int
	LastToolName     string
	LastArguments    map[string]any

	tried map[string]struct{}
	order []string
}

func NewRetryState() *RetryState {
	return &RetryState{tried: make(map[string]struct{})}
}

// ShouldRetry is true only while attempts remain.
func (s *RetryState) ShouldRetry(maxAttempts int) bool {
	return s.Attempts < maxAttempts
}

func (s *RetryState) AttemptsRemaining(maxAttempts int) int {
	return max(maxAttempts-s.Attempts, 0)
}

// RecordAttempt consumes one attempt and remembers the strategy that
// prompted it.
func (s *RetryState) RecordAttempt(toolName string, args map[string]any, signature string) {
	s.Attempts++
	if toolName != "" {
		s.LastToolName = toolName
		s.LastArguments = maps.Clone(args)
	}
	s.MarkTried(signature)
}

// ObserveCall remembers an executed call without consuming an attempt.
func (s *RetryState) ObserveCall(toolName string, args map[string]any) {
	s.LastToolName = toolName
	s.LastArguments = maps.Clone(args)
	s.MarkTried(StrategySignature(toolName, args))
}

func (s *RetryState) MarkTried(signature string) {
	if signature == "" {
		return
	}
	if _, ok := s.tried[signature]; ok {
		return
	}
	s.tried[signature] = struct{}{}
	s.order = append(s.order, signature)
}

func (s *RetryState) HasTried(signature string) bool {
	_, ok := s.tried[signature]
	return ok
}

// StrategiesTried returns signatures in the order they were first seen.
func (s *RetryState) StrategiesTried() []string {
	return slices.Clone(s.order)
}
