package llm

import (
	"context"
	"sync"
)

// Static is a deterministic Client used in tests and offline runs: it either
// returns a canned response per call or fails every call with a
// *ProviderError. Safe for concurrent use.
type Static struct {
	Provider  string
	Responses []string
	Fail      bool

	mu    sync.Mutex
	calls int
}

// NewFailing returns a client whose every call fails, forcing template
// fallback in the agents.
func NewFailing(provider string) *Static {
	return &Static{Provider: provider, Fail: true}
}

func (s *Static) Name() string {
	if s.Provider == "" {
		return "static"
	}
	return s.Provider
}

// Generate returns the next canned response, repeating the last one when
// exhausted.
func (s *Static) Generate(ctx context.Context, systemPrompt, userContext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ProviderError{Provider: s.Name(), Message: err.Error(), Err: err}
	}
	if s.Fail || len(s.Responses) == 0 {
		return "", &ProviderError{Provider: s.Name(), Message: "generation unavailable"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.Responses) {
		i = len(s.Responses) - 1
	}
	s.calls++
	return s.Responses[i], nil
}

// Calls reports how many Generate calls were made.
func (s *Static) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
