package recovery

import (
	"fmt"
	"sync"

	"github.com/wudi/pdfpages/observability"
)

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy accumulates every error it sees and asks the caller to
// continue. It is safe for concurrent use.
type LenientStrategy struct {
	mu     sync.Mutex
	Errors []error
}

func NewLenientStrategy() *LenientStrategy {
	return &LenientStrategy{}
}

func (s *LenientStrategy) OnError(ctx Context, err error, location Location) Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, fmt.Errorf("[%s] offset %d: %w", location.Component, location.ByteOffset, err))
	return ActionWarn
}

// LoggingStrategy reports every error to a logger before delegating the
// decision to Next (lenient when nil).
type LoggingStrategy struct {
	Logger observability.Logger
	Next   Strategy
}

func NewLoggingStrategy(logger observability.Logger, next Strategy) *LoggingStrategy {
	return &LoggingStrategy{Logger: observability.OrNop(logger), Next: next}
}

func (s *LoggingStrategy) OnError(ctx Context, err error, location Location) Action {
	action := ActionWarn
	if s.Next != nil {
		action = s.Next.OnError(ctx, err, location)
	}
	fields := []observability.Field{
		observability.String("component", location.Component),
		observability.Int64("offset", location.ByteOffset),
		observability.Error("error", err),
	}
	if location.ObjectNum > 0 {
		fields = append(fields, observability.Int("object", location.ObjectNum))
	}
	if action == ActionFail {
		observability.OrNop(s.Logger).Debug("unrecoverable pdf syntax error", fields...)
	} else {
		observability.OrNop(s.Logger).Warn("recovered from pdf syntax error", fields...)
	}
	return action
}
