package agent

import (
	"context"

	"github.com/VictorAMM/aiko-ryu-sub008/core"
)

// EventFunc reacts to one routed event.
type EventFunc func(ctx context.Context, event core.Event) error

// FuncAgent is an agent whose event handling is a single function. It is the
// quickest way to stand up a mesh participant, in tests and in small
// deployments alike.
type FuncAgent struct {
	BaseAgent
	fn EventFunc
}

// NewFuncAgent constructs a FuncAgent. A nil fn behaves like BaseAgent and
// ignores all events.
func NewFuncAgent(id, role string, fn EventFunc, dependencies ...string) *FuncAgent {
	return &FuncAgent{
		BaseAgent: NewBaseAgent(id, role, dependencies...),
		fn:        fn,
	}
}

// HandleEvent invokes the wrapped function. Handler errors are recorded on
// the agent's status and returned to the router.
func (f *FuncAgent) HandleEvent(ctx context.Context, event core.Event) error {
	if f.fn == nil {
		return nil
	}
	err := f.fn(ctx, event)
	f.setError(err)
	return err
}
