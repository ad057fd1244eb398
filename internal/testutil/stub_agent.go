package testutil

import (
	"context"
	"sync"

	"github.com/VictorAMM/aiko-ryu-sub008/core"
)

// StubAgent is a recording mesh participant for tests. It accepts every
// event, remembers what it received and can be told to fail or panic on
// demand.
type StubAgent struct {
	AgentID   string
	AgentRole string

	// HandleErr, when set, is returned from every HandleEvent call.
	HandleErr error
	// PanicOnEvent makes HandleEvent panic, for router recovery tests.
	PanicOnEvent bool

	mu     sync.Mutex
	events []core.Event
}

// NewStubAgent creates a stub with the given id and role "stub".
func NewStubAgent(id string) *StubAgent {
	return &StubAgent{AgentID: id, AgentRole: "stub"}
}

func (s *StubAgent) ID() string             { return s.AgentID }
func (s *StubAgent) Role() string           { return s.AgentRole }
func (s *StubAgent) Dependencies() []string { return nil }

func (s *StubAgent) Initialize(ctx context.Context) error { return nil }
func (s *StubAgent) Shutdown(ctx context.Context) error   { return nil }

func (s *StubAgent) Status() core.AgentStatus {
	return core.AgentStatus{State: core.StateReady}
}

func (s *StubAgent) HandleEvent(ctx context.Context, event core.Event) error {
	if s.PanicOnEvent {
		panic("stub agent panic")
	}
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return s.HandleErr
}

func (s *StubAgent) ValidateSpecification(ctx context.Context, spec any) core.SpecValidation {
	return core.SpecValidation{Result: true, Consensus: true}
}

func (s *StubAgent) GenerateDesignArtifacts(ctx context.Context) []core.DesignArtifact {
	return nil
}

func (s *StubAgent) TrackUserInteraction(interaction core.Interaction) {}

// Events returns a copy of the events received so far.
func (s *StubAgent) Events() []core.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Event(nil), s.events...)
}

// EventTypes returns the received event types in delivery order.
func (s *StubAgent) EventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, len(s.events))
	for i, ev := range s.events {
		types[i] = ev.Type
	}
	return types
}
