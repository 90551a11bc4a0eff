// Package build records the lifecycle of one compilation+fetch cycle for
// observability. The machine only moves forward: each transition appends an
// immutable, timestamped, leveled log entry, and an invalid transition is an
// error rather than a rewind. DEGRADED is terminal and reachable from any
// non-terminal state.
package build

import (
	"context"
	"fmt"
	"sync"
	"time"

	"goa.design/toolforge/runtime/telemetry"
)

// State is one build lifecycle state.
type State string

// Build lifecycle states.
const (
	StateInit                   State = "INIT"
	StateIntentParsed           State = "INTENT_PARSED"
	StateNeedsClarification     State = "NEEDS_CLARIFICATION"
	StateAwaitingClarification  State = "AWAITING_CLARIFICATION"
	StateValidatingIntegrations State = "VALIDATING_INTEGRATIONS"
	StateFetchingData           State = "FETCHING_DATA"
	StateDataReady              State = "DATA_READY"
	StateBuildingViews          State = "BUILDING_VIEWS"
	StateReady                  State = "READY"
	StateDegraded               State = "DEGRADED"
)

// transitions lists the forward edges of the lifecycle. DEGRADED is handled
// separately as a terminal escape from any non-terminal state.
var transitions = map[State][]State{
	StateInit:                   {StateIntentParsed},
	StateIntentParsed:           {StateNeedsClarification, StateValidatingIntegrations},
	StateNeedsClarification:     {StateAwaitingClarification},
	StateAwaitingClarification:  {StateValidatingIntegrations},
	StateValidatingIntegrations: {StateFetchingData},
	StateFetchingData:           {StateDataReady},
	StateDataReady:              {StateBuildingViews},
	StateBuildingViews:          {StateReady},
	StateReady:                  nil,
	StateDegraded:               nil,
}

type (
	// Entry is one immutable transition record.
	Entry struct {
		From    State     `json:"from"`
		To      State     `json:"to"`
		At      time.Time `json:"at"`
		Level   string    `json:"level"`
		Message string    `json:"message"`
	}

	// Machine tracks one build's lifecycle. It is safe for concurrent use.
	Machine struct {
		logger telemetry.Logger
		clock  func() time.Time

		mu      sync.RWMutex
		state   State
		entries []Entry
	}

	// Options configures the machine. All fields are optional.
	Options struct {
		Logger telemetry.Logger
		Clock  func() time.Time
	}
)

// NewMachine constructs a machine in INIT.
func NewMachine(opts Options) *Machine {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Machine{logger: logger, clock: clock, state: StateInit}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Terminal reports whether the machine reached READY or DEGRADED.
func (m *Machine) Terminal() bool {
	s := m.State()
	return s == StateReady || s == StateDegraded
}

// Entries returns a copy of the transition log.
func (m *Machine) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Transition moves the machine to the given state, appending a log entry.
// Only declared forward edges and the DEGRADED escape are valid.
func (m *Machine) Transition(ctx context.Context, to State, level, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.state
	if !m.valid(from, to) {
		return fmt.Errorf("invalid build transition %s -> %s", from, to)
	}
	m.state = to
	m.entries = append(m.entries, Entry{
		From:    from,
		To:      to,
		At:      m.clock().UTC(),
		Level:   level,
		Message: message,
	})
	m.logger.Info(ctx, "build transition",
		"from", string(from),
		"to", string(to),
		"level", level,
		"detail", message,
	)
	return nil
}

// Degrade moves the machine to DEGRADED with an error-leveled entry.
func (m *Machine) Degrade(ctx context.Context, message string) error {
	return m.Transition(ctx, StateDegraded, "error", message)
}

func (m *Machine) valid(from, to State) bool {
	if from == StateReady || from == StateDegraded {
		return false
	}
	if to == StateDegraded {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
