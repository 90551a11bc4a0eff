package tool

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

type (
	// Artifact is the immutable, execution-ready projection of a
	// Specification. It denormalizes the spec's collections into lookup maps
	// and carries the canonical spec hash used as the cache and idempotency
	// key for "has this tool definition changed".
	Artifact struct {
		// SpecHash is the stable hash of the canonicalized specification.
		SpecHash string `json:"specHash"`
		// CompiledAt records when the artifact was built.
		CompiledAt time.Time `json:"compiledAt"`

		Actions       []Action       `json:"actions"`
		Workflows     []Workflow     `json:"workflows"`
		Triggers      []Trigger      `json:"triggers"`
		Views         []View         `json:"views"`
		Reducers      []Reducer      `json:"reducers"`
		Memory        MemoryConfig   `json:"memory"`
		Integrations  []Integration  `json:"integrations"`
		DataReadiness *DataReadiness `json:"dataReadiness,omitempty"`
		Automations   *Automations   `json:"automations,omitempty"`
		Observability *Observability `json:"observability,omitempty"`

		actions   map[string]Action
		workflows map[string]Workflow
		reducers  map[string]Reducer
	}

	// ExecutionResult is the outcome of one action execution: the persisted
	// state after the action's reducer was applied, the raw adapter output,
	// and the events the action declares for emission.
	ExecutionResult struct {
		State  map[string]any `json:"state"`
		Output any            `json:"output"`
		Events []Event        `json:"events"`
	}

	// Event pairs a declared emission type with the action that produced it
	// and the output it carries.
	Event struct {
		Type     string `json:"type"`
		ActionID string `json:"actionId"`
		Output   any    `json:"output"`
	}
)

// NewArtifact builds an artifact snapshot from a specification that already
// passed structural binding. The caller (the compiler) is responsible for
// validation; NewArtifact only denormalizes and hashes.
func NewArtifact(spec *Specification, now time.Time) (*Artifact, error) {
	hash, err := SpecHash(spec)
	if err != nil {
		return nil, fmt.Errorf("hash specification: %w", err)
	}
	a := &Artifact{
		SpecHash:      hash,
		CompiledAt:    now.UTC(),
		Actions:       spec.Actions,
		Workflows:     spec.Workflows,
		Triggers:      spec.Triggers,
		Views:         spec.Views,
		Reducers:      spec.State.Reducers,
		Memory:        spec.Memory,
		Integrations:  spec.Integrations,
		DataReadiness: spec.DataReadiness,
		Automations:   spec.Automations,
		Observability: spec.Observability,
	}
	a.index()
	return a, nil
}

// index builds the lookup maps. Called on construction and after decoding.
func (a *Artifact) index() {
	a.actions = make(map[string]Action, len(a.Actions))
	for _, act := range a.Actions {
		a.actions[act.ID] = act
	}
	a.workflows = make(map[string]Workflow, len(a.Workflows))
	for _, wf := range a.Workflows {
		a.workflows[wf.ID] = wf
	}
	a.reducers = make(map[string]Reducer, len(a.Reducers))
	for _, r := range a.Reducers {
		a.reducers[r.ID] = r
	}
}

// ActionByID returns the action with the given id.
func (a *Artifact) ActionByID(id string) (Action, bool) {
	if a.actions == nil {
		a.index()
	}
	act, ok := a.actions[id]
	return act, ok
}

// WorkflowByID returns the workflow with the given id.
func (a *Artifact) WorkflowByID(id string) (Workflow, bool) {
	if a.workflows == nil {
		a.index()
	}
	wf, ok := a.workflows[id]
	return wf, ok
}

// ReducerByID returns the reducer with the given id.
func (a *Artifact) ReducerByID(id string) (Reducer, bool) {
	if a.reducers == nil {
		a.index()
	}
	r, ok := a.reducers[id]
	return r, ok
}

// ReadActions returns the artifact's READ actions in declaration order. The
// seeding pass executes exactly these.
func (a *Artifact) ReadActions() []Action {
	var reads []Action
	for _, act := range a.Actions {
		if act.Type == ActionRead {
			reads = append(reads, act)
		}
	}
	return reads
}

// SpecHash computes the stable content hash of a specification. The spec is
// marshaled, re-decoded into generic maps, and re-marshaled so object keys are
// emitted in sorted order; hashing the canonical form makes repeated compiles
// of an unchanged spec idempotent.
func SpecHash(spec *Specification) (string, error) {
	raw, err := json.Marshal(spec)
	if err != nil {
		return "", err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
