// Package tool defines the declarative tool model shared by the compiler and
// the execution runtime: the operator-authored Specification, the compiled
// execution-ready Artifact, and the value types both sides exchange (reducers,
// workflow graphs, execution results).
package tool

import "encoding/json"

type (
	// Specification is the declarative description of one tool instance:
	// which entities it surfaces, which integrations it may call, the actions
	// bound to integration capabilities, and the workflows, triggers, views,
	// reducers, and memory namespaces that shape its behavior.
	//
	// Specifications are authored (or synthesized from a natural-language
	// description), revised turn by turn, and compiled into an Artifact on
	// every mutation.
	Specification struct {
		// Name identifies the tool. Optional but recommended; it becomes part
		// of log and stream identifiers.
		Name string `json:"name,omitempty" yaml:"name,omitempty"`
		// Description is the operator-facing summary of what the tool does.
		Description string `json:"description,omitempty" yaml:"description,omitempty"`
		// Entities declare the data shapes the tool reads and renders.
		Entities []Entity `json:"entities" yaml:"entities"`
		// Integrations declare the third-party providers the tool may reach
		// and the capabilities granted on each.
		Integrations []Integration `json:"integrations" yaml:"integrations"`
		// Actions bind declared capabilities to runtime-invocable operations.
		Actions []Action `json:"actions" yaml:"actions"`
		// Workflows are multi-step automations over the declared actions.
		Workflows []Workflow `json:"workflows,omitempty" yaml:"workflows,omitempty"`
		// Triggers re-invoke actions or workflows on schedules or events.
		Triggers []Trigger `json:"triggers,omitempty" yaml:"triggers,omitempty"`
		// Views project entities into renderable surfaces.
		Views []View `json:"views,omitempty" yaml:"views,omitempty"`
		// State declares the reducers actions use to fold output into the
		// tool's persisted state object.
		State StateConfig `json:"state,omitempty" yaml:"state,omitempty"`
		// Memory configures the durable memory namespace per scope.
		Memory MemoryConfig `json:"memory,omitempty" yaml:"memory,omitempty"`
		// DataReadiness optionally declares answer contracts fetched data is
		// checked against after the read-seeding pass.
		DataReadiness *DataReadiness `json:"dataReadiness,omitempty" yaml:"dataReadiness,omitempty"`
		// Automations optionally tunes trigger execution.
		Automations *Automations `json:"automations,omitempty" yaml:"automations,omitempty"`
		// Observability optionally tunes build logging.
		Observability *Observability `json:"observability,omitempty" yaml:"observability,omitempty"`
	}

	// Entity is a named data shape sourced from one integration.
	Entity struct {
		Name              string  `json:"name" yaml:"name"`
		Fields            []Field `json:"fields" yaml:"fields"`
		SourceIntegration string  `json:"sourceIntegration" yaml:"sourceIntegration"`
	}

	// Field is a single named, typed entity attribute.
	Field struct {
		Name string `json:"name" yaml:"name"`
		Type string `json:"type,omitempty" yaml:"type,omitempty"`
	}

	// Integration declares a third-party provider and the capability ids
	// granted to this tool on it.
	Integration struct {
		ID           string   `json:"id" yaml:"id"`
		Capabilities []string `json:"capabilities" yaml:"capabilities"`
	}

	// ActionType classifies what an action does to the provider it calls.
	ActionType string

	// Action binds a granted capability to a runtime-invocable operation.
	Action struct {
		ID            string     `json:"id" yaml:"id"`
		IntegrationID string     `json:"integrationId" yaml:"integrationId"`
		CapabilityID  string     `json:"capabilityId" yaml:"capabilityId"`
		Type          ActionType `json:"type" yaml:"type"`
		// ReducerID names the reducer applied to this action's output. Empty
		// means the output does not mutate persisted state.
		ReducerID string `json:"reducerId,omitempty" yaml:"reducerId,omitempty"`
		// Emits lists the event types published unconditionally when the
		// action succeeds.
		Emits []string `json:"emits,omitempty" yaml:"emits,omitempty"`
		// Params are static parameters merged under caller input on execute.
		Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
		// InputSchema and OutputSchema are optional JSON Schema documents for
		// the action's payload and result. When present they must compile.
		InputSchema  json.RawMessage `json:"inputSchema,omitempty" yaml:"inputSchema,omitempty"`
		OutputSchema json.RawMessage `json:"outputSchema,omitempty" yaml:"outputSchema,omitempty"`
	}

	// NodeType enumerates the workflow node kinds.
	NodeType string

	// Workflow is a directed acyclic graph of nodes executed in topological
	// order when the workflow runs.
	Workflow struct {
		ID    string         `json:"id" yaml:"id"`
		Nodes []WorkflowNode `json:"nodes" yaml:"nodes"`
		Edges []WorkflowEdge `json:"edges,omitempty" yaml:"edges,omitempty"`
		// Retry is advisory: the engine never retries on its own, the
		// surrounding caller applies this policy.
		Retry *RetryPolicy `json:"retry,omitempty" yaml:"retry,omitempty"`
	}

	// WorkflowNode is one step in a workflow graph.
	WorkflowNode struct {
		ID   string   `json:"id" yaml:"id"`
		Type NodeType `json:"type" yaml:"type"`
		// ActionID is required for action nodes.
		ActionID string `json:"actionId,omitempty" yaml:"actionId,omitempty"`
		// Condition is a dot-path resolved against persisted state; a falsy
		// result short-circuits the remaining run.
		Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
		// WaitMs is the sleep duration for wait nodes, clamped to >= 0.
		WaitMs int64 `json:"waitMs,omitempty" yaml:"waitMs,omitempty"`
	}

	// WorkflowEdge declares that To depends on From having completed.
	WorkflowEdge struct {
		From string `json:"from" yaml:"from"`
		To   string `json:"to" yaml:"to"`
	}

	// RetryPolicy is the per-workflow retry declaration applied by callers.
	RetryPolicy struct {
		MaxRetries int   `json:"maxRetries" yaml:"maxRetries"`
		BackoffMs  int64 `json:"backoffMs" yaml:"backoffMs"`
	}

	// Trigger re-invokes a workflow or a single action.
	Trigger struct {
		ID   string `json:"id" yaml:"id"`
		Type string `json:"type" yaml:"type"`
		// Exactly one of WorkflowID and ActionID must be set.
		WorkflowID string `json:"workflowId,omitempty" yaml:"workflowId,omitempty"`
		ActionID   string `json:"actionId,omitempty" yaml:"actionId,omitempty"`
		// Schedule is a cron-style expression for schedule triggers.
		Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty"`
		// Event is the event type that fires event triggers.
		Event string `json:"event,omitempty" yaml:"event,omitempty"`
	}

	// View projects an entity into a renderable surface, optionally seeded by
	// a read action.
	View struct {
		ID       string `json:"id" yaml:"id"`
		Kind     string `json:"kind,omitempty" yaml:"kind,omitempty"`
		Entity   string `json:"entity" yaml:"entity"`
		ActionID string `json:"actionId,omitempty" yaml:"actionId,omitempty"`
	}

	// StateConfig declares the tool's reducers.
	StateConfig struct {
		Reducers []Reducer `json:"reducers,omitempty" yaml:"reducers,omitempty"`
	}

	// ReducerType enumerates how a reducer folds output into state.
	ReducerType string

	// Reducer declares how an action's output mutates the persisted state
	// object at Target.
	Reducer struct {
		ID     string      `json:"id" yaml:"id"`
		Type   ReducerType `json:"type" yaml:"type"`
		Target string      `json:"target" yaml:"target"`
	}

	// MemoryConfig maps memory scopes to namespace names.
	MemoryConfig struct {
		Namespaces []NamespaceConfig `json:"namespaces,omitempty" yaml:"namespaces,omitempty"`
	}

	// NamespaceConfig names the durable bucket used for one scope kind.
	NamespaceConfig struct {
		Scope     string `json:"scope" yaml:"scope"`
		Namespace string `json:"namespace" yaml:"namespace"`
	}

	// DataReadiness declares the answer contracts fetched data must be
	// checked against.
	DataReadiness struct {
		Contracts []AnswerContract `json:"contracts,omitempty" yaml:"contracts,omitempty"`
	}

	// AnswerContract is one declared data-quality constraint: rows of
	// EntityType fetched by SourceActionID (all read actions when empty) must
	// satisfy Required.
	AnswerContract struct {
		EntityType     string `json:"entityType" yaml:"entityType"`
		SourceActionID string `json:"sourceActionId,omitempty" yaml:"sourceActionId,omitempty"`
		// Required is either a recognized relative-time window ("last 24
		// hours", "newer_than:1d") or a keyword matched against row text.
		Required string `json:"required" yaml:"required"`
	}

	// Automations tunes trigger execution.
	Automations struct {
		Enabled bool `json:"enabled" yaml:"enabled"`
	}

	// Observability tunes build logging.
	Observability struct {
		LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	}
)

// Action types.
const (
	ActionRead   ActionType = "READ"
	ActionWrite  ActionType = "WRITE"
	ActionMutate ActionType = "MUTATE"
	ActionNotify ActionType = "NOTIFY"
)

// Workflow node types.
const (
	NodeAction    NodeType = "action"
	NodeCondition NodeType = "condition"
	NodeWait      NodeType = "wait"
	NodeTransform NodeType = "transform"
)

// Reducer types.
const (
	ReduceSet    ReducerType = "set"
	ReduceMerge  ReducerType = "merge"
	ReduceAppend ReducerType = "append"
	ReduceRemove ReducerType = "remove"
)

// ValidActionType reports whether t is one of the four declared action types.
func ValidActionType(t ActionType) bool {
	switch t {
	case ActionRead, ActionWrite, ActionMutate, ActionNotify:
		return true
	}
	return false
}

// ValidReducerType reports whether t is a declared reducer type.
func ValidReducerType(t ReducerType) bool {
	switch t {
	case ReduceSet, ReduceMerge, ReduceAppend, ReduceRemove:
		return true
	}
	return false
}

// ValidNodeType reports whether t is a declared workflow node type.
func ValidNodeType(t NodeType) bool {
	switch t {
	case NodeAction, NodeCondition, NodeWait, NodeTransform:
		return true
	}
	return false
}
