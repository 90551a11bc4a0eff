// Package workflow executes a compiled workflow's directed acyclic graph of
// action, condition, wait, and transform nodes.
//
// Execution is strictly sequential in topological order on a single logical
// thread; there is no parallel scheduling of branches. The engine never
// retries: a failing action node halts the run, and the workflow's declared
// retry policy is for the surrounding caller to apply.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"goa.design/toolforge/features/state"
	"goa.design/toolforge/runtime/telemetry"
	"goa.design/toolforge/runtime/tool"
)

// ErrUnknownWorkflow is returned when the workflow id does not resolve in
// the compiled artifact.
var ErrUnknownWorkflow = errors.New("workflow is not declared in the compiled artifact")

type (
	// ActionRunner delegates action nodes to the runtime executor.
	ActionRunner interface {
		Execute(ctx context.Context, actionID string, input map[string]any) (*tool.ExecutionResult, error)
	}

	// Options configures the engine.
	Options struct {
		// Artifact is the compiled artifact workflows resolve from. Required.
		Artifact *tool.Artifact
		// Runner executes action nodes. Required.
		Runner ActionRunner
		// State supplies the persisted state condition nodes resolve
		// against. Required.
		State state.Store
		// ToolID and OrgID address the state object. Required.
		ToolID string
		OrgID  string
		// Logger receives run diagnostics. Defaults to a noop logger.
		Logger telemetry.Logger
		// Sleep implements wait nodes. Defaults to a context-aware sleep;
		// tests inject a fake.
		Sleep func(ctx context.Context, d time.Duration) error
	}

	// Engine runs workflows for one tool instance.
	Engine struct {
		artifact *tool.Artifact
		runner   ActionRunner
		state    state.Store
		toolID   string
		orgID    string
		logger   telemetry.Logger
		sleep    func(ctx context.Context, d time.Duration) error
	}
)

// New constructs an engine.
func New(opts Options) (*Engine, error) {
	if opts.Artifact == nil {
		return nil, errors.New("artifact is required")
	}
	if opts.Runner == nil {
		return nil, errors.New("action runner is required")
	}
	if opts.State == nil {
		return nil, errors.New("state store is required")
	}
	if opts.ToolID == "" {
		return nil, errors.New("tool id is required")
	}
	if opts.OrgID == "" {
		return nil, errors.New("org id is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = contextSleep
	}
	return &Engine{
		artifact: opts.Artifact,
		runner:   opts.Runner,
		state:    opts.State,
		toolID:   opts.ToolID,
		orgID:    opts.OrgID,
		logger:   logger,
		sleep:    sleep,
	}, nil
}

// Run executes the workflow in topological order and returns each executed
// node's output. Cyclic graphs are rejected before any node executes. A
// falsy condition short-circuits the remaining run; an action node failure
// halts the run and propagates.
func (e *Engine) Run(ctx context.Context, workflowID string, input map[string]any) (map[string]any, error) {
	wf, ok := e.artifact.WorkflowByID(workflowID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWorkflow, workflowID)
	}
	order, err := tool.TopoOrder(wf.Nodes, wf.Edges)
	if err != nil {
		return nil, fmt.Errorf("workflow %q: %w", workflowID, err)
	}
	nodes := make(map[string]tool.WorkflowNode, len(wf.Nodes))
	for _, n := range wf.Nodes {
		nodes[n.ID] = n
	}

	results := make(map[string]any, len(order))
	for _, nodeID := range order {
		node := nodes[nodeID]
		switch node.Type {
		case tool.NodeAction:
			if node.ActionID == "" {
				return nil, fmt.Errorf("workflow %q action node %q declares no action id", workflowID, nodeID)
			}
			res, err := e.runner.Execute(ctx, node.ActionID, nodeInput(input, results[nodeID]))
			if err != nil {
				return nil, fmt.Errorf("workflow %q node %q: %w", workflowID, nodeID, err)
			}
			results[nodeID] = res.Output

		case tool.NodeCondition:
			current, err := e.state.Load(ctx, e.toolID, e.orgID)
			if err != nil {
				return nil, fmt.Errorf("workflow %q node %q load state: %w", workflowID, nodeID, err)
			}
			value := resolvePath(current, node.Condition)
			results[nodeID] = value
			if !truthy(value) {
				e.logger.Debug(ctx, "workflow short-circuit",
					"workflow_id", workflowID,
					"node_id", nodeID,
					"condition", node.Condition,
				)
				return results, nil
			}

		case tool.NodeWait:
			d := time.Duration(node.WaitMs) * time.Millisecond
			if d < 0 {
				d = 0
			}
			if err := e.sleep(ctx, d); err != nil {
				return nil, err
			}
			results[nodeID] = node.WaitMs

		case tool.NodeTransform:
			if _, ok := results[nodeID]; !ok {
				results[nodeID] = input
			}

		default:
			return nil, fmt.Errorf("workflow %q node %q has unknown type %q", workflowID, nodeID, node.Type)
		}
	}
	return results, nil
}

// nodeInput merges a prior result for the node over the run input.
func nodeInput(input map[string]any, prior any) map[string]any {
	merged := make(map[string]any, len(input))
	for k, v := range input {
		merged[k] = v
	}
	if m, ok := prior.(map[string]any); ok {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}

// resolvePath walks a dot-path through nested objects. Missing segments
// resolve to nil.
func resolvePath(obj map[string]any, path string) any {
	if path == "" {
		return nil
	}
	var current any = obj
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[segment]
	}
	return current
}

// truthy mirrors the falsy rules conditions are written against: nil,
// false, zero numbers, empty strings, and empty collections are falsy.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int32:
		return x != 0
	case int64:
		return x != 0
	case float32:
		return x != 0
	case float64:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}

// contextSleep waits for the duration or the context, whichever ends first.
func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
