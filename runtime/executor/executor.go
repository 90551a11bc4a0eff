package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"goa.design/toolforge/features/auth"
	"goa.design/toolforge/features/events"
	"goa.design/toolforge/features/memory"
	"goa.design/toolforge/features/state"
	"goa.design/toolforge/runtime/telemetry"
	"goa.design/toolforge/runtime/tool"
)

const (
	defaultToolNamespace = "tool"
	defaultUserNamespace = "user"
)

type (
	// Options configures an executor for one tool instance.
	Options struct {
		// Artifact is the compiled artifact actions resolve from. Required.
		Artifact *tool.Artifact
		// ToolID and OrgID identify the tool instance. Required.
		ToolID string
		OrgID  string
		// UserID scopes the user memory namespace. Optional.
		UserID string
		// Adapters maps integration ids to runtime adapters. Required.
		Adapters map[string]Adapter
		// Tokens resolves auth contexts. Required.
		Tokens auth.TokenSource
		// State persists the reducer-applied state object. Required.
		State state.Store
		// Memory receives best-effort output copies. Optional.
		Memory *memory.Store
		// Events receives declared action events. Defaults to a noop
		// publisher.
		Events events.Publisher
		// Tracer receives one record per integration call. Defaults to noop.
		Tracer telemetry.CallTracer
		// Logger receives execution diagnostics. Defaults to a noop logger.
		Logger telemetry.Logger
		// Limiter paces the sequential read-seeding pass to respect
		// third-party rate limits. Defaults to unlimited.
		Limiter *rate.Limiter
	}

	// Executor executes compiled actions for one tool instance.
	Executor struct {
		artifact *tool.Artifact
		toolID   string
		orgID    string
		userID   string
		adapters map[string]Adapter
		tokens   auth.TokenSource
		state    state.Store
		memory   *memory.Store
		events   events.Publisher
		tracer   telemetry.CallTracer
		logger   telemetry.Logger
		limiter  *rate.Limiter
	}

	// SeedOutput is one successful read from the seeding pass.
	SeedOutput struct {
		ActionID string
		Output   any
	}

	// SeedFailure records one read action that failed during seeding.
	SeedFailure struct {
		ActionID string
		Err      error
	}

	// SeedResult is the outcome of the sequential read-seeding pass.
	// Partial failure is expected and non-fatal: failures ride alongside
	// the outputs that did settle.
	SeedResult struct {
		Outputs  []SeedOutput
		Failures []SeedFailure
	}
)

// New constructs an executor.
func New(opts Options) (*Executor, error) {
	if opts.Artifact == nil {
		return nil, errors.New("artifact is required")
	}
	if opts.ToolID == "" {
		return nil, errors.New("tool id is required")
	}
	if opts.OrgID == "" {
		return nil, errors.New("org id is required")
	}
	if len(opts.Adapters) == 0 {
		return nil, errors.New("at least one adapter is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("token source is required")
	}
	if opts.State == nil {
		return nil, errors.New("state store is required")
	}
	pub := opts.Events
	if pub == nil {
		pub = events.NewNoopPublisher()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopCallTracer()
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Executor{
		artifact: opts.Artifact,
		toolID:   opts.ToolID,
		orgID:    opts.OrgID,
		userID:   opts.UserID,
		adapters: opts.Adapters,
		tokens:   opts.Tokens,
		state:    opts.State,
		memory:   opts.Memory,
		events:   pub,
		tracer:   tracer,
		logger:   logger,
		limiter:  limiter,
	}, nil
}

// Execute runs one action: adapter dispatch, auth resolution, permission
// check, capability invocation, reducer application, state persistence,
// best-effort memory writes, and event emission.
func (e *Executor) Execute(ctx context.Context, actionID string, input map[string]any) (*tool.ExecutionResult, error) {
	action, ok := e.artifact.ActionByID(actionID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, actionID)
	}
	adapter, ok := e.adapters[action.IntegrationID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAdapter, action.IntegrationID)
	}

	token, err := e.tokens.AccessToken(ctx, e.orgID, action.IntegrationID)
	if err != nil {
		return nil, fmt.Errorf("resolve token for integration %q: %w", action.IntegrationID, err)
	}
	authCtx, err := adapter.ResolveContext(ctx, e.orgID, token)
	if err != nil {
		return nil, fmt.Errorf("resolve auth context for integration %q: %w", action.IntegrationID, err)
	}

	if checker, ok := adapter.(PermissionChecker); ok {
		if err := checker.CheckPermissions(ctx, authCtx, action.CapabilityID); err != nil {
			return nil, &PermissionError{
				IntegrationID: action.IntegrationID,
				CapabilityID:  action.CapabilityID,
				Reason:        err,
			}
		}
	}

	capability, ok := adapter.Capability(action.CapabilityID)
	if !ok {
		return nil, fmt.Errorf("%w: %q on integration %q", ErrUnknownCapability, action.CapabilityID, action.IntegrationID)
	}

	params := mergeParams(action.Params, input)
	output, err := e.invoke(ctx, action, capability, params, authCtx)
	if err != nil {
		return nil, err
	}

	newState, err := e.reduce(ctx, action, output)
	if err != nil {
		return nil, err
	}

	e.writeMemory(ctx, action, output)

	evs := e.emit(ctx, action, output)

	return &tool.ExecutionResult{State: newState, Output: output, Events: evs}, nil
}

// SeedReads executes the artifact's READ actions one at a time, pacing each
// through the rate limiter. A failing action is caught and recorded, and the
// pass continues with the next action.
func (e *Executor) SeedReads(ctx context.Context) (SeedResult, error) {
	var result SeedResult
	for _, action := range e.artifact.ReadActions() {
		if err := e.limiter.Wait(ctx); err != nil {
			return result, err
		}
		res, err := e.Execute(ctx, action.ID, nil)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			e.logger.Warn(ctx, "seed read failed",
				"tool_id", e.toolID,
				"action_id", action.ID,
				"error", err.Error(),
			)
			result.Failures = append(result.Failures, SeedFailure{ActionID: action.ID, Err: err})
			continue
		}
		result.Outputs = append(result.Outputs, SeedOutput{ActionID: action.ID, Output: res.Output})
	}
	return result, nil
}

// invoke calls the capability, recording exactly one call trace.
func (e *Executor) invoke(ctx context.Context, action tool.Action, capability Capability, params map[string]any, authCtx auth.Context) (any, error) {
	start := time.Now()
	output, err := capability.Execute(ctx, params, authCtx, e.tracer)
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.tracer.Record(ctx, telemetry.CallRecord{
		IntegrationID: action.IntegrationID,
		CapabilityID:  action.CapabilityID,
		Params:        params,
		Status:        status,
		Latency:       time.Since(start),
	})
	if err != nil {
		return nil, fmt.Errorf("execute capability %q on integration %q: %w", action.CapabilityID, action.IntegrationID, err)
	}
	return output, nil
}

// reduce applies the action's declared reducer to persisted state and saves
// the result. No reducer id is a passthrough; state-store failures are fatal.
func (e *Executor) reduce(ctx context.Context, action tool.Action, output any) (map[string]any, error) {
	current, err := e.state.Load(ctx, e.toolID, e.orgID)
	if err != nil {
		return nil, fmt.Errorf("load state for tool %q: %w", e.toolID, err)
	}
	if action.ReducerID == "" {
		return current, nil
	}
	reducer, ok := e.artifact.ReducerByID(action.ReducerID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReducer, action.ReducerID)
	}
	next, err := applyReducer(current, reducer, output)
	if err != nil {
		return nil, err
	}
	if err := e.state.Save(ctx, e.toolID, e.orgID, next); err != nil {
		return nil, fmt.Errorf("save state for tool %q: %w", e.toolID, err)
	}
	return next, nil
}

// writeMemory copies the output into the tool- and user-scoped namespaces.
// Best-effort: the memory store logs and swallows persistence failures, so
// a memory outage never fails an otherwise-successful action. A scope
// rejection means the executor's own ids are wrong and is logged as an
// error.
func (e *Executor) writeMemory(ctx context.Context, action tool.Action, output any) {
	if e.memory == nil {
		return
	}
	err := e.memory.Save(ctx, memory.Ref{
		Scope:     memory.Scope{Kind: memory.ScopeTool, ToolID: e.toolID},
		Namespace: e.namespace(string(memory.ScopeTool), defaultToolNamespace),
		Key:       action.ID,
	}, output)
	if err != nil {
		e.logger.Error(ctx, "memory write misaddressed", "action_id", action.ID, "error", err.Error())
	}
	if e.userID != "" {
		err := e.memory.Save(ctx, memory.Ref{
			Scope:     memory.Scope{Kind: memory.ScopeToolUser, ToolID: e.toolID, UserID: e.userID},
			Namespace: e.namespace(string(memory.ScopeToolUser), defaultUserNamespace),
			Key:       action.ID,
		}, output)
		if err != nil {
			e.logger.Error(ctx, "memory write misaddressed", "action_id", action.ID, "error", err.Error())
		}
	}
}

// emit builds the action's declared events and hands them to the publisher.
// Publish failures are logged and swallowed: events are auxiliary output.
func (e *Executor) emit(ctx context.Context, action tool.Action, output any) []tool.Event {
	if len(action.Emits) == 0 {
		return nil
	}
	evs := make([]tool.Event, len(action.Emits))
	for i, typ := range action.Emits {
		evs[i] = tool.Event{Type: typ, ActionID: action.ID, Output: output}
	}
	if err := e.events.Publish(ctx, e.toolID, evs); err != nil {
		e.logger.Warn(ctx, "event publish failed",
			"tool_id", e.toolID,
			"action_id", action.ID,
			"error", err.Error(),
		)
	}
	return evs
}

// namespace resolves the configured namespace for a scope kind.
func (e *Executor) namespace(scope, fallback string) string {
	for _, ns := range e.artifact.Memory.Namespaces {
		if ns.Scope == scope {
			return ns.Namespace
		}
	}
	return fallback
}

// mergeParams lays caller input over the action's static params.
func mergeParams(static map[string]any, input map[string]any) map[string]any {
	merged := make(map[string]any, len(static)+len(input))
	for k, v := range static {
		merged[k] = v
	}
	for k, v := range input {
		merged[k] = v
	}
	return merged
}
