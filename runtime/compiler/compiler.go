// Package compiler validates tool specifications and compiles them into
// execution-ready artifacts.
//
// Validation is advisory: it walks every check and collects all findings so
// an operator can fix the spec in one pass. Compilation is strict: it re-runs
// structural binding and fails on the first violation. Both enforce the same
// invariants; only the failure policy differs.
package compiler

import (
	"context"
	"time"

	"goa.design/toolforge/runtime/telemetry"
	"goa.design/toolforge/runtime/tool"
)

type (
	// Compiler validates and compiles tool specifications.
	Compiler struct {
		logger telemetry.Logger
		clock  func() time.Time
	}

	// Options configures the compiler. All fields are optional.
	Options struct {
		// Logger receives compile diagnostics. Defaults to a noop logger.
		Logger telemetry.Logger
		// Clock supplies artifact timestamps. Defaults to time.Now.
		Clock func() time.Time
	}
)

// New constructs a compiler.
func New(opts Options) *Compiler {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Compiler{logger: logger, clock: clock}
}

// Validate runs every structural check in order and collects all findings.
// Check order: entities, integrations, reducers, actions, workflows,
// triggers, views.
func (c *Compiler) Validate(ctx context.Context, spec *tool.Specification) Report {
	var issues []Issue
	issues = append(issues, checkEntities(spec)...)
	issues = append(issues, checkIntegrations(spec)...)
	issues = append(issues, checkReducers(spec)...)
	issues = append(issues, checkDuplicateIDs(spec)...)
	issues = append(issues, checkActions(spec)...)
	issues = append(issues, checkWorkflows(spec)...)
	issues = append(issues, checkTriggers(spec)...)
	issues = append(issues, checkViews(spec)...)
	if len(issues) > 0 {
		c.logger.Debug(ctx, "specification invalid", "issues", len(issues))
	}
	return Report{Valid: len(issues) == 0, Errors: issues}
}

// Compile re-runs structural binding and returns the artifact for a valid
// spec. Duplicate-id checks run before any other check; the first violation
// aborts compilation with a *CompileError.
func (c *Compiler) Compile(ctx context.Context, spec *tool.Specification) (*tool.Artifact, error) {
	checks := [](func(*tool.Specification) []Issue){
		checkDuplicateIDs,
		checkEntities,
		checkIntegrations,
		checkReducers,
		checkActions,
		checkWorkflows,
		checkTriggers,
		checkViews,
	}
	for _, check := range checks {
		if issues := check(spec); len(issues) > 0 {
			c.logger.Warn(ctx, "compilation rejected",
				"code", issues[0].Code,
				"detail", issues[0].Message,
			)
			return nil, issues[0].asError()
		}
	}
	artifact, err := tool.NewArtifact(spec, c.clock())
	if err != nil {
		return nil, err
	}
	c.logger.Info(ctx, "specification compiled",
		"spec_hash", artifact.SpecHash,
		"actions", len(artifact.Actions),
		"workflows", len(artifact.Workflows),
	)
	return artifact, nil
}
