// Package synth turns an operator's natural-language tool description into a
// draft tool specification. A model client renders the draft as JSON; the
// draft is schema-checked before it is handed to the compiler, and
// schema-invalid drafts surface a typed error carrying the validation detail
// so a revision turn can correct them.
package synth

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"goa.design/toolforge/runtime/telemetry"
	"goa.design/toolforge/runtime/tool"
)

//go:embed specification.schema.json
var specificationSchema []byte

// systemPrompt instructs the model to emit a bare specification document.
const systemPrompt = `You design internal tools. Given a description of the
tool an operator wants, respond with a single JSON object describing the tool
specification: its entities, integrations, actions, and optionally workflows,
triggers, views, state reducers, and memory namespaces. Respond with JSON
only, no surrounding prose and no code fences.`

type (
	// Client is the model seam provider adapters implement.
	Client interface {
		// Complete renders one completion for the system/user prompt pair.
		Complete(ctx context.Context, system, prompt string) (string, error)
	}

	// Request describes one synthesis turn.
	Request struct {
		// Description is the operator's natural-language description.
		// Required on the first turn.
		Description string
		// Previous carries the prior draft on revision turns.
		Previous *tool.Specification
		// Feedback is the operator's change request on revision turns.
		Feedback string
	}

	// Options configures the synthesizer.
	Options struct {
		// Client is the model client. Required.
		Client Client
		// Logger receives synthesis diagnostics. Defaults to a noop logger.
		Logger telemetry.Logger
	}

	// Synthesizer drafts tool specifications from natural language.
	Synthesizer struct {
		client Client
		logger telemetry.Logger
	}

	// InvalidDraftError reports a draft the model produced that does not
	// conform to the specification schema.
	InvalidDraftError struct {
		// Detail is the schema validation failure.
		Detail string
		// Raw is the model output, kept for the revision prompt.
		Raw string
	}
)

// Error implements error.
func (e *InvalidDraftError) Error() string {
	return "synthesized draft does not conform to the specification schema: " + e.Detail
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// New constructs a synthesizer.
func New(opts Options) (*Synthesizer, error) {
	if opts.Client == nil {
		return nil, errors.New("model client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Synthesizer{client: opts.Client, logger: logger}, nil
}

// Synthesize drafts a specification for the request. The returned spec has
// passed the schema check but not compilation; callers run it through the
// compiler next.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (*tool.Specification, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}
	raw, err := s.client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("complete specification draft: %w", err)
	}
	spec, err := DecodeDraft(raw)
	if err != nil {
		s.logger.Warn(ctx, "synthesized draft rejected", "error", err.Error())
		return nil, err
	}
	s.logger.Info(ctx, "specification drafted",
		"entities", len(spec.Entities),
		"actions", len(spec.Actions),
	)
	return spec, nil
}

// DecodeDraft parses and schema-checks a model-produced draft.
func DecodeDraft(raw string) (*tool.Specification, error) {
	cleaned := stripFences(raw)
	var doc any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, &InvalidDraftError{Detail: "not valid JSON: " + err.Error(), Raw: raw}
	}
	schema, err := draftSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, &InvalidDraftError{Detail: err.Error(), Raw: raw}
	}
	var spec tool.Specification
	if err := json.Unmarshal([]byte(cleaned), &spec); err != nil {
		return nil, &InvalidDraftError{Detail: "does not decode as a specification: " + err.Error(), Raw: raw}
	}
	return &spec, nil
}

// buildPrompt renders the user prompt for a first or revision turn.
func buildPrompt(req Request) (string, error) {
	if req.Previous == nil {
		if strings.TrimSpace(req.Description) == "" {
			return "", errors.New("description is required")
		}
		return "Design a tool specification for: " + req.Description, nil
	}
	prior, err := json.Marshal(req.Previous)
	if err != nil {
		return "", fmt.Errorf("encode prior specification: %w", err)
	}
	var b strings.Builder
	b.WriteString("Revise this tool specification:\n")
	b.Write(prior)
	b.WriteString("\n\nRequested change: ")
	b.WriteString(req.Feedback)
	return b.String(), nil
}

// stripFences removes a surrounding markdown code fence when the model adds
// one despite instructions.
func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// draftSchema compiles the embedded specification schema once per process.
func draftSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		var doc any
		if err := json.Unmarshal(specificationSchema, &doc); err != nil {
			schemaErr = fmt.Errorf("decode embedded specification schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("specification.schema.json", doc); err != nil {
			schemaErr = fmt.Errorf("add specification schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile("specification.schema.json")
	})
	return compiledSchema, schemaErr
}
