package readiness

type (
	// SatisfactionLevel grades how completely fetched state answers the
	// user's request.
	SatisfactionLevel string

	// GoalPlan is an optional structured plan resolved from the user's
	// prompt. It may be missing or empty; its absence never blocks rendering
	// when data exists.
	GoalPlan struct {
		SuccessCriteria []string `json:"successCriteria,omitempty"`
	}

	// GoalInput is the input to EvaluateGoalSatisfaction.
	GoalInput struct {
		Prompt  string
		HasData bool
		// GoalPlan and IntentContract are both optional.
		GoalPlan       *GoalPlan
		IntentContract *IntentContract
	}

	// IntentContract captures the success criteria distilled from the
	// prompt, when an intent parse produced one.
	IntentContract struct {
		Satisfied bool     `json:"satisfied"`
		Criteria  []string `json:"criteria,omitempty"`
	}

	// Satisfaction is the goal evaluation verdict.
	Satisfaction struct {
		Satisfied bool              `json:"satisfied"`
		Level     SatisfactionLevel `json:"level"`
	}

	// DecisionKind selects the output path.
	DecisionKind string

	// FetchResult summarizes the read-seeding pass for the render decision.
	FetchResult struct {
		HasData      bool
		Satisfaction Satisfaction
		Violations   []Violation
	}

	// RenderInput is the input to DecideRendering.
	RenderInput struct {
		Prompt string
		Result FetchResult
	}

	// RenderDecision routes output to rendering or clarification. Partial
	// marks a render that should surface caveats (contract violations or a
	// partially satisfied goal) alongside the data.
	RenderDecision struct {
		Kind    DecisionKind `json:"kind"`
		Partial bool         `json:"partial,omitempty"`
	}
)

// Satisfaction levels.
const (
	LevelFull    SatisfactionLevel = "full"
	LevelPartial SatisfactionLevel = "partial"
	LevelNone    SatisfactionLevel = "none"
)

// Decision kinds.
const (
	DecisionRender  DecisionKind = "render"
	DecisionClarify DecisionKind = "clarify"
)

// EvaluateGoalSatisfaction applies the "data wins" invariant: when fetched
// data exists the goal is satisfied regardless of whether a structured plan
// or success-criteria list could be resolved. Retrievable records for a
// read-type request are sufficient to render. Without data, an explicit
// contract verdict is honored; otherwise the goal is unsatisfied.
func EvaluateGoalSatisfaction(in GoalInput) Satisfaction {
	if in.HasData {
		return Satisfaction{Satisfied: true, Level: LevelFull}
	}
	if in.IntentContract != nil && in.IntentContract.Satisfied {
		// The intent was satisfied without data (e.g. a pure notify request).
		return Satisfaction{Satisfied: true, Level: LevelPartial}
	}
	return Satisfaction{Satisfied: false, Level: LevelNone}
}

// DecideRendering gates output: data renders, absence of data or an
// explicitly unsatisfied goal asks for clarification instead of hiding
// results. Contract violations mark the render partial; they never suppress
// it.
func DecideRendering(in RenderInput) RenderDecision {
	if !in.Result.HasData && !in.Result.Satisfaction.Satisfied {
		return RenderDecision{Kind: DecisionClarify}
	}
	partial := len(in.Result.Violations) > 0 || in.Result.Satisfaction.Level == LevelPartial
	return RenderDecision{Kind: DecisionRender, Partial: partial}
}
