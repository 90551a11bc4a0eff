// Package readiness gates fetched data before rendering: the answer-contract
// quality gate checks rows against declared constraints, and the goal
// decision determines whether fetched state satisfies the user's request.
//
// The gate is lossless by contract: it never drops rows from the returned
// output. It computes how many rows would fail the constraint and reports
// that count as a violation per source action, so downstream consumers see
// all fetched data plus an explicit list of violations to act on.
package readiness

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"goa.design/toolforge/runtime/tool"
)

type (
	// ActionOutput is the fetched output of one read action: a list of rows.
	ActionOutput struct {
		ActionID string `json:"actionId"`
		Output   []any  `json:"output"`
	}

	// Violation reports how many of one action's rows would fail the
	// constraint. Rows are still present in the returned output.
	Violation struct {
		ActionID   string `json:"actionId"`
		Constraint string `json:"constraint"`
		Dropped    int    `json:"dropped"`
	}

	// GateResult pairs the unmodified outputs with the violations found.
	GateResult struct {
		Outputs    []ActionOutput `json:"outputs"`
		Violations []Violation    `json:"violations"`
	}

	// Gate checks fetched rows against answer contracts.
	Gate struct {
		clock func() time.Time
	}

	// GateOption configures a Gate.
	GateOption func(*Gate)
)

// WithClock sets the clock relative-time constraints are evaluated against.
// Defaults to time.Now.
func WithClock(clock func() time.Time) GateOption {
	return func(g *Gate) {
		g.clock = clock
	}
}

// NewGate constructs a gate.
func NewGate(opts ...GateOption) *Gate {
	g := &Gate{clock: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var (
	relativeWindowPattern = regexp.MustCompile(`(?i)last\s+(\d+)\s*(hour|day|week|month)s?`)
	newerThanPattern      = regexp.MustCompile(`(?i)newer_than:\s*(\d+)([hdwm])`)
)

// Validate checks outputs against the contract. A nil contract, or an entity
// type the gate does not understand, makes the gate a no-op. The returned
// outputs are always the inputs, row for row.
func (g *Gate) Validate(outputs []ActionOutput, contract *tool.AnswerContract) GateResult {
	result := GateResult{Outputs: outputs}
	if contract == nil || contract.Required == "" {
		return result
	}
	if !strings.EqualFold(strings.TrimSpace(contract.EntityType), "email") {
		return result
	}

	window, isTime := parseTimeWindow(contract.Required)
	now := g.clock()
	for _, out := range outputs {
		if contract.SourceActionID != "" && contract.SourceActionID != out.ActionID {
			continue
		}
		dropped := 0
		for _, row := range out.Output {
			email := normalizeEmailRow(row)
			if isTime {
				if !email.withinWindow(now, window) {
					dropped++
				}
				continue
			}
			if !email.matchesKeyword(contract.Required) {
				dropped++
			}
		}
		if dropped > 0 {
			result.Violations = append(result.Violations, Violation{
				ActionID:   out.ActionID,
				Constraint: contract.Required,
				Dropped:    dropped,
			})
		}
	}
	return result
}

// parseTimeWindow recognizes "last N hour|day|week|month" and the
// "newer_than:Nh|d|w|m" shorthand, returning the window duration.
func parseTimeWindow(constraint string) (time.Duration, bool) {
	if m := relativeWindowPattern.FindStringSubmatch(constraint); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return time.Duration(n) * unitDuration(m[2]), true
	}
	if m := newerThanPattern.FindStringSubmatch(constraint); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return time.Duration(n) * unitDuration(m[2]), true
	}
	return 0, false
}

func unitDuration(unit string) time.Duration {
	switch strings.ToLower(unit) {
	case "hour", "h":
		return time.Hour
	case "day", "d":
		return 24 * time.Hour
	case "week", "w":
		return 7 * 24 * time.Hour
	case "month", "m":
		return 30 * 24 * time.Hour
	}
	return time.Hour
}
