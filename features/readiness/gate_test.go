package readiness

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"goa.design/toolforge/runtime/tool"
)

var gateNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedGate() *Gate {
	return NewGate(WithClock(func() time.Time { return gateNow }))
}

func emailAt(subject string, at time.Time) map[string]any {
	return map[string]any{
		"from":    "a@example.com",
		"subject": subject,
		"date":    at.Format(time.RFC3339),
	}
}

func TestGateLastHoursWindow(t *testing.T) {
	t.Parallel()
	outputs := []ActionOutput{{
		ActionID: "fetch",
		Output: []any{
			emailAt("recent", gateNow.Add(-time.Hour)),
			emailAt("old", gateNow.Add(-48*time.Hour)),
		},
	}}
	contract := &tool.AnswerContract{EntityType: "email", Required: "last 24 hours"}

	result := fixedGate().Validate(outputs, contract)
	require.Equal(t, outputs, result.Outputs, "gate must not modify outputs")
	require.Len(t, result.Violations, 1)
	require.Equal(t, "fetch", result.Violations[0].ActionID)
	require.Equal(t, 1, result.Violations[0].Dropped)
}

func TestGateNewerThanShorthand(t *testing.T) {
	t.Parallel()
	outputs := []ActionOutput{{
		ActionID: "fetch",
		Output: []any{
			emailAt("recent", gateNow.Add(-time.Hour)),
			emailAt("old", gateNow.Add(-48*time.Hour)),
		},
	}}
	contract := &tool.AnswerContract{EntityType: "email", Required: "newer_than:1d"}

	result := fixedGate().Validate(outputs, contract)
	require.Len(t, result.Violations, 1)
	require.Equal(t, 1, result.Violations[0].Dropped)
}

func TestGateKeywordConstraint(t *testing.T) {
	t.Parallel()
	outputs := []ActionOutput{{
		ActionID: "fetch",
		Output: []any{
			emailAt("Meeting notes", gateNow),
			emailAt("Invoice", gateNow),
		},
	}}
	contract := &tool.AnswerContract{EntityType: "email", Required: "Meeting"}

	result := fixedGate().Validate(outputs, contract)
	require.Len(t, result.Violations, 1)
	require.Equal(t, 1, result.Violations[0].Dropped)
}

func TestGateKeywordMatchesSnippetAndBody(t *testing.T) {
	t.Parallel()
	outputs := []ActionOutput{{
		ActionID: "fetch",
		Output: []any{
			map[string]any{"subject": "hi", "snippet": "quarterly budget attached"},
			map[string]any{"subject": "hi", "body": "the BUDGET numbers"},
			map[string]any{"subject": "hi"},
		},
	}}
	contract := &tool.AnswerContract{EntityType: "email", Required: "budget"}

	result := fixedGate().Validate(outputs, contract)
	require.Len(t, result.Violations, 1)
	require.Equal(t, 1, result.Violations[0].Dropped)
}

func TestGateMissingDateCountsDropped(t *testing.T) {
	t.Parallel()
	outputs := []ActionOutput{{
		ActionID: "fetch",
		Output:   []any{map[string]any{"subject": "undated"}},
	}}
	contract := &tool.AnswerContract{EntityType: "email", Required: "last 24 hours"}

	result := fixedGate().Validate(outputs, contract)
	require.Len(t, result.Violations, 1)
	require.Equal(t, 1, result.Violations[0].Dropped)
}

func TestGateRawProviderPayload(t *testing.T) {
	t.Parallel()
	raw := map[string]any{
		"snippet":      "see you tomorrow",
		"internalDate": fmt.Sprintf("%d", gateNow.Add(-time.Hour).UnixMilli()),
		"payload": map[string]any{
			"headers": []any{
				map[string]any{"name": "From", "value": "b@example.com"},
				map[string]any{"name": "Subject", "value": "Meeting tomorrow"},
			},
		},
	}
	outputs := []ActionOutput{{ActionID: "fetch", Output: []any{raw}}}

	result := fixedGate().Validate(outputs, &tool.AnswerContract{EntityType: "email", Required: "last 24 hours"})
	require.Empty(t, result.Violations)

	result = fixedGate().Validate(outputs, &tool.AnswerContract{EntityType: "email", Required: "meeting"})
	require.Empty(t, result.Violations)
}

func TestGateScopedToSourceAction(t *testing.T) {
	t.Parallel()
	outputs := []ActionOutput{
		{ActionID: "fetch", Output: []any{emailAt("old", gateNow.Add(-48 * time.Hour))}},
		{ActionID: "other", Output: []any{emailAt("old too", gateNow.Add(-48 * time.Hour))}},
	}
	contract := &tool.AnswerContract{EntityType: "email", SourceActionID: "fetch", Required: "last 24 hours"}

	result := fixedGate().Validate(outputs, contract)
	require.Len(t, result.Violations, 1)
	require.Equal(t, "fetch", result.Violations[0].ActionID)
}

func TestGateNoOpCases(t *testing.T) {
	t.Parallel()
	outputs := []ActionOutput{{ActionID: "fetch", Output: []any{emailAt("old", gateNow.Add(-999 * time.Hour))}}}

	cases := []struct {
		name     string
		contract *tool.AnswerContract
	}{
		{name: "nil contract", contract: nil},
		{name: "empty required", contract: &tool.AnswerContract{EntityType: "email"}},
		{name: "unknown entity", contract: &tool.AnswerContract{EntityType: "invoice", Required: "last 24 hours"}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := fixedGate().Validate(outputs, tt.contract)
			require.Equal(t, outputs, result.Outputs)
			require.Empty(t, result.Violations)
		})
	}
}

func TestGateLossless(t *testing.T) {
	t.Parallel()
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties := gopter.NewProperties(params)

	// Whatever the row mix, the gate returns every row and reports a dropped
	// count bounded by the row count.
	properties.Property("all rows preserved, dropped bounded", prop.ForAll(
		func(offsetsHours []int, constraint string) bool {
			rows := make([]any, len(offsetsHours))
			for i, off := range offsetsHours {
				rows[i] = emailAt("row", gateNow.Add(-time.Duration(off)*time.Hour))
			}
			outputs := []ActionOutput{{ActionID: "fetch", Output: rows}}
			result := fixedGate().Validate(outputs, &tool.AnswerContract{EntityType: "email", Required: constraint})

			if len(result.Outputs) != 1 || len(result.Outputs[0].Output) != len(rows) {
				return false
			}
			total := 0
			for _, v := range result.Violations {
				if v.Dropped <= 0 {
					return false
				}
				total += v.Dropped
			}
			return total <= len(rows)
		},
		gen.SliceOf(gen.IntRange(0, 1000)),
		gen.OneConstOf("last 24 hours", "last 2 weeks", "newer_than:3d", "row", "unmatched keyword"),
	))

	properties.TestingRun(t)
}

func TestParseTimeWindow(t *testing.T) {
	t.Parallel()
	cases := []struct {
		constraint string
		want       time.Duration
		ok         bool
	}{
		{constraint: "last 24 hours", want: 24 * time.Hour, ok: true},
		{constraint: "last 1 hour", want: time.Hour, ok: true},
		{constraint: "Last 7 Days", want: 7 * 24 * time.Hour, ok: true},
		{constraint: "last 2 weeks", want: 14 * 24 * time.Hour, ok: true},
		{constraint: "last 1 month", want: 30 * 24 * time.Hour, ok: true},
		{constraint: "newer_than:6h", want: 6 * time.Hour, ok: true},
		{constraint: "newer_than: 2d", want: 48 * time.Hour, ok: true},
		{constraint: "newer_than:1w", want: 7 * 24 * time.Hour, ok: true},
		{constraint: "newer_than:1m", want: 30 * 24 * time.Hour, ok: true},
		{constraint: "urgent", ok: false},
		{constraint: "", ok: false},
	}
	for _, tt := range cases {
		t.Run(tt.constraint, func(t *testing.T) {
			t.Parallel()
			got, ok := parseTimeWindow(tt.constraint)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				require.Equal(t, tt.want, got)
			}
		})
	}
}
