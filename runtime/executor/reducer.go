package executor

import (
	"fmt"

	"goa.design/toolforge/runtime/tool"
)

// applyReducer folds an action's output into the state object per the
// reducer's declared type. The input state is not mutated; a shallow copy
// carries the change.
//
// Semantics: set replaces the target; merge shallow-merges the output
// (defaulting to an empty object) into the target (defaulting to an empty
// object); append concatenates the output (wrapped in a slice when scalar)
// onto the target (defaulting to an empty slice); remove filters the target
// slice, dropping entries whose id (or the entry itself, stringified)
// matches any id present in the output.
func applyReducer(state map[string]any, r tool.Reducer, output any) (map[string]any, error) {
	next := make(map[string]any, len(state)+1)
	for k, v := range state {
		next[k] = v
	}
	switch r.Type {
	case tool.ReduceSet:
		next[r.Target] = output
	case tool.ReduceMerge:
		target := asObject(next[r.Target])
		for k, v := range asObject(output) {
			target[k] = v
		}
		next[r.Target] = target
	case tool.ReduceAppend:
		next[r.Target] = append(asSlice(next[r.Target]), wrapSlice(output)...)
	case tool.ReduceRemove:
		ids := removalIDs(output)
		var kept []any
		for _, entry := range asSlice(next[r.Target]) {
			if !ids[entryID(entry)] {
				kept = append(kept, entry)
			}
		}
		next[r.Target] = kept
	default:
		return nil, fmt.Errorf("reducer %q has unknown type %q", r.ID, r.Type)
	}
	return next, nil
}

// asObject returns v as an object, defaulting to empty. A copy is returned
// so merges never mutate stored values.
func asObject(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		out[k] = val
	}
	return out
}

// asSlice returns v as a slice, defaulting to empty.
func asSlice(v any) []any {
	if v == nil {
		return nil
	}
	if s, ok := v.([]any); ok {
		out := make([]any, len(s))
		copy(out, s)
		return out
	}
	return nil
}

// wrapSlice wraps a scalar output in a single-element slice.
func wrapSlice(v any) []any {
	if v == nil {
		return nil
	}
	if s, ok := v.([]any); ok {
		return s
	}
	return []any{v}
}

// removalIDs collects the ids named by a remove reducer's output.
func removalIDs(output any) map[string]bool {
	ids := make(map[string]bool)
	for _, entry := range wrapSlice(output) {
		ids[entryID(entry)] = true
	}
	return ids
}

// entryID returns an entry's id field, or the entry itself stringified.
func entryID(entry any) string {
	if m, ok := entry.(map[string]any); ok {
		if id, ok := m["id"]; ok {
			return fmt.Sprintf("%v", id)
		}
	}
	return fmt.Sprintf("%v", entry)
}
