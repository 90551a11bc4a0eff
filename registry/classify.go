package registry

import (
	"strings"

	"goa.design/toolforge/runtime/tool"
)

// declaredTypes maps provider-declared operation types to action types. A
// declared type always wins over the verb heuristic.
var declaredTypes = map[string]tool.ActionType{
	"create": tool.ActionWrite,
	"update": tool.ActionMutate,
	"delete": tool.ActionMutate,
	"list":   tool.ActionRead,
	"get":    tool.ActionRead,
	"search": tool.ActionRead,
}

// verbHeuristics is the ordered substring fallback applied to capability
// names when the provider declares no operation type. The first matching
// verb wins, and names matching nothing classify as READ.
var verbHeuristics = []struct {
	verbs []string
	typ   tool.ActionType
}{
	{verbs: []string{"send", "post", "notify"}, typ: tool.ActionNotify},
	{verbs: []string{"create", "add"}, typ: tool.ActionWrite},
	{verbs: []string{"update", "edit", "modify", "delete", "remove"}, typ: tool.ActionMutate},
}

// Classify determines the action type for a discovered capability. The
// provider-declared type takes precedence; otherwise the capability name is
// matched against the verb table; anything else is READ.
func Classify(declaredType, name string) tool.ActionType {
	if t, ok := declaredTypes[strings.ToLower(strings.TrimSpace(declaredType))]; ok {
		return t
	}
	lower := strings.ToLower(name)
	for _, h := range verbHeuristics {
		for _, verb := range h.verbs {
			if strings.Contains(lower, verb) {
				return h.typ
			}
		}
	}
	return tool.ActionRead
}
