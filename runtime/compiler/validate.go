package compiler

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"goa.design/toolforge/runtime/tool"
)

// checkEntities verifies entities are non-empty and each carries a name,
// fields, and a source integration.
func checkEntities(spec *tool.Specification) []Issue {
	if len(spec.Entities) == 0 {
		return []Issue{issuef(CodeMissingEntities, "specification declares no entities")}
	}
	var issues []Issue
	for i, e := range spec.Entities {
		if e.Name == "" {
			issues = append(issues, issuef(CodeInvalidEntity, "entity %d has no name", i))
		}
		if len(e.Fields) == 0 {
			issues = append(issues, issuef(CodeInvalidEntity, "entity %q declares no fields", e.Name))
		}
		if e.SourceIntegration == "" {
			issues = append(issues, issuef(CodeInvalidEntity, "entity %q has no source integration", e.Name))
		}
	}
	return issues
}

// checkIntegrations verifies at least one integration is declared.
func checkIntegrations(spec *tool.Specification) []Issue {
	if len(spec.Integrations) == 0 {
		return []Issue{issuef(CodeMissingIntegrations, "specification declares no integrations")}
	}
	return nil
}

// checkDuplicateIDs finds duplicate action, workflow, trigger, and view ids.
func checkDuplicateIDs(spec *tool.Specification) []Issue {
	var issues []Issue
	report := func(kind string, ids []string) {
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				issues = append(issues, issuef(CodeDuplicateID, "duplicate %s id %q", kind, id))
			}
			seen[id] = true
		}
	}
	actionIDs := make([]string, len(spec.Actions))
	for i, a := range spec.Actions {
		actionIDs[i] = a.ID
	}
	workflowIDs := make([]string, len(spec.Workflows))
	for i, w := range spec.Workflows {
		workflowIDs[i] = w.ID
	}
	triggerIDs := make([]string, len(spec.Triggers))
	for i, t := range spec.Triggers {
		triggerIDs[i] = t.ID
	}
	viewIDs := make([]string, len(spec.Views))
	for i, v := range spec.Views {
		viewIDs[i] = v.ID
	}
	report("action", actionIDs)
	report("workflow", workflowIDs)
	report("trigger", triggerIDs)
	report("view", viewIDs)
	return issues
}

// checkActions verifies actions are non-empty and each binds to a declared
// integration, a capability granted on that integration, a known reducer, and
// well-formed schemas.
func checkActions(spec *tool.Specification) []Issue {
	if len(spec.Actions) == 0 {
		return []Issue{issuef(CodeMissingActions, "specification declares no actions")}
	}
	granted := make(map[string]map[string]bool, len(spec.Integrations))
	for _, in := range spec.Integrations {
		caps := make(map[string]bool, len(in.Capabilities))
		for _, c := range in.Capabilities {
			caps[c] = true
		}
		granted[in.ID] = caps
	}
	reducers := make(map[string]bool, len(spec.State.Reducers))
	for _, r := range spec.State.Reducers {
		reducers[r.ID] = true
	}

	var issues []Issue
	for _, a := range spec.Actions {
		if a.ID == "" {
			issues = append(issues, issuef(CodeInvalidType, "action with empty id"))
			continue
		}
		if !tool.ValidActionType(a.Type) {
			issues = append(issues, issuef(CodeInvalidType, "action %q has unknown type %q", a.ID, a.Type))
		}
		caps, ok := granted[a.IntegrationID]
		if !ok {
			issues = append(issues, issuef(CodeMissingReference, "action %q references undeclared integration %q", a.ID, a.IntegrationID))
		} else if !caps[a.CapabilityID] {
			issues = append(issues, issuef(CodeUnboundCapability, "action %q uses capability %q not granted on integration %q", a.ID, a.CapabilityID, a.IntegrationID))
		}
		if a.ReducerID != "" && !reducers[a.ReducerID] {
			issues = append(issues, issuef(CodeMissingReference, "action %q references undeclared reducer %q", a.ID, a.ReducerID))
		}
		if err := compileSchema(a.InputSchema); err != nil {
			issues = append(issues, issuef(CodeInvalidSchema, "action %q input schema: %s", a.ID, err))
		}
		if err := compileSchema(a.OutputSchema); err != nil {
			issues = append(issues, issuef(CodeInvalidSchema, "action %q output schema: %s", a.ID, err))
		}
	}
	return issues
}

// checkReducers verifies reducer ids are unique and types are declared.
func checkReducers(spec *tool.Specification) []Issue {
	var issues []Issue
	seen := make(map[string]bool, len(spec.State.Reducers))
	for _, r := range spec.State.Reducers {
		if seen[r.ID] {
			issues = append(issues, issuef(CodeDuplicateID, "duplicate reducer id %q", r.ID))
		}
		seen[r.ID] = true
		if !tool.ValidReducerType(r.Type) {
			issues = append(issues, issuef(CodeInvalidType, "reducer %q has unknown type %q", r.ID, r.Type))
		}
		if r.Target == "" {
			issues = append(issues, issuef(CodeInvalidType, "reducer %q has no target", r.ID))
		}
	}
	return issues
}

// checkWorkflows verifies node and edge references resolve and each graph is
// acyclic per Kahn's algorithm.
func checkWorkflows(spec *tool.Specification) []Issue {
	actions := actionSet(spec)
	var issues []Issue
	for _, wf := range spec.Workflows {
		nodeSeen := make(map[string]bool, len(wf.Nodes))
		for _, n := range wf.Nodes {
			if nodeSeen[n.ID] {
				issues = append(issues, issuef(CodeDuplicateID, "workflow %q declares duplicate node id %q", wf.ID, n.ID))
			}
			nodeSeen[n.ID] = true
			if !tool.ValidNodeType(n.Type) {
				issues = append(issues, issuef(CodeInvalidType, "workflow %q node %q has unknown type %q", wf.ID, n.ID, n.Type))
			}
			if n.Type == tool.NodeAction {
				if n.ActionID == "" {
					issues = append(issues, issuef(CodeMissingReference, "workflow %q action node %q declares no action id", wf.ID, n.ID))
				} else if !actions[n.ActionID] {
					issues = append(issues, issuef(CodeMissingReference, "workflow %q node %q references undeclared action %q", wf.ID, n.ID, n.ActionID))
				}
			}
		}
		if _, err := tool.TopoOrder(wf.Nodes, wf.Edges); err != nil {
			code := CodeMissingReference
			if err == tool.ErrCycle {
				code = CodeCycle
			}
			issues = append(issues, issuef(code, "workflow %q: %s", wf.ID, err))
		}
	}
	return issues
}

// checkTriggers verifies each trigger targets exactly one declared workflow
// or action.
func checkTriggers(spec *tool.Specification) []Issue {
	actions := actionSet(spec)
	workflows := make(map[string]bool, len(spec.Workflows))
	for _, wf := range spec.Workflows {
		workflows[wf.ID] = true
	}
	var issues []Issue
	for _, t := range spec.Triggers {
		switch {
		case t.WorkflowID == "" && t.ActionID == "":
			issues = append(issues, issuef(CodeMissingReference, "trigger %q targets neither a workflow nor an action", t.ID))
		case t.WorkflowID != "" && t.ActionID != "":
			issues = append(issues, issuef(CodeInvalidType, "trigger %q targets both a workflow and an action", t.ID))
		case t.WorkflowID != "" && !workflows[t.WorkflowID]:
			issues = append(issues, issuef(CodeMissingReference, "trigger %q references undeclared workflow %q", t.ID, t.WorkflowID))
		case t.ActionID != "" && !actions[t.ActionID]:
			issues = append(issues, issuef(CodeMissingReference, "trigger %q references undeclared action %q", t.ID, t.ActionID))
		}
	}
	return issues
}

// checkViews verifies views reference declared entities and actions.
func checkViews(spec *tool.Specification) []Issue {
	actions := actionSet(spec)
	entities := make(map[string]bool, len(spec.Entities))
	for _, e := range spec.Entities {
		entities[e.Name] = true
	}
	var issues []Issue
	for _, v := range spec.Views {
		if !entities[v.Entity] {
			issues = append(issues, issuef(CodeMissingReference, "view %q references undeclared entity %q", v.ID, v.Entity))
		}
		if v.ActionID != "" && !actions[v.ActionID] {
			issues = append(issues, issuef(CodeMissingReference, "view %q references undeclared action %q", v.ID, v.ActionID))
		}
	}
	return issues
}

func actionSet(spec *tool.Specification) map[string]bool {
	actions := make(map[string]bool, len(spec.Actions))
	for _, a := range spec.Actions {
		actions[a.ID] = true
	}
	return actions
}

// compileSchema checks that a declared JSON Schema document compiles. Empty
// schemas are allowed.
func compileSchema(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return err
	}
	_, err := c.Compile("schema.json")
	return err
}
