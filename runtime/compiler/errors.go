package compiler

import "fmt"

// Compile error codes. Structural errors are always fatal, always
// user-correctable, and never retried.
const (
	CodeDuplicateID         = "duplicate_id"
	CodeMissingEntities     = "missing_entities"
	CodeInvalidEntity       = "invalid_entity"
	CodeMissingIntegrations = "missing_integrations"
	CodeMissingActions      = "missing_actions"
	CodeMissingReference    = "missing_reference"
	CodeUnboundCapability   = "unbound_capability"
	CodeInvalidType         = "invalid_type"
	CodeInvalidSchema       = "invalid_schema"
	CodeCycle               = "cycle"
)

type (
	// Issue is one user-correctable validation finding.
	Issue struct {
		// Code classifies the finding using the Code* constants.
		Code string `json:"code"`
		// Message is the actionable, user-facing description.
		Message string `json:"message"`
	}

	// Report is the advisory validation result: all findings, not just the
	// first, so an operator can correct the spec in one pass.
	Report struct {
		Valid  bool    `json:"valid"`
		Errors []Issue `json:"errors"`
	}

	// CompileError is the strict compilation failure: the first structural
	// violation encountered.
	CompileError struct {
		Issue Issue
	}
)

// Error implements error.
func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s: %s", e.Issue.Code, e.Issue.Message)
}

// asError wraps the issue as a *CompileError.
func (i Issue) asError() *CompileError {
	return &CompileError{Issue: i}
}

func issuef(code, format string, args ...any) Issue {
	return Issue{Code: code, Message: fmt.Sprintf(format, args...)}
}
