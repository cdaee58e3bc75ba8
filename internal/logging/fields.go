package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldPath is the standardized key for the catalogue path a record concerns.
	FieldPath = "path"
	// FieldError carries the underlying error text.
	FieldError = "error"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to do next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldRunID correlates every record of one match or export run.
	FieldRunID = "run_id"
)
