package model

// Sort directions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// SortDirective names the field and direction of the single active sort.
type SortDirective struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// LoadParams is the complete, comparable input to one query: current filter
// values keyed by filter id, a 1-based page, the page size, and an optional
// sort directive.
type LoadParams struct {
	Filters  map[string]any `json:"filters,omitempty"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	Sort     *SortDirective `json:"sort,omitempty"`
}

// RangeValue is the value shape of a date-range filter.
type RangeValue struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// QueryResult is one page of rows plus the size of the full filtered set.
type QueryResult struct {
	Rows  []map[string]any `json:"rows"`
	Total int              `json:"total"`
}

// ExecutionContext carries the runtime inputs of a single action invocation.
// It is assembled per invocation and never persisted.
type ExecutionContext struct {
	Row        map[string]any   `json:"row,omitempty"`
	RowID      string           `json:"rowId,omitempty"`
	Rows       []map[string]any `json:"rows,omitempty"`
	RowIDs     []string         `json:"rowIds,omitempty"`
	Filters    map[string]any   `json:"filters,omitempty"`
	FormValues map[string]any   `json:"formValues,omitempty"`
}

// ActionResult is the outcome of a completed action execution.
type ActionResult struct {
	// Executed is false when a confirmation gate declined the action; in
	// that case nothing else is set and no side effect happened.
	Executed bool `json:"executed"`

	// Message is the configured success message, when one is declared.
	Message string `json:"message,omitempty"`

	// Payload is the parsed JSON response of an api action, when present.
	Payload any `json:"payload,omitempty"`

	// URL and Target are set for link actions instead of a network call.
	URL    string `json:"url,omitempty"`
	Target string `json:"target,omitempty"`
}
