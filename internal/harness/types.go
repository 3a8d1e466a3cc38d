package harness

// TraceEvent records one executed step and the cart right after it.
type TraceEvent struct {
	Step       int    `json:"step"`
	Op         string `json:"op"`
	Item       string `json:"item,omitempty"`
	Requested  int    `json:"requested,omitempty"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	Warning    string `json:"warning,omitempty"`
	Quantity   int    `json:"quantity,omitempty"`
	TotalItems int    `json:"total_items"`
	Lines      int    `json:"lines"`
	SessionID  string `json:"session_id,omitempty"`
}

// FinalState summarizes the cart after the last step.
type FinalState struct {
	Absent     bool           `json:"absent"`
	SessionID  string         `json:"session_id,omitempty"`
	TotalItems int            `json:"total_items"`
	Lines      map[string]int `json:"lines"`
	HistoryLen int            `json:"history_len"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and the final clause match.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the cart after the last step.
	Final FinalState `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Final:  FinalState{Lines: map[string]int{}},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
