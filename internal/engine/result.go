package engine

// Result is the outcome of a cart mutation.
//
// Success with a non-empty Warning is a partial fulfillment: the request
// was applied in reduced form. Quantity is the affected line's quantity
// after the operation (0 when the line is gone).
type Result struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Warning  string `json:"warning,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
}

// Partial reports whether the request was only partly applied.
func (r Result) Partial() bool {
	return r.Success && r.Warning != ""
}

func succeed(quantity int) Result {
	return Result{Success: true, Quantity: quantity}
}

func fail(msg string) Result {
	return Result{Error: msg}
}
