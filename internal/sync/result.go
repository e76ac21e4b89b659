package sync

import "fmt"

// Result accumulates the outcome of one bulk operation. Bulk loops are
// not transactional: each item succeeds or fails on its own, and partial
// success is the normal outcome.
type Result struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
	Source  string   `json:"source,omitempty"`
}

// Skip records an item that was deliberately not processed, with reason.
func (r *Result) Skip(format string, args ...interface{}) {
	r.Skipped++
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Fail records an item that errored without stopping the loop.
func (r *Result) Fail(item string, err error) {
	r.Errors = append(r.Errors, item+": "+err.Error())
}

// Ok reports whether at least one item succeeded. The billing layer uses
// it to decide between "partial success" and hard failure.
func (r *Result) Ok() bool {
	return r.Created+r.Updated > 0 || len(r.Errors) == 0
}
