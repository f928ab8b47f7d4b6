// Package probe models the outcome of an existence lookup. Managers
// branch on one explicit result instead of comparing error-code strings
// at every create-vs-reuse decision.
package probe

// Result is the outcome of an existence probe: either the resource was
// found with its provider identifier, or it is absent. Lookup failures
// travel separately as errors.
type Result struct {
	ID    string
	Found bool
}

func Found(id string) Result {
	return Result{ID: id, Found: true}
}

func Absent() Result {
	return Result{}
}
