package ledger

import "fmt"

// ValidationError rejects malformed input before anything is persisted.
// No block number is consumed by a rejected append.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a store failure during an append. The writer's
// head does not advance, so the same block number is reused on retry.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting entry: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IntegrityError reports a chain inconsistency encountered by an
// operation that cannot proceed past it, such as head recovery over a
// store whose tip fails recomputation.
type IntegrityError struct {
	Block  int64
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation at block %d: %s", e.Block, e.Reason)
}

// QueryError rejects a malformed search filter, such as a time window
// whose start is after its end.
type QueryError struct {
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

// ExportError aborts an export that could not read the ledger. Per-entry
// formatting problems are not errors; they surface as warnings and the
// export completes without the offending fields.
type ExportError struct {
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export failed: %v", e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
