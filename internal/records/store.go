package records

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("records: not found")

// Store abstracts the underlying record persistence (the CRM datastore).
//
// IMPORTANT:
// - All methods must enforce workspace filtering.
// - The dialing engine only needs this narrow surface; do not widen it into CRUD.
type Store interface {
	Get(ctx context.Context, workspaceID, recordID string) (Record, error)

	// Match returns the records of the given type that satisfy the filter.
	// A malformed filter must return ErrFilter without partial results.
	Match(ctx context.Context, workspaceID string, typ RecordType, f Filter) ([]Record, error)

	// SetDoNotCall flips the durable suppression flag on a record.
	SetDoNotCall(ctx context.Context, workspaceID, recordID string, dnc bool) error

	// SetStatus writes a status back to the record (disposition side effect).
	SetStatus(ctx context.Context, workspaceID, recordID, status string) error
}
