package guildkeep

import (
	"context"
	"errors"
	"strings"
)

// Snapshot is one serialized whole-registry document.
type Snapshot []byte

// SnapshotStore persists whole registry snapshots durably.
//
// Load never fails solely because no prior data exists; absence is reported
// through found=false with a nil error. Save must be atomic from the caller's
// perspective: a failed save leaves the previously persisted snapshot intact.
type SnapshotStore interface {
	// Load returns the last persisted snapshot.
	Load(ctx context.Context) (snapshot Snapshot, found bool, err error)
	// Save persists one snapshot, replacing any prior one.
	Save(ctx context.Context, snapshot Snapshot) error
}

// StoreError carries structured metadata for one persistence failure.
//
// Mutations are not committed until Save succeeds, so a StoreError always
// means the triggering mutation was not applied.
type StoreError struct {
	// Op identifies the failed store operation.
	Op string
	// Path identifies the backing location when known.
	Path string
	// Cause is the wrapped I/O or serialization error.
	Cause error
}

// Error returns one operator-readable failure summary.
func (e *StoreError) Error() string {
	if e == nil {
		return "<nil>"
	}

	fields := make([]string, 0, 2)
	if op := strings.TrimSpace(e.Op); op != "" {
		fields = append(fields, "op="+op)
	}
	if path := strings.TrimSpace(e.Path); path != "" {
		fields = append(fields, "path="+path)
	}

	summary := "store error"
	if len(fields) > 0 {
		summary += ": " + strings.Join(fields, " ")
	}
	if e.Cause != nil {
		summary += ": " + e.Cause.Error()
	}

	return summary
}

// Unwrap returns the wrapped root cause.
func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Cause
}

// AsStoreError extracts one StoreError from wrapped error chains.
func AsStoreError(err error) (*StoreError, bool) {
	if err == nil {
		return nil, false
	}

	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr, true
	}

	return nil, false
}
