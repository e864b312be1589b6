// Package registry implements the keyed and indexed record registries and
// the mutation gate that serializes writes against them.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"guildkeep/pkg/guildkeep"
)

// DefaultIndexedCapacity bounds indexed registries unless overridden.
const DefaultIndexedCapacity = 100

// IndexedOption mutates indexed registry configuration.
type IndexedOption func(*Indexed)

// WithCapacity overrides the maximum record count.
func WithCapacity(capacity int) IndexedOption {
	return func(r *Indexed) {
		if capacity > 0 {
			r.capacity = capacity
		}
	}
}

// WithIndexedLogger injects a logger directly, bypassing service lookup.
func WithIndexedLogger(logger *slog.Logger) IndexedOption {
	return func(r *Indexed) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithIndexedClock overrides the timestamp source for added records.
func WithIndexedClock(clock func() time.Time) IndexedOption {
	return func(r *Indexed) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithSeed provides initial records used when the store holds no snapshot.
func WithSeed(records []guildkeep.IndexedRecord) IndexedOption {
	return func(r *Indexed) {
		r.seed = cloneIndexedRecords(records)
	}
}

// IndexedPatch describes a partial update to one indexed record.
//
// The natural key (token) is never patchable.
type IndexedPatch struct {
	// Description replaces the record description when non-nil.
	Description *string
}

// Indexed is a registry of records carrying dense zero-based ids.
//
// Reads are safe under concurrency and observe either the pre- or post-state
// of an in-flight mutation, never a partial one. Mutating calls must be
// serialized through a Gate; the registry itself only guarantees that the
// in-memory snapshot swap is atomic.
type Indexed struct {
	store    guildkeep.SnapshotStore
	capacity int
	clock    func() time.Time
	logger   *slog.Logger
	seed     []guildkeep.IndexedRecord

	mu      sync.RWMutex
	records []guildkeep.IndexedRecord
}

// NewIndexed creates an indexed registry backed by one snapshot store.
func NewIndexed(store guildkeep.SnapshotStore, options ...IndexedOption) (*Indexed, error) {
	if store == nil {
		return nil, fmt.Errorf("new indexed registry: nil store")
	}

	r := &Indexed{
		store:    store,
		capacity: DefaultIndexedCapacity,
		clock:    time.Now,
		logger:   slog.Default(),
	}
	for _, option := range options {
		option(r)
	}

	return r, nil
}

// Hydrate loads the persisted snapshot into memory.
//
// A missing snapshot hydrates the configured seed (or an empty registry)
// without touching the store. Ids are renumbered by array position so the
// density invariant holds regardless of what the document recorded.
func (r *Indexed) Hydrate(ctx context.Context) error {
	snapshot, found, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("hydrate indexed registry: %w", err)
	}

	var records []guildkeep.IndexedRecord
	if found {
		if err := json.Unmarshal(snapshot, &records); err != nil {
			return &guildkeep.StoreError{Op: "decode", Cause: err}
		}
	} else {
		records = cloneIndexedRecords(r.seed)
	}
	reindex(records)

	r.mu.Lock()
	r.records = records
	r.mu.Unlock()

	return nil
}

// Add appends one record with id = N.
//
// It fails with ErrDuplicate when the token already exists and with
// ErrCapacityExceeded when the registry is full. The record is visible only
// after durable persistence succeeds.
func (r *Indexed) Add(ctx context.Context, token, description, addedBy string) (guildkeep.IndexedRecord, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return guildkeep.IndexedRecord{}, fmt.Errorf("indexed add: missing token")
	}

	next := r.snapshotCopy()
	for _, existing := range next {
		if existing.Token == token {
			return guildkeep.IndexedRecord{}, fmt.Errorf("indexed add %s: %w", token, guildkeep.ErrDuplicate)
		}
	}
	if len(next) >= r.capacity {
		return guildkeep.IndexedRecord{}, fmt.Errorf(
			"indexed add %s: cap %d reached: %w",
			token,
			r.capacity,
			guildkeep.ErrCapacityExceeded,
		)
	}

	record := guildkeep.IndexedRecord{
		ID:          len(next),
		Token:       token,
		Description: description,
		AddedBy:     addedBy,
		AddedAt:     r.clock().UTC(),
	}
	next = append(next, record)

	if err := r.persist(ctx, next); err != nil {
		return guildkeep.IndexedRecord{}, fmt.Errorf("indexed add %s: %w", token, err)
	}
	r.swap(next)

	return record, nil
}

// Remove deletes the record matched by selector and reindexes the remainder.
//
// Reindexing reassigns ids by array position, so ids after the removed record
// change; callers must not assume id stability across removals.
func (r *Indexed) Remove(ctx context.Context, selector guildkeep.IndexedSelector) (guildkeep.IndexedRecord, error) {
	if err := selector.Validate(); err != nil {
		return guildkeep.IndexedRecord{}, fmt.Errorf("indexed remove: %w", err)
	}

	next := r.snapshotCopy()
	position := findIndexed(next, selector)
	if position < 0 {
		return guildkeep.IndexedRecord{}, fmt.Errorf("indexed remove %s: %w", selector, guildkeep.ErrNotFound)
	}

	removed := next[position]
	next = append(next[:position], next[position+1:]...)
	reindex(next)

	if err := r.persist(ctx, next); err != nil {
		return guildkeep.IndexedRecord{}, fmt.Errorf("indexed remove %s: %w", selector, err)
	}
	r.swap(next)

	return removed, nil
}

// Update patches the record matched by selector.
func (r *Indexed) Update(
	ctx context.Context,
	selector guildkeep.IndexedSelector,
	patch IndexedPatch,
) (guildkeep.IndexedRecord, error) {
	if err := selector.Validate(); err != nil {
		return guildkeep.IndexedRecord{}, fmt.Errorf("indexed update: %w", err)
	}

	next := r.snapshotCopy()
	position := findIndexed(next, selector)
	if position < 0 {
		return guildkeep.IndexedRecord{}, fmt.Errorf("indexed update %s: %w", selector, guildkeep.ErrNotFound)
	}

	if patch.Description != nil {
		next[position].Description = *patch.Description
	}
	updated := next[position]

	if err := r.persist(ctx, next); err != nil {
		return guildkeep.IndexedRecord{}, fmt.Errorf("indexed update %s: %w", selector, err)
	}
	r.swap(next)

	return updated, nil
}

// Get returns the record matched by selector.
func (r *Indexed) Get(selector guildkeep.IndexedSelector) (guildkeep.IndexedRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	position := findIndexed(r.records, selector)
	if position < 0 {
		return guildkeep.IndexedRecord{}, false
	}

	return r.records[position], true
}

// List returns every record in the requested ordering.
func (r *Indexed) List(ordering guildkeep.Ordering) ([]guildkeep.IndexedRecord, error) {
	if err := ordering.Validate(); err != nil {
		return nil, fmt.Errorf("indexed list: %w", err)
	}

	records := r.snapshotCopy()
	if ordering == guildkeep.OrderAddedAt {
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].AddedAt.Before(records[j].AddedAt)
		})
	}

	return records, nil
}

// Len returns the current record count.
func (r *Indexed) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.records)
}

func (r *Indexed) snapshotCopy() []guildkeep.IndexedRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return cloneIndexedRecords(r.records)
}

func (r *Indexed) swap(records []guildkeep.IndexedRecord) {
	r.mu.Lock()
	r.records = records
	r.mu.Unlock()
}

// persist writes the candidate state before it becomes visible in memory, so
// a failed save leaves both memory and disk at the pre-call state.
func (r *Indexed) persist(ctx context.Context, records []guildkeep.IndexedRecord) error {
	document, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return &guildkeep.StoreError{Op: "encode", Cause: err}
	}
	if err := r.store.Save(ctx, guildkeep.Snapshot(document)); err != nil {
		return fmt.Errorf("persist: %w", err)
	}

	return nil
}

func findIndexed(records []guildkeep.IndexedRecord, selector guildkeep.IndexedSelector) int {
	for position, record := range records {
		if selector.ByID {
			if record.ID == selector.ID {
				return position
			}
			continue
		}
		if record.Token == strings.TrimSpace(selector.Token) {
			return position
		}
	}

	return -1
}

func reindex(records []guildkeep.IndexedRecord) {
	for position := range records {
		records[position].ID = position
	}
}

func cloneIndexedRecords(records []guildkeep.IndexedRecord) []guildkeep.IndexedRecord {
	cloned := make([]guildkeep.IndexedRecord, len(records))
	copy(cloned, records)

	return cloned
}
