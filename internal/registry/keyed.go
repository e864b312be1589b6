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

// KeyedOption mutates keyed registry configuration.
type KeyedOption func(*Keyed)

// WithKeyedLogger injects a logger directly, bypassing service lookup.
func WithKeyedLogger(logger *slog.Logger) KeyedOption {
	return func(r *Keyed) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithKeyedClock overrides the timestamp source for registered records.
func WithKeyedClock(clock func() time.Time) KeyedOption {
	return func(r *Keyed) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// KeyedPatch describes a partial update to one keyed record.
//
// The natural key (name) is never patchable.
type KeyedPatch struct {
	// Representatives replaces the representative list when non-nil.
	Representatives *[]string
}

// Keyed is a registry of records addressed by a case-normalized unique key.
//
// The same concurrency contract as Indexed applies: reads are safe anytime,
// mutations must be serialized through a Gate.
type Keyed struct {
	store  guildkeep.SnapshotStore
	clock  func() time.Time
	logger *slog.Logger

	mu      sync.RWMutex
	records map[string]guildkeep.KeyedRecord
}

// NewKeyed creates a keyed registry backed by one snapshot store.
func NewKeyed(store guildkeep.SnapshotStore, options ...KeyedOption) (*Keyed, error) {
	if store == nil {
		return nil, fmt.Errorf("new keyed registry: nil store")
	}

	r := &Keyed{
		store:   store,
		clock:   time.Now,
		logger:  slog.Default(),
		records: make(map[string]guildkeep.KeyedRecord),
	}
	for _, option := range options {
		option(r)
	}

	return r, nil
}

// Hydrate loads the persisted snapshot into memory.
func (r *Keyed) Hydrate(ctx context.Context) error {
	snapshot, found, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("hydrate keyed registry: %w", err)
	}

	records := make(map[string]guildkeep.KeyedRecord)
	if found {
		if err := json.Unmarshal(snapshot, &records); err != nil {
			return &guildkeep.StoreError{Op: "decode", Cause: err}
		}
		for key, record := range records {
			record.Key = key
			records[key] = record
		}
	}

	r.mu.Lock()
	r.records = records
	r.mu.Unlock()

	return nil
}

// Add inserts one record under the normalized key of name.
//
// It fails with ErrDuplicate when the normalized key already exists. The
// record is visible only after durable persistence succeeds.
func (r *Keyed) Add(
	ctx context.Context,
	name string,
	representatives []string,
	registeredBy string,
) (guildkeep.KeyedRecord, error) {
	name = strings.TrimSpace(name)
	key := guildkeep.NormalizeKey(name)
	if key == "" {
		return guildkeep.KeyedRecord{}, fmt.Errorf("keyed add: missing name")
	}

	next := r.snapshotCopy()
	if _, exists := next[key]; exists {
		return guildkeep.KeyedRecord{}, fmt.Errorf("keyed add %s: %w", key, guildkeep.ErrDuplicate)
	}

	record := guildkeep.KeyedRecord{
		Key:             key,
		Name:            name,
		Representatives: cloneStrings(representatives),
		RegisteredBy:    registeredBy,
		RegisteredAt:    r.clock().UTC(),
	}
	next[key] = record

	if err := r.persist(ctx, next); err != nil {
		return guildkeep.KeyedRecord{}, fmt.Errorf("keyed add %s: %w", key, err)
	}
	r.swap(next)

	return record, nil
}

// Remove deletes the record addressed by name.
func (r *Keyed) Remove(ctx context.Context, name string) (guildkeep.KeyedRecord, error) {
	key := guildkeep.NormalizeKey(name)
	if key == "" {
		return guildkeep.KeyedRecord{}, fmt.Errorf("keyed remove: missing name")
	}

	next := r.snapshotCopy()
	removed, exists := next[key]
	if !exists {
		return guildkeep.KeyedRecord{}, fmt.Errorf("keyed remove %s: %w", key, guildkeep.ErrNotFound)
	}
	delete(next, key)

	if err := r.persist(ctx, next); err != nil {
		return guildkeep.KeyedRecord{}, fmt.Errorf("keyed remove %s: %w", key, err)
	}
	r.swap(next)

	return removed, nil
}

// Update patches the record addressed by name.
func (r *Keyed) Update(ctx context.Context, name string, patch KeyedPatch) (guildkeep.KeyedRecord, error) {
	key := guildkeep.NormalizeKey(name)
	if key == "" {
		return guildkeep.KeyedRecord{}, fmt.Errorf("keyed update: missing name")
	}

	next := r.snapshotCopy()
	record, exists := next[key]
	if !exists {
		return guildkeep.KeyedRecord{}, fmt.Errorf("keyed update %s: %w", key, guildkeep.ErrNotFound)
	}

	if patch.Representatives != nil {
		record.Representatives = cloneStrings(*patch.Representatives)
	}
	next[key] = record

	if err := r.persist(ctx, next); err != nil {
		return guildkeep.KeyedRecord{}, fmt.Errorf("keyed update %s: %w", key, err)
	}
	r.swap(next)

	return record, nil
}

// Get returns the record addressed by name.
func (r *Keyed) Get(name string) (guildkeep.KeyedRecord, bool) {
	key := guildkeep.NormalizeKey(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[key]
	if !exists {
		return guildkeep.KeyedRecord{}, false
	}
	record.Representatives = cloneStrings(record.Representatives)

	return record, true
}

// List returns every record ordered by registration time ascending, with the
// normalized key as a deterministic tiebreaker.
func (r *Keyed) List() []guildkeep.KeyedRecord {
	r.mu.RLock()
	records := make([]guildkeep.KeyedRecord, 0, len(r.records))
	for _, record := range r.records {
		record.Representatives = cloneStrings(record.Representatives)
		records = append(records, record)
	}
	r.mu.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].RegisteredAt.Equal(records[j].RegisteredAt) {
			return records[i].Key < records[j].Key
		}
		return records[i].RegisteredAt.Before(records[j].RegisteredAt)
	})

	return records
}

// Len returns the current record count.
func (r *Keyed) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.records)
}

func (r *Keyed) snapshotCopy() map[string]guildkeep.KeyedRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cloned := make(map[string]guildkeep.KeyedRecord, len(r.records))
	for key, record := range r.records {
		record.Representatives = cloneStrings(record.Representatives)
		cloned[key] = record
	}

	return cloned
}

func (r *Keyed) swap(records map[string]guildkeep.KeyedRecord) {
	r.mu.Lock()
	r.records = records
	r.mu.Unlock()
}

func (r *Keyed) persist(ctx context.Context, records map[string]guildkeep.KeyedRecord) error {
	document, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return &guildkeep.StoreError{Op: "encode", Cause: err}
	}
	if err := r.store.Save(ctx, guildkeep.Snapshot(document)); err != nil {
		return fmt.Errorf("persist: %w", err)
	}

	return nil
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}

	return append([]string(nil), values...)
}
