package guildkeep

import (
	"fmt"
	"strings"
	"time"
)

// RegistryKind identifies one supported registry record shape.
type RegistryKind string

const (
	// RegistryKindIndexed identifies registries with dense zero-based ids.
	RegistryKindIndexed RegistryKind = "indexed"
	// RegistryKindKeyed identifies registries addressed by a normalized key.
	RegistryKindKeyed RegistryKind = "keyed"
)

// Validate checks whether this registry kind is supported.
func (k RegistryKind) Validate() error {
	switch k {
	case RegistryKindIndexed, RegistryKindKeyed:
		return nil
	default:
		return fmt.Errorf("validate registry kind: unsupported kind %q", k)
	}
}

// IndexedRecord is one registry entry addressed by a dense zero-based id.
//
// Ids are exactly {0..N-1} after every completed mutation. Removal reindexes
// the remaining records by array position, so ids are not stable across
// removals.
type IndexedRecord struct {
	// ID is the dense zero-based identifier.
	ID int `json:"id"`
	// Token is the natural key: record identity besides the positional id.
	Token string `json:"token"`
	// Description is free-form payload text.
	Description string `json:"description"`
	// AddedBy records the display name of the caller who added this record.
	AddedBy string `json:"added_by"`
	// AddedAt records when this record was created.
	AddedAt time.Time `json:"added_at"`
}

// KeyedRecord is one registry entry addressed by a case-normalized key.
type KeyedRecord struct {
	// Key is the normalized unique key derived from Name.
	Key string `json:"-"`
	// Name is the display form of the key as entered by the caller.
	Name string `json:"name"`
	// Representatives lists representative display names for this entry.
	Representatives []string `json:"representatives"`
	// RegisteredBy records the display name of the registering caller.
	RegisteredBy string `json:"registered_by"`
	// RegisteredAt records when this record was created.
	RegisteredAt time.Time `json:"registered_at"`
}

// NormalizeKey maps a display name onto its case-insensitive unique key.
func NormalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IndexedSelector addresses one indexed record by explicit id or by token.
type IndexedSelector struct {
	// ByID selects id-based addressing when true, token matching otherwise.
	ByID bool
	// ID is the explicit record id consumed when ByID is true.
	ID int
	// Token is the natural-key match consumed when ByID is false.
	Token string
}

// SelectID builds an id-based indexed selector.
func SelectID(id int) IndexedSelector {
	return IndexedSelector{ByID: true, ID: id}
}

// SelectToken builds a token-based indexed selector.
func SelectToken(token string) IndexedSelector {
	return IndexedSelector{Token: token}
}

// Validate checks selector coherence.
func (s IndexedSelector) Validate() error {
	if s.ByID {
		if s.ID < 0 {
			return fmt.Errorf("validate indexed selector: negative id %d", s.ID)
		}
		return nil
	}
	if strings.TrimSpace(s.Token) == "" {
		return fmt.Errorf("validate indexed selector: missing token")
	}

	return nil
}

// String returns the selector in operator-readable form.
func (s IndexedSelector) String() string {
	if s.ByID {
		return fmt.Sprintf("id=%d", s.ID)
	}

	return "token=" + s.Token
}

// Ordering identifies one supported read-only list ordering.
type Ordering string

const (
	// OrderInsertion lists records in insertion/creation order.
	OrderInsertion Ordering = "insertion"
	// OrderAddedAt lists records by recorded creation timestamp ascending.
	OrderAddedAt Ordering = "added_at"
)

// Validate checks whether this ordering is supported.
func (o Ordering) Validate() error {
	switch o {
	case OrderInsertion, OrderAddedAt:
		return nil
	default:
		return fmt.Errorf("validate ordering: unsupported ordering %q", o)
	}
}
