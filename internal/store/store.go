// Package store defines the media record model and the persistence port the
// search service and HTTP handlers depend on. Backends live in subpackages.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

// Repository is implemented by the mongo, mysql and memory backends.
type Repository interface {
	// Find returns one ordered window of records matching f.
	Find(ctx context.Context, f Filter, opts FindOptions) ([]Media, error)
	// Count returns the number of records matching f.
	Count(ctx context.Context, f Filter) (int, error)

	Get(ctx context.Context, id string, includeInactive bool) (*Media, error)
	Create(ctx context.Context, in MediaCreate) (*Media, error)
	Update(ctx context.Context, id string, upd MediaUpdate) (*Media, error)
	// SetActive toggles the soft-delete flag. Deactivating an inactive
	// record, or restoring an active one, returns ErrNotFound.
	SetActive(ctx context.Context, id string, active bool) (*Media, error)
	// ListTags returns distinct tags of active records, sorted.
	ListTags(ctx context.Context, prefix string, limit int) ([]string, error)
	Ping(ctx context.Context) error
}

func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id is a canonical UUID as produced by NewID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
