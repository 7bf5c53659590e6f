// Package store abstracts the keyed state the coordinator and the
// conversation manager operate on. The default implementation is in-memory
// with TTL eviction; a SQLite-backed implementation is available for
// deployments that want investigations to survive restarts.
package store

import (
	"context"

	"github.com/myrjola/doppel/internal/errors"
	"github.com/myrjola/doppel/internal/models"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.NewSentinel("record not found")

// InvestigationStore owns investigation records keyed by target id.
//
// Update is the only way to mutate a stored record. The mutation function
// runs under the store's lock so that read-modify-write sequences on the same
// id never interleave, regardless of how clients drive the API.
type InvestigationStore interface {
	Get(ctx context.Context, id string) (*models.Investigation, error)
	Put(ctx context.Context, investigation *models.Investigation) error
	Update(ctx context.Context, id string, mutate func(*models.Investigation) error) (*models.Investigation, error)
	Delete(ctx context.Context, id string) error
}

// SessionStore owns conversation sessions keyed by session id.
type SessionStore interface {
	Get(ctx context.Context, id string) (*models.ConversationSession, error)
	Put(ctx context.Context, session *models.ConversationSession) error
	Update(ctx context.Context, id string, mutate func(*models.ConversationSession) error) (*models.ConversationSession, error)
	Delete(ctx context.Context, id string) error
}
