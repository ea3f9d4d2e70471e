package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/portal/internal/session/domain"
)

var (
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned by the compare-and-swap operations when the
	// stored refresh token no longer matches, or the record is errored.
	ErrConflict = errors.New("store: conflict")
)

// Store is the root data access interface. Concrete drivers (memory, sqlite,
// postgres, redis) implement this. Its lifecycle is explicit: ApplyMigrations
// once at start-up, Sessions per request, Close at shutdown.
type Store interface {
	Sessions() Sessions

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing service is still reachable.
	Ping(ctx context.Context) error
}

// Sessions holds exactly one Session Record per principal, keyed by subject.
type Sessions interface {
	// Create stores the record of a fresh sign-in. A record already held for
	// the subject is replaced wholesale.
	Create(ctx context.Context, rec domain.Record) error

	// Get returns the record for subject or ErrNotFound.
	Get(ctx context.Context, subject string) (domain.Record, error)

	// ReplaceTokens swaps the token pair only if the stored refresh token is
	// still previousRefreshToken and the record is not errored; otherwise it
	// returns ErrConflict. Claims are replaced only when non-nil.
	ReplaceTokens(
		ctx context.Context,
		subject, previousRefreshToken string,
		pair domain.TokenPair,
		claims *domain.IdentityClaims,
	) error

	// MarkErrored sets the terminal error marker under the same compare rule
	// as ReplaceTokens. Nothing ever clears it.
	MarkErrored(ctx context.Context, subject, previousRefreshToken string, marker domain.ErrorMarker) error

	// Delete removes the subject's record. A non-empty id restricts the
	// delete to that record so a superseded session can't remove its
	// successor. Deleting a missing or non-matching record is not an error.
	Delete(ctx context.Context, subject, id string) error

	// DeleteExpired removes every record whose maximum age has passed at now
	// and reports how many went.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
