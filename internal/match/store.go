package match

import "context"

// Tx gives one action exclusive access to a single match and to the
// participants' point balances, for the duration of one state transition.
// The durable backend backs it with a row-locked database transaction;
// the volatile backend with the store mutex. Implementations persist the
// mutated match only when the callback returns nil.
type Tx interface {
	// Match returns the locked match. Mutations to the returned value are
	// written back on commit.
	Match() *Match

	// UserPoints returns the current balance for a username
	// (case-insensitive). ok is false when the user is unknown.
	UserPoints(username string) (points int, ok bool, err error)

	// AdjustPoints moves a balance by delta inside the same transaction
	// that commits the match mutation.
	AdjustPoints(username string, delta int) error

	// HasOtherActiveMatch reports whether the user participates in an
	// active match other than the locked one.
	HasOtherActiveMatch(username string) (bool, error)
}

// WaitingFilter scopes the lobby listing.
type WaitingFilter struct {
	TableCode string // exact table, normalized upper-case
	CafeID    int    // all tables of one venue (scope=all)
}

// Store is the dual-backend persistence abstraction. Both implementations
// must yield identical observable sequences of transitions, winners and
// settlement outcomes for the same input sequence.
type Store interface {
	// Name identifies the backend in logs ("postgres" or "memory").
	Name() string

	// CreateWaiting inserts a new waiting match. It fails with a conflict
	// when the host already has a waiting or active match.
	CreateWaiting(ctx context.Context, m *Match) (*Match, *Error)

	// Get returns a match without locking it.
	Get(ctx context.Context, id string) (*Match, *Error)

	// Mutate runs fn with exclusive access to the match. fn observes the
	// current state and mutates it; a nil return persists the mutation
	// atomically (including any balance adjustments made through the Tx),
	// any error rolls everything back.
	Mutate(ctx context.Context, id string, fn func(tx Tx) *Error) (*Match, *Error)

	// Delete removes the match when the actor is a participant or
	// privileged; otherwise reports not-found.
	Delete(ctx context.Context, id, actor string, privileged bool) (*Match, *Error)

	// ListWaiting returns waiting matches of supported types, newest first.
	ListWaiting(ctx context.Context, f WaitingFilter) ([]Summary, *Error)

	// FindActiveByParticipant returns the user's most recent active match.
	FindActiveByParticipant(ctx context.Context, username string) (*Match, *Error)

	// History returns the user's finished matches, newest first.
	History(ctx context.Context, username string, limit int) ([]Match, *Error)

	// LookupUser loads the actor-facing user record (balance, check-in
	// scope) used to build the request session.
	LookupUser(ctx context.Context, username string) (*User, *Error)
}
