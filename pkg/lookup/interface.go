// Package lookup defines the client abstraction used to validate API keys and
// to query a technology lookup service for batches of URLs.
package lookup

import (
	"context"

	"techlookup/pkg/domain"
)

// MaxBatchSize is the largest number of URLs the service accepts in a single
// lookup request.
const MaxBatchSize = 10

// Balance is the credit state of an API key.
type Balance struct {
	Credits int // Credits is the number of lookups the key can still pay for.
}

// LookupRes is the outcome of one successful lookup request.
type LookupRes struct {
	Results          []domain.Result // Results holds one record per URL, in response order.
	CreditsRemaining int             // CreditsRemaining is the balance reported after the request.
}

// Client is the abstraction for technology lookup providers. The API key is
// passed on every call because it may be replaced in the middle of a run.
//
//go:generate mockgen -package mocklookup -source=interface.go -destination=mock/mocklookup.go *
type Client interface {
	// Balance validates key and returns its remaining credits. A rejected key
	// yields serrors.ErrUnauthorized, an empty one serrors.ErrNoCredit.
	Balance(ctx context.Context, key string) (Balance, error)
	// Lookup queries the service for URLs. HTTP 400 yields
	// serrors.ErrBadRequest and HTTP 429 serrors.ErrRateLimited.
	Lookup(ctx context.Context, key string, URLs []string) (LookupRes, error)
}
