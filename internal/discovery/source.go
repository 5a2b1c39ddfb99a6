// Package discovery produces the candidate set for one run: the remote
// objects whose notes are still to be deleted, minus everything a prior
// run already concluded.
package discovery

import (
	"context"

	"github.com/jrodriguesgcs/ac-delete-notes/internal/activecampaign"
)

// pageSize is the fixed listing page size; progressEvery throttles the
// per-page log line during long scans.
const (
	pageSize      = 100
	progressEvery = 10
)

// Candidate is one unit of work. For the deal scan it is a deal id whose
// notes get resolved later; for the note scan it is a single pre-filtered
// note carried in Notes.
type Candidate struct {
	ID    string
	Notes []activecampaign.Note
}

// API is the slice of the ActiveCampaign client discovery needs.
type API interface {
	ListDeals(ctx context.Context, limit, offset int) ([]activecampaign.Deal, error)
	ListNotes(ctx context.Context, limit, offset int) ([]activecampaign.Note, error)
	DealNotes(ctx context.Context, dealID string) ([]activecampaign.Note, error)
}

// Source is one discovery strategy. Exactly one is active per run.
type Source interface {
	// Name labels the strategy in the run banner.
	Name() string

	// Discover paginates the remote collection and returns every
	// candidate not excluded by the caller. A failed page stops the scan
	// early and keeps the partial set; only context cancellation is
	// returned as an error.
	Discover(ctx context.Context, exclude func(id string) bool) ([]Candidate, error)

	// Resolve returns the leaf notes to delete for one candidate.
	Resolve(ctx context.Context, c Candidate) ([]activecampaign.Note, error)

	// EstimateCandidates translates an advisory per-run note cap into a
	// candidate count. An estimate, never an exact bound.
	EstimateCandidates(noteCap int) int
}
