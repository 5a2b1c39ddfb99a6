package discovery

import (
	"context"

	"github.com/jrodriguesgcs/ac-delete-notes/internal/activecampaign"
	"github.com/jrodriguesgcs/ac-delete-notes/internal/retry"
	"github.com/jrodriguesgcs/ac-delete-notes/pkg/log"
)

// Deal-scan sizing: the candidate count for a note cap assumes roughly
// notesPerDealEstimate matching notes per deal, padded with a small slack
// so a short run still makes visible progress.
const (
	notesPerDealEstimate = 70
	dealEstimateSlack    = 10
)

// DealSource is the two-phase strategy: paginate the deal collection,
// then fetch each deal's notes during processing. Two calls per deal, but
// it never touches the much larger flat notes collection.
type DealSource struct {
	api    API
	userID string
	retry  retry.Policy
}

// NewDealSource creates a deal-scan source targeting notes owned by userID.
func NewDealSource(api API, userID string, policy retry.Policy) *DealSource {
	return &DealSource{
		api:    api,
		userID: userID,
		retry:  policy,
	}
}

func (s *DealSource) Name() string { return "deal scan" }

func (s *DealSource) Discover(ctx context.Context, exclude func(id string) bool) ([]Candidate, error) {
	log.Info("Step 1: fetching all deals...")

	candidates := make([]Candidate, 0)
	inRun := make(map[string]struct{})
	offset := 0
	page := 1

	for {
		if err := ctx.Err(); err != nil {
			return candidates, err
		}

		deals, err := s.api.ListDeals(ctx, pageSize, offset)
		if err != nil {
			if ctx.Err() != nil {
				return candidates, ctx.Err()
			}
			// Keep whatever was gathered; the run proceeds with the
			// partial set rather than aborting.
			log.Error("Deal listing stopped at offset %d: %v", offset, err)
			break
		}
		if len(deals) == 0 {
			break
		}

		for _, d := range deals {
			if exclude(d.ID) {
				continue
			}
			if _, dup := inRun[d.ID]; dup {
				continue
			}
			inRun[d.ID] = struct{}{}
			candidates = append(candidates, Candidate{ID: d.ID})
		}

		if page%progressEvery == 0 {
			log.Info("   Page %4d | unprocessed deals so far: %d", page, len(candidates))
		}

		offset += pageSize
		page++
	}

	log.Info("Fetched %d unprocessed deals", len(candidates))
	return candidates, nil
}

// Resolve fetches the deal's notes with bounded retry and keeps the ones
// owned by the target user. Exhausted retries log and yield zero notes,
// so the deal still concludes and is not rescanned forever.
func (s *DealSource) Resolve(ctx context.Context, c Candidate) ([]activecampaign.Note, error) {
	var notes []activecampaign.Note
	err := s.retry.Do(ctx, func() error {
		var opErr error
		notes, opErr = s.api.DealNotes(ctx, c.ID)
		return opErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("Fetching notes for deal %s failed: %v", c.ID, err)
		return nil, nil
	}

	matching := make([]activecampaign.Note, 0, len(notes))
	for _, n := range notes {
		if n.UserID == s.userID {
			matching = append(matching, n)
		}
	}
	return matching, nil
}

func (s *DealSource) EstimateCandidates(noteCap int) int {
	return noteCap/notesPerDealEstimate + dealEstimateSlack
}
