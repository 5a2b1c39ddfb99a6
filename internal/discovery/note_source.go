package discovery

import (
	"context"

	"github.com/jrodriguesgcs/ac-delete-notes/internal/activecampaign"
	"github.com/jrodriguesgcs/ac-delete-notes/pkg/log"
)

// NoteSource is the direct strategy: paginate the flat notes collection
// and filter each note by relation type and owning user. One delete per
// candidate, no per-candidate fetch, but the scan covers every note in
// the account.
type NoteSource struct {
	api    API
	userID string
}

// NewNoteSource creates a note-scan source targeting deal notes owned by
// userID.
func NewNoteSource(api API, userID string) *NoteSource {
	return &NoteSource{
		api:    api,
		userID: userID,
	}
}

func (s *NoteSource) Name() string { return "note scan" }

func (s *NoteSource) Discover(ctx context.Context, exclude func(id string) bool) ([]Candidate, error) {
	log.Info("Step 1: scanning the notes collection...")

	candidates := make([]Candidate, 0)
	inRun := make(map[string]struct{})
	offset := 0
	page := 1

	for {
		if err := ctx.Err(); err != nil {
			return candidates, err
		}

		notes, err := s.api.ListNotes(ctx, pageSize, offset)
		if err != nil {
			if ctx.Err() != nil {
				return candidates, ctx.Err()
			}
			log.Error("Note listing stopped at offset %d: %v", offset, err)
			break
		}
		if len(notes) == 0 {
			break
		}

		for _, n := range notes {
			if n.RelType != activecampaign.RelTypeDeal || n.UserID != s.userID {
				continue
			}
			if exclude(n.ID) {
				continue
			}
			if _, dup := inRun[n.ID]; dup {
				continue
			}
			inRun[n.ID] = struct{}{}
			candidates = append(candidates, Candidate{ID: n.ID, Notes: []activecampaign.Note{n}})
		}

		if page%progressEvery == 0 {
			log.Info("   Page %4d | matching notes so far: %d", page, len(candidates))
		}

		offset += pageSize
		page++
	}

	log.Info("Found %d unprocessed matching notes", len(candidates))
	return candidates, nil
}

// Resolve returns the note carried by the candidate; the scan already
// filtered it, so no network round trip is needed.
func (s *NoteSource) Resolve(_ context.Context, c Candidate) ([]activecampaign.Note, error) {
	return c.Notes, nil
}

func (s *NoteSource) EstimateCandidates(noteCap int) int {
	return noteCap
}
