package progress

import "time"

// State is the durable record of everything concluded so far. It only
// ever grows: ids are never removed, counters never decrease.
//
// The invariant binding the fields together: every id in ProcessedIDs was
// the subject of exactly one concluded delete pass (success or exhausted
// retries) in some run, and TotalDeleted+TotalFailed counts the leaf note
// outcomes folded in along the way.
type State struct {
	ProcessedIDs      []string  `json:"processed_ids"`
	DeletedNoteIDs    []string  `json:"deleted_note_ids"`
	TotalDeleted      int       `json:"total_deleted"`
	TotalFailed       int       `json:"total_failed"`
	BatchNumber       int       `json:"batch_number"`
	StartTime         time.Time `json:"start_time"`
	LastRunTime       time.Time `json:"last_run_time"`
	RemainingEstimate int       `json:"remaining_estimate"`
}

// DefaultState is the state of a fresh account sweep: nothing processed,
// the sweep's start time stamped now.
func DefaultState(now time.Time) State {
	return State{
		ProcessedIDs:   make([]string, 0),
		DeletedNoteIDs: make([]string, 0),
		StartTime:      now,
	}
}

// backfill fills fields a loaded document may be missing, keeping old
// state files forward-compatible.
func (s *State) backfill(now time.Time) {
	if s.ProcessedIDs == nil {
		s.ProcessedIDs = make([]string, 0)
	}
	if s.DeletedNoteIDs == nil {
		s.DeletedNoteIDs = make([]string, 0)
	}
	if s.StartTime.IsZero() {
		s.StartTime = now
	}
}
