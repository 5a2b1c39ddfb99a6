package progress

import "sync"

// Outcome is the concluded result of one note delete attempt, after any
// retries. Ephemeral; only the counters and ids survive into State.
type Outcome struct {
	NoteID  string
	Success bool
}

// Tracker is the shared mutable state of one run. Workers conclude
// candidates concurrently; every read-modify-write goes through one mutex
// so counters and the processed set stay consistent with each other.
type Tracker struct {
	mu    sync.Mutex
	state State
	seen  map[string]struct{}

	completedThisRun int
	deletedThisRun   int
	failedThisRun    int
	withNotesThisRun int
}

// NewTracker seeds a tracker from loaded state.
func NewTracker(state State) *Tracker {
	seen := make(map[string]struct{}, len(state.ProcessedIDs))
	for _, id := range state.ProcessedIDs {
		seen[id] = struct{}{}
	}
	return &Tracker{
		state: state,
		seen:  seen,
	}
}

// Seen reports whether a candidate id has already been processed, either
// in a prior run or earlier in this one. Used as the discovery exclusion
// set.
func (t *Tracker) Seen(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[id]
	return ok
}

// Conclude marks one candidate processed and folds its note outcomes into
// the counters and the deleted ledger. Returns false without any mutation
// if the id was already concluded; ids are partitioned one per worker in
// practice, so this is a safety net against double counting, not a
// primary mechanism.
func (t *Tracker) Conclude(candidateID string, outcomes []Outcome) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[candidateID]; ok {
		return false
	}
	t.seen[candidateID] = struct{}{}
	t.state.ProcessedIDs = append(t.state.ProcessedIDs, candidateID)
	t.completedThisRun++
	if len(outcomes) > 0 {
		t.withNotesThisRun++
	}

	for _, o := range outcomes {
		if o.Success {
			t.state.TotalDeleted++
			t.deletedThisRun++
			t.state.DeletedNoteIDs = append(t.state.DeletedNoteIDs, o.NoteID)
		} else {
			t.state.TotalFailed++
			t.failedThisRun++
		}
	}
	return true
}

// CompletedThisRun returns how many candidates this run has concluded.
func (t *Tracker) CompletedThisRun() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completedThisRun
}

// RunTotals returns this run's concluded candidates, candidates that had
// matching notes, deleted notes and failed notes.
func (t *Tracker) RunTotals() (completed, withNotes, deleted, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completedThisRun, t.withNotesThisRun, t.deletedThisRun, t.failedThisRun
}

// Snapshot returns a deep copy of the accumulated state, safe to persist
// while workers keep concluding.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.state
	snapshot.ProcessedIDs = append([]string(nil), t.state.ProcessedIDs...)
	snapshot.DeletedNoteIDs = append([]string(nil), t.state.DeletedNoteIDs...)
	return snapshot
}
