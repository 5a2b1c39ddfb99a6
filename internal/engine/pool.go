package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/jrodriguesgcs/ac-delete-notes/internal/discovery"
	"github.com/jrodriguesgcs/ac-delete-notes/internal/progress"
	"github.com/jrodriguesgcs/ac-delete-notes/internal/retry"
	"github.com/jrodriguesgcs/ac-delete-notes/pkg/log"
)

// saveEvery is the periodic persistence cadence: the state file is
// flushed after this many concluded candidates, so a hard kill loses at
// most one cadence worth of work.
const saveEvery = 100

// Pool fans the candidate list out over at most maxWorkers concurrent
// tasks. Each task resolves its candidate's notes, deletes them one by
// one through the shared rate gate, and concludes the candidate in the
// tracker.
type Pool struct {
	source  discovery.Source
	deleter Deleter
	tracker *progress.Tracker
	store   progress.Store
	report  *Reporter

	retry      retry.Policy
	maxWorkers int

	concluded atomic.Int64
}

// NewPool wires a worker pool for one run.
func NewPool(source discovery.Source, deleter Deleter, tracker *progress.Tracker, store progress.Store, report *Reporter, policy retry.Policy, maxWorkers int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{
		source:     source,
		deleter:    deleter,
		tracker:    tracker,
		store:      store,
		report:     report,
		retry:      policy,
		maxWorkers: maxWorkers,
	}
}

// Run processes every candidate, blocking until all admitted tasks have
// drained. Cancellation stops admission of new candidates; tasks already
// in flight finish or bail without concluding, and their candidates are
// simply rediscovered next run.
func (p *Pool) Run(ctx context.Context, candidates []discovery.Candidate) {
	sem := semaphore.NewWeighted(int64(p.maxWorkers))
	var wg sync.WaitGroup

	total := len(candidates)
	for _, c := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(c discovery.Candidate) {
			defer wg.Done()
			defer sem.Release(1)
			p.process(ctx, c, total)
		}(c)
	}

	wg.Wait()
}

func (p *Pool) process(ctx context.Context, c discovery.Candidate, total int) {
	notes, err := p.source.Resolve(ctx, c)
	if err != nil {
		// Resolve only errors on cancellation; leave the candidate
		// unconcluded so the next run picks it up again.
		return
	}

	outcomes := make([]progress.Outcome, 0, len(notes))
	for _, n := range notes {
		if ctx.Err() != nil {
			return
		}
		outcome := p.deleteNote(ctx, n.ID)
		if !outcome.Success {
			if ctx.Err() != nil {
				return
			}
			log.Error("Failed to delete note %s (candidate %s): %s", n.ID, c.ID, outcome.Reason())
		}
		outcomes = append(outcomes, progress.Outcome{NoteID: outcome.NoteID, Success: outcome.Success})
	}
	if ctx.Err() != nil {
		return
	}

	if !p.tracker.Conclude(c.ID, outcomes) {
		return
	}

	completed, withNotes, deleted, _ := p.tracker.RunTotals()
	p.report.Progress(completed, total, withNotes, deleted)

	if p.concluded.Add(1)%saveEvery == 0 {
		if err := p.store.Save(ctx, p.tracker.Snapshot()); err != nil {
			log.Error("Periodic state save failed: %v", err)
		}
	}
}

// deleteNote runs one delete through the bounded retry policy. Timeouts,
// transport errors and non-success statuses all consume attempts; after
// the budget the last result stands as a permanent failure.
func (p *Pool) deleteNote(ctx context.Context, noteID string) Outcome {
	var lastStatus int
	var lastErr error

	retryErr := p.retry.Do(ctx, func() error {
		status, err := p.deleter.DeleteNote(ctx, noteID)
		lastStatus, lastErr = status, err
		if err != nil {
			return err
		}
		if !successStatus(status) {
			return fmt.Errorf("HTTP %d", status)
		}
		return nil
	})

	return Outcome{
		NoteID:     noteID,
		StatusCode: lastStatus,
		Err:        lastErr,
		Success:    retryErr == nil && successStatus(lastStatus),
	}
}
