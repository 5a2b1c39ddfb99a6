// Package engine runs one deletion batch end to end: load state,
// discover candidates, fan the deletions out over a bounded worker pool,
// persist the grown state, report. Continuation across batches happens
// purely through the persisted state plus the operator invoking the
// process again; nothing here schedules future runs.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jrodriguesgcs/ac-delete-notes/internal/activecampaign"
	"github.com/jrodriguesgcs/ac-delete-notes/internal/config"
	"github.com/jrodriguesgcs/ac-delete-notes/internal/discovery"
	"github.com/jrodriguesgcs/ac-delete-notes/internal/progress"
	"github.com/jrodriguesgcs/ac-delete-notes/internal/ratelimit"
	"github.com/jrodriguesgcs/ac-delete-notes/internal/retry"
	"github.com/jrodriguesgcs/ac-delete-notes/pkg/log"
)

// Retry budget for individual delete calls and per-deal note fetches.
const (
	deleteAttempts = 3
	deleteBackoff  = 2 * time.Second
)

// Engine is the batch orchestrator. One Engine runs exactly one batch.
type Engine struct {
	source  discovery.Source
	deleter Deleter
	store   progress.Store
	limiter *ratelimit.Limiter
	report  *Reporter

	userID      string
	rateLimit   int
	maxWorkers  int
	notesPerRun int
	batchNumber int
	retryPolicy retry.Policy
}

// New wires an engine from configuration: shared rate gate, API client,
// discovery source per the configured strategy, and the durable store
// picked from the state file extension.
func New(cfg config.Config) (*Engine, error) {
	limiter := ratelimit.New(cfg.API.RateLimit)
	client := activecampaign.NewClient(cfg.API.BaseURL, cfg.API.Key, limiter)

	store, err := progress.NewStore(cfg.State.StateFile)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	policy := retry.Policy{MaxAttempts: deleteAttempts, Delay: deleteBackoff}

	var source discovery.Source
	switch cfg.Run.Strategy {
	case config.StrategyDeals:
		source = discovery.NewDealSource(client, cfg.API.TargetUserID, policy)
	case config.StrategyNotes:
		source = discovery.NewNoteSource(client, cfg.API.TargetUserID)
	default:
		return nil, fmt.Errorf("unknown discovery strategy %q", cfg.Run.Strategy)
	}

	return &Engine{
		source:      source,
		deleter:     client,
		store:       store,
		limiter:     limiter,
		report:      NewReporter(),
		userID:      cfg.API.TargetUserID,
		rateLimit:   cfg.API.RateLimit,
		maxWorkers:  cfg.Run.MaxWorkers,
		notesPerRun: cfg.Run.NotesPerRun,
		batchNumber: cfg.Run.BatchNumber,
		retryPolicy: policy,
	}, nil
}

// Run executes one batch. It returns an error only when the state store
// fails; item and page failures are absorbed into counters and logs.
// Cancellation drains the in-flight workers and still persists whatever
// concluded.
func (e *Engine) Run(ctx context.Context) error {
	state, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load progress state: %w", err)
	}
	tracker := progress.NewTracker(state)

	runID := uuid.NewString()
	log.Info("================================================================================")
	log.Info("DEAL NOTES DELETION - BATCH #%d (run %s)", e.resolveBatchNumber(state), runID)
	log.Info("================================================================================")
	log.Info("Strategy: %s | Target user: %s | Rate limit: %d req/s | Workers: %d",
		e.source.Name(), e.userID, e.rateLimit, e.maxWorkers)
	log.Info("Previous progress: %d candidates processed, %d notes deleted, %d failed",
		len(state.ProcessedIDs), state.TotalDeleted, state.TotalFailed)
	log.Info("")

	candidates, err := e.source.Discover(ctx, tracker.Seen)
	if err != nil && len(candidates) == 0 {
		// Cancelled before anything was gathered; persist the untouched
		// state so last_run_time still records the attempt.
		return e.saveUntouched(ctx, tracker)
	}

	if len(candidates) == 0 {
		log.Info("ALL CANDIDATES PROCESSED - nothing left to delete.")
		log.Info("Total deleted: %d notes", state.TotalDeleted)
		return e.saveUntouched(ctx, tracker)
	}

	toProcess := candidates
	if e.notesPerRun > 0 {
		estimated := e.source.EstimateCandidates(e.notesPerRun)
		if estimated < len(toProcess) {
			toProcess = toProcess[:estimated]
			log.Info("Limited to ~%d candidates for this run (cap %d notes)", len(toProcess), e.notesPerRun)
		}
	}

	log.Info("Step 2: processing %d candidates...", len(toProcess))
	log.Info("Estimated time: %.0f minutes", float64(len(toProcess)*2)/float64(e.rateLimit)/60)
	log.Info("")

	e.report.Start()
	pool := NewPool(e.source, e.deleter, tracker, e.store, e.report, e.retryPolicy, e.maxWorkers)
	pool.Run(ctx, toProcess)

	if err := e.save(ctx, tracker, state, len(candidates)); err != nil {
		return err
	}

	completed, withNotes, deleted, failed := tracker.RunTotals()
	final := tracker.Snapshot()
	e.report.BatchSummary(SummaryStats{
		BatchNumber:    e.resolveBatchNumber(state),
		Completed:      completed,
		WithNotes:      withNotes,
		DeletedThisRun: deleted,
		FailedThisRun:  failed,
		TotalProcessed: len(final.ProcessedIDs),
		TotalDeleted:   final.TotalDeleted,
		TotalFailed:    final.TotalFailed,
		APICalls:       e.limiter.Count(),
		Remaining:      len(candidates) - completed,
	})
	return nil
}

// save folds the run into durable state. It runs even when ctx has been
// cancelled: losing in-flight candidates is fine, losing concluded ones
// is not.
func (e *Engine) save(ctx context.Context, tracker *progress.Tracker, prior progress.State, discovered int) error {
	state := tracker.Snapshot()
	state.BatchNumber = e.resolveBatchNumber(prior)
	state.RemainingEstimate = discovered - tracker.CompletedThisRun()
	if state.RemainingEstimate < 0 {
		state.RemainingEstimate = 0
	}

	if err := e.store.Save(context.WithoutCancel(ctx), state); err != nil {
		return fmt.Errorf("save progress state: %w", err)
	}
	return nil
}

// saveUntouched persists the loaded state as-is, moving only
// last_run_time and the remaining estimate. The batch number is not
// advanced: no work concluded, so the next real batch continues the
// sequence.
func (e *Engine) saveUntouched(ctx context.Context, tracker *progress.Tracker) error {
	state := tracker.Snapshot()
	state.RemainingEstimate = 0
	if err := e.store.Save(context.WithoutCancel(ctx), state); err != nil {
		return fmt.Errorf("save progress state: %w", err)
	}
	return nil
}

// resolveBatchNumber prefers the operator-supplied label and otherwise
// continues the persisted sequence.
func (e *Engine) resolveBatchNumber(prior progress.State) int {
	if e.batchNumber > 0 {
		return e.batchNumber
	}
	return prior.BatchNumber + 1
}
