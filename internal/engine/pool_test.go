package engine

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrodriguesgcs/ac-delete-notes/internal/activecampaign"
	"github.com/jrodriguesgcs/ac-delete-notes/internal/discovery"
	"github.com/jrodriguesgcs/ac-delete-notes/internal/progress"
	"github.com/jrodriguesgcs/ac-delete-notes/internal/retry"
)

// stubSource hands back pre-baked candidates and resolves them locally,
// note-scan style.
type stubSource struct {
	candidates []discovery.Candidate
	resolve    func(ctx context.Context, c discovery.Candidate) ([]activecampaign.Note, error)
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Discover(ctx context.Context, exclude func(string) bool) ([]discovery.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ret := make([]discovery.Candidate, 0, len(s.candidates))
	for _, c := range s.candidates {
		if !exclude(c.ID) {
			ret = append(ret, c)
		}
	}
	return ret, nil
}

func (s *stubSource) Resolve(ctx context.Context, c discovery.Candidate) ([]activecampaign.Note, error) {
	if s.resolve != nil {
		return s.resolve(ctx, c)
	}
	return c.Notes, nil
}

func (s *stubSource) EstimateCandidates(noteCap int) int { return noteCap }

// scriptedDeleter returns per-note scripted results and tracks attempts
// and in-flight concurrency.
type scriptedDeleter struct {
	mu       sync.Mutex
	statuses map[string]int   // status per note, default 200
	errs     map[string]error // error instead of a status
	attempts map[string]int

	delay      time.Duration
	inFlight   atomic.Int64
	maxFlights atomic.Int64
}

func newScriptedDeleter() *scriptedDeleter {
	return &scriptedDeleter{
		statuses: make(map[string]int),
		errs:     make(map[string]error),
		attempts: make(map[string]int),
	}
}

func (d *scriptedDeleter) DeleteNote(ctx context.Context, noteID string) (int, error) {
	cur := d.inFlight.Add(1)
	for {
		prev := d.maxFlights.Load()
		if cur <= prev || d.maxFlights.CompareAndSwap(prev, cur) {
			break
		}
	}
	defer d.inFlight.Add(-1)

	if d.delay > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(d.delay):
		}
	}

	d.mu.Lock()
	d.attempts[noteID]++
	err := d.errs[noteID]
	status, ok := d.statuses[noteID]
	d.mu.Unlock()

	if err != nil {
		return 0, err
	}
	if !ok {
		status = http.StatusOK
	}
	return status, nil
}

func (d *scriptedDeleter) attemptCount(noteID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts[noteID]
}

type memStore struct {
	mu    sync.Mutex
	state progress.State
	saves int
}

func (s *memStore) Load(context.Context) (progress.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

func (s *memStore) Save(_ context.Context, state progress.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state.LastRunTime = time.Now()
	s.state = state
	s.saves++
	return nil
}

type timeoutError struct{}

func (timeoutError) Error() string { return "request timed out" }
func (timeoutError) Timeout() bool { return true }

func noteCandidates(n int) []discovery.Candidate {
	ret := make([]discovery.Candidate, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("n%d", i)
		ret = append(ret, discovery.Candidate{
			ID:    id,
			Notes: []activecampaign.Note{{ID: id, UserID: "112", RelType: "Deal"}},
		})
	}
	return ret
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, Delay: time.Millisecond}
}

func TestPool_DeletesEveryCandidate(t *testing.T) {
	candidates := noteCandidates(25)
	src := &stubSource{candidates: candidates}
	deleter := newScriptedDeleter()
	tracker := progress.NewTracker(progress.DefaultState(time.Now()))
	store := &memStore{}
	reporter := NewReporter()
	reporter.Start()

	pool := NewPool(src, deleter, tracker, store, reporter, fastRetry(), 5)
	pool.Run(context.Background(), candidates)

	snap := tracker.Snapshot()
	assert.Len(t, snap.ProcessedIDs, 25)
	assert.Equal(t, 25, snap.TotalDeleted)
	assert.Zero(t, snap.TotalFailed)
	assert.Len(t, snap.DeletedNoteIDs, 25)
}

func TestPool_BoundedConcurrency(t *testing.T) {
	const maxWorkers = 4
	candidates := noteCandidates(40)
	src := &stubSource{candidates: candidates}
	deleter := newScriptedDeleter()
	deleter.delay = 10 * time.Millisecond
	tracker := progress.NewTracker(progress.DefaultState(time.Now()))
	reporter := NewReporter()
	reporter.Start()

	pool := NewPool(src, deleter, tracker, &memStore{}, reporter, fastRetry(), maxWorkers)
	pool.Run(context.Background(), candidates)

	assert.LessOrEqual(t, deleter.maxFlights.Load(), int64(maxWorkers))
	assert.Equal(t, 40, tracker.CompletedThisRun())
}

func TestPool_RetryThenPermanentFailure(t *testing.T) {
	candidates := noteCandidates(1)
	src := &stubSource{candidates: candidates}
	deleter := newScriptedDeleter()
	deleter.errs["n0"] = timeoutError{}
	tracker := progress.NewTracker(progress.DefaultState(time.Now()))
	reporter := NewReporter()
	reporter.Start()

	pool := NewPool(src, deleter, tracker, &memStore{}, reporter, fastRetry(), 2)
	pool.Run(context.Background(), candidates)

	// Three attempts total, then the failure is permanent: recorded
	// exactly once and the candidate still concludes.
	assert.Equal(t, 3, deleter.attemptCount("n0"))
	snap := tracker.Snapshot()
	assert.Equal(t, 1, snap.TotalFailed)
	assert.Zero(t, snap.TotalDeleted)
	assert.Equal(t, []string{"n0"}, snap.ProcessedIDs)
	assert.Empty(t, snap.DeletedNoteIDs)
}

func TestPool_NonSuccessStatusRetriesThenFails(t *testing.T) {
	candidates := noteCandidates(1)
	src := &stubSource{candidates: candidates}
	deleter := newScriptedDeleter()
	deleter.statuses["n0"] = http.StatusNotFound
	tracker := progress.NewTracker(progress.DefaultState(time.Now()))
	reporter := NewReporter()
	reporter.Start()

	pool := NewPool(src, deleter, tracker, &memStore{}, reporter, fastRetry(), 1)
	pool.Run(context.Background(), candidates)

	assert.Equal(t, 3, deleter.attemptCount("n0"))
	snap := tracker.Snapshot()
	assert.Equal(t, 1, snap.TotalFailed)
	assert.Contains(t, snap.ProcessedIDs, "n0")
}

func TestPool_PeriodicSaveEveryHundredCompletions(t *testing.T) {
	candidates := noteCandidates(250)
	src := &stubSource{candidates: candidates}
	deleter := newScriptedDeleter()
	tracker := progress.NewTracker(progress.DefaultState(time.Now()))
	store := &memStore{}
	reporter := NewReporter()
	reporter.Start()

	pool := NewPool(src, deleter, tracker, store, reporter, fastRetry(), 8)
	pool.Run(context.Background(), candidates)

	// 250 completions cross the 100 boundary twice.
	store.mu.Lock()
	saves := store.saves
	store.mu.Unlock()
	assert.Equal(t, 2, saves)
}

func TestPool_CancelledRunLeavesCandidatesUnconcluded(t *testing.T) {
	candidates := noteCandidates(50)
	src := &stubSource{candidates: candidates}
	deleter := newScriptedDeleter()
	deleter.delay = 20 * time.Millisecond
	tracker := progress.NewTracker(progress.DefaultState(time.Now()))
	reporter := NewReporter()
	reporter.Start()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	pool := NewPool(src, deleter, tracker, &memStore{}, reporter, fastRetry(), 2)
	pool.Run(ctx, candidates)

	// Some candidates concluded, the rest stay eligible for rediscovery.
	snap := tracker.Snapshot()
	assert.Less(t, len(snap.ProcessedIDs), 50)
	require.Equal(t, snap.TotalDeleted+snap.TotalFailed, len(snap.ProcessedIDs))
}

func TestOutcome_Reason(t *testing.T) {
	assert.Equal(t, "HTTP 200", Outcome{StatusCode: 200, Success: true}.Reason())
	assert.Equal(t, "HTTP 404", Outcome{StatusCode: 404}.Reason())
	assert.Equal(t, "timeout", Outcome{Err: timeoutError{}}.Reason())
	assert.Equal(t, "error: boom", Outcome{Err: fmt.Errorf("boom")}.Reason())
}
