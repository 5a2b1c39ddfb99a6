package engine

import (
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jrodriguesgcs/ac-delete-notes/pkg/log"
)

// reportEvery caps the cadence of progress lines; failures are always
// logged immediately by the pool, this gate only applies to the rolling
// progress summary.
const reportEvery = 10 * time.Second

// Reporter emits the rolling progress line and the end-of-run summary.
// Counts are formatted with thousands separators, which matters once a
// sweep crosses into six-digit note counts.
type Reporter struct {
	printer *message.Printer
	now     func() time.Time

	mu    sync.Mutex
	start time.Time
	last  time.Time
}

// NewReporter creates a reporter; the cadence clock starts at the first
// Progress call.
func NewReporter() *Reporter {
	return &Reporter{
		printer: message.NewPrinter(language.English),
		now:     time.Now,
	}
}

// Start stamps the beginning of the processing phase.
func (r *Reporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = r.now()
	r.last = time.Time{}
}

// Progress logs a rolling progress line, at most once per reportEvery.
func (r *Reporter) Progress(completed, total, withNotes, deleted int) {
	r.mu.Lock()
	now := r.now()
	if !r.last.IsZero() && now.Sub(r.last) < reportEvery {
		r.mu.Unlock()
		return
	}
	r.last = now
	start := r.start
	r.mu.Unlock()

	elapsed := now.Sub(start).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(completed) / elapsed
	}
	progress := 0.0
	if total > 0 {
		progress = float64(completed) / float64(total) * 100
	}
	eta := 0.0
	if rate > 0 {
		eta = float64(total-completed) / rate
	}

	log.Info("   Progress: %s/%s (%.1f%%) | Deals w/notes: %s | Deleted: %s | Rate: %.1f/s | ETA: %.0fm",
		r.printer.Sprintf("%d", completed),
		r.printer.Sprintf("%d", total),
		progress,
		r.printer.Sprintf("%d", withNotes),
		r.printer.Sprintf("%d", deleted),
		rate,
		eta/60,
	)
}

// BatchSummary logs the end-of-run block: this run's counts followed by
// the overall totals carried in the persisted state.
func (r *Reporter) BatchSummary(s SummaryStats) {
	r.mu.Lock()
	start := r.start
	r.mu.Unlock()
	elapsed := r.now().Sub(start)

	rate := 0.0
	if elapsed.Seconds() > 0 {
		rate = float64(s.Completed) / elapsed.Seconds()
	}

	p := r.printer
	log.Info("================================================================================")
	log.Info("BATCH #%d COMPLETE", s.BatchNumber)
	log.Info("================================================================================")
	log.Info("Candidates processed: %s", p.Sprintf("%d", s.Completed))
	log.Info("Candidates with matching notes: %s", p.Sprintf("%d", s.WithNotes))
	log.Info("Notes deleted this run: %s", p.Sprintf("%d", s.DeletedThisRun))
	log.Info("Notes failed this run: %s", p.Sprintf("%d", s.FailedThisRun))
	log.Info("Time: %.1f minutes", elapsed.Minutes())
	log.Info("Rate: %.2f candidates/s", rate)
	log.Info("")
	log.Info("OVERALL PROGRESS")
	log.Info("================================================================================")
	log.Info("Total candidates processed: %s", p.Sprintf("%d", s.TotalProcessed))
	log.Info("Total notes deleted: %s", p.Sprintf("%d", s.TotalDeleted))
	log.Info("Total failed: %s", p.Sprintf("%d", s.TotalFailed))
	log.Info("API calls: %s", p.Sprintf("%d", s.APICalls))
	log.Info("Remaining estimate: %s", p.Sprintf("%d", s.Remaining))
	log.Info("================================================================================")
}

// SummaryStats carries the numbers for the end-of-run report.
type SummaryStats struct {
	BatchNumber    int
	Completed      int
	WithNotes      int
	DeletedThisRun int
	FailedThisRun  int
	TotalProcessed int
	TotalDeleted   int
	TotalFailed    int
	APICalls       uint64
	Remaining      int
}
