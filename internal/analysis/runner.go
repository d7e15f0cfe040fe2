package analysis

import (
	"context"
	"log"
	"time"

	"copydesk/api/internal/store"
	"copydesk/api/internal/util"
)

type runStore interface {
	InsertAnalysisRun(ctx context.Context, run store.AnalysisRun) error
	CompleteAnalysisRun(ctx context.Context, run store.AnalysisRun) error
	FailAnalysisRun(ctx context.Context, runID, errMsg string) error
}

// Runner executes content audits as detached tasks. A run outlives the
// request that started it: the row is created synchronously, then the fetch
// and audit happen on a background goroutine under the runner's own timeout.
// Results are written only on success; a failed run never touches the result
// columns.
type Runner struct {
	store   runStore
	fetcher PageFetcher
	timeout time.Duration
}

func NewRunner(s runStore, fetcher PageFetcher, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Runner{store: s, fetcher: fetcher, timeout: timeout}
}

// Start records the run and kicks off the audit. The returned run is in the
// running state; callers poll for completion.
func (r *Runner) Start(ctx context.Context, ticketID, url string) (store.AnalysisRun, error) {
	run := store.AnalysisRun{
		ID:       util.NewID("run"),
		TicketID: ticketID,
		URL:      url,
		Status:   "running",
	}
	if err := r.store.InsertAnalysisRun(ctx, run); err != nil {
		return store.AnalysisRun{}, err
	}

	go r.execute(run)
	return run, nil
}

// execute runs the audit detached from the originating request. It uses
// context.Background so an abandoned request does not cancel the work.
func (r *Runner) execute(run store.AnalysisRun) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	page, err := r.fetcher.Fetch(ctx, run.URL)
	if err != nil {
		r.fail(run.ID, err.Error())
		return
	}

	result, cost := AuditPage(page)
	run.Title = result.Title
	run.Summary = result.Summary
	run.WordCount = result.WordCount
	run.HeadingCount = result.HeadingCount
	run.TotalCost = cost.TotalCost
	run.CostBreakdown = cost.Breakdown

	writeCtx, writeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer writeCancel()
	if err := r.store.CompleteAnalysisRun(writeCtx, run); err != nil {
		log.Printf("analysis: write result run=%s: %v", run.ID, err)
	}
}

func (r *Runner) fail(runID, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.store.FailAnalysisRun(ctx, runID, msg); err != nil {
		log.Printf("analysis: mark failed run=%s: %v", runID, err)
	}
}
