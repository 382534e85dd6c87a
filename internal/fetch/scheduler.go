package fetch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"thumbsmith/internal/dedup"
	"thumbsmith/internal/fileutil"
	"thumbsmith/internal/logging"
	"thumbsmith/internal/services"
	"thumbsmith/internal/transcode"
)

// Policy controls scheduler behavior for one run.
type Policy struct {
	// Concurrency bounds the number of in-flight fetches. It must be at
	// least 1.
	Concurrency int
	// MaxRetries is the total number of fetch attempts per task, including
	// the first. Only retryable failures consume further attempts.
	MaxRetries int
	// RetryDelay is the base backoff. The wait before attempt n+1 is
	// RetryDelay * n.
	RetryDelay time.Duration
	// TranscodeConcurrency bounds concurrent decodes, which are far more
	// memory hungry than the downloads feeding them.
	TranscodeConcurrency int
}

// Task is one unit of scheduler work: fetch an asset, transcode it, and write
// the artifact at OutputPath.
type Task struct {
	GroupKey    string
	EntityID    string
	DisplayName string
	AssetURL    string
	OutputPath  string
}

// Outcome is the terminal result of one task.
type Outcome struct {
	Task     Task
	Attempts int
	// Completed is true when an artifact exists for this task, either newly
	// written or shared via DuplicateOf.
	Completed   bool
	Fingerprint string
	// OutputPath is the artifact that now serves this task. For duplicates
	// it names the artifact written by the first entry with the same
	// content.
	OutputPath  string
	DuplicateOf string
	Reason      string
	Err         error
}

// Recorder receives claim and outcome notifications. Claim is invoked from
// the dispatch loop and Record from a single collector goroutine, so
// implementations never see concurrent calls for the same task and may write
// checkpoints without their own locking.
type Recorder interface {
	Claim(ctx context.Context, task Task) error
	Record(ctx context.Context, outcome Outcome) error
}

// Summary aggregates one scheduler run.
type Summary struct {
	Completed  int
	Duplicates int
	Failed     int
}

// Scheduler fans tasks out to a bounded worker pool with retry and dedup.
type Scheduler struct {
	fetcher   Fetcher
	policy    Policy
	transcode transcode.Policy
	index     *dedup.Index
	logger    *slog.Logger
}

// NewScheduler builds a scheduler. The index carries fingerprints across the
// whole run, including those seeded from checkpoints on resume.
func NewScheduler(fetcher Fetcher, policy Policy, transcodePolicy transcode.Policy, index *dedup.Index, logger *slog.Logger) *Scheduler {
	if policy.Concurrency < 1 {
		policy.Concurrency = 1
	}
	if policy.TranscodeConcurrency < 1 {
		policy.TranscodeConcurrency = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		fetcher:   fetcher,
		policy:    policy,
		transcode: transcodePolicy,
		index:     index,
		logger:    logger,
	}
}

// Run processes tasks and reports outcomes through recorder. It returns early
// only when a claim or record call fails, which aborts the run; per-task
// fetch and transcode failures are recorded and counted, never fatal.
func (s *Scheduler) Run(ctx context.Context, tasks []Task, recorder Recorder) (Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Checkpoint writes must survive an interrupt: outcomes finalized before
	// cancellation still get recorded, so a resumed run does not redo them.
	persistCtx := context.WithoutCancel(ctx)

	workerSem := make(chan struct{}, s.policy.Concurrency)
	transcodeSem := make(chan struct{}, s.policy.TranscodeConcurrency)
	outcomes := make(chan Outcome)

	var (
		summary   Summary
		recordErr error
	)
	var collector sync.WaitGroup
	collector.Add(1)
	go func() {
		defer collector.Done()
		for outcome := range outcomes {
			if recordErr != nil {
				continue
			}
			if err := recorder.Record(persistCtx, outcome); err != nil {
				recordErr = err
				cancel()
				continue
			}
			switch {
			case outcome.Completed && outcome.DuplicateOf != "":
				summary.Completed++
				summary.Duplicates++
			case outcome.Completed:
				summary.Completed++
			default:
				summary.Failed++
			}
		}
	}()

	var workers sync.WaitGroup
	var claimErr error
dispatch:
	for _, task := range tasks {
		select {
		case <-runCtx.Done():
			break dispatch
		case workerSem <- struct{}{}:
		}

		if err := recorder.Claim(persistCtx, task); err != nil {
			<-workerSem
			claimErr = err
			cancel()
			break dispatch
		}

		workers.Add(1)
		go func(task Task) {
			defer workers.Done()
			defer func() { <-workerSem }()
			outcomes <- s.process(runCtx, task, transcodeSem)
		}(task)
	}

	workers.Wait()
	close(outcomes)
	collector.Wait()

	if claimErr != nil {
		return summary, claimErr
	}
	if recordErr != nil {
		return summary, recordErr
	}
	return summary, ctx.Err()
}

func (s *Scheduler) process(ctx context.Context, task Task, transcodeSem chan struct{}) Outcome {
	taskCtx := services.WithGroup(ctx, task.GroupKey)
	taskCtx = services.WithEntity(taskCtx, task.EntityID)
	logger := logging.WithContext(taskCtx, s.logger)

	raw, attempts, err := s.fetchWithRetry(taskCtx, task, logger)
	if err != nil {
		return failedOutcome(task, attempts, err)
	}

	fingerprint := dedup.Fingerprint(raw)
	for {
		winner, pending := s.index.Claim(fingerprint, task.OutputPath)
		if winner {
			break
		}
		existingPath, written, err := pending.Wait(taskCtx)
		if err != nil {
			return failedOutcome(task, attempts, err)
		}
		if written {
			logger.Debug("duplicate content, reusing artifact",
				logging.String("fingerprint", fingerprint),
				logging.String("artifact", existingPath))
			return Outcome{
				Task:        task,
				Attempts:    attempts,
				Completed:   true,
				Fingerprint: fingerprint,
				OutputPath:  existingPath,
				DuplicateOf: existingPath,
			}
		}
		// The claim owner failed before writing; race to claim again.
	}

	encoded, err := s.transcodeBounded(taskCtx, raw, transcodeSem)
	if err != nil {
		s.index.Forget(fingerprint)
		return failedOutcome(task, attempts, err)
	}

	if err := fileutil.WriteFileDurable(task.OutputPath, encoded, 0o644); err != nil {
		s.index.Forget(fingerprint)
		wrapped := services.Wrap(services.ErrTranscode, "scheduler", "write artifact", task.OutputPath, err)
		return failedOutcome(task, attempts, wrapped)
	}
	s.index.Commit(fingerprint)

	logger.Debug("artifact written",
		logging.String("artifact", task.OutputPath),
		logging.Int("attempts", attempts))
	return Outcome{
		Task:        task,
		Attempts:    attempts,
		Completed:   true,
		Fingerprint: fingerprint,
		OutputPath:  task.OutputPath,
	}
}

// fetchWithRetry attempts the download up to MaxRetries times with linear
// backoff. Non-retryable errors short-circuit the loop.
func (s *Scheduler) fetchWithRetry(ctx context.Context, task Task, logger *slog.Logger) ([]byte, int, error) {
	maxAttempts := s.policy.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := s.fetcher.Fetch(ctx, task.AssetURL)
		if err == nil {
			return raw, attempt, nil
		}
		lastErr = err
		if !services.Retryable(err) || attempt == maxAttempts {
			return nil, attempt, err
		}
		delay := s.policy.RetryDelay * time.Duration(attempt)
		logger.Debug("fetch attempt failed, backing off",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err))
		if err := sleepContext(ctx, delay); err != nil {
			return nil, attempt, lastErr
		}
	}
	return nil, maxAttempts, lastErr
}

// transcodeBounded converts raw bytes under the transcode semaphore. Bytes
// already fetched are worth finishing, so a free slot is taken even when the
// run is being canceled; only an actual wait is interruptible.
func (s *Scheduler) transcodeBounded(ctx context.Context, raw []byte, sem chan struct{}) ([]byte, error) {
	select {
	case sem <- struct{}{}:
	default:
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	defer func() { <-sem }()
	return transcode.Transcode(raw, s.transcode)
}

func failedOutcome(task Task, attempts int, err error) Outcome {
	return Outcome{
		Task:     task,
		Attempts: attempts,
		Reason:   services.FailureReason(err),
		Err:      err,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
