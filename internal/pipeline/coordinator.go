package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"thumbsmith/internal/catalog"
	"thumbsmith/internal/checkpoint"
	"thumbsmith/internal/config"
	"thumbsmith/internal/dedup"
	"thumbsmith/internal/fetch"
	"thumbsmith/internal/fileutil"
	"thumbsmith/internal/logging"
	"thumbsmith/internal/services"
	"thumbsmith/internal/textutil"
	"thumbsmith/internal/transcode"
)

const lockFileName = "thumbsmith.lock"

// Options are per-run flags.
type Options struct {
	// Clean discards all checkpoints and existing artifacts before the run.
	Clean bool
	// Force re-fetches entries even when a completed checkpoint exists.
	Force bool
}

// Coordinator sequences a run: enumerate the catalog, partition entries
// against the checkpoint store, drive the fetch scheduler, aggregate group
// results, and emit the run report. It is the only component that writes
// checkpoints.
type Coordinator struct {
	cfg        *config.Config
	store      *checkpoint.Store
	enumerator catalog.Enumerator
	fetcher    fetch.Fetcher
	logger     *slog.Logger
	state      *runState
}

// New builds a coordinator. A nil fetcher gets a default HTTP fetcher from
// config; tests inject their own.
func New(cfg *config.Config, store *checkpoint.Store, enumerator catalog.Enumerator, fetcher fetch.Fetcher, logger *slog.Logger) *Coordinator {
	if fetcher == nil {
		fetcher = fetch.NewHTTPFetcher(cfg.Fetch.UserAgent, cfg.RequestTimeout())
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		cfg:        cfg,
		store:      store,
		enumerator: enumerator,
		fetcher:    fetcher,
		logger:     logger,
		state:      newRunState(),
	}
}

// Phase reports the coordinator's current phase.
func (c *Coordinator) Phase() Phase {
	return c.state.current()
}

// groupPlan is one group's share of the run: its entries, resolved output
// directory, and the tasks still owed after partitioning.
type groupPlan struct {
	group     catalog.Group
	entries   []catalog.Entry
	outputDir string
}

// Run executes the pipeline once. Per-entry failures are recorded and
// reported, never fatal; only checkpoint store failures abort the run.
func (c *Coordinator) Run(ctx context.Context, opts Options) (*Report, error) {
	started := time.Now()
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, c.logger)

	lock := flock.New(filepath.Join(c.cfg.Paths.CheckpointDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "lock",
			"another run holds the checkpoint store", nil)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	if opts.Clean {
		if err := c.cleanStart(ctx, logger); err != nil {
			return c.abort(err)
		}
	}

	reset, err := c.store.ResetInProgress(ctx)
	if err != nil {
		return c.abort(err)
	}
	if reset > 0 {
		logger.Info("reset stale in_progress records", logging.Int64("count", reset))
	}

	c.state.set(PhaseEnumerating)
	plans, err := c.enumerate(ctx, logger)
	if err != nil {
		return nil, err
	}

	force := opts.Force || c.cfg.Fetch.ForceRefetch
	index := dedup.NewIndex()
	tasks, skipped, priorAttempts, err := c.partition(ctx, plans, index, force)
	if err != nil {
		return c.abort(err)
	}
	logger.Info("run planned",
		logging.Int("groups", len(plans)),
		logging.Int("tasks", len(tasks)),
		logging.Int("skipped", skipped))

	c.state.set(PhaseFetching)
	scheduler := fetch.NewScheduler(c.fetcher, fetch.Policy{
		Concurrency:          c.cfg.Fetch.Concurrency,
		MaxRetries:           c.cfg.Fetch.MaxRetries,
		RetryDelay:           c.cfg.RetryDelay(),
		TranscodeConcurrency: c.cfg.Transcode.Concurrency,
	}, transcode.Policy{
		Quality:       c.cfg.Transcode.Quality,
		MaxDimension:  c.cfg.Transcode.MaxDimension,
		MinInputBytes: c.cfg.Fetch.MinAssetBytes,
	}, index, c.logger)

	recorder := newStoreRecorder(c.store, priorAttempts)
	summary, err := scheduler.Run(ctx, tasks, recorder)
	if err != nil {
		if services.IsRunFatal(err) {
			return c.abort(err)
		}
		return nil, err
	}

	c.state.set(PhaseAggregating)
	report, err := c.aggregate(ctx, plans, runID, started, skipped, summary)
	if err != nil {
		if services.IsRunFatal(err) {
			return c.abort(err)
		}
		return nil, err
	}

	c.state.set(PhaseDone)
	logger.Info("run complete",
		logging.Int("completed", report.Completed),
		logging.Int("failed", report.Failed),
		logging.Int("skipped", report.Skipped),
		logging.Int("duplicates", report.Duplicates),
		logging.Duration("elapsed", time.Since(started)))
	return report, nil
}

func (c *Coordinator) abort(err error) (*Report, error) {
	c.state.set(PhaseAborted)
	return nil, err
}

func (c *Coordinator) cleanStart(ctx context.Context, logger *slog.Logger) error {
	removed, err := c.store.Clear(ctx)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(c.cfg.Paths.OutputDir); err != nil {
		return fmt.Errorf("remove output directory: %w", err)
	}
	if err := os.MkdirAll(c.cfg.Paths.OutputDir, 0o755); err != nil {
		return fmt.Errorf("recreate output directory: %w", err)
	}
	logger.Info("clean start", logging.Int64("checkpoints_removed", removed))
	return nil
}

func (c *Coordinator) enumerate(ctx context.Context, logger *slog.Logger) ([]groupPlan, error) {
	ctx = services.WithPhase(ctx, string(PhaseEnumerating))
	groups, err := c.enumerator.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate groups: %w", err)
	}

	plans := make([]groupPlan, 0, len(groups))
	for _, group := range groups {
		entries, err := c.enumerator.Entries(ctx, group)
		if err != nil {
			return nil, fmt.Errorf("enumerate entries for %s: %w", group.Key, err)
		}
		plan := groupPlan{
			group:     group,
			entries:   entries,
			outputDir: filepath.Join(c.cfg.Paths.OutputDir, textutil.SanitizeName(group.DisplayName)),
		}
		plans = append(plans, plan)
		logging.WithContext(services.WithGroup(ctx, group.Key), logger).Debug("group enumerated",
			logging.Int("entries", len(entries)),
			logging.Bool("catalog_complete", group.Complete))
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].group.Key < plans[j].group.Key })
	return plans, nil
}

// partition splits entries into tasks still owed and entries already
// satisfied. Fingerprints from completed checkpoints seed the dedup index so
// a resumed run still shares artifacts with work finished before the
// interruption.
func (c *Coordinator) partition(ctx context.Context, plans []groupPlan, index *dedup.Index, force bool) (tasks []fetch.Task, skipped int, priorAttempts map[string]int, err error) {
	priorAttempts = make(map[string]int)
	for _, plan := range plans {
		for _, entry := range plan.entries {
			if entry.AssetURL == "" {
				skipped++
				continue
			}

			existing, err := c.store.Get(ctx, entry.GroupKey, entry.EntityID)
			if err != nil {
				return nil, 0, nil, err
			}
			if existing != nil && existing.Status == checkpoint.StatusCompleted && !force {
				skipped++
				index.Seed(existing.ContentFingerprint, existing.OutputPath)
				continue
			}
			if existing != nil {
				priorAttempts[existing.Key()] = existing.Attempts
			}

			tasks = append(tasks, fetch.Task{
				GroupKey:    entry.GroupKey,
				EntityID:    entry.EntityID,
				DisplayName: entry.DisplayName,
				AssetURL:    catalog.NormalizeAssetURL(entry.AssetURL),
				OutputPath:  filepath.Join(plan.outputDir, textutil.ArtifactFileName(plan.group.DisplayName, entry.DisplayName)),
			})
		}
	}
	return tasks, skipped, priorAttempts, nil
}

// aggregate rebuilds each group's aggregate from work records, persists it,
// and assembles the run report. Records, not in-memory counters, are the
// source of truth so resumed runs report consistent totals.
func (c *Coordinator) aggregate(ctx context.Context, plans []groupPlan, runID string, started time.Time, skipped int, summary fetch.Summary) (*Report, error) {
	ctx = services.WithPhase(ctx, string(PhaseAggregating))

	report := &Report{
		RunID:      runID,
		StartedAt:  started.UTC(),
		Skipped:    skipped,
		Duplicates: summary.Duplicates,
	}
	var indexEntries []IndexEntry

	for _, plan := range plans {
		records, err := c.store.ListGroup(ctx, plan.group.Key)
		if err != nil {
			return nil, err
		}
		byEntity := make(map[string]*checkpoint.WorkRecord, len(records))
		groupReport := GroupReport{
			GroupKey:        plan.group.Key,
			DisplayName:     plan.group.DisplayName,
			TotalEntries:    len(plan.entries),
			CatalogComplete: plan.group.Complete,
			OutputDirectory: plan.outputDir,
		}
		for _, record := range records {
			byEntity[record.EntityID] = record
			switch record.Status {
			case checkpoint.StatusCompleted:
				groupReport.Completed++
			case checkpoint.StatusFailed:
				groupReport.Failed++
				report.Failures = append(report.Failures, Failure{
					GroupKey: record.GroupKey,
					EntityID: record.EntityID,
					Reason:   record.Reason,
				})
			}
		}

		if err := c.store.PutGroup(ctx, &checkpoint.GroupRun{
			GroupKey:        plan.group.Key,
			TotalEntries:    groupReport.TotalEntries,
			CompletedCount:  groupReport.Completed,
			FailedCount:     groupReport.Failed,
			OutputDirectory: plan.outputDir,
		}); err != nil {
			return nil, err
		}

		report.TotalEntries += len(plan.entries)
		report.Completed += groupReport.Completed
		report.Failed += groupReport.Failed
		report.Groups = append(report.Groups, groupReport)

		for _, entry := range plan.entries {
			artifact := filepath.Join(plan.outputDir, textutil.ArtifactFileName(plan.group.DisplayName, entry.DisplayName))
			if record, ok := byEntity[entry.EntityID]; ok && record.OutputPath != "" {
				artifact = record.OutputPath
			}
			indexEntries = append(indexEntries, IndexEntry{
				GroupKey:    entry.GroupKey,
				EntityID:    entry.EntityID,
				DisplayName: entry.DisplayName,
				Artifact:    artifact,
				Exists:      fileutil.Exists(artifact),
			})
		}
	}

	report.FinishedAt = time.Now().UTC()
	report.ElapsedSeconds = report.FinishedAt.Sub(report.StartedAt).Seconds()

	if _, err := writeCatalogIndex(c.cfg.Paths.MetadataDir, indexEntries); err != nil {
		return nil, err
	}
	if _, err := report.Write(c.cfg.Paths.MetadataDir); err != nil {
		return nil, err
	}
	return report, nil
}
