package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"thumbsmith/internal/catalog"
	"thumbsmith/internal/checkpoint"
	"thumbsmith/internal/pipeline"
	"thumbsmith/internal/services"
	"thumbsmith/internal/testsupport"
)

type memEnumerator struct {
	groups  []catalog.Group
	entries map[string][]catalog.Entry
}

func (e *memEnumerator) Groups(ctx context.Context) ([]catalog.Group, error) {
	return e.groups, nil
}

func (e *memEnumerator) Entries(ctx context.Context, group catalog.Group) ([]catalog.Entry, error) {
	return e.entries[group.Key], nil
}

type stubFetcher struct {
	payloads map[string][]byte
	calls    atomic.Int64
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	payload, ok := f.payloads[url]
	if !ok {
		return nil, services.Wrap(services.ErrInvalidAsset, "fetch", "status", url+" returned 404", nil)
	}
	return payload, nil
}

func pngBytes(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func singleGroupEnumerator(entries ...catalog.Entry) *memEnumerator {
	return &memEnumerator{
		groups:  []catalog.Group{{Key: "peter-sons", DisplayName: "Peter & Sons", Complete: true}},
		entries: map[string][]catalog.Entry{"peter-sons": entries},
	}
}

func TestRunProducesArtifactsAndReport(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(1))
	cfg.Fetch.MinAssetBytes = 10
	store := testsupport.MustOpenStore(t, cfg)

	enumerator := singleGroupEnumerator(
		catalog.Entry{EntityID: "g1", GroupKey: "peter-sons", DisplayName: "Alpha Game!!", AssetURL: "https://a/1.png"},
		catalog.Entry{EntityID: "g2", GroupKey: "peter-sons", DisplayName: "Beta", AssetURL: "https://a/2.png"},
		catalog.Entry{EntityID: "g3", GroupKey: "peter-sons", DisplayName: "No Art", AssetURL: ""},
		catalog.Entry{EntityID: "g4", GroupKey: "peter-sons", DisplayName: "Broken", AssetURL: "https://a/missing.png"},
	)
	fetcher := &stubFetcher{payloads: map[string][]byte{
		"https://a/1.png": pngBytes(t, color.NRGBA{R: 255, A: 255}),
		"https://a/2.png": pngBytes(t, color.NRGBA{G: 255, A: 255}),
	}}

	coordinator := pipeline.New(cfg, store, enumerator, fetcher, nil)
	report, err := coordinator.Run(context.Background(), pipeline.Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if coordinator.Phase() != pipeline.PhaseDone {
		t.Fatalf("phase = %s, want done", coordinator.Phase())
	}

	if report.TotalEntries != 4 {
		t.Fatalf("total entries = %d, want 4", report.TotalEntries)
	}
	if report.Completed != 2 {
		t.Fatalf("completed = %d, want 2", report.Completed)
	}
	if report.Failed != 1 {
		t.Fatalf("failed = %d, want 1", report.Failed)
	}
	if report.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", report.Skipped)
	}
	if len(report.Failures) != 1 || report.Failures[0].EntityID != "g4" {
		t.Fatalf("failures = %+v", report.Failures)
	}
	if report.Failures[0].Reason != "invalid_asset" {
		t.Fatalf("failure reason = %q", report.Failures[0].Reason)
	}
	if len(report.Groups) != 1 || !report.Groups[0].CatalogComplete {
		t.Fatalf("groups = %+v", report.Groups)
	}

	artifact := filepath.Join(cfg.Paths.OutputDir, "Peter & Sons", "Peter & Sons - Alpha Game!!.webp")
	if _, err := os.Stat(artifact); err != nil {
		t.Fatalf("expected artifact at %s: %v", artifact, err)
	}

	reportPath := filepath.Join(cfg.Paths.MetadataDir, "run-"+report.RunID+".json")
	loaded, err := pipeline.ReadReport(reportPath)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if loaded.Completed != report.Completed || loaded.RunID != report.RunID {
		t.Fatalf("persisted report mismatch: %+v", loaded)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.MetadataDir, "catalog-index.json")); err != nil {
		t.Fatalf("expected catalog index: %v", err)
	}
	csvData, err := os.ReadFile(filepath.Join(cfg.Paths.MetadataDir, "catalog-index.csv"))
	if err != nil {
		t.Fatalf("expected csv catalog index: %v", err)
	}
	if !strings.HasPrefix(string(csvData), "group_key,entity_id,display_name,artifact,exists") {
		t.Fatalf("csv index missing header:\n%s", csvData)
	}

	run, err := store.GetGroup(context.Background(), "peter-sons")
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if run == nil || run.CompletedCount != 2 || run.FailedCount != 1 || run.TotalEntries != 4 {
		t.Fatalf("group run = %+v", run)
	}
}

func TestRunResumeIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(1))
	cfg.Fetch.MinAssetBytes = 10
	store := testsupport.MustOpenStore(t, cfg)

	enumerator := singleGroupEnumerator(
		catalog.Entry{EntityID: "g1", GroupKey: "peter-sons", DisplayName: "One", AssetURL: "https://a/1.png"},
		catalog.Entry{EntityID: "g2", GroupKey: "peter-sons", DisplayName: "Two", AssetURL: "https://a/2.png"},
	)
	fetcher := &stubFetcher{payloads: map[string][]byte{
		"https://a/1.png": pngBytes(t, color.NRGBA{R: 200, A: 255}),
		"https://a/2.png": pngBytes(t, color.NRGBA{B: 200, A: 255}),
	}}

	first, err := pipeline.New(cfg, store, enumerator, fetcher, nil).Run(context.Background(), pipeline.Options{})
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	fetchesAfterFirst := fetcher.calls.Load()

	second, err := pipeline.New(cfg, store, enumerator, fetcher, nil).Run(context.Background(), pipeline.Options{})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if got := fetcher.calls.Load(); got != fetchesAfterFirst {
		t.Fatalf("second run performed %d extra fetches", got-fetchesAfterFirst)
	}
	if second.Completed != first.Completed || second.Failed != first.Failed {
		t.Fatalf("resume changed counts: first %+v second %+v", first, second)
	}
}

func TestRunRetriesInProgressFromPriorRun(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(1))
	cfg.Fetch.MinAssetBytes = 10
	store := testsupport.MustOpenStore(t, cfg)

	donePayload := pngBytes(t, color.NRGBA{R: 10, A: 255})
	doneArtifact := filepath.Join(cfg.Paths.OutputDir, "Peter & Sons", "Peter & Sons - Done.webp")
	testsupport.PutRecord(t, store, &checkpoint.WorkRecord{
		GroupKey:           "peter-sons",
		EntityID:           "done",
		Status:             checkpoint.StatusCompleted,
		Attempts:           1,
		ContentFingerprint: "abc123",
		OutputPath:         doneArtifact,
	})
	testsupport.PutRecord(t, store, &checkpoint.WorkRecord{
		GroupKey: "peter-sons",
		EntityID: "stuck",
		Status:   checkpoint.StatusInProgress,
		Attempts: 1,
	})

	enumerator := singleGroupEnumerator(
		catalog.Entry{EntityID: "done", GroupKey: "peter-sons", DisplayName: "Done", AssetURL: "https://a/done.png"},
		catalog.Entry{EntityID: "stuck", GroupKey: "peter-sons", DisplayName: "Stuck", AssetURL: "https://a/stuck.png"},
	)
	fetcher := &stubFetcher{payloads: map[string][]byte{
		"https://a/done.png":  donePayload,
		"https://a/stuck.png": pngBytes(t, color.NRGBA{G: 10, A: 255}),
	}}

	report, err := pipeline.New(cfg, store, enumerator, fetcher, nil).Run(context.Background(), pipeline.Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("fetch calls = %d, want 1 (only the stuck entry)", got)
	}
	if report.Completed != 2 {
		t.Fatalf("completed = %d, want 2", report.Completed)
	}

	record, err := store.Get(context.Background(), "peter-sons", "stuck")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record == nil || record.Status != checkpoint.StatusCompleted {
		t.Fatalf("stuck record = %+v, want completed", record)
	}
	if record.Attempts != 2 {
		t.Fatalf("attempts = %d, want prior 1 + this run 1", record.Attempts)
	}

	preserved, err := store.Get(context.Background(), "peter-sons", "done")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if preserved.ContentFingerprint != "abc123" {
		t.Fatalf("completed record was rewritten: %+v", preserved)
	}
}

func TestRunForceRefetches(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(1))
	cfg.Fetch.MinAssetBytes = 10
	store := testsupport.MustOpenStore(t, cfg)

	enumerator := singleGroupEnumerator(
		catalog.Entry{EntityID: "g1", GroupKey: "peter-sons", DisplayName: "One", AssetURL: "https://a/1.png"},
	)
	fetcher := &stubFetcher{payloads: map[string][]byte{
		"https://a/1.png": pngBytes(t, color.NRGBA{R: 44, A: 255}),
	}}

	if _, err := pipeline.New(cfg, store, enumerator, fetcher, nil).Run(context.Background(), pipeline.Options{}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if _, err := pipeline.New(cfg, store, enumerator, fetcher, nil).Run(context.Background(), pipeline.Options{Force: true}); err != nil {
		t.Fatalf("forced run failed: %v", err)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Fatalf("fetch calls = %d, want 2", got)
	}
}

func TestRunDeduplicatesAcrossEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(1), testsupport.WithFetchConcurrency(1))
	cfg.Fetch.MinAssetBytes = 10
	store := testsupport.MustOpenStore(t, cfg)

	shared := pngBytes(t, color.NRGBA{R: 7, G: 7, B: 7, A: 255})
	enumerator := singleGroupEnumerator(
		catalog.Entry{EntityID: "g1", GroupKey: "peter-sons", DisplayName: "One", AssetURL: "https://a/1.png"},
		catalog.Entry{EntityID: "g2", GroupKey: "peter-sons", DisplayName: "Two", AssetURL: "https://a/2.png"},
	)
	fetcher := &stubFetcher{payloads: map[string][]byte{
		"https://a/1.png": shared,
		"https://a/2.png": shared,
	}}

	report, err := pipeline.New(cfg, store, enumerator, fetcher, nil).Run(context.Background(), pipeline.Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Duplicates != 1 {
		t.Fatalf("duplicates = %d, want 1", report.Duplicates)
	}
	if report.Completed != 2 {
		t.Fatalf("completed = %d, want 2", report.Completed)
	}

	groupDir := filepath.Join(cfg.Paths.OutputDir, "Peter & Sons")
	files, err := os.ReadDir(groupDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("%d artifacts written, want 1", len(files))
	}
}

func TestRunCleanStartDiscardsPriorState(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(1))
	cfg.Fetch.MinAssetBytes = 10
	store := testsupport.MustOpenStore(t, cfg)

	enumerator := singleGroupEnumerator(
		catalog.Entry{EntityID: "g1", GroupKey: "peter-sons", DisplayName: "One", AssetURL: "https://a/1.png"},
	)
	fetcher := &stubFetcher{payloads: map[string][]byte{
		"https://a/1.png": pngBytes(t, color.NRGBA{R: 99, A: 255}),
	}}

	if _, err := pipeline.New(cfg, store, enumerator, fetcher, nil).Run(context.Background(), pipeline.Options{}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if _, err := pipeline.New(cfg, store, enumerator, fetcher, nil).Run(context.Background(), pipeline.Options{Clean: true}); err != nil {
		t.Fatalf("clean run failed: %v", err)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Fatalf("fetch calls = %d, want 2 (clean start refetches)", got)
	}
}

type cancellingFetcher struct {
	cancel  context.CancelFunc
	payload []byte
	calls   atomic.Int64
}

func (f *cancellingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	f.cancel()
	return f.payload, nil
}

func TestRunInterruptPersistsFinalizedWork(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(1))
	cfg.Fetch.MinAssetBytes = 10
	store := testsupport.MustOpenStore(t, cfg)

	enumerator := singleGroupEnumerator(
		catalog.Entry{EntityID: "g1", GroupKey: "peter-sons", DisplayName: "One", AssetURL: "https://a/1.png"},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := &cancellingFetcher{cancel: cancel, payload: pngBytes(t, color.NRGBA{R: 33, A: 255})}

	coordinator := pipeline.New(cfg, store, enumerator, fetcher, nil)
	_, err := coordinator.Run(ctx, pipeline.Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if coordinator.Phase() == pipeline.PhaseAborted {
		t.Fatal("interrupt must not reach the aborted phase")
	}

	record, err := store.Get(context.Background(), "peter-sons", "g1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record == nil || record.Status != checkpoint.StatusCompleted {
		t.Fatalf("finalized work lost on interrupt: %+v", record)
	}

	// A resumed run owes nothing.
	resumed, err := pipeline.New(cfg, store, enumerator, fetcher, nil).Run(context.Background(), pipeline.Options{})
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("resume refetched finalized work: %d calls", got)
	}
	if resumed.Completed != 1 {
		t.Fatalf("resume completed = %d, want 1", resumed.Completed)
	}
}

func TestRunAbortsWhenStoreUnavailable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	store.Close()

	enumerator := singleGroupEnumerator(
		catalog.Entry{EntityID: "g1", GroupKey: "peter-sons", DisplayName: "One", AssetURL: "https://a/1.png"},
	)
	coordinator := pipeline.New(cfg, store, enumerator, &stubFetcher{}, nil)
	_, err := coordinator.Run(context.Background(), pipeline.Options{})
	if err == nil {
		t.Fatal("expected run to abort")
	}
	if !errors.Is(err, services.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if coordinator.Phase() != pipeline.PhaseAborted {
		t.Fatalf("phase = %s, want aborted", coordinator.Phase())
	}
}
