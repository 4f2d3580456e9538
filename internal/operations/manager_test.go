package operations

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsheet/internal/dedup"
	"finsheet/internal/learning"
	"finsheet/pkg/contracts/domain"
)

func trackerSheet() *domain.Sheet {
	return &domain.Sheet{
		Name: "Monthly Net Worth Tracker",
		Data: [][]interface{}{
			{"Account", "Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
			{"Checking", "1,200.00", "1,250.00", "1,300.00", "1,100.00", "1,400.00", "1,500.00", "1,450.00", "1,600.00", "1,550.00", "1,700.00", "1,750.00", "1,800.00"},
			{"Savings", "5,000.00", "5,100.00", "5,200.00", "5,300.00", "5,400.00", "5,500.00", "5,600.00", "5,700.00", "5,800.00", "5,900.00", "6,000.00", "6,100.00"},
			{"Brokerage", "10,000.00", "10,500.00", "9,800.00", "11,000.00", "11,200.00", "11,500.00", "12,000.00", "12,300.00", "12,100.00", "12,600.00", "13,000.00", "13,400.00"},
			{"Mortgage", "(150,000.00)", "(149,500.00)", "(149,000.00)", "(148,500.00)", "(148,000.00)", "(147,500.00)", "(147,000.00)", "(146,500.00)", "(146,000.00)", "(145,500.00)", "(145,000.00)", "(144,500.00)"},
			{"Car Loan", "(8,000.00)", "(7,800.00)", "(7,600.00)", "(7,400.00)", "(7,200.00)", "(7,000.00)", "(6,800.00)", "(6,600.00)", "(6,400.00)", "(6,200.00)", "(6,000.00)", "(5,800.00)"},
		},
	}
}

func trackerFingerprint() FileFingerprint {
	return FileFingerprint{
		Name:    "tracker.xlsx",
		Size:    4096,
		ModTime: time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC),
	}
}

type testEnv struct {
	manager  *Manager
	learning *learning.System
	cache    *ResultCache
}

func newTestEnv(executor Executor) *testEnv {
	system := learning.NewSystem(learning.NewMemoryStore(), nil)
	cache := NewResultCache(5*time.Minute, 16)
	manager := NewManager(ManagerConfig{
		Executor: executor,
		Cache:    cache,
		Metrics:  NewMetrics(prometheus.NewRegistry()),
		Learning: system,
	})
	return &testEnv{manager: manager, learning: system, cache: cache}
}

func TestImportSheetEndToEnd(t *testing.T) {
	env := newTestEnv(nil)
	options := ImportOptions{ReferenceYear: 2024}

	result, err := env.manager.ImportSheet(context.Background(), trackerSheet(), trackerFingerprint(), options)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Len(t, result.Accounts, 5)
	assert.Len(t, result.Transactions, 60)
	assert.Equal(t, domain.StructureTable, result.Metadata.Structure)
	assert.Contains(t, result.Metadata.MappingSource, "classifier")
	assert.False(t, result.Metadata.CacheHit)
	assert.Greater(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 100.0)

	require.Len(t, result.Pipeline.Phases, 7)
	wantPhases := []string{"parse", "analyze", "classify", "map", "transform", "validate", "learn"}
	for i, phase := range result.Pipeline.Phases {
		assert.Equal(t, wantPhases[i], phase.Name)
		assert.True(t, phase.Success, phase.Name)
	}
}

func TestImportSheetRejectsInvalidOptions(t *testing.T) {
	env := newTestEnv(nil)
	_, err := env.manager.ImportSheet(context.Background(), trackerSheet(), trackerFingerprint(),
		ImportOptions{DedupStrategy: "bogus"})
	require.Error(t, err)
}

func TestImportSheetCacheHitIsByteIdentical(t *testing.T) {
	env := newTestEnv(nil)
	options := ImportOptions{ReferenceYear: 2024, EnableCaching: true}

	first, err := env.manager.ImportSheet(context.Background(), trackerSheet(), trackerFingerprint(), options)
	require.NoError(t, err)
	require.False(t, first.Metadata.CacheHit)
	require.Equal(t, 1, env.cache.Len())

	second, err := env.manager.ImportSheet(context.Background(), trackerSheet(), trackerFingerprint(), options)
	require.NoError(t, err)
	assert.True(t, second.Metadata.CacheHit)

	// Apart from the hit marker, the cached response is byte-identical to
	// the run that populated it.
	second.Metadata.CacheHit = false
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestImportSheetCancellationSkipsCacheWrite(t *testing.T) {
	env := newTestEnv(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.manager.ImportSheet(ctx, trackerSheet(), trackerFingerprint(),
		ImportOptions{ReferenceYear: 2024, EnableCaching: true})
	require.Error(t, err)
	assert.Zero(t, env.cache.Len())
}

// cancelAfterStage hands tasks to the wrapped executor and cancels the
// context once the named stage has completed, so the next phase sees a
// dead context.
type cancelAfterStage struct {
	inner  Executor
	stage  Stage
	cancel context.CancelFunc
}

func (e *cancelAfterStage) Execute(ctx context.Context, task Task) <-chan TaskResult {
	res := <-e.inner.Execute(ctx, task)
	if task.Stage == e.stage {
		e.cancel()
	}
	out := make(chan TaskResult, 1)
	out <- res
	return out
}

func (e *cancelAfterStage) Close() { e.inner.Close() }

func TestImportSheetCancelledBetweenPhases(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv(&cancelAfterStage{
		inner:  NewSyncExecutor(),
		stage:  StageTransformData,
		cancel: cancel,
	})

	result, err := env.manager.ImportSheet(ctx, trackerSheet(), trackerFingerprint(),
		ImportOptions{ReferenceYear: 2024, EnableCaching: true})
	require.Error(t, err)
	require.NotNil(t, result)

	// The validate phase reports the cancellation as a failure; phases
	// that already ran stay in the report and nothing is cached.
	phases := result.Pipeline.Phases
	require.NotEmpty(t, phases)
	last := phases[len(phases)-1]
	assert.Equal(t, "validate", last.Name)
	assert.False(t, last.Success)
	assert.Zero(t, env.cache.Len())
}

func TestImportSheetLearnsTemplate(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()
	options := ImportOptions{ReferenceYear: 2024, TemplateName: "tracker"}

	_, err := env.manager.ImportSheet(ctx, trackerSheet(), trackerFingerprint(), options)
	require.NoError(t, err)

	templates, err := env.learning.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "tracker", templates[0].Name)
	assert.Equal(t, 1, templates[0].UsageCount)

	// The second run of the same sheet matches and reinforces the
	// template instead of inserting another.
	second, err := env.manager.ImportSheet(ctx, trackerSheet(), trackerFingerprint(), options)
	require.NoError(t, err)
	assert.Equal(t, "tracker", second.Metadata.TemplateUsed)

	templates, err = env.learning.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, 2, templates[0].UsageCount)
}

func TestWorkerPoolAndSyncProduceSameRecords(t *testing.T) {
	pool := NewWorkerPool(4, nil)
	defer pool.Close()

	options := ImportOptions{ReferenceYear: 2024}
	pooled, err := newTestEnv(pool).manager.ImportSheet(context.Background(), trackerSheet(), trackerFingerprint(), options)
	require.NoError(t, err)
	inline, err := newTestEnv(NewSyncExecutor()).manager.ImportSheet(context.Background(), trackerSheet(), trackerFingerprint(), options)
	require.NoError(t, err)

	assert.Equal(t, recordKeys(pooled), recordKeys(inline))
	assert.Equal(t, txnAmounts(pooled), txnAmounts(inline))
	assert.Equal(t, pooled.Statistics, inline.Statistics)
	assert.Equal(t, pooled.Confidence, inline.Confidence)
	assert.Equal(t, pooled.Success, inline.Success)
}

func TestImportSheetPublishesProgress(t *testing.T) {
	sink := &recordingSink{}
	broadcaster := NewProgressBroadcaster(nil)
	broadcaster.Subscribe(sink)

	manager := NewManager(ManagerConfig{
		Broadcaster: broadcaster,
		Learning:    learning.NewSystem(learning.NewMemoryStore(), nil),
	})

	_, err := manager.ImportSheet(context.Background(), trackerSheet(), trackerFingerprint(),
		ImportOptions{ReferenceYear: 2024})
	require.NoError(t, err)

	events := sink.snapshot()
	require.NotEmpty(t, events)
	final := events[len(events)-1]
	assert.Equal(t, "learn", final.Phase)
	assert.Equal(t, "completed", final.Status)
	assert.Equal(t, 100, final.Percentage)
}

func TestImportBatchMergesDuplicates(t *testing.T) {
	env := newTestEnv(nil)
	files := []NamedSheets{
		{FileName: "a.xlsx", Fingerprint: trackerFingerprint(), Sheets: []*domain.Sheet{trackerSheet()}},
		{FileName: "b.xlsx", Fingerprint: trackerFingerprint(), Sheets: []*domain.Sheet{trackerSheet()}},
	}

	batch, err := env.manager.ImportBatch(context.Background(), files, dedup.StrategySmart,
		ImportOptions{ReferenceYear: 2024})
	require.NoError(t, err)

	assert.Len(t, batch.Accounts, 5)
	assert.Len(t, batch.Transactions, 60)
	assert.Equal(t, 5, batch.DuplicatesFound) // one per duplicated account
	assert.Equal(t, 5, batch.DuplicatesHandled)
	require.Len(t, batch.Files, 2)
	for _, fr := range batch.Files {
		assert.True(t, fr.Success, fr.FileName)
	}
}

// concurrencyTrackingExecutor records the peak number of tasks in
// flight across the wrapped executor.
type concurrencyTrackingExecutor struct {
	inner  Executor
	mu     sync.Mutex
	active int
	peak   int
}

func (e *concurrencyTrackingExecutor) Execute(ctx context.Context, task Task) <-chan TaskResult {
	e.mu.Lock()
	e.active++
	if e.active > e.peak {
		e.peak = e.active
	}
	e.mu.Unlock()
	res := <-e.inner.Execute(ctx, task)
	e.mu.Lock()
	e.active--
	e.mu.Unlock()
	out := make(chan TaskResult, 1)
	out <- res
	return out
}

func (e *concurrencyTrackingExecutor) Close() { e.inner.Close() }

func TestImportBatchHonorsWorkerBudget(t *testing.T) {
	exec := &concurrencyTrackingExecutor{inner: NewSyncExecutor()}
	manager := NewManager(ManagerConfig{
		Executor: exec,
		Workers:  1,
		Learning: learning.NewSystem(learning.NewMemoryStore(), nil),
	})

	files := []NamedSheets{
		{FileName: "a.xlsx", Fingerprint: trackerFingerprint(), Sheets: []*domain.Sheet{trackerSheet()}},
		{FileName: "b.xlsx", Fingerprint: trackerFingerprint(), Sheets: []*domain.Sheet{trackerSheet()}},
		{FileName: "c.xlsx", Fingerprint: trackerFingerprint(), Sheets: []*domain.Sheet{trackerSheet()}},
	}
	_, err := manager.ImportBatch(context.Background(), files, dedup.StrategySmart,
		ImportOptions{ReferenceYear: 2024})
	require.NoError(t, err)

	assert.Equal(t, 1, exec.peak)
}

func TestImportBatchReportsFailedFiles(t *testing.T) {
	env := newTestEnv(nil)
	files := []NamedSheets{
		{FileName: "good.xlsx", Fingerprint: trackerFingerprint(), Sheets: []*domain.Sheet{trackerSheet()}},
		{FileName: "empty.xlsx"},
	}

	batch, err := env.manager.ImportBatch(context.Background(), files, dedup.StrategySmart,
		ImportOptions{ReferenceYear: 2024})
	require.NoError(t, err)

	assert.Len(t, batch.Accounts, 5)
	require.Len(t, batch.Files, 2)
	assert.True(t, batch.Files[0].Success)
	assert.False(t, batch.Files[1].Success)
	assert.NotEmpty(t, batch.Files[1].Error)
}

type recordingSink struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (s *recordingSink) Publish(event ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) snapshot() []ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ProgressEvent(nil), s.events...)
}

func recordKeys(result *domain.ImportResult) map[string]bool {
	keys := make(map[string]bool, len(result.Accounts))
	for _, a := range result.Accounts {
		keys[a.Key()] = true
	}
	return keys
}

func txnAmounts(result *domain.ImportResult) []float64 {
	out := make([]float64, len(result.Transactions))
	for i, txn := range result.Transactions {
		out[i] = txn.Amount
	}
	return out
}
