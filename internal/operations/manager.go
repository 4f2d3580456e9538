package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"finsheet/internal/analyzer"
	"finsheet/internal/classifier"
	"finsheet/internal/dedup"
	"finsheet/internal/errors"
	"finsheet/internal/infrastructure"
	"finsheet/internal/learning"
	"finsheet/internal/mapper"
	"finsheet/internal/transform"
	"finsheet/pkg/contracts/domain"
)

// The seven pipeline phases, in order. They run sequentially within one
// import; only the stateless stage work inside analyze/classify/
// transform/validate is offloaded to workers.
var phaseNames = [7]string{"parse", "analyze", "classify", "map", "transform", "validate", "learn"}

// ImportOptions tunes one import. The zero value is usable.
type ImportOptions struct {
	DedupStrategy  string `json:"dedup_strategy,omitempty" validate:"omitempty,oneof=strict smart none"`
	UpdateStrategy string `json:"update_strategy,omitempty" validate:"omitempty,oneof=conservative aggressive"`
	EnableCaching  bool   `json:"enable_caching,omitempty"`
	ChunkSize      int    `json:"chunk_size,omitempty" validate:"omitempty,min=1"`
	ReferenceYear  int    `json:"reference_year,omitempty" validate:"omitempty,min=1900,max=2200"`
	TemplateName   string `json:"template_name,omitempty"`
	SaveTemplate   bool   `json:"save_template,omitempty"`
}

// NamedSheets is one file's worth of extracted sheets within a batch.
type NamedSheets struct {
	FileName    string
	Fingerprint FileFingerprint
	Sheets      []*domain.Sheet
}

// Manager drives the pipeline phases for single and multi-file imports.
// It owns phase sequencing, caching, progress and the learn-phase
// writes; the stateless stage functions run on whichever Executor was
// injected.
type Manager struct {
	logger      *slog.Logger
	executor    Executor
	cache       *ResultCache
	metrics     *Metrics
	broadcaster *ProgressBroadcaster
	learning    *learning.System
	dedup       *dedup.Engine
	synthesizer *mapper.Synthesizer
	validate    *validator.Validate

	balanceMagnitude float64
	chunkSize        int
	matchThreshold   float64
	batchLimit       int
}

// ManagerConfig collects the manager's collaborators.
type ManagerConfig struct {
	Logger           *slog.Logger
	Executor         Executor
	Cache            *ResultCache
	Metrics          *Metrics
	Broadcaster      *ProgressBroadcaster
	Learning         *learning.System
	BalanceMagnitude float64
	ChunkSize        int
	MatchThreshold   float64
	// Workers bounds batch-level file concurrency. Zero means the
	// default of 4.
	Workers int
}

// NewManager wires a manager. A nil Executor falls back to the
// synchronous path.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	executor := cfg.Executor
	if executor == nil {
		executor = NewSyncExecutor()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = learning.EligibleThreshold
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Manager{
		logger:           logger.With(slog.String("component", "import_manager")),
		executor:         executor,
		cache:            cfg.Cache,
		metrics:          cfg.Metrics,
		broadcaster:      cfg.Broadcaster,
		learning:         cfg.Learning,
		dedup:            dedup.NewEngine(logger),
		synthesizer:      mapper.NewSynthesizer(logger),
		validate:         validator.New(),
		balanceMagnitude: cfg.BalanceMagnitude,
		chunkSize:        cfg.ChunkSize,
		matchThreshold:   cfg.MatchThreshold,
		batchLimit:       cfg.Workers,
	}
}

// phaseRecorder accumulates per-phase timing for the pipeline report.
type phaseRecorder struct {
	report  domain.PipelineReport
	started time.Time
}

func newPhaseRecorder() *phaseRecorder {
	return &phaseRecorder{started: time.Now()}
}

func (r *phaseRecorder) record(name string, start time.Time, success bool) {
	r.report.Phases = append(r.report.Phases, domain.PhaseResult{
		Name:     name,
		Duration: time.Since(start),
		Success:  success,
	})
}

func (r *phaseRecorder) finish() domain.PipelineReport {
	r.report.TotalTime = time.Since(r.started)
	return r.report
}

// ImportSheet runs the full pipeline on one sheet. Structural failures
// return a partial result alongside the error so callers can surface
// both the phases that ran and a recovery proposal.
func (m *Manager) ImportSheet(ctx context.Context, sheet *domain.Sheet, fp FileFingerprint, options ImportOptions) (*domain.ImportResult, error) {
	if err := m.validate.Struct(options); err != nil {
		return nil, errors.NewValidation(fmt.Sprintf("invalid import options: %v", err))
	}

	operationID := uuid.New().String()
	ctx = infrastructure.EnsureTraceID(ctx)
	logger := m.logger.With(
		slog.String("trace_id", infrastructure.GetTraceID(ctx)),
		slog.String("operation_id", operationID),
		slog.String("sheet", sheet.Name))

	var cacheKey string
	if options.EnableCaching && m.cache != nil {
		key, err := CacheKey(fp, options)
		if err != nil {
			return nil, err
		}
		cacheKey = key
		if cached, ok := m.cache.Get(cacheKey); ok {
			if m.metrics != nil {
				m.metrics.CacheHitsTotal.Inc()
			}
			cached.Metadata.CacheHit = true
			logger.Info("import served from cache")
			return cached, nil
		}
		if m.metrics != nil {
			m.metrics.CacheMissesTotal.Inc()
		}
	}

	start := time.Now()
	result, err := m.runPipeline(ctx, logger, operationID, sheet, options)
	if m.metrics != nil {
		m.metrics.ImportDuration.Observe(time.Since(start).Seconds())
		status := "success"
		if err != nil || !result.Success {
			status = "failure"
		}
		m.metrics.ImportsTotal.WithLabelValues(status).Inc()
	}
	if err != nil {
		return result, err
	}

	// An aborted import never populates the cache.
	if cacheKey != "" && ctx.Err() == nil && result.Success {
		if cerr := m.cache.Put(cacheKey, result); cerr != nil {
			logger.Warn("caching import result", slog.String("error", cerr.Error()))
		}
	}
	return result, nil
}

func (m *Manager) runPipeline(ctx context.Context, logger *slog.Logger, operationID string, sheet *domain.Sheet, options ImportOptions) (*domain.ImportResult, error) {
	recorder := newPhaseRecorder()
	result := &domain.ImportResult{
		Metadata: domain.ImportMetadata{
			SheetName:  sheet.Name,
			ImportedAt: time.Now().UTC(),
		},
	}

	fail := func(phase string, phaseStart time.Time, err error) (*domain.ImportResult, error) {
		recorder.record(phase, phaseStart, false)
		result.Pipeline = recorder.finish()
		ie := errors.AsImportError(err)
		result.Errors = append(result.Errors, ie.Issue())
		m.publish(operationID, phase, recorder, "failed")
		logger.Error("pipeline phase failed",
			slog.String("phase", phase),
			slog.String("error", ie.Error()))
		return result, ie
	}

	// Phase 1: parse. Input is already a cell matrix; this phase checks
	// the contract holds before anything downstream relies on it.
	phaseStart := time.Now()
	ctx, span := infrastructure.StartPhaseSpan(ctx, operationID, "parse")
	res := <-m.executor.Execute(ctx, Task{Stage: StageParseSheet, Run: func(context.Context) (interface{}, error) {
		if sheet == nil || sheet.RowCount() == 0 || sheet.ColumnCount() == 0 {
			return nil, errors.NewFileParse("sheet contains no cells", nil)
		}
		return sheet, nil
	}})
	span.End()
	if res.Err != nil {
		return fail("parse", phaseStart, res.Err)
	}
	recorder.record("parse", phaseStart, true)
	m.publish(operationID, "parse", recorder, "running")

	// Phase 2: analyze.
	phaseStart = time.Now()
	ctx, span = infrastructure.StartPhaseSpan(ctx, operationID, "analyze")
	res = <-m.executor.Execute(ctx, Task{Stage: StageAnalyzePatterns, Run: func(context.Context) (interface{}, error) {
		analysis := analyzer.AnalyzeSheet(sheet)
		if _, ok := analysis.Best(); !ok {
			return nil, errors.NewStructureDetection(
				fmt.Sprintf("no usable structure recognized in sheet %q", sheet.Name))
		}
		return analysis, nil
	}})
	span.End()
	if res.Err != nil {
		return fail("analyze", phaseStart, res.Err)
	}
	analysis := res.Value.(*analyzer.Analysis)
	if best, ok := analysis.Best(); ok {
		result.Metadata.Structure = best.Type
	}
	recorder.record("analyze", phaseStart, true)
	m.publish(operationID, "analyze", recorder, "running")

	// Phase 3: classify.
	phaseStart = time.Now()
	ctx, span = infrastructure.StartPhaseSpan(ctx, operationID, "classify")
	res = <-m.executor.Execute(ctx, Task{Stage: StageClassifyData, Run: func(context.Context) (interface{}, error) {
		return classifier.ClassifySheet(sheet, analysis, m.balanceMagnitude), nil
	}})
	span.End()
	if res.Err != nil {
		return fail("classify", phaseStart, res.Err)
	}
	classification := res.Value.(*domain.Classification)
	result.Warnings = append(result.Warnings, classification.Warnings...)
	recorder.record("classify", phaseStart, true)
	m.publish(operationID, "classify", recorder, "running")

	// Phase 4: map. Template lookup and synthesis stay on the
	// orchestrating goroutine because they read learned state.
	phaseStart = time.Now()
	ctx, span = infrastructure.StartPhaseSpan(ctx, operationID, "map")
	signature, template := m.lookupTemplate(ctx, logger, sheet, analysis)
	headers := headerStrings(sheet, analysis)
	mapping, source, err := m.synthesizer.Synthesize(sheet, classification, template, headers)
	span.End()
	if err != nil {
		return fail("map", phaseStart, err)
	}
	result.Metadata.MappingSource = source
	if template != nil {
		result.Metadata.TemplateUsed = template.Name
	}
	recorder.record("map", phaseStart, true)
	m.publish(operationID, "map", recorder, "running")

	// Phase 5: transform.
	phaseStart = time.Now()
	ctx, span = infrastructure.StartPhaseSpan(ctx, operationID, "transform")
	headerRow := -1
	if table, ok := analysis.Candidate(domain.StructureTable); ok {
		headerRow = table.HeaderRow
	}
	chunk := options.ChunkSize
	if chunk <= 0 {
		chunk = m.chunkSize
	}
	transformOpts := transform.Options{
		HeaderRow:     headerRow,
		ReferenceYear: options.ReferenceYear,
		ChunkSize:     chunk,
	}
	res = <-m.executor.Execute(ctx, Task{Stage: StageTransformData, Run: func(context.Context) (interface{}, error) {
		return transform.TransformSheet(sheet, mapping, transformOpts), nil
	}})
	span.End()
	if res.Err != nil {
		return fail("transform", phaseStart, res.Err)
	}
	transformed := res.Value.(*transform.Result)
	result.Accounts = transformed.Accounts
	result.Transactions = transformed.Transactions
	result.Statistics = transformed.Statistics
	result.Warnings = append(result.Warnings, transformed.Warnings...)
	recorder.record("transform", phaseStart, true)
	m.publish(operationID, "transform", recorder, "running")

	// Phase 6: validate. Consistency failures are fatal to this result
	// but phases that already ran stay reported.
	phaseStart = time.Now()
	ctx, span = infrastructure.StartPhaseSpan(ctx, operationID, "validate")
	res = <-m.executor.Execute(ctx, Task{Stage: StageValidateData, Run: func(context.Context) (interface{}, error) {
		return m.validateRecords(transformed), nil
	}})
	span.End()
	if res.Err != nil {
		return fail("validate", phaseStart, res.Err)
	}
	issues := res.Value.([]domain.Issue)
	result.Errors = append(result.Errors, issues...)
	consistent := len(transformed.Errors) == 0
	recorder.record("validate", phaseStart, consistent)
	if !consistent {
		result.Success = false
		result.Confidence = confidenceScore(classification, result.Accounts)
		result.Pipeline = recorder.finish()
		m.publish(operationID, "validate", recorder, "failed")
		return result, transformed.Errors[0]
	}
	m.publish(operationID, "validate", recorder, "running")

	// Phase 7: learn. Runs only on the orchestrating goroutine and is
	// skipped entirely on cancellation.
	phaseStart = time.Now()
	_, span = infrastructure.StartPhaseSpan(ctx, operationID, "learn")
	learned := m.learn(ctx, logger, signature, mapping, classification, options)
	span.End()
	recorder.record("learn", phaseStart, learned)

	result.Success = true
	result.Confidence = confidenceScore(classification, result.Accounts)
	result.Pipeline = recorder.finish()
	m.publish(operationID, "learn", recorder, "completed")

	logger.Info("import complete",
		slog.Int("accounts", len(result.Accounts)),
		slog.Int("transactions", len(result.Transactions)),
		slog.Float64("confidence", result.Confidence))
	return result, nil
}

// lookupTemplate generates the sheet signature and asks the learning
// system for an eligible template.
func (m *Manager) lookupTemplate(ctx context.Context, logger *slog.Logger, sheet *domain.Sheet, analysis *analyzer.Analysis) (learning.Signature, *mapper.TemplateMatch) {
	signature := learning.GenerateFileSignature(sheet, analysis)
	if m.learning == nil {
		return signature, nil
	}

	// A matching user correction outranks any learned template.
	if correction, score, err := m.learning.FindMatchingCorrection(ctx, signature); err != nil {
		logger.Warn("correction lookup failed", slog.String("error", err.Error()))
	} else if correction != nil {
		if decoded, derr := correction.Mapping.Decode(); derr == nil {
			return signature, &mapper.TemplateMatch{
				Name:    "correction:" + correction.ID,
				Mapping: decoded,
				Score:   score,
			}
		}
	}

	match, err := m.learning.FindMatchingTemplate(ctx, signature)
	if err != nil {
		logger.Warn("template lookup failed", slog.String("error", err.Error()))
		return signature, nil
	}
	if match == nil || match.Score <= m.matchThreshold {
		return signature, nil
	}
	decoded, err := match.Template.Mapping.Decode()
	if err != nil {
		logger.Warn("stored template mapping undecodable",
			slog.String("template", match.Template.ID))
		return signature, nil
	}
	return signature, &mapper.TemplateMatch{
		Name:    match.Template.Name,
		Mapping: decoded,
		Score:   match.Score,
	}
}

// validateRecords runs struct validation over the generated records and
// folds transform-level consistency errors into issues.
func (m *Manager) validateRecords(transformed *transform.Result) []domain.Issue {
	var issues []domain.Issue
	for _, account := range transformed.Accounts {
		if err := m.validate.Struct(account); err != nil {
			issues = append(issues, errors.NewValidation(
				fmt.Sprintf("account %q failed validation: %v", account.Name, err)).Issue())
		}
	}
	for _, ie := range transformed.Errors {
		issues = append(issues, ie.Issue())
	}
	return issues
}

// learn saves the successful mapping as a template and updates the
// common-pattern counts. Learning failures never fail the import.
func (m *Manager) learn(ctx context.Context, logger *slog.Logger, signature learning.Signature, mapping domain.Mapping, classification *domain.Classification, options ImportOptions) bool {
	if m.learning == nil || ctx.Err() != nil {
		return true
	}

	name := options.TemplateName
	if name == "" {
		name = fmt.Sprintf("auto-%s", signature.Key()[:8])
	}
	record := learning.MappingRecord{
		Envelope:   domain.EncodeMapping(mapping),
		Confidence: classification.Confidence,
	}
	if err := m.learning.SaveSuccessfulMapping(ctx, name, signature, record); err != nil {
		logger.Warn("saving mapping template", slog.String("error", err.Error()))
		return false
	}
	if err := m.learning.RecordPatterns(ctx, signature); err != nil {
		logger.Warn("recording common patterns", slog.String("error", err.Error()))
		return false
	}
	return true
}

func (m *Manager) publish(operationID, phase string, recorder *phaseRecorder, status string) {
	if m.broadcaster == nil {
		return
	}
	m.broadcaster.Publish(ProgressEvent{
		OperationID: operationID,
		Phase:       phase,
		Percentage:  len(recorder.report.Phases) * 100 / len(phaseNames),
		Status:      status,
	})
}

// confidenceScore converts the internal 0-1 confidence to the 0-100
// external scale, blending classification confidence with the mean
// account confidence.
func confidenceScore(classification *domain.Classification, accounts []domain.Account) float64 {
	c := classification.Confidence
	if len(accounts) > 0 {
		var sum float64
		for _, a := range accounts {
			sum += a.Confidence
		}
		c = (c + sum/float64(len(accounts))) / 2
	}
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c * 100
}

// ImportBatch runs independent files concurrently under the worker
// budget, then performs the deduplicating merge single-threaded.
func (m *Manager) ImportBatch(ctx context.Context, files []NamedSheets, strategy dedup.Strategy, options ImportOptions) (*domain.BatchResult, error) {
	results := make([]*domain.ImportResult, len(files))
	fileResults := make([]domain.FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.batchLimit)
	for i, file := range files {
		g.Go(func() error {
			fr := domain.FileResult{FileName: file.FileName}
			sheet, err := pickSheet(file.Sheets)
			if err == nil {
				var result *domain.ImportResult
				result, err = m.ImportSheet(gctx, sheet, file.Fingerprint, options)
				if result != nil {
					results[i] = result
					fr.Success = result.Success
					fr.Accounts = len(result.Accounts)
					fr.Transactions = len(result.Transactions)
				}
			}
			if err != nil {
				// A failed file is reported, not fatal to the batch.
				fr.Success = false
				fr.Error = err.Error()
			}
			fileResults[i] = fr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sets []domain.RecordSet
	for _, result := range results {
		if result == nil || !result.Success {
			continue
		}
		sets = append(sets, domain.RecordSet{
			Accounts:     result.Accounts,
			Transactions: result.Transactions,
		})
	}

	merged, stats, warnings := m.dedup.Merge(sets, strategy)
	if m.metrics != nil && stats.DuplicatesFound > 0 {
		m.metrics.DuplicatesTotal.WithLabelValues(string(strategy)).Add(float64(stats.DuplicatesFound))
	}

	return &domain.BatchResult{
		Accounts:          merged.Accounts,
		Transactions:      merged.Transactions,
		Files:             fileResults,
		DuplicatesFound:   stats.DuplicatesFound,
		DuplicatesHandled: stats.DuplicatesHandled,
		Warnings:          warnings,
	}, nil
}

// pickSheet selects the sheet to import from a workbook: the first one
// that analyzes to a known structure, falling back to the first sheet.
func pickSheet(sheets []*domain.Sheet) (*domain.Sheet, error) {
	if len(sheets) == 0 {
		return nil, errors.NewFileParse("workbook contains no sheets", nil)
	}
	for _, sheet := range sheets {
		analysis := analyzer.AnalyzeSheet(sheet)
		if _, ok := analysis.Best(); ok {
			return sheet, nil
		}
	}
	return sheets[0], nil
}

// headerStrings returns the table header row as strings, empty when the
// sheet has no header.
func headerStrings(sheet *domain.Sheet, analysis *analyzer.Analysis) []string {
	table, ok := analysis.Candidate(domain.StructureTable)
	if !ok {
		return nil
	}
	headers := make([]string, sheet.ColumnCount())
	for c := range headers {
		headers[c] = analyzer.CellString(sheet.ValueAt(table.HeaderRow, c))
	}
	return headers
}
