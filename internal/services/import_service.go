// Package services exposes the import pipeline as a coarse-grained
// façade consumed by the HTTP handlers and the CLI: single and batch
// imports, incremental updates, template management and learning-corpus
// transfer.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"finsheet/internal/analyzer"
	"finsheet/internal/dedup"
	"finsheet/internal/errors"
	"finsheet/internal/extractor"
	"finsheet/internal/learning"
	"finsheet/internal/operations"
	"finsheet/pkg/contracts/domain"
)

// ImportOutcome pairs an import result with the recovery proposals for
// its failure, when it failed recoverably.
type ImportOutcome struct {
	Result    *domain.ImportResult       `json:"result"`
	Proposals []errors.RecoveryProposal  `json:"recovery_proposals,omitempty"`
}

// ImportService orchestrates extraction, the pipeline manager and the
// recovery controller.
type ImportService struct {
	logger    *slog.Logger
	extractor *extractor.Extractor
	manager   *operations.Manager
	learning  *learning.System
	dedup     *dedup.Engine
	recovery  *errors.RecoveryController
}

// NewImportService wires the service.
func NewImportService(
	logger *slog.Logger,
	ext *extractor.Extractor,
	manager *operations.Manager,
	learn *learning.System,
) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportService{
		logger:    logger.With(slog.String("component", "import_service")),
		extractor: ext,
		manager:   manager,
		learning:  learn,
		dedup:     dedup.NewEngine(logger),
		recovery:  errors.NewRecoveryController(logger),
	}
}

// ImportFile extracts a workbook from disk and runs the pipeline on its
// best sheet. Recoverable failures come back with proposals instead of
// an error.
func (s *ImportService) ImportFile(ctx context.Context, path string, options operations.ImportOptions) (*ImportOutcome, error) {
	fp, err := fingerprint(path)
	if err != nil {
		return nil, err
	}

	sheets, err := s.extractor.ExtractFile(ctx, path)
	if err != nil {
		return s.outcome(nil, err)
	}
	if len(sheets) == 0 {
		return nil, errors.NewFileParse(fmt.Sprintf("workbook %s contains no sheets", path), nil)
	}

	result, err := s.manager.ImportSheet(ctx, sheets[0], fp, options)
	return s.outcome(result, err)
}

// ImportSheet runs the pipeline on an externally supplied cell matrix.
// The fingerprint is synthesized from the sheet itself, so caching keys
// on content identity rather than a file.
func (s *ImportService) ImportSheet(ctx context.Context, sheet *domain.Sheet, options operations.ImportOptions) (*ImportOutcome, error) {
	fp := operations.FileFingerprint{
		Name: sheet.Name,
		Size: int64(sheet.RowCount() * sheet.ColumnCount()),
	}
	result, err := s.manager.ImportSheet(ctx, sheet, fp, options)
	return s.outcome(result, err)
}

// ImportBatch imports an ordered list of files and merges them under the
// given deduplication strategy.
func (s *ImportService) ImportBatch(ctx context.Context, paths []string, strategyRaw string, options operations.ImportOptions) (*domain.BatchResult, error) {
	strategy, err := dedup.ParseStrategy(strategyRaw)
	if err != nil {
		return nil, errors.NewValidation(err.Error())
	}

	files := make([]operations.NamedSheets, 0, len(paths))
	for _, path := range paths {
		fp, err := fingerprint(path)
		if err != nil {
			return nil, err
		}
		sheets, err := s.extractor.ExtractFile(ctx, path)
		if err != nil {
			// Extraction failures surface per-file inside the batch.
			files = append(files, operations.NamedSheets{FileName: path, Fingerprint: fp})
			s.logger.Warn("file extraction failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		files = append(files, operations.NamedSheets{FileName: path, Fingerprint: fp, Sheets: sheets})
	}

	return s.manager.ImportBatch(ctx, files, strategy, options)
}

// IncrementalUpdate diffs an incoming record set against existing state.
func (s *ImportService) IncrementalUpdate(ctx context.Context, incoming, existing domain.RecordSet, strategyRaw string) (*dedup.IncrementalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	strategy, err := dedup.ParseUpdateStrategy(strategyRaw)
	if err != nil {
		return nil, errors.NewValidation(err.Error())
	}
	result := s.dedup.IncrementalUpdate(incoming, existing, strategy)
	return &result, nil
}

// ListTemplates returns the learned templates, most used first.
func (s *ImportService) ListTemplates(ctx context.Context) ([]learning.Template, error) {
	return s.learning.ListTemplates(ctx)
}

// DeleteTemplate removes one learned template.
func (s *ImportService) DeleteTemplate(ctx context.Context, id string) error {
	return s.learning.DeleteTemplate(ctx, id)
}

// SaveCorrection stores a user-supplied mapping fix for a sheet.
func (s *ImportService) SaveCorrection(ctx context.Context, sheet *domain.Sheet, mapping domain.Mapping, note string) error {
	analysis := analyzeForSignature(sheet)
	signature := learning.GenerateFileSignature(sheet, analysis)
	record := learning.MappingRecord{Envelope: domain.EncodeMapping(mapping)}
	return s.learning.SaveCorrection(ctx, signature, record, note)
}

// ExportLearning serializes the full learning corpus.
func (s *ImportService) ExportLearning(ctx context.Context) (*learning.Bundle, error) {
	return s.learning.Export(ctx)
}

// ImportLearning merges a previously exported corpus.
func (s *ImportService) ImportLearning(ctx context.Context, bundle *learning.Bundle) error {
	return s.learning.Import(ctx, bundle)
}

// outcome folds a pipeline error into an outcome with recovery
// proposals. Unrecoverable errors propagate as errors.
func (s *ImportService) outcome(result *domain.ImportResult, err error) (*ImportOutcome, error) {
	if err == nil {
		return &ImportOutcome{Result: result}, nil
	}
	ie := errors.AsImportError(err)
	proposals := s.recovery.Propose(ie)
	if len(proposals) == 0 {
		return nil, ie
	}
	return &ImportOutcome{Result: result, Proposals: proposals}, nil
}

func analyzeForSignature(sheet *domain.Sheet) *analyzer.Analysis {
	return analyzer.AnalyzeSheet(sheet)
}

func fingerprint(path string) (operations.FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return operations.FileFingerprint{}, errors.NewFileParse(
			fmt.Sprintf("stat %s: %v", path, err), err)
	}
	return operations.FileFingerprint{
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}
