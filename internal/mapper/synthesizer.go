package mapper

import (
	"log/slog"

	"finsheet/pkg/contracts/domain"
)

// Synthesis thresholds: a learned template must match above 0.8 to be
// applied; an export-format signature above 0.7.
const (
	templateApplyThreshold = 0.8
	formatApplyThreshold   = 0.7
)

// TemplateMatch is a learned template candidate supplied by the learning
// system, already scored against the current sheet's signature.
type TemplateMatch struct {
	Name    string
	Mapping domain.Mapping
	Score   float64
}

// Synthesizer builds the final Mapping from the available evidence.
type Synthesizer struct {
	logger *slog.Logger
}

// NewSynthesizer creates a mapping synthesizer.
func NewSynthesizer(logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{logger: logger.With(slog.String("component", "synthesizer"))}
}

// Synthesize merges the evidence in priority order: the classifier's top
// suggestion first, then the best learned template, then a known
// export-format signature. Each later stage only fills fields the
// earlier stages left unset. The result is validated against the sheet
// geometry before being returned; a validation failure is returned as-is
// for the recovery controller to handle.
func (s *Synthesizer) Synthesize(
	sheet *domain.Sheet,
	classification *domain.Classification,
	template *TemplateMatch,
	headers []string,
) (domain.Mapping, string, error) {
	mapping, source := s.fromClassifier(classification)

	if template != nil && template.Score > templateApplyThreshold {
		mapping, source = mergeMapping(mapping, template.Mapping, source, "template")
	}

	if format, ok := MatchExportFormat(headers); ok && format.Confidence > formatApplyThreshold {
		mapping, source = mergeMapping(mapping, format.Mapping, source, "format:"+format.Name)
	}

	if err := ValidateMapping(mapping, sheet.ColumnCount()); err != nil {
		s.logger.Warn("synthesized mapping failed validation",
			slog.String("sheet", sheet.Name),
			slog.String("source", source),
			slog.String("error", err.Error()))
		return nil, source, err
	}

	s.logger.Debug("mapping synthesized",
		slog.String("sheet", sheet.Name),
		slog.String("source", source),
		slog.String("kind", string(mapping.Kind())))

	return mapping, source, nil
}

// fromClassifier takes the top-ranked suggestion, skipping suggestions
// invalidated by a role contradiction.
func (s *Synthesizer) fromClassifier(classification *domain.Classification) (domain.Mapping, string) {
	if classification == nil || len(classification.Suggestions) == 0 {
		return nil, ""
	}
	// A hard account/value contradiction blocks the single suggestion;
	// monthly suggestions are unaffected because month columns were
	// resolved independently.
	blocked := len(classification.Errors) > 0
	for _, suggestion := range classification.Suggestions {
		if blocked && suggestion.Mapping.Kind() == domain.MappingSingle {
			continue
		}
		return suggestion.Mapping, suggestion.Source
	}
	return nil, ""
}

// mergeMapping overlays a lower-priority mapping onto the current one.
// When no mapping exists yet the overlay wins outright; otherwise only
// unset optional fields of a single mapping are filled in.
func mergeMapping(current, overlay domain.Mapping, currentSource, overlaySource string) (domain.Mapping, string) {
	if overlay == nil {
		return current, currentSource
	}
	if current == nil {
		return overlay, overlaySource
	}

	base, baseOK := current.(domain.SingleMapping)
	extra, extraOK := overlay.(domain.SingleMapping)
	if !baseOK || !extraOK {
		return current, currentSource
	}

	changed := false
	if base.Category < 0 && extra.Category >= 0 {
		base.Category = extra.Category
		changed = true
	}
	if base.Date < 0 && extra.Date >= 0 {
		base.Date = extra.Date
		changed = true
	}
	if changed {
		return base, currentSource + "+" + overlaySource
	}
	return base, currentSource
}
