package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// bundleVersion tags exported corpora so import can reject layouts it
// does not understand.
const bundleVersion = "1"

// incrementThreshold: a save matching an existing template above this
// score increments it instead of inserting a new one.
const incrementThreshold = 0.9

// System is the learning façade: template and correction lookup, saving,
// pattern tracking and corpus transfer. Reads go straight to the store;
// writes are serialized through one mutex because only the orchestrating
// thread writes between pipeline phases.
type System struct {
	store  Store
	logger *slog.Logger

	writeMu sync.Mutex
}

// NewSystem wires the learning system onto a persistence adapter.
func NewSystem(store Store, logger *slog.Logger) *System {
	if logger == nil {
		logger = slog.Default()
	}
	return &System{
		store:  store,
		logger: logger.With(slog.String("component", "learning")),
	}
}

// FindMatchingTemplate scores every stored template against the
// signature and returns the best match, or nil when nothing clears the
// eligibility threshold.
func (s *System) FindMatchingTemplate(ctx context.Context, sig Signature) (*Match, error) {
	templates, err := s.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}

	var best *Match
	for _, tpl := range templates {
		score := scoreSignatures(sig, tpl.Signature, tpl.UsageCount)
		if score <= EligibleThreshold {
			continue
		}
		if best == nil || score > best.Score {
			best = &Match{Template: tpl, Score: score}
		}
	}

	if best != nil {
		s.logger.Debug("template matched",
			slog.String("template", best.Template.Name),
			slog.Float64("score", best.Score))
	}
	return best, nil
}

// FindMatchingCorrection consults the corrections collection with the
// same scoring. Corrections carry no usage boost.
func (s *System) FindMatchingCorrection(ctx context.Context, sig Signature) (*Correction, float64, error) {
	records, err := s.store.List(ctx, CollectionCorrections)
	if err != nil {
		return nil, 0, fmt.Errorf("listing corrections: %w", err)
	}

	var best *Correction
	var bestScore float64
	for key, raw := range records {
		var correction Correction
		if err := json.Unmarshal(raw, &correction); err != nil {
			s.logger.Warn("skipping undecodable correction", slog.String("key", key))
			continue
		}
		score := scoreSignatures(sig, correction.Signature, 0)
		if score > EligibleThreshold && score > bestScore {
			c := correction
			best, bestScore = &c, score
		}
	}
	return best, bestScore, nil
}

// SaveSuccessfulMapping records a mapping that produced a valid result.
// When the signature matches an existing template above the increment
// threshold, that template's usage and confidence grow (capped at 1.0);
// otherwise a new template is inserted. Existing templates are never
// destructively replaced.
func (s *System) SaveSuccessfulMapping(ctx context.Context, name string, sig Signature, envelope MappingRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	templates, err := s.ListTemplates(ctx)
	if err != nil {
		return err
	}

	for _, tpl := range templates {
		if scoreSignatures(sig, tpl.Signature, tpl.UsageCount) > incrementThreshold {
			tpl.UsageCount++
			tpl.Confidence = math.Min(tpl.Confidence+0.05, 1.0)
			tpl.UpdatedAt = time.Now().UTC()
			if err := s.putTemplate(ctx, tpl); err != nil {
				return err
			}
			s.logger.Info("template reinforced",
				slog.String("template", tpl.Name),
				slog.Int("usage_count", tpl.UsageCount))
			return nil
		}
	}

	now := time.Now().UTC()
	tpl := Template{
		ID:         uuid.New().String(),
		Name:       name,
		Signature:  sig,
		Mapping:    envelope.Envelope,
		Confidence: envelope.Confidence,
		UsageCount: 1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.putTemplate(ctx, tpl); err != nil {
		return err
	}
	s.logger.Info("template learned", slog.String("template", tpl.Name))
	return nil
}

// SaveCorrection stores a user-supplied mapping fix in its own
// collection.
func (s *System) SaveCorrection(ctx context.Context, sig Signature, envelope MappingRecord, note string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	correction := Correction{
		ID:        uuid.New().String(),
		Signature: sig,
		Mapping:   envelope.Envelope,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(correction)
	if err != nil {
		return fmt.Errorf("encoding correction: %w", err)
	}
	if err := s.store.Put(ctx, CollectionCorrections, correction.ID, raw); err != nil {
		return err
	}
	s.logger.Info("correction saved", slog.String("id", correction.ID))
	return nil
}

// ListTemplates returns all stored templates sorted by usage, most used
// first.
func (s *System) ListTemplates(ctx context.Context) ([]Template, error) {
	records, err := s.store.List(ctx, CollectionTemplates)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}

	templates := make([]Template, 0, len(records))
	for key, raw := range records {
		var tpl Template
		if err := json.Unmarshal(raw, &tpl); err != nil {
			s.logger.Warn("skipping undecodable template", slog.String("key", key))
			continue
		}
		templates = append(templates, tpl)
	}
	sort.Slice(templates, func(i, j int) bool {
		if templates[i].UsageCount != templates[j].UsageCount {
			return templates[i].UsageCount > templates[j].UsageCount
		}
		return templates[i].ID < templates[j].ID
	})
	return templates, nil
}

// DeleteTemplate removes one template by ID.
func (s *System) DeleteTemplate(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.store.Delete(ctx, CollectionTemplates, id)
}

// RecordPatterns bumps the observation count of each normalized header
// in the common-patterns collection.
func (s *System) RecordPatterns(ctx context.Context, sig Signature) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for _, header := range sig.Headers {
		if header == "" {
			continue
		}
		pattern := Pattern{Key: header}
		if raw, ok, err := s.store.Get(ctx, CollectionPatterns, header); err != nil {
			return err
		} else if ok {
			if err := json.Unmarshal(raw, &pattern); err != nil {
				pattern = Pattern{Key: header}
			}
		}
		pattern.Count++
		pattern.LastSeen = time.Now().UTC()

		raw, err := json.Marshal(pattern)
		if err != nil {
			return fmt.Errorf("encoding pattern %q: %w", header, err)
		}
		if err := s.store.Put(ctx, CollectionPatterns, header, raw); err != nil {
			return err
		}
	}
	return nil
}

// Export serializes the full corpus for backup or transfer.
func (s *System) Export(ctx context.Context) (*Bundle, error) {
	templates, err := s.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{
		Version:    bundleVersion,
		ExportedAt: time.Now().UTC(),
		Templates:  templates,
	}

	corrections, err := s.store.List(ctx, CollectionCorrections)
	if err != nil {
		return nil, fmt.Errorf("exporting corrections: %w", err)
	}
	for _, raw := range corrections {
		var correction Correction
		if err := json.Unmarshal(raw, &correction); err != nil {
			continue
		}
		bundle.Corrections = append(bundle.Corrections, correction)
	}

	patterns, err := s.store.List(ctx, CollectionPatterns)
	if err != nil {
		return nil, fmt.Errorf("exporting patterns: %w", err)
	}
	for _, raw := range patterns {
		var pattern Pattern
		if err := json.Unmarshal(raw, &pattern); err != nil {
			continue
		}
		bundle.Patterns = append(bundle.Patterns, pattern)
	}

	sort.Slice(bundle.Corrections, func(i, j int) bool { return bundle.Corrections[i].ID < bundle.Corrections[j].ID })
	sort.Slice(bundle.Patterns, func(i, j int) bool { return bundle.Patterns[i].Key < bundle.Patterns[j].Key })
	return bundle, nil
}

// Import merges a bundle into the store. Existing records with the same
// key are kept untouched; import never destroys learned state.
func (s *System) Import(ctx context.Context, bundle *Bundle) error {
	if bundle.Version != bundleVersion {
		return fmt.Errorf("unsupported learning bundle version %q", bundle.Version)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for _, tpl := range bundle.Templates {
		if _, ok, err := s.store.Get(ctx, CollectionTemplates, tpl.ID); err != nil {
			return err
		} else if ok {
			continue
		}
		if err := s.putTemplate(ctx, tpl); err != nil {
			return err
		}
	}

	for _, correction := range bundle.Corrections {
		if _, ok, err := s.store.Get(ctx, CollectionCorrections, correction.ID); err != nil {
			return err
		} else if ok {
			continue
		}
		raw, err := json.Marshal(correction)
		if err != nil {
			return fmt.Errorf("encoding correction %s: %w", correction.ID, err)
		}
		if err := s.store.Put(ctx, CollectionCorrections, correction.ID, raw); err != nil {
			return err
		}
	}

	for _, pattern := range bundle.Patterns {
		if _, ok, err := s.store.Get(ctx, CollectionPatterns, pattern.Key); err != nil {
			return err
		} else if ok {
			continue
		}
		raw, err := json.Marshal(pattern)
		if err != nil {
			return fmt.Errorf("encoding pattern %q: %w", pattern.Key, err)
		}
		if err := s.store.Put(ctx, CollectionPatterns, pattern.Key, raw); err != nil {
			return err
		}
	}

	s.logger.Info("learning bundle imported",
		slog.Int("templates", len(bundle.Templates)),
		slog.Int("corrections", len(bundle.Corrections)),
		slog.Int("patterns", len(bundle.Patterns)))
	return nil
}

func (s *System) putTemplate(ctx context.Context, tpl Template) error {
	raw, err := json.Marshal(tpl)
	if err != nil {
		return fmt.Errorf("encoding template %s: %w", tpl.ID, err)
	}
	return s.store.Put(ctx, CollectionTemplates, tpl.ID, raw)
}
