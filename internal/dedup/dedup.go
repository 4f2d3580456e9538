// Package dedup merges record sets from multi-file imports and diffs new
// imports against previously persisted state. Accounts collide on
// normalized name plus type; transactions on account, month-bucketed
// date, amount and description.
package dedup

import (
	"fmt"
	"log/slog"

	"finsheet/pkg/contracts/domain"
)

// Strategy governs what happens when a second occurrence of a key shows
// up during a merge.
type Strategy string

const (
	// StrategyStrict drops the second occurrence and logs a warning.
	StrategyStrict Strategy = "strict"
	// StrategySmart merges the second occurrence into the first: union
	// of metadata, max of confidence.
	StrategySmart Strategy = "smart"
	// StrategyNone keeps every occurrence.
	StrategyNone Strategy = "none"
)

// ParseStrategy validates a strategy string, defaulting empty to smart.
func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(raw) {
	case StrategyStrict, StrategySmart, StrategyNone:
		return Strategy(raw), nil
	case "":
		return StrategySmart, nil
	default:
		return "", fmt.Errorf("unknown deduplication strategy %q", raw)
	}
}

// MergeStats counts duplicate outcomes of one merge. DuplicatesFound
// and DuplicatesHandled count account-level collisions only;
// transactions that collapse onto an already-merged one are tallied
// separately.
type MergeStats struct {
	DuplicatesFound       int
	DuplicatesHandled     int
	TransactionDuplicates int
}

// Engine performs deduplicating merges.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a deduplication engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger.With(slog.String("component", "dedup"))}
}

// Merge folds the record sets together in order under the given
// strategy. Transactions belonging to a deduplicated account are
// re-pointed at the surviving account.
func (e *Engine) Merge(sets []domain.RecordSet, strategy Strategy) (domain.RecordSet, MergeStats, []string) {
	var merged domain.RecordSet
	var stats MergeStats
	var warnings []string

	accountByKey := make(map[string]int)  // account Key -> index in merged.Accounts
	accountAlias := make(map[string]string) // dropped account ID -> surviving account ID
	txnSeen := make(map[string]bool)

	for _, set := range sets {
		for _, account := range set.Accounts {
			key := account.Key()
			idx, exists := accountByKey[key]
			if !exists || strategy == StrategyNone {
				accountByKey[key] = len(merged.Accounts)
				merged.Accounts = append(merged.Accounts, account)
				continue
			}

			stats.DuplicatesFound++
			switch strategy {
			case StrategyStrict:
				accountAlias[account.ID] = merged.Accounts[idx].ID
				warnings = append(warnings,
					fmt.Sprintf("duplicate_account_skipped: %s", account.Name))
				e.logger.Warn("duplicate account skipped",
					slog.String("account", account.Name),
					slog.String("key", key))
			case StrategySmart:
				merged.Accounts[idx] = mergeAccounts(merged.Accounts[idx], account)
				accountAlias[account.ID] = merged.Accounts[idx].ID
				stats.DuplicatesHandled++
			}
		}

		for _, txn := range set.Transactions {
			if survivor, ok := accountAlias[txn.AccountID]; ok {
				txn.AccountID = survivor
			}
			if strategy == StrategyNone {
				merged.Transactions = append(merged.Transactions, txn)
				continue
			}

			key := txn.Key()
			if txnSeen[key] {
				stats.TransactionDuplicates++
				continue
			}
			txnSeen[key] = true
			merged.Transactions = append(merged.Transactions, txn)
		}
	}

	return merged, stats, warnings
}

// mergeAccounts unions the metadata of two colliding accounts, keeping
// the higher confidence.
func mergeAccounts(base, extra domain.Account) domain.Account {
	if extra.Confidence > base.Confidence {
		base.Confidence = extra.Confidence
	}
	if base.Category == "" {
		base.Category = extra.Category
	}
	base.SourceRows = append(base.SourceRows, extra.SourceRows...)
	return base
}
