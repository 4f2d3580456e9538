package errors

import "log/slog"

// RecoveryAction identifies one deterministic recovery strategy. Actions
// are proposals: none is applied unless the caller accepts it.
type RecoveryAction string

const (
	ActionRetryAlteredAssumptions  RecoveryAction = "RETRY_WITH_ALTERED_ASSUMPTIONS"
	ActionSuggestAlternativeColumns RecoveryAction = "SUGGEST_ALTERNATIVE_COLUMNS"
	ActionAutoCorrectCurrency      RecoveryAction = "AUTO_CORRECT_CURRENCY_FORMAT"
	ActionManualStructureSelection RecoveryAction = "MANUAL_STRUCTURE_SELECTION"
	ActionPartialImport            RecoveryAction = "PARTIAL_IMPORT"
	ActionFilterInvalidRows        RecoveryAction = "FILTER_INVALID_ROWS"
)

// RecoveryProposal is one concrete suggested next step for a recoverable
// failure, with a user-facing prompt.
type RecoveryProposal struct {
	Action RecoveryAction `json:"action"`
	Prompt string         `json:"prompt"`
	Steps  []string       `json:"steps"`
}

// RecoveryController maps import errors to deterministic recovery
// proposals. It observes every stage boundary of the pipeline.
type RecoveryController struct {
	logger *slog.Logger
}

// NewRecoveryController creates a recovery controller.
func NewRecoveryController(logger *slog.Logger) *RecoveryController {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryController{logger: logger.With(slog.String("component", "recovery"))}
}

// Propose returns the recovery proposals for the given error. The mapping
// is deterministic: the same error class always yields the same ordered
// proposals. Unrecoverable errors yield none.
func (c *RecoveryController) Propose(err *ImportError) []RecoveryProposal {
	if err == nil || !err.Recoverable {
		return nil
	}

	var proposals []RecoveryProposal
	switch err.Code {
	case CodeMapping:
		switch err.Detail {
		case DetailMissingAccountColumn, DetailMissingValueColumn:
			proposals = append(proposals, RecoveryProposal{
				Action: ActionSuggestAlternativeColumns,
				Prompt: "A required column could not be identified. Review the suggested alternatives?",
				Steps: []string{
					"Inspect the ranked column candidates in the classification result",
					"Pick the column that holds the missing role",
					"Re-run the import with the corrected mapping",
				},
			})
		case DetailMissingMonthColumns:
			proposals = append(proposals, RecoveryProposal{
				Action: ActionRetryAlteredAssumptions,
				Prompt: "No month columns were found. Retry assuming a single-value layout?",
				Steps: []string{
					"Re-run classification with the single-value structure preferred",
					"Verify the proposed value column before importing",
				},
			})
		case DetailColumnOutOfBounds:
			proposals = append(proposals, RecoveryProposal{
				Action: ActionManualStructureSelection,
				Prompt: "The synthesized mapping references columns outside the sheet. Select the structure manually?",
				Steps: []string{
					"Open the manual structure selection view",
					"Assign the account and value columns by hand",
				},
			})
		}
		proposals = append(proposals, RecoveryProposal{
			Action: ActionManualStructureSelection,
			Prompt: "Select the sheet structure manually instead?",
			Steps:  []string{"Choose the layout type and column roles by hand", "Re-run the import"},
		})
	case CodeFormat:
		proposals = append(proposals, RecoveryProposal{
			Action: ActionAutoCorrectCurrency,
			Prompt: "Some values use an unrecognized currency format. Apply automatic correction?",
			Steps: []string{
				"Strip currency symbols and thousands separators",
				"Treat parenthesized values as negative",
				"Re-validate the corrected values",
			},
		})
		proposals = append(proposals, RecoveryProposal{
			Action: ActionFilterInvalidRows,
			Prompt: "Exclude the rows with unparseable values and continue?",
			Steps:  []string{"Drop rows whose values failed parsing", "Import the remaining rows"},
		})
	case CodeValidation:
		proposals = append(proposals, RecoveryProposal{
			Action: ActionPartialImport,
			Prompt: "Some rows failed validation. Import only the valid rows?",
			Steps: []string{
				"Review the per-row validation report",
				"Confirm the partial import of valid rows",
			},
		})
		proposals = append(proposals, RecoveryProposal{
			Action: ActionFilterInvalidRows,
			Prompt: "Filter out the invalid rows and retry?",
			Steps:  []string{"Remove rows listed in the validation report", "Re-run the import"},
		})
	case CodeStructureDetection:
		proposals = append(proposals, RecoveryProposal{
			Action: ActionRetryAlteredAssumptions,
			Prompt: "No layout was confidently detected. Retry with relaxed detection thresholds?",
			Steps: []string{
				"Lower the header and numeric-fill thresholds",
				"Re-run structure analysis",
			},
		})
		proposals = append(proposals, RecoveryProposal{
			Action: ActionManualStructureSelection,
			Prompt: "Describe the sheet layout manually?",
			Steps:  []string{"Choose table, time series, hierarchy or matrix", "Assign column roles"},
		})
	}

	c.logger.Debug("recovery proposals generated",
		slog.String("code", string(err.Code)),
		slog.String("detail", err.Detail),
		slog.Int("proposals", len(proposals)))

	return proposals
}
