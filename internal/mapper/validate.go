// Package mapper merges classifier output, learned templates and known
// export-format signatures into one concrete, validated column mapping.
package mapper

import (
	"fmt"

	"finsheet/internal/errors"
	"finsheet/pkg/contracts/domain"
)

// ValidateMapping checks a synthesized mapping against the sheet
// geometry. A broken mapping is never handed to transformation; the
// caller routes the error to the recovery controller, which proposes
// manual structure selection.
func ValidateMapping(m domain.Mapping, columnCount int) error {
	if m == nil {
		return errors.NewMapping(errors.DetailMissingAccountColumn, "no mapping could be synthesized")
	}

	if m.AccountColumn() < 0 {
		return errors.NewMapping(errors.DetailMissingAccountColumn, "mapping has no account column")
	}

	switch v := m.(type) {
	case domain.SingleMapping:
		if v.Value < 0 {
			return errors.NewMapping(errors.DetailMissingValueColumn, "single mapping has no value column")
		}
	case domain.MonthlyMapping:
		if len(v.Months) == 0 {
			return errors.NewMapping(errors.DetailMissingMonthColumns, "monthly mapping has no month columns")
		}
	default:
		return errors.NewMapping(errors.DetailMissingAccountColumn,
			fmt.Sprintf("unsupported mapping kind %q", m.Kind()))
	}

	for _, col := range m.Columns() {
		if col < 0 || col >= columnCount {
			return errors.NewMapping(errors.DetailColumnOutOfBounds,
				fmt.Sprintf("mapping references column %d outside sheet bounds [0,%d)", col, columnCount)).
				WithColumn(col)
		}
	}
	return nil
}
