package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// MappingKind discriminates the two mapping variants.
type MappingKind string

const (
	MappingSingle  MappingKind = "single"
	MappingMonthly MappingKind = "monthly"
)

// Mapping is the concrete, validated column assignment that drives
// transformation. It is a tagged union: exactly one of the two variants
// below implements it, each carrying only the fields it needs.
type Mapping interface {
	Kind() MappingKind
	AccountColumn() int
	// Columns returns every column index the mapping references.
	Columns() []int
}

// SingleMapping maps one value per row: an account column, a value column,
// and optional category and date columns (-1 when not mapped).
type SingleMapping struct {
	Account  int `json:"account_column"`
	Value    int `json:"value_column"`
	Category int `json:"category_column"`
	Date     int `json:"date_column"`
}

// NewSingleMapping returns a single-value mapping with the optional
// columns unset.
func NewSingleMapping(account, value int) SingleMapping {
	return SingleMapping{Account: account, Value: value, Category: -1, Date: -1}
}

func (m SingleMapping) Kind() MappingKind  { return MappingSingle }
func (m SingleMapping) AccountColumn() int { return m.Account }

func (m SingleMapping) Columns() []int {
	cols := []int{m.Account, m.Value}
	if m.Category >= 0 {
		cols = append(cols, m.Category)
	}
	if m.Date >= 0 {
		cols = append(cols, m.Date)
	}
	return cols
}

// MonthlyMapping maps one value per calendar month per row.
type MonthlyMapping struct {
	Account int                `json:"account_column"`
	Months  map[time.Month]int `json:"month_columns"`
}

func (m MonthlyMapping) Kind() MappingKind  { return MappingMonthly }
func (m MonthlyMapping) AccountColumn() int { return m.Account }

func (m MonthlyMapping) Columns() []int {
	cols := []int{m.Account}
	months := make([]int, 0, len(m.Months))
	for mo := range m.Months {
		months = append(months, int(mo))
	}
	sort.Ints(months)
	for _, mo := range months {
		cols = append(cols, m.Months[time.Month(mo)])
	}
	return cols
}

// MappingEnvelope is the serializable form of the Mapping union, used for
// template persistence and API payloads.
type MappingEnvelope struct {
	Kind    MappingKind     `json:"kind"`
	Single  *SingleMapping  `json:"single,omitempty"`
	Monthly *MonthlyMapping `json:"monthly,omitempty"`
}

// EncodeMapping wraps a Mapping in its serializable envelope.
func EncodeMapping(m Mapping) MappingEnvelope {
	switch v := m.(type) {
	case SingleMapping:
		return MappingEnvelope{Kind: MappingSingle, Single: &v}
	case *SingleMapping:
		return MappingEnvelope{Kind: MappingSingle, Single: v}
	case MonthlyMapping:
		return MappingEnvelope{Kind: MappingMonthly, Monthly: &v}
	case *MonthlyMapping:
		return MappingEnvelope{Kind: MappingMonthly, Monthly: v}
	default:
		return MappingEnvelope{}
	}
}

// Decode unwraps the envelope back into the Mapping union.
func (e MappingEnvelope) Decode() (Mapping, error) {
	switch e.Kind {
	case MappingSingle:
		if e.Single == nil {
			return nil, fmt.Errorf("single mapping envelope missing payload")
		}
		return *e.Single, nil
	case MappingMonthly:
		if e.Monthly == nil {
			return nil, fmt.Errorf("monthly mapping envelope missing payload")
		}
		return *e.Monthly, nil
	default:
		return nil, fmt.Errorf("unknown mapping kind %q", e.Kind)
	}
}

// MappingSuggestion is a ranked concrete mapping proposal produced by
// classification or synthesis. Source records which stage proposed it
// ("classifier", "template", or "format:<name>").
type MappingSuggestion struct {
	Mapping    Mapping `json:"-"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// MarshalJSON renders the suggestion with its mapping envelope inlined.
func (s MappingSuggestion) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Mapping    MappingEnvelope `json:"mapping"`
		Source     string          `json:"source"`
		Confidence float64         `json:"confidence"`
	}{EncodeMapping(s.Mapping), s.Source, s.Confidence})
}
