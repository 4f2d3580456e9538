// Package errors defines the structured error taxonomy of the import
// engine and the recovery controller that turns failures into concrete,
// user-facing proposals.
package errors

import (
	"errors"
	"fmt"

	"finsheet/pkg/contracts/domain"
)

// Code identifies a failure class. Codes are stable and machine-readable.
type Code string

const (
	CodeFileParse          Code = "FILE_PARSE_ERROR"
	CodeNullReference      Code = "NULL_REFERENCE_ERROR"
	CodeMapping            Code = "MAPPING_ERROR"
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeFormat             Code = "FORMAT_ERROR"
	CodeStructureDetection Code = "STRUCTURE_DETECTION_ERROR"
	CodeConsistency        Code = "CONSISTENCY_ERROR"
)

// Detail codes narrow a failure class.
const (
	DetailMissingAccountColumn = "MISSING_ACCOUNT_COLUMN"
	DetailMissingValueColumn   = "MISSING_VALUE_COLUMN"
	DetailMissingMonthColumns  = "MISSING_MONTH_COLUMNS"
	DetailColumnOutOfBounds    = "COLUMN_OUT_OF_BOUNDS"
	DetailInvalidCurrency      = "INVALID_CURRENCY_FORMAT"
	DetailUnknownStructure     = "UNKNOWN_STRUCTURE"
	DetailOrphanedTransaction  = "ORPHANED_TRANSACTION"
)

// Severity grades an error's impact.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
)

// ImportError is a structured pipeline failure. Per-row validation
// problems are accumulated as warnings and never abort the pipeline;
// per-sheet structural problems are raised to the recovery controller.
type ImportError struct {
	Code        Code
	Detail      string
	Message     string
	Severity    Severity
	Recoverable bool
	Row         int
	Column      int
	Err         error
	Context     map[string]interface{}
}

// Error implements the error interface.
func (e *ImportError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Detail, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *ImportError) Unwrap() error {
	return e.Err
}

// Is matches against another ImportError by code.
func (e *ImportError) Is(target error) bool {
	var other *ImportError
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// WithRow attaches source-row context.
func (e *ImportError) WithRow(row int) *ImportError {
	e.Row = row
	return e
}

// WithColumn attaches source-column context.
func (e *ImportError) WithColumn(col int) *ImportError {
	e.Column = col
	return e
}

// WithContext attaches an arbitrary context value.
func (e *ImportError) WithContext(key string, value interface{}) *ImportError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Issue converts the error to its external contract form.
func (e *ImportError) Issue() domain.Issue {
	code := string(e.Code)
	if e.Detail != "" {
		code = e.Detail
	}
	return domain.Issue{
		Code:        code,
		Message:     e.Message,
		Severity:    string(e.Severity),
		Recoverable: e.Recoverable,
		Row:         e.Row,
		Column:      e.Column,
	}
}

// NewFileParse reports a failure reading or extracting a source file.
func NewFileParse(message string, cause error) *ImportError {
	return &ImportError{
		Code: CodeFileParse, Message: message,
		Severity: SeverityCritical, Recoverable: false, Err: cause,
	}
}

// NewMapping reports a broken or incomplete column mapping.
func NewMapping(detail, message string) *ImportError {
	return &ImportError{
		Code: CodeMapping, Detail: detail, Message: message,
		Severity: SeverityError, Recoverable: true,
	}
}

// NewValidation reports a per-item validation problem. Validation errors
// are accumulated, never thrown.
func NewValidation(message string) *ImportError {
	return &ImportError{
		Code: CodeValidation, Message: message,
		Severity: SeverityWarning, Recoverable: true,
	}
}

// NewFormat reports a value that could not be interpreted in its expected
// format.
func NewFormat(detail, message string) *ImportError {
	return &ImportError{
		Code: CodeFormat, Detail: detail, Message: message,
		Severity: SeverityError, Recoverable: true,
	}
}

// NewStructureDetection reports that no usable layout was recognized.
func NewStructureDetection(message string) *ImportError {
	return &ImportError{
		Code: CodeStructureDetection, Detail: DetailUnknownStructure,
		Message: message, Severity: SeverityError, Recoverable: true,
	}
}

// NewConsistency reports a referential integrity violation in a
// transformation result. Fatal to that result, never silently dropped.
func NewConsistency(message string) *ImportError {
	return &ImportError{
		Code: CodeConsistency, Detail: DetailOrphanedTransaction,
		Message: message, Severity: SeverityCritical, Recoverable: false,
	}
}

// AsImportError extracts an ImportError from an error chain, wrapping
// unknown errors as unrecoverable file-parse failures.
func AsImportError(err error) *ImportError {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie
	}
	return NewFileParse(err.Error(), err)
}
