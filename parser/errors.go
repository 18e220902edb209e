package parser

import (
	"errors"
	"fmt"
)

// Reason classifies a parse failure.
type Reason string

const (
	// ReasonMissingRequiredField marks a record missing one of its identity
	// fields. The record is dropped; the run continues.
	ReasonMissingRequiredField Reason = "missing_required_field"

	// ReasonSchemaMismatch marks a page whose markup no longer contains the
	// structural markers the parser expects.
	ReasonSchemaMismatch Reason = "schema_mismatch"
)

// ParseError describes why a page or record could not be parsed.
type ParseError struct {
	Reason Reason
	Field  string
	Page   string
}

func (e *ParseError) Error() string {
	switch e.Reason {
	case ReasonMissingRequiredField:
		return fmt.Sprintf("parse %s: missing required field %q", e.Page, e.Field)
	case ReasonSchemaMismatch:
		return fmt.Sprintf("parse %s: page layout does not match expected schema", e.Page)
	default:
		return fmt.Sprintf("parse %s: %s", e.Page, e.Reason)
	}
}

// IsSchemaMismatch reports whether err is a schema mismatch parse error.
func IsSchemaMismatch(err error) bool {
	var perr *ParseError
	return errors.As(err, &perr) && perr.Reason == ReasonSchemaMismatch
}

// IsMissingRequiredField reports whether err is a missing required field
// parse error.
func IsMissingRequiredField(err error) bool {
	var perr *ParseError
	return errors.As(err, &perr) && perr.Reason == ReasonMissingRequiredField
}
