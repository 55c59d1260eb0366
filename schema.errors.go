package main

import (
	"strings"
)

// FieldIssue describes why a single input field was rejected.
type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports every field of an input that failed validation.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Field+": "+issue.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether the given field is part of the issues.
func (e *ValidationError) Has(field string) bool {
	for _, issue := range e.Issues {
		if issue.Field == field {
			return true
		}
	}
	return false
}

// Fields returns the names of all rejected fields in reporting order.
func (e *ValidationError) Fields() []string {
	fields := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		fields = append(fields, issue.Field)
	}
	return fields
}

// ShapeError signals a persisted book which does not hold all the fields
// required to build its wire representation. This is a data integrity fault.
type ShapeError struct {
	Fields []string
}

func (e *ShapeError) Error() string {
	return "book record has missing or invalid fields: " + strings.Join(e.Fields, ", ")
}

// fieldValidator accumulates issues so callers can report all of them at once.
type fieldValidator struct {
	issues []FieldIssue
}

func (v *fieldValidator) add(field, reason string) {
	v.issues = append(v.issues, FieldIssue{Field: field, Reason: reason})
}

// check records the error reason against field when err is not nil.
func (v *fieldValidator) check(field string, err error) {
	if err != nil {
		v.add(field, err.Error())
	}
}

func (v *fieldValidator) err() error {
	if len(v.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: v.issues}
}
