package models

import (
	"fmt"
	"strings"
)

// LoadError means the dataset could not be loaded. Fatal at startup.
type LoadError struct {
	Source string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("load %s: %s", e.Source, e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsTransient returns false as a broken dataset stays broken
func (e *LoadError) IsTransient() bool {
	return false
}

// InvalidColumnError is returned for a grouping column outside the recognized set.
type InvalidColumnError struct {
	Column  string
	Allowed []string
}

func (e *InvalidColumnError) Error() string {
	return fmt.Sprintf("invalid column %q, expected one of %s", e.Column, strings.Join(e.Allowed, ", "))
}

func (e *InvalidColumnError) IsTransient() bool {
	return false
}

// UnknownCategoryError is returned when a requested category value is not
// present in the data.
type UnknownCategoryError struct {
	Field string
	Value string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Field, e.Value)
}

func (e *UnknownCategoryError) IsTransient() bool {
	return false
}

// MissingCategoryError is returned when a category a view depends on is absent
// from the data.
type MissingCategoryError struct {
	Field    string
	Category string
}

func (e *MissingCategoryError) Error() string {
	return fmt.Sprintf("expected %s %q is missing from the dataset", e.Field, e.Category)
}

func (e *MissingCategoryError) IsTransient() bool {
	return false
}
