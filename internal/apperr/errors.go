// Package apperr defines the sentinel errors shared across the core.
package apperr

import "errors"

var (
	// ErrNotFound means a form id resolved to nothing.
	ErrNotFound = errors.New("not found")
	// ErrFormat means an uploaded table had a malformed or empty header.
	ErrFormat = errors.New("invalid table format")
	// ErrValidation is reserved for stricter field validation. Current
	// policy (missing fields default to empty) never triggers it.
	ErrValidation = errors.New("invalid submission")
	// ErrStorage means persisting the registry or a submission log failed.
	ErrStorage = errors.New("storage failure")
)
