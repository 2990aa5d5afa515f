// Package xrs holds the error taxonomy shared across the cross-repo commit
// synchronizer's components (spec §7), plus the CLI exit-code mapping
// derived from it (spec §6 "Exit codes"). It is intentionally small: every
// other internal/xrs/* package imports it, so it must never import them back.
package xrs

import (
	"errors"
	"fmt"
)

// Kind is the stable error-kind taxonomy of spec §7. Integration tests rely
// on these values being stable across releases, so existing names are never
// renamed, only added to.
type Kind string

const (
	KindMappingConflict    Kind = "mapping_conflict"
	KindPathConflict        Kind = "path_conflict"
	KindInvalidMapping      Kind = "invalid_mapping"
	KindParentsNotSynced    Kind = "parents_not_synced"
	KindHookRejection       Kind = "hook_rejection"
	KindStoreError          Kind = "store_error"
	KindCancelled           Kind = "cancelled"
	KindConfigError         Kind = "config_error"
	KindWorkingCopyMismatch Kind = "working_copy_mismatch"
)

// Error is the single structured error type exposed across the CORE's
// public API. Kind is stable; Context is a short human-readable description;
// Err, if non-nil, is the wrapped underlying cause.
type Error struct {
	Kind    Kind
	Context string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is supports errors.Is(err, &xrs.Error{Kind: k}) style comparisons by kind:
// it matches any *Error of the same Kind, whatever its message or cause.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs an *Error with the given kind and context, wrapping err.
func New(kind Kind, context string, err error) *Error {
	return &Error{Kind: kind, Context: context, Err: err}
}

// Errorf constructs an *Error with a formatted context message and no
// wrapped cause.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Context: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error with a formatted context message wrapping err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Context: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error, and false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// ExitCodeFor maps an error to the CLI exit code scheme of spec §6.
//
//	0 = success (no error)
//	1 = configuration or fatal logic error
//	2 = cancellation / timeout
//	3 = conflict detected
//	4 = underlying store failure
//	5 = unrecognized error (defensive fallback, not in the original scheme)
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	kind, ok := KindOf(err)
	if !ok {
		return 5
	}
	switch kind {
	case KindConfigError, KindInvalidMapping, KindParentsNotSynced, KindHookRejection, KindWorkingCopyMismatch:
		return 1
	case KindCancelled:
		return 2
	case KindMappingConflict, KindPathConflict:
		return 3
	case KindStoreError:
		return 4
	default:
		return 5
	}
}
