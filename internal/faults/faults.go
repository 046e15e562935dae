// Package faults defines the error taxonomy shared by all markdex
// components. Every failure the core produces or propagates is
// classified as one of four sentinels, matched with errors.Is through
// wrap chains built with fmt.Errorf("...: %w", err).
package faults

import "errors"

var (
	// ErrNotFound marks a missing document, path, or revision. Read
	// paths recover from it locally (empty result); the sync path turns
	// it into an index removal.
	ErrNotFound = errors.New("not found")

	// ErrUnreachable marks collaborator I/O failure (network, disk).
	// It aborts the running sync cycle; the next scheduled cycle
	// retries the same diff.
	ErrUnreachable = errors.New("unreachable")

	// ErrConflict marks a rejected concurrent mutation: a commit or
	// sync attempted while another is already in flight. Conflicts are
	// rejected immediately, never queued.
	ErrConflict = errors.New("conflict")

	// ErrCorrupt marks a record that cannot be decoded. Fatal for the
	// sync cycle that hit it; the cycle aborts rather than index a
	// partial record.
	ErrCorrupt = errors.New("corrupt")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsUnreachable reports whether err wraps ErrUnreachable.
func IsUnreachable(err error) bool { return errors.Is(err, ErrUnreachable) }

// IsConflict reports whether err wraps ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsCorrupt reports whether err wraps ErrCorrupt.
func IsCorrupt(err error) bool { return errors.Is(err, ErrCorrupt) }
