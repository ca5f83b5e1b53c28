package regalloc

import "github.com/pkg/errors"

// The allocator fails a whole function atomically: when any of these errors
// is returned, no partial AllocationResult exists and the Context can be
// reused after a Reset.
var (
	// ErrInvalidFunction reports a malformed Function or RegInfo detected
	// while building liveness: a dangling block or register reference, or a
	// use with no reaching definition.
	ErrInvalidFunction = errors.New("regalloc: invalid function")

	// ErrResourceExhausted reports that the register file cannot satisfy
	// the function, e.g. a site pinned to one register could not be given
	// it even after evictions.
	ErrResourceExhausted = errors.New("regalloc: resource exhausted")

	// ErrInternalInvariant reports a defect in the allocator itself, not in
	// the caller's input.
	ErrInternalInvariant = errors.New("regalloc: internal invariant violated")
)

func invalidf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidFunction, format, args...)
}

func internalf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInternalInvariant, format, args...)
}
