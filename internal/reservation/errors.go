package reservation

import "errors"

// Rejections returned by the engine.  They are business outcomes, never
// transient: callers must not retry them without changing the request.
var (
	ErrMalformedInput    = errors.New("malformed input")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrOverlap           = errors.New("overlapping booking")
	ErrInsufficientSeats = errors.New("insufficient seats")
	ErrNotFound          = errors.New("not found")
	ErrUnavailable       = errors.New("service unavailable")
)

// ErrLedgerConflict reports that durable state no longer matches what the
// engine holds in memory, e.g. a counter changed outside this process.
var ErrLedgerConflict = errors.New("ledger conflict")

// IsRejection reports whether err is one of the typed business rejections.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrMalformedInput,
		ErrInvalidDuration,
		ErrOverlap,
		ErrInsufficientSeats,
		ErrNotFound,
		ErrUnavailable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
