package adter

import (
	"fmt"

	"github.com/adter/adter/internal/core"
)

// Error is the sentinel error taxonomy exposed by the core (spec §7). The
// underlying values live in internal/core so every internal package
// (raw, compressed, videocore, framer) can return and wrap them without an
// import cycle back to this package; errors.Is against the ErrXxx values
// below works no matter which package produced the wrapped error.
type Error = core.Error

// Sentinel errors, per the propagation policy: I/O errors propagate,
// invariant violations are fatal, BufferEmpty is retry-able, Eof is sticky
// once reported.
const (
	// ErrBadFile indicates a header mismatch or truncated file.
	ErrBadFile = core.ErrBadFile
	// ErrDeserialize indicates an unexpected end of stream mid-event.
	ErrDeserialize = core.ErrDeserialize
	// ErrEof is the clean end-of-stream marker; not an error to callers
	// that expect it.
	ErrEof = core.ErrEof
	// ErrSeek indicates a seek to a position not aligned to an event
	// boundary, or an underlying I/O seek failure.
	ErrSeek = core.ErrSeek
	// ErrUninitializedStream indicates a read/write attempted without an
	// open stream.
	ErrUninitializedStream = core.ErrUninitializedStream
	// ErrMalformedEncoder indicates an encoder invoked with missing
	// configuration.
	ErrMalformedEncoder = core.ErrMalformedEncoder
	// ErrBadFillCount indicates the framer observed a chunk with more
	// filled pixels than its slot count. This is an invariant violation
	// and should be treated as a bug.
	ErrBadFillCount = core.ErrBadFillCount
	// ErrInvalidIndex indicates a framer access past the allocated frame
	// buffer.
	ErrInvalidIndex = core.ErrInvalidIndex
	// ErrVision wraps an upstream producer decode failure, passed through
	// unchanged to the caller.
	ErrVision = core.ErrVision
	// ErrBufferEmpty indicates transient producer starvation; callers may
	// retry.
	ErrBufferEmpty = core.ErrBufferEmpty
)

// wrap attaches context to a sentinel error the way webp.go wraps container
// and codec errors: fmt.Errorf("adter: %s: %w", op, sentinel).
func wrap(op string, sentinel error) error {
	return fmt.Errorf("adter: %s: %w", op, sentinel)
}
