package core

// Error is the sentinel error taxonomy shared by every package in the
// module (spec §7). It lives here, rather than in the top-level adter
// package, so that internal packages (raw, compressed, videocore, framer)
// can return and wrap these sentinels without an import cycle; the
// top-level package re-exports each value under the public adter.ErrXxx
// name.
type Error string

func (e Error) Error() string { return string(e) }

// Sentinel errors, per the propagation policy in spec §7: I/O errors
// propagate, invariant violations are fatal, BufferEmpty is retry-able,
// Eof is sticky once reported.
const (
	// ErrBadFile indicates a header mismatch or truncated file.
	ErrBadFile Error = "adter: bad file"
	// ErrDeserialize indicates an unexpected end of stream mid-event.
	ErrDeserialize Error = "adter: deserialize"
	// ErrEof is the clean end-of-stream marker; not an error to callers
	// that expect it.
	ErrEof Error = "adter: eof"
	// ErrSeek indicates a seek to a position not aligned to an event
	// boundary, or an underlying I/O seek failure.
	ErrSeek Error = "adter: seek"
	// ErrUninitializedStream indicates a read/write attempted without an
	// open stream.
	ErrUninitializedStream Error = "adter: uninitialized stream"
	// ErrMalformedEncoder indicates an encoder invoked with missing
	// configuration.
	ErrMalformedEncoder Error = "adter: malformed encoder configuration"
	// ErrBadFillCount indicates the framer observed a chunk with more
	// filled pixels than its slot count. This is an invariant violation
	// and should be treated as a bug.
	ErrBadFillCount Error = "adter: bad fill count"
	// ErrInvalidIndex indicates a framer access past the allocated frame
	// buffer.
	ErrInvalidIndex Error = "adter: invalid frame index"
	// ErrVision wraps an upstream producer decode failure, passed through
	// unchanged to the caller.
	ErrVision Error = "adter: vision source error"
	// ErrBufferEmpty indicates transient producer starvation; callers may
	// retry.
	ErrBufferEmpty Error = "adter: buffer empty"
)
