package dp

import "errors"

// Errors surfaced by the protocol engine. Callers compare with errors.Is;
// layers wrap them with the operation that failed.
var (
	// ErrDeviceNotFound reports that no peer asserts hot-plug detect.
	ErrDeviceNotFound = errors.New("dp: device not found")

	// ErrTimeout reports an exhausted retry budget while waiting for a
	// ready, reply or status condition.
	ErrTimeout = errors.New("dp: timeout")

	// ErrNacked reports that the peer explicitly rejected a request.
	ErrNacked = errors.New("dp: nacked")

	// ErrDataLost reports that fewer reply bytes arrived than requested.
	ErrDataLost = errors.New("dp: data lost")

	// ErrBufferTooSmall reports that the payload table lacks free timeslots.
	ErrBufferTooSmall = errors.New("dp: buffer too small")

	// ErrCrcMismatch reports an invalid sideband header or body CRC.
	ErrCrcMismatch = errors.New("dp: crc mismatch")

	// ErrProtocolFailure is the generic protocol failure, for example link
	// training exhausting every rate and lane combination.
	ErrProtocolFailure = errors.New("dp: protocol failure")

	// ErrCapacity reports that a fixed-capacity table is full.
	ErrCapacity = errors.New("dp: capacity exceeded")

	// ErrInvalidArgument reports an argument rejected at the API boundary.
	ErrInvalidArgument = errors.New("dp: invalid argument")
)
