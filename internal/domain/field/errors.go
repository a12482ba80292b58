package field

import "errors"

// Sentinel error kinds for field synchronization.
var (
	// ErrValidation marks malformed text input. It is recovered locally by
	// coercing to the codec default and is never surfaced to the user.
	ErrValidation = errors.New("invalid field input")

	// ErrCommitRejected marks a commit the server declined or the transport
	// failed to deliver. Local state is rolled back and the error is reported.
	ErrCommitRejected = errors.New("commit rejected")

	// ErrConvert marks a value that cannot be converted to the field's type.
	ErrConvert = errors.New("value conversion failed")
)
