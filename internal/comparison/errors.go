package comparison

import "errors"

// Sentinel errors for comparison service calls.
var (
	// ErrUploadFailed covers transport failures and any non-success status
	ErrUploadFailed = errors.New("image upload failed")

	// ErrOutOfOrderUpload means the service's phase did not match the
	// comparison type that was sent
	ErrOutOfOrderUpload = errors.New("upload out of order")
)
