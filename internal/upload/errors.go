package upload

import "errors"

// Sentinel errors for upload sessions.
var (
	ErrNoFileSelected   = errors.New("no file selected")
	ErrUnsupportedImage = errors.New("unsupported image format")
	ErrUploadInProgress = errors.New("upload already in progress")
)
