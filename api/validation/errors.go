package validation

import "errors"

var (
	ErrInvalidFileType = errors.New("unrecognized file type")
	ErrFileTooLarge    = errors.New("file size exceeds configured limit")
	ErrFormatMismatch  = errors.New("file content does not match declared format")
	ErrMissingFormat   = errors.New("source and target formats are required")
)
