package share

import "errors"

var (
	ErrNotFound            = errors.New("share not found")
	ErrExpired             = errors.New("share has expired")
	ErrExhausted           = errors.New("download limit reached")
	ErrDuplicateCode       = errors.New("code already in use")
	ErrCodeSpaceExhausted  = errors.New("could not generate an unused code")
	ErrEmptyFile           = errors.New("file is empty")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrExtensionNotAllowed = errors.New("file extension is not allowed")
	ErrInvalidTTL          = errors.New("retention period is out of bounds")
	ErrInvalidMaxDownloads = errors.New("download limit is out of bounds")
)
