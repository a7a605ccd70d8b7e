package upload

import (
	"fmt"
	"slices"

	"github.com/dmitrijs2005/mediakeeper/internal/server/storage"
)

// Request describes one file of an incoming multipart request.
type Request struct {
	MimeType  string
	Filename  string
	Size      int64
	FieldName string
	// Count is the number of files in the same HTTP request.
	Count int
}

// Code identifies which validation check failed.
type Code string

const (
	UnsupportedType    Code = "UnsupportedType"
	AnimatedNotAllowed Code = "AnimatedNotAllowed"
	ExtensionMismatch  Code = "ExtensionMismatch"
	FileTooLarge       Code = "FileTooLarge"
	TooManyFiles       Code = "TooManyFiles"
	MissingFile        Code = "MissingFile"
)

// ValidationError is a client mistake. It is never retried.
type ValidationError struct {
	Code    Code
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Validate checks req against p in a fixed order and returns the first
// failure. It has no side effects.
func Validate(req Request, p Policy) error {
	if !p.AllowedMimeTypes[req.MimeType] {
		return &ValidationError{Code: UnsupportedType, Message: fmt.Sprintf("File type %s is not allowed", req.MimeType)}
	}

	if animatedTypes[req.MimeType] && !p.AllowAnimated {
		return &ValidationError{Code: AnimatedNotAllowed, Message: "Animated images are not allowed"}
	}

	ext := storage.Extension(req.Filename)
	if !slices.Contains(p.ExtensionMap[req.MimeType], ext) {
		return &ValidationError{
			Code:    ExtensionMismatch,
			Message: fmt.Sprintf("File extension %q does not match file type %s", ext, req.MimeType),
		}
	}

	if req.Size > p.MaxSizeBytes {
		return &ValidationError{Code: FileTooLarge, Message: "File too large. Please select a smaller file."}
	}

	if req.Count > p.MaxFileCount {
		return &ValidationError{Code: TooManyFiles, Message: fmt.Sprintf("Too many files. Maximum allowed is %d.", p.MaxFileCount)}
	}

	return nil
}
