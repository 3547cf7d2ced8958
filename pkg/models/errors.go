package models

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a failure class. Codes are strings so they serialise
// naturally into API responses.
type ErrorCode string

const (
	// Setup errors, fatal to the operation that raised them.
	CodeModelNotFound         ErrorCode = "MODEL_NOT_FOUND"
	CodeCompilationFailed     ErrorCode = "COMPILATION_FAILED"
	CodeLoadFailed            ErrorCode = "LOAD_FAILED"
	CodeFolderNotFound        ErrorCode = "FOLDER_NOT_FOUND"
	CodeFolderUnreadable      ErrorCode = "FOLDER_UNREADABLE"
	CodeNoImages              ErrorCode = "NO_IMAGES"
	CodeDestinationUnwritable ErrorCode = "DESTINATION_UNWRITABLE"
	CodeNoSelection           ErrorCode = "NO_SELECTION"

	// Per-item errors, converted into benign results by the component that catches them.
	CodeImageDecode      ErrorCode = "IMAGE_DECODE_FAILED"
	CodeInference        ErrorCode = "INFERENCE_FAILED"
	CodeInferenceTimeout ErrorCode = "INFERENCE_TIMEOUT"
	CodeSourceUnreadable ErrorCode = "SOURCE_UNREADABLE"
)

// Error carries a code plus the operation and path that failed
type Error struct {
	Code ErrorCode
	Op   string
	Path string
	Err  error
}

// Sentinels for errors.Is checks. They match any *Error with the same code.
var (
	ErrModelNotFound         = &Error{Code: CodeModelNotFound}
	ErrCompilationFailed     = &Error{Code: CodeCompilationFailed}
	ErrLoadFailed            = &Error{Code: CodeLoadFailed}
	ErrFolderNotFound        = &Error{Code: CodeFolderNotFound}
	ErrFolderUnreadable      = &Error{Code: CodeFolderUnreadable}
	ErrNoImages              = &Error{Code: CodeNoImages}
	ErrDestinationUnwritable = &Error{Code: CodeDestinationUnwritable}
	ErrNoSelection           = &Error{Code: CodeNoSelection}
	ErrImageDecode           = &Error{Code: CodeImageDecode}
	ErrInference             = &Error{Code: CodeInference}
	ErrInferenceTimeout      = &Error{Code: CodeInferenceTimeout}
	ErrSourceUnreadable      = &Error{Code: CodeSourceUnreadable}
)

// NewError creates a coded error
func NewError(code ErrorCode, op, path string, err error) *Error {
	return &Error{Code: code, Op: op, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the code of err, or "" when err carries none
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessager is implemented by errors that already carry a user-facing
// message, such as errors relayed from a remote server
type UserMessager interface {
	UserMessage() string
}

// Message returns a user-facing message for err
func Message(err error) string {
	var um UserMessager
	if errors.As(err, &um) {
		return um.UserMessage()
	}

	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	switch e.Code {
	case CodeModelNotFound:
		return "could not find a compiled model or model bundle"
	case CodeFolderNotFound:
		return fmt.Sprintf("folder not found: %s", e.Path)
	case CodeFolderUnreadable:
		return fmt.Sprintf("folder cannot be read: %s", e.Path)
	case CodeNoImages:
		return "no images found in the selected folder"
	case CodeDestinationUnwritable:
		return fmt.Sprintf("cannot write to destination folder: %s", e.Path)
	case CodeNoSelection:
		return "no images selected to save"
	}
	return e.Error()
}
