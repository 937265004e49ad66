package core

import (
	"errors"

	"github.com/vovakirdan/roomchat/internal/service/files"
	"github.com/vovakirdan/roomchat/internal/service/messages"
	"github.com/vovakirdan/roomchat/internal/service/rooms"
)

// Error codes for domain errors.
const (
	ErrCodeAuthRequired       = "auth_required"
	ErrCodeValidation         = "validation_error"
	ErrCodeBadRequest         = "bad_request"
	ErrCodeRoomNotFound       = "room_not_found"
	ErrCodeMessageNotFound    = "message_not_found"
	ErrCodeFileNotFound       = "file_not_found"
	ErrCodeRoomExists         = "room_exists"
	ErrCodeNotAuthorized      = "not_authorized"
	ErrCodeStorageUnavailable = "storage_unavailable"
	ErrCodeNotInRoom          = "not_in_room"
	ErrCodeAlreadyIdentified  = "already_identified"

	// Transport-level codes, produced before a command reaches the hub.
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeUnsupportedVersion = "unsupported_version"
	ErrCodeUnauthorized       = "unauthorized"
)

var (
	ErrAuthRequired      = coreError(ErrCodeAuthRequired, "set a username first")
	ErrNotInRoom         = coreError(ErrCodeNotInRoom, "join a room first")
	ErrAlreadyIdentified = coreError(ErrCodeAlreadyIdentified, "connection already has a username")
	ErrBadRequest        = coreError(ErrCodeBadRequest, "bad request")
	ErrStorage           = coreError(ErrCodeStorageUnavailable, "storage unavailable, try again")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// NewError builds a CoreError for callers outside the hub (transport).
func NewError(code, msg string) *CoreError {
	return coreError(code, msg)
}

// classify maps a handler error onto the wire taxonomy. Anything not
// recognized is reported as a storage failure.
func classify(err error) *CoreError {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}

	switch {
	case errors.Is(err, rooms.ErrRoomNotFound):
		return coreError(ErrCodeRoomNotFound, err.Error())
	case errors.Is(err, rooms.ErrRoomExists):
		return coreError(ErrCodeRoomExists, err.Error())
	case errors.Is(err, rooms.ErrInvalidName),
		errors.Is(err, rooms.ErrInvalidTopic),
		errors.Is(err, messages.ErrEmptyMessage),
		errors.Is(err, messages.ErrContentTooLong):
		return coreError(ErrCodeValidation, err.Error())
	case errors.Is(err, messages.ErrMessageNotFound):
		return coreError(ErrCodeMessageNotFound, err.Error())
	case errors.Is(err, messages.ErrNoFile), errors.Is(err, files.ErrUnknownFile):
		return coreError(ErrCodeFileNotFound, "file not available")
	case errors.Is(err, messages.ErrNotAuthorized), errors.Is(err, messages.ErrFileInUse):
		return coreError(ErrCodeNotAuthorized, err.Error())
	default:
		return ErrStorage
	}
}
