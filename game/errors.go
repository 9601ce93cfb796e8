// game/errors.go
package game

import (
	"errors"
	"fmt"
)

// Code is a machine-readable mutation failure category, surfaced to clients
// alongside the message.
type Code string

const (
	// CodeNotFound: the room, game or player does not exist, or the room has
	// no active game.
	CodeNotFound Code = "NOT_FOUND"
	// CodeInvalidState: the game's status does not permit the operation.
	CodeInvalidState Code = "INVALID_STATE"
	// CodeUnauthorized: a host-only action attempted by a non-host.
	CodeUnauthorized Code = "UNAUTHORIZED"
	// CodeFull: join attempted when the player cap is reached.
	CodeFull Code = "FULL"
	// CodeDuplicate: joining twice, or voting twice.
	CodeDuplicate Code = "DUPLICATE"
)

// Error is a coded precondition failure raised by client-callable mutations.
// Scheduler-invoked handlers never return these; they no-op instead.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf extracts the failure code from err, or "" if err is not a game
// error.
func CodeOf(err error) Code {
	var gameErr *Error
	if errors.As(err, &gameErr) {
		return gameErr.Code
	}
	return ""
}
