// Package apperr defines the error kinds shared by all services.
//
// Every service failure is one of three kinds, wrapped with %w so callers
// can classify it with errors.Is:
//
//	NotFound         - a referenced user, game, library entry, or friendship
//	                   does not exist
//	InvalidOperation - a structural rule is violated (self friend request,
//	                   wrong actor accepting a request, self block)
//	Conflict         - a state invariant is violated (duplicate pending
//	                   request, already friends, blocked, duplicate unique
//	                   identity on creation)
//
// All kinds are per-request conditions recoverable by the caller; none is
// retried and none is fatal to the process.
package apperr

import (
	"errors"
	"fmt"
)

var (
	NotFound         = errors.New("not found")
	InvalidOperation = errors.New("invalid operation")
	Conflict         = errors.New("conflict")
)

// NotFoundf wraps NotFound with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, NotFound)...)
}

// InvalidOperationf wraps InvalidOperation with a formatted message.
func InvalidOperationf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, InvalidOperation)...)
}

// Conflictf wraps Conflict with a formatted message.
func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, Conflict)...)
}
