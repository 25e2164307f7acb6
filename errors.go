// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"errors"
	"fmt"

	"github.com/luxfi/bridge/committee"
	"github.com/luxfi/bridge/limiter"
)

var (
	ErrNotSystemAddress        = errors.New("sender is not the system address")
	ErrBridgeUnavailable       = errors.New("bridge unavailable")
	ErrAlreadyPaused           = errors.New("bridge already paused")
	ErrNotPaused               = errors.New("bridge not paused")
	ErrUnexpectedChainID       = errors.New("unexpected chain id")
	ErrLimitExceeded           = errors.New("transfer limit exceeded")
	ErrRecordNotFound          = errors.New("transfer record not found")
	ErrRecordMismatch          = errors.New("transfer record does not match message")
	ErrTransferNotApproved     = errors.New("transfer not approved")
	ErrMessageAlreadyProcessed = errors.New("message already processed")
)

// Error is a host-facing status error: a stable numeric code plus a
// human-readable message, suitable for returning over an RPC boundary.
type Error struct {
	Code    int32
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("bridge error %d: %s", e.Code, e.Message)
}

var (
	// ErrCodeUnexpected should be used to indicate a failure with no more
	// specific status
	ErrCodeUnexpected = &Error{
		Code:    -1,
		Message: "unexpected error",
	}
	// ErrCodeUnauthorized should be used to indicate that a signature set
	// did not authorize a message
	ErrCodeUnauthorized = &Error{
		Code:    -2,
		Message: "signature set not authorized",
	}
	// ErrCodeUnavailable should be used to indicate that the bridge is
	// paused
	ErrCodeUnavailable = &Error{
		Code:    -3,
		Message: "bridge unavailable",
	}
	// ErrCodeRateLimited should be used to indicate that a transfer
	// exceeded the route's rolling limit
	ErrCodeRateLimited = &Error{
		Code:    -4,
		Message: "transfer rate limited",
	}
	// ErrCodeMalformed should be used to indicate undecodable or
	// inconsistent message bytes
	ErrCodeMalformed = &Error{
		Code:    -5,
		Message: "malformed message",
	}
)

// StatusError maps an internal error onto the host-facing status code
// space. A nil error maps to nil.
func StatusError(err error) *Error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrBridgeUnavailable),
		errors.Is(err, ErrAlreadyPaused),
		errors.Is(err, ErrNotPaused):
		return ErrCodeUnavailable
	case errors.Is(err, ErrLimitExceeded),
		errors.Is(err, limiter.ErrLimitNotFoundForRoute):
		return ErrCodeRateLimited
	case errors.Is(err, committee.ErrInvalidSignature),
		errors.Is(err, committee.ErrDuplicatedSignature),
		errors.Is(err, committee.ErrSignatureBelowThreshold),
		errors.Is(err, ErrNotSystemAddress):
		return ErrCodeUnauthorized
	case errors.Is(err, ErrRecordMismatch),
		errors.Is(err, ErrUnexpectedChainID):
		return ErrCodeMalformed
	default:
		return ErrCodeUnexpected
	}
}
