package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services classify a failure exactly once, at the point of detection, by
// wrapping one of these; handlers map them to HTTP status codes with
// errors.Is and must not re-wrap an already classified error.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	// ErrUnavailable marks transient downstream failures (store timeouts,
	// delivery outages). Handlers surface it generically without the cause.
	ErrUnavailable = errors.New("service unavailable")
)

// ErrDispatchFailed is raised when an OTP was persisted but delivery failed.
// It is in the transient family: errors.Is(err, ErrUnavailable) holds.
var ErrDispatchFailed = fmt.Errorf("otp dispatch failed: %w", ErrUnavailable)
