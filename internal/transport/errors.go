package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	// ErrRecipientGone marks a permanent delivery failure (bot blocked or removed).
	ErrRecipientGone = errors.New("transport: recipient gone")
	ErrConflict      = errors.New("transport: conflicting long-poll instance")
	ErrRateLimited   = errors.New("transport: rate limited")
	ErrUnauthorized  = errors.New("transport: unauthorized")
)

// APIError is a failed Bot API call as reported by the server.
type APIError struct {
	Method      string
	Status      int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s: status %d", e.Method, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Method, e.Status, e.Description)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == 401
	case ErrRecipientGone:
		return e.Status == 403
	case ErrConflict:
		return e.Status == 409
	case ErrRateLimited:
		return e.Status == 429
	}
	return false
}

// Class is the error taxonomy used by retry and logging decisions.
type Class string

const (
	ClassNone        Class = ""
	ClassTransient   Class = "transient"
	ClassConflict    Class = "conflict"
	ClassRateLimited Class = "rate_limited"
	ClassPermanent   Class = "permanent"
	ClassAuth        Class = "auth"
	ClassCanceled    Class = "canceled"
)

func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	switch {
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	case errors.Is(err, ErrUnauthorized):
		return ClassAuth
	case errors.Is(err, ErrRecipientGone):
		return ClassPermanent
	case errors.Is(err, ErrConflict):
		return ClassConflict
	case errors.Is(err, ErrRateLimited):
		return ClassRateLimited
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return ClassPermanent
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	// 5xx, decode failures and unknown errors are retried.
	return ClassTransient
}
