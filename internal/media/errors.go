package media

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the query has no resolvable stream on a provider.
	// This is expected and user-facing, not a bug.
	ErrNotFound = errors.New("not found")

	// ErrTransport indicates a network or proxy failure. Callers may retry.
	ErrTransport = errors.New("transport failure")

	// ErrChallengeFailed indicates the challenge solver could not produce a token.
	ErrChallengeFailed = errors.New("challenge failed")

	// ErrMalformedResponse indicates a site layout or obfuscation pattern was not
	// recognized. Callers treat it like ErrNotFound; the distinction is diagnostic.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrEmbedNotFound indicates an iframe chain did not lead to a playable asset.
	ErrEmbedNotFound = fmt.Errorf("embed %w", ErrNotFound)

	// ErrTokenExchangeFailed indicates a handshake response lacked the token fields.
	ErrTokenExchangeFailed = fmt.Errorf("token exchange: %w", ErrMalformedResponse)
)

// NotFoundf returns an ErrNotFound with a formatted reason.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Malformedf returns an ErrMalformedResponse with a formatted reason.
func Malformedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// IsExpected reports whether err is part of normal operation (nothing to find,
// or a site shape we do not recognize) rather than an infrastructure problem.
func IsExpected(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformedResponse)
}

// IsCancelled reports whether err stems from context cancellation or deadline.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
