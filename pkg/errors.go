package shared

import (
	"errors"

	"github.com/fitline/server/pkg/types"
)

// Error taxonomy shared by every layer. Concrete errors wrap one of these
// so callers can branch with errors.Is.
var (
	// ErrNotConnected means no credential is on file; the user has to run the
	// authorization flow. Never retried.
	ErrNotConnected = errors.New("provider not connected")

	// ErrRefreshFailed means the token endpoint rejected the refresh or was unreachable.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrUnauthorized is a 401/403-class rejection of a resource call.
	ErrUnauthorized = errors.New("upstream unauthorized")

	// ErrUnavailable covers 5xx responses, unexpected statuses and undecodable payloads.
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrTimeout is a per-call deadline expiry talking to an upstream.
	ErrTimeout = errors.New("upstream timeout")

	// ErrPersistenceDegraded is reported when the warehouse write failed but the
	// primary store succeeded.
	ErrPersistenceDegraded = errors.New("persistence degraded")

	// ErrConfigurationMissing is returned by collaborators whose credentials are absent.
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrUpstream is a failure reported by a collaborator (text generation, push).
	ErrUpstream = errors.New("upstream error")

	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = types.ErrInvalidInput
)
