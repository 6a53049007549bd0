package relay

import "errors"

var (
	// ErrUpstreamFetchFailed is returned when the origin playlist or a segment
	// could not be fetched or answered with a non-2xx status.
	ErrUpstreamFetchFailed = errors.New("upstream fetch failed")

	// ErrPlaylistNotReady is returned when no successful poll has completed for the channel.
	ErrPlaylistNotReady = errors.New("playlist not ready")

	ErrMissingToken          = errors.New("missing token")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrTokenMismatch is returned when a valid token is bound to a different channel.
	ErrTokenMismatch = errors.New("token mismatch")

	// ErrSegmentNotFound is returned when a segment index is outside the current table.
	ErrSegmentNotFound = errors.New("segment not found")
)
