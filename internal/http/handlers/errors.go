// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Certificate routes answer with the {request_id, code, message} envelope and
// one of these codes. The collaborator routes (pledges, track-link,
// track-conversion) keep their own {error, details} contract, see collab.go.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodePayloadTooLarge  = "payload_too_large"

	// Certificate pipeline:
	ErrCodeGenerationFailed     = "generation_failed"
	ErrCodeGenerationInProgress = "generation_in_progress"
	ErrCodeUnsupportedFormat    = "unsupported_format"
	ErrCodeInvalidSelfie        = "invalid_selfie"
)
