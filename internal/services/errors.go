// Package services holds the pledge certificate pipeline and the pledge and
// tracking collaborator logic.
//
// This file centralizes service-level error values. Translation into HTTP
// status codes happens in the handler layer.
package services

import "errors"

// Certificate pipeline errors.
var (
	// ErrGenerationInProgress is returned when the session is already
	// generating a certificate. The second request is dropped, not queued.
	ErrGenerationInProgress = errors.New("certificate generation already in progress")

	// ErrGenerationFailed wraps the only fatal pipeline failures: the
	// template could not be fetched or the certificate could not be encoded.
	ErrGenerationFailed = errors.New("certificate generation failed")

	// ErrMissingName is returned when the pledger's name is empty.
	ErrMissingName = errors.New("name is required")
)

// Pledge and tracking errors.
var (
	// ErrPledgeNotFound indicates that no pledge has the requested id.
	ErrPledgeNotFound = errors.New("pledge not found")

	// ErrMissingPledgeID is returned for writes without a pledge id.
	ErrMissingPledgeID = errors.New("pledge_id is required")

	// ErrNoStoredFile is returned when the pledge exists but the requested
	// file URL was never recorded.
	ErrNoStoredFile = errors.New("file not stored for pledge")

	// ErrTrackingLinkNotFound indicates an unknown tracking id.
	ErrTrackingLinkNotFound = errors.New("tracking link not found")

	// ErrMissingTrackingKeys is returned for a conversion without session
	// and tracking ids.
	ErrMissingTrackingKeys = errors.New("sessionId or trackingId is required")

	// ErrClickNotFound is returned when no click matches a conversion.
	ErrClickNotFound = errors.New("no click found for conversion")
)
