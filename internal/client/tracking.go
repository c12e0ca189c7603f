package client

import (
	"context"
	"fmt"
	"strings"
)

// Tracking endpoints.
const (
	PathTrackLink       = "/track-link"
	PathTrackConversion = "/track-conversion"
)

// TrackLinkRequest is the body of POST /track-link.
type TrackLinkRequest struct {
	PledgeID         string         `json:"pledgeId"`
	OriginalPledgeID string         `json:"originalPledgeId,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedBy        string         `json:"createdBy,omitempty"`
}

// TrackLinkResponse is the answer of POST /track-link.
type TrackLinkResponse struct {
	TrackingID   string `json:"trackingId"`
	TrackingLink string `json:"trackingLink"`
	Existing     bool   `json:"existing,omitempty"`
}

// ConversionRequest is the body of POST /track-conversion.
type ConversionRequest struct {
	SessionID  string `json:"sessionId,omitempty"`
	TrackingID string `json:"trackingId,omitempty"`
	PledgeID   string `json:"pledgeId"`
}

// CreateTrackingLink asks for the shareable tracking link of a pledge.
func (c *Client) CreateTrackingLink(ctx context.Context, r TrackLinkRequest) (TrackLinkResponse, error) {
	var out TrackLinkResponse
	if err := c.postJSON(ctx, PathTrackLink, r, &out); err != nil {
		return TrackLinkResponse{}, fmt.Errorf("create tracking link %s: %w", r.PledgeID, err)
	}
	if strings.TrimSpace(out.TrackingLink) == "" {
		return TrackLinkResponse{}, fmt.Errorf("create tracking link %s: empty link in response", r.PledgeID)
	}
	return out, nil
}

// MarkConversion attributes a pledge to the latest tracked click of the
// session. It is a no-op when neither a session nor a tracking id is known.
func (c *Client) MarkConversion(ctx context.Context, r ConversionRequest) error {
	if r.SessionID == "" && r.TrackingID == "" {
		return nil
	}
	if err := c.postJSON(ctx, PathTrackConversion, r, nil); err != nil {
		return fmt.Errorf("mark conversion %s: %w", r.PledgeID, err)
	}
	return nil
}
