package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/tbourn/go-pledge-backend/internal/domain"
)

// ErrNotAcknowledged is returned when POST /pledges answers 2xx without ok.
var ErrNotAcknowledged = errors.New("pledge upsert not acknowledged")

// PathPledges is the pledge upsert endpoint.
const PathPledges = "/pledges"

type okBody struct {
	OK bool `json:"ok"`
}

// UpsertPledge stores or updates a pledge record keyed on its pledge id.
func (c *Client) UpsertPledge(ctx context.Context, u domain.PledgeUpsert) error {
	var out okBody
	if err := c.postJSON(ctx, PathPledges, u, &out); err != nil {
		return fmt.Errorf("upsert pledge %s: %w", u.PledgeID, err)
	}
	if !out.OK {
		return fmt.Errorf("upsert pledge %s: %w", u.PledgeID, ErrNotAcknowledged)
	}
	return nil
}
