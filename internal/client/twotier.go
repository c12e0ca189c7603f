package client

import (
	"context"
	"time"

	"github.com/tbourn/go-pledge-backend/internal/domain"
)

// Tier reports which path carried a pledge write.
type Tier int

const (
	// TierNone means neither path accepted the write.
	TierNone Tier = iota
	// TierPrimary means the synchronous upsert succeeded.
	TierPrimary
	// TierBeacon means the write was handed to the background sender.
	TierBeacon
)

func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierBeacon:
		return "beacon"
	default:
		return "none"
	}
}

// PledgeWriter upserts pledge records.
type PledgeWriter interface {
	WritePledge(ctx context.Context, u domain.PledgeUpsert) (Tier, error)
}

// TwoTier tries a bounded synchronous upsert first and falls back to the
// beacon. A write the collaborator rejected is not retried through the
// beacon. The returned error is the primary's failure, if any.
type TwoTier struct {
	Client  *Client
	Beacon  *Beacon
	Timeout time.Duration
}

// WritePledge implements PledgeWriter.
func (t *TwoTier) WritePledge(ctx context.Context, u domain.PledgeUpsert) (Tier, error) {
	pctx := ctx
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	err := t.Client.UpsertPledge(pctx, u)
	if err == nil {
		return TierPrimary, nil
	}
	if Rejected(err) {
		// The beacon would send the same body and get the same answer.
		t.Client.logger.Error().Err(err).Str("pledge_id", u.PledgeID).Msg("pledge upsert rejected")
		return TierNone, err
	}
	t.Client.logger.Warn().Err(err).Str("pledge_id", u.PledgeID).Msg("primary pledge upsert failed; using beacon")
	if t.Beacon != nil && t.Beacon.Enqueue(PathPledges, u) {
		return TierBeacon, err
	}
	return TierNone, err
}
