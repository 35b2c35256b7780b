package recommend

import (
	"context"

	"github.com/cadenza-fm/cadenza/internal/music"
	"github.com/cadenza-fm/cadenza/internal/store"
)

// InteractionResult reports the outcome of one recorded interaction.
type InteractionResult struct {
	Interaction      music.Interaction
	RefreshTriggered bool
}

// RecordInteraction appends one event, refreshes the interest graph in the
// background, and runs skip-burst detection. The append failure surfaces;
// everything after the append is best-effort.
func (p *Pipeline) RecordInteraction(ctx context.Context, params store.AppendInteractionParams) (InteractionResult, error) {
	in, err := p.gw.AppendInteraction(ctx, params)
	if err != nil {
		return InteractionResult{}, err
	}

	p.refreshGraphDetached(ctx, params.ExternalUserID)

	res := InteractionResult{Interaction: in}
	if params.EventType == music.EventSkip {
		res.RefreshTriggered = p.detectSkipBurst(ctx, params.ExternalUserID)
	}
	return res, nil
}

// detectSkipBurst checks the rolling skip window and, when the threshold is
// crossed, invalidates the user's cache and signals the push engine. The
// count query failing only costs this one detection.
func (p *Pipeline) detectSkipBurst(ctx context.Context, userID string) bool {
	cfg := p.tuning()
	n, err := p.gw.CountRecentSkips(ctx, userID, cfg.SkipWindow)
	if err != nil {
		p.log.Warn("skip-burst window count failed", "user", userID, "err", err)
		return false
	}
	if n < cfg.SkipThreshold {
		return false
	}

	p.log.Info("skip burst detected", "user", userID, "skips", n, "window", cfg.SkipWindow)
	if p.metrics != nil {
		p.metrics.SkipBursts.Add(ctx, 1)
	}
	p.Invalidate(ctx, userID)
	if p.notifier != nil {
		p.notifier.Notify(userID, music.ReasonSkipDetected)
	}
	return true
}

// refreshGraphDetached recomputes the interest graph after an interaction.
// The work is detached from the request: cancelling the request does not
// cancel it, and it carries its own bounded deadline. Failures are logged,
// never surfaced.
func (p *Pipeline) refreshGraphDetached(ctx context.Context, userID string) {
	if !p.tuning().InterestGraphEnabled {
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		refreshCtx, cancel := context.WithTimeout(bg, graphRefreshTimeout)
		defer cancel()
		if _, err := p.graphs.Refresh(refreshCtx, userID); err != nil {
			p.log.Warn("interest graph refresh failed", "user", userID, "err", err)
		}
	}()
}
