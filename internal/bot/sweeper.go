// SPDX-License-Identifier: MIT

package bot

import (
	"context"
	"time"

	"github.com/raafi-4z1/slack-service-bot/internal/log"
	"github.com/raafi-4z1/slack-service-bot/internal/metrics"
	"github.com/raafi-4z1/slack-service-bot/internal/session"
)

// RunSweeper periodically expires the idle session. A session in the
// running stage is never swept; the executor owns its lifecycle. Blocks
// until ctx is cancelled.
func (b *Bot) RunSweeper(ctx context.Context, interval time.Duration) error {
	logger := log.WithComponent("sweeper")
	logger.Info().Dur("interval", interval).Msg("sweeper started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			b.sweepOnce(ctx)
		}
	}
}

func (b *Bot) sweepOnce(ctx context.Context) {
	snap := b.sessions.Sweep()
	if snap == nil {
		return
	}

	metrics.SweeperExpiredTotal.Inc()
	metrics.SessionsClosedTotal.WithLabelValues(session.ReasonExpiredByWorker).Inc()
	metrics.SessionActive.Set(0)

	logger := log.WithComponent("sweeper")
	logger.Info().
		Str(log.FieldSessionID, snap.ID).
		Str(log.FieldTraceID, snap.TraceID).
		Str(log.FieldUser, snap.Initiator).
		Str(log.FieldChannel, snap.Channel).
		Msg("idle session expired")

	if snap.Channel == "" || snap.MessageTS == "" {
		return
	}
	text := msgSessionExpired(int(b.ttl.Seconds()))
	if err := b.transport.UpdateMessage(ctx, snap.Channel, snap.MessageTS, text, nil); err != nil {
		logger.Error().Err(err).Msg("failed to render expiry notice")
	}
}
