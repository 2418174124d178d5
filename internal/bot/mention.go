// SPDX-License-Identifier: MIT

package bot

import (
	"context"
	"fmt"

	"github.com/raafi-4z1/slack-service-bot/internal/log"
	"github.com/raafi-4z1/slack-service-bot/internal/metrics"
	"github.com/raafi-4z1/slack-service-bot/internal/session"
	"github.com/raafi-4z1/slack-service-bot/internal/slack"
)

// HandleMention processes an app_mention event: it is the only way to open
// a session.
func (b *Bot) HandleMention(ctx context.Context, ev slack.Event) {
	logger := log.WithComponent("bot")

	// Expire a stale session before the busy check so a dead session does
	// not block new work for a full sweeper period.
	b.expireIfNeeded(ctx)

	if active := b.sessions.Snapshot(); active != nil {
		logger.Warn().
			Str("event", "mention.rejected_busy").
			Str("channel_attempt", ev.Channel).
			Str(log.FieldChannel, active.Channel).
			Str(log.FieldUser, active.Initiator).
			Msg("mention rejected, a global session is already active")
		metrics.SessionsRejectedTotal.WithLabelValues("busy").Inc()

		if _, err := b.transport.PostMessage(ctx, ev.Channel,
			fmt.Sprintf(msgBusy, active.Channel, active.Initiator), nil); err != nil {
			logger.Error().Err(err).Msg("failed to send busy notice")
		}
		return
	}

	if err := b.authz.Refresh(ctx); err != nil {
		// Predicates stay fail-closed on a stale cache; log and continue.
		logger.Error().Err(err).Msg("acl refresh failed")
	}

	if !b.authz.ChannelAllowed(ev.Channel) {
		logger.Debug().Str(log.FieldChannel, ev.Channel).Msg("mention in a channel that is not allowed")
		metrics.SessionsRejectedTotal.WithLabelValues("channel_not_allowed").Inc()
		return
	}

	if !b.authz.MentionerAllowed(ev.User) {
		logger.Warn().Str(log.FieldUser, ev.User).Msg("user is not allowed to open a session")
		metrics.SessionsRejectedTotal.WithLabelValues("unauthorized").Inc()
		if _, err := b.transport.PostMessage(ctx, ev.Channel,
			fmt.Sprintf(msgNoMentionPermission, ev.User), nil); err != nil {
			logger.Error().Err(err).Msg("failed to send permission notice")
		}
		return
	}

	snap, rejection := b.sessions.TryOpen(ev.User, ev.Channel)
	if rejection != nil {
		// Lost the race to a concurrent mention.
		metrics.SessionsRejectedTotal.WithLabelValues("busy").Inc()
		if _, err := b.transport.PostMessage(ctx, ev.Channel,
			fmt.Sprintf(msgBusy, rejection.BlockingChannel, rejection.BlockingInitiator), nil); err != nil {
			logger.Error().Err(err).Msg("failed to send busy notice")
		}
		return
	}
	metrics.SessionsOpenedTotal.Inc()
	metrics.SessionActive.Set(1)

	ctx = log.ContextWithTraceID(ctx, snap.TraceID)
	ts, err := b.transport.PostMessage(ctx, ev.Channel, msgPickService,
		slack.ServiceMenu(b.catalog.Services(), ev.User))
	if err != nil {
		tracedLogger := log.WithComponentFromContext(ctx, "bot")
		tracedLogger.Error().Err(err).Msg("failed to post service menu, closing session")
		b.closeSession(session.ReasonHandlerError)
		return
	}
	b.sessions.Bind(ts)
}

// expireIfNeeded runs the sweeper's expiry logic inline so handlers observe
// a fresh view of the session before acting on it.
func (b *Bot) expireIfNeeded(ctx context.Context) {
	snap := b.sessions.Sweep()
	if snap == nil {
		return
	}
	metrics.SessionsClosedTotal.WithLabelValues(snap.Reason).Inc()
	metrics.SessionActive.Set(0)
	if snap.Channel != "" && snap.MessageTS != "" {
		if err := b.transport.UpdateMessage(ctx, snap.Channel, snap.MessageTS,
			msgSessionExpired(int(b.ttl.Seconds())), nil); err != nil {
			logger := log.WithComponent("bot")
			logger.Error().Err(err).Msg("failed to render expiry notice")
		}
	}
}

// closeSession closes the active session and records the close metric.
func (b *Bot) closeSession(reason string) {
	if snap := b.sessions.Close(reason); snap != nil {
		metrics.SessionsClosedTotal.WithLabelValues(reason).Inc()
		metrics.SessionActive.Set(0)
	}
}
