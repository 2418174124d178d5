// SPDX-License-Identifier: MIT

package bot

import (
	"context"
	"errors"

	"github.com/raafi-4z1/slack-service-bot/internal/jenkins"
	"github.com/raafi-4z1/slack-service-bot/internal/log"
	"github.com/raafi-4z1/slack-service-bot/internal/metrics"
	"github.com/raafi-4z1/slack-service-bot/internal/session"
	"github.com/raafi-4z1/slack-service-bot/internal/slack"
)

// HandleInteraction processes one button click against the active session.
func (b *Bot) HandleInteraction(ctx context.Context, p slack.InteractionPayload) {
	logger := log.WithComponent("bot")

	parsed, ok := slack.ParseActionValue(p.ActionRaw())
	if !ok {
		logger.Warn().Str("value", p.ActionRaw()).Msg("interaction with unrecognized action value")
		return
	}

	user := p.User.ID
	channel := p.Channel.ID
	ts := p.Message.TS
	if user == "" || channel == "" || ts == "" {
		logger.Warn().
			Str(log.FieldUser, user).
			Str(log.FieldChannel, channel).
			Str("ts", ts).
			Msg("incomplete interaction payload")
		return
	}

	b.expireIfNeeded(ctx)

	active := b.sessions.Snapshot()
	if active == nil {
		logger.Warn().
			Str(log.FieldUser, user).
			Str(log.FieldChannel, channel).
			Str("interaction", parsed.Kind).
			Msg("interaction without an active session")
		metrics.SessionsRejectedTotal.WithLabelValues("no_active_session").Inc()
		b.ephemeral(ctx, channel, user, msgNoActiveSession)
		return
	}

	if channel != active.Channel || ts != active.MessageTS {
		logger.Warn().
			Str("session_channel", active.Channel).
			Str("session_ts", active.MessageTS).
			Str("interaction_channel", channel).
			Str("interaction_ts", ts).
			Str(log.FieldUser, user).
			Msg("interaction does not match the active session")
		metrics.SessionsRejectedTotal.WithLabelValues("session_mismatch").Inc()
		b.ephemeral(ctx, channel, user, msgSessionMismatch)
		return
	}

	if !b.authz.UserAllowed(user) {
		logger.Warn().Str(log.FieldUser, user).Msg("user is not allowed to interact")
		metrics.SessionsRejectedTotal.WithLabelValues("unauthorized").Inc()
		b.ephemeral(ctx, channel, user, msgNoActPermission)
		return
	}

	ctx = log.ContextWithTraceID(ctx, active.TraceID)
	tracedLogger := log.WithComponentFromContext(ctx, "bot")
	tracedLogger.Info().
		Str("event", "interaction").
		Str("interaction", parsed.Kind).
		Str(log.FieldUser, user).
		Str(log.FieldChannel, channel).
		Str(log.FieldService, parsed.ServiceKey).
		Str(log.FieldAction, parsed.Action).
		Msg("interaction received")

	switch parsed.Kind {
	case "select_service":
		b.handleSelectService(ctx, parsed, user, channel, ts)
	case "open_actions":
		b.handleOpenActions(ctx, parsed, user, channel, ts)
	case "back":
		b.handleBack(ctx, parsed, user, channel, ts)
	case "exit":
		b.handleExit(ctx, channel, ts)
	case "action_exec":
		b.handleActionExec(ctx, parsed, user, channel, ts)
	case "confirm_yes", "confirm_no":
		b.handleConfirm(ctx, parsed, user, channel, ts, active)
	default:
		logger.Debug().Str("interaction", parsed.Kind).Msg("interaction type not handled")
	}
}

func (b *Bot) handleSelectService(ctx context.Context, parsed slack.ActionValue, user, channel, ts string) {
	logger := log.WithComponentFromContext(ctx, "bot")

	svc, ok := b.catalog.Lookup(parsed.ServiceKey)
	if !ok {
		logger.Warn().
			Str(log.FieldService, parsed.ServiceKey).
			Msg("service not found for select_service")
		b.ephemeral(ctx, channel, user, msgServiceNotFound)
		return
	}

	if !b.advance(ctx, session.Event{
		Type: session.EventSelectService, User: user, Channel: channel, MessageTS: ts, Service: svc,
	}, user) {
		return
	}

	b.update(ctx, channel, ts, msgChecking(svc.Label), nil)

	// The status check is the full four-phase protocol with ACTION=status;
	// it renders queue progress into the same message, without a bar.
	status, err := b.jenkins.CheckStatus(ctx, svc.JenkinsJob, &progressNotifier{
		transport: b.transport, channel: channel, ts: ts,
	})
	if err != nil {
		logger.Error().Err(err).
			Str(log.FieldService, svc.Key).
			Msg("status check failed")
		metrics.JenkinsPhaseFailuresTotal.WithLabelValues("status_check").Inc()
		b.update(ctx, channel, ts, b.failureText("status", err), nil)
		b.closeSession(session.ReasonFailed)
		return
	}
	metrics.ClassifierResultsTotal.WithLabelValues(string(status)).Inc()

	b.sessions.SetStatus(string(status))
	b.update(ctx, channel, ts, "", slack.ServiceStatusMenu(svc, string(status), user))
}

func (b *Bot) handleOpenActions(ctx context.Context, parsed slack.ActionValue, user, channel, ts string) {
	svc, ok := b.catalog.Lookup(parsed.ServiceKey)
	if !ok {
		b.ephemeral(ctx, channel, user, msgServiceNotFound)
		return
	}

	snap, okAdv := b.advanceSnap(ctx, session.Event{
		Type: session.EventOpenActions, User: user, Channel: channel, MessageTS: ts, Service: svc,
	}, user)
	if !okAdv {
		return
	}

	status := snap.Status
	if status == "" {
		status = "unknown"
	}
	b.update(ctx, channel, ts, "", slack.ServiceActionsMenu(svc, status, user))
}

func (b *Bot) handleBack(ctx context.Context, parsed slack.ActionValue, user, channel, ts string) {
	snap, ok := b.advanceSnap(ctx, session.Event{
		Type: session.EventBack, User: user, Channel: channel, MessageTS: ts, Target: parsed.Target,
	}, user)
	if !ok {
		return
	}

	switch parsed.Target {
	case session.BackToServiceList:
		b.update(ctx, channel, ts, "", slack.ServiceMenu(b.catalog.Services(), user))
	case session.BackToServiceStatus:
		status := snap.Status
		if status == "" {
			status = "unknown"
		}
		b.update(ctx, channel, ts, "", slack.ServiceStatusMenu(snap.Service, status, user))
	}
}

func (b *Bot) handleExit(ctx context.Context, channel, ts string) {
	b.closeSession(session.ReasonUserExit)
	b.update(ctx, channel, ts, msgExit, nil)
}

func (b *Bot) handleActionExec(ctx context.Context, parsed slack.ActionValue, user, channel, ts string) {
	svc, ok := b.catalog.Lookup(parsed.ServiceKey)
	if !ok {
		b.ephemeral(ctx, channel, user, msgServiceNotFound)
		return
	}

	snap, okAdv := b.advanceSnap(ctx, session.Event{
		Type: session.EventActionExec, User: user, Channel: channel, MessageTS: ts,
		Service: svc, Action: parsed.Action,
	}, user)
	if !okAdv {
		return
	}

	b.update(ctx, channel, ts, "",
		slack.ConfirmBlocks(parsed.Action, svc.Key, "<@"+snap.Initiator+">"))
}

func (b *Bot) handleConfirm(ctx context.Context, parsed slack.ActionValue, user, channel, ts string, active *session.Snapshot) {
	logger := log.WithComponentFromContext(ctx, "bot")

	if active.Stage != session.StageConfirm {
		b.ephemeral(ctx, channel, user, msgNoActiveConfirm)
		return
	}

	// Re-check expiry right at the decision point; a confirmation older
	// than the TTL must not be honored.
	if b.sessions.Expired() {
		b.closeSession(session.ReasonConfirmExpired)
		b.update(ctx, channel, ts, msgConfirmExpired(active.Action), nil)
		return
	}

	if !b.authz.ApproverAllowed(user) {
		logger.Warn().Str(log.FieldUser, user).Msg("user may not approve or deny actions")
		metrics.SessionsRejectedTotal.WithLabelValues("unauthorized").Inc()
		b.ephemeral(ctx, channel, user, msgNoApprovePermission)
		return
	}

	if parsed.Kind == "confirm_no" {
		if !b.advance(ctx, session.Event{
			Type: session.EventConfirmNo, User: user, Channel: channel, MessageTS: ts,
		}, user) {
			return
		}
		b.closeSession(session.ReasonUserCancel)
		b.update(ctx, channel, ts, msgCancelledBy(active.Action, user), nil)
		return
	}

	snap, ok := b.advanceSnap(ctx, session.Event{
		Type: session.EventConfirmYes, User: user, Channel: channel, MessageTS: ts,
	}, user)
	if !ok {
		return
	}

	b.update(ctx, channel, ts, msgConfirmed(user, snap.Action), nil)
	b.execute(ctx, snap, user)
}

// advance applies an event and reports rejections to the user privately.
func (b *Bot) advance(ctx context.Context, ev session.Event, user string) bool {
	_, ok := b.advanceSnap(ctx, ev, user)
	return ok
}

func (b *Bot) advanceSnap(ctx context.Context, ev session.Event, user string) (session.Snapshot, bool) {
	snap, err := b.sessions.Advance(ev)
	if err == nil {
		metrics.StageTransitionsTotal.WithLabelValues(string(ev.Type)).Inc()
		return snap, true
	}

	logger := log.WithComponentFromContext(ctx, "bot")
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		metrics.SessionsRejectedTotal.WithLabelValues("no_active_session").Inc()
		b.ephemeral(ctx, ev.Channel, user, msgNoActiveSession)
	case errors.Is(err, session.ErrSessionMismatch):
		metrics.SessionsRejectedTotal.WithLabelValues("session_mismatch").Inc()
		b.ephemeral(ctx, ev.Channel, user, msgSessionMismatch)
	default:
		// A click that is stale relative to the current stage, e.g. the
		// second of two rapid confirm presses.
		logger.Warn().Err(err).Str("interaction", string(ev.Type)).Msg("event not valid in current stage")
		metrics.SessionsRejectedTotal.WithLabelValues("bad_transition").Inc()
		b.ephemeral(ctx, ev.Channel, user, msgSessionMismatch)
	}
	return session.Snapshot{}, false
}

func (b *Bot) update(ctx context.Context, channel, ts, text string, blocks []slack.Block) {
	if err := b.transport.UpdateMessage(ctx, channel, ts, text, blocks); err != nil {
		logger := log.WithComponentFromContext(ctx, "bot")
		logger.Error().Err(err).
			Str(log.FieldChannel, channel).
			Msg("failed to update session message")
	}
}

func (b *Bot) ephemeral(ctx context.Context, channel, user, text string) {
	if err := b.transport.PostEphemeral(ctx, channel, user, text); err != nil {
		logger := log.WithComponentFromContext(ctx, "bot")
		logger.Error().Err(err).
			Str(log.FieldChannel, channel).
			Str(log.FieldUser, user).
			Msg("failed to post ephemeral notice")
	}
}

// failureText picks the user-facing failure message. A queue timeout has
// its own wording because from the operator's point of view the job was
// cancelled, not broken.
func (b *Bot) failureText(action string, err error) string {
	if errors.Is(err, jenkins.ErrQueueTimeout) {
		return msgQueueCancelled
	}
	return msgFailed(action, err)
}
