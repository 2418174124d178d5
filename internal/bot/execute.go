// SPDX-License-Identifier: MIT

package bot

import (
	"context"
	"time"

	"github.com/raafi-4z1/slack-service-bot/internal/jenkins"
	"github.com/raafi-4z1/slack-service-bot/internal/log"
	"github.com/raafi-4z1/slack-service-bot/internal/metrics"
	"github.com/raafi-4z1/slack-service-bot/internal/session"
)

// progressNotifier renders queue-phase progress into the session message.
// With withBar set it appends the initial progress bar, matching the render
// used by the execution loop; status checks stay bar-less.
type progressNotifier struct {
	transport Transport
	channel   string
	ts        string
	withBar   bool
}

func (n *progressNotifier) render(ctx context.Context, text string) {
	if n.withBar {
		text += "\nProgress: [░░░░░░░░░░] 2%"
	}
	if err := n.transport.UpdateMessage(ctx, n.channel, n.ts, text, nil); err != nil {
		logger := log.WithComponentFromContext(ctx, "bot")
		logger.Error().Err(err).Msg("failed to render queue progress")
	}
}

func (n *progressNotifier) Queued(ctx context.Context) {
	n.render(ctx, msgQueueWaiting)
}

func (n *progressNotifier) Started(ctx context.Context, buildNumber int) {
	n.render(ctx, msgBuildStarted(buildNumber))
}

// execute drives a confirmed action through all four protocol phases and
// resolves the session to a terminal state. Every path out of here closes
// the session; a Running session never survives this call.
func (b *Bot) execute(ctx context.Context, snap session.Snapshot, approver string) {
	logger := log.WithComponentFromContext(ctx, "bot")
	channel, ts := snap.Channel, snap.MessageTS
	action := snap.Action
	job := snap.Service.JenkinsJob

	fail := func(phase string, err error) {
		logger.Error().Err(err).
			Str("event", "action.failed").
			Str("phase", phase).
			Str(log.FieldUser, approver).
			Str(log.FieldService, snap.Service.Label).
			Str(log.FieldAction, action).
			Msg("action execution failed")
		metrics.JenkinsPhaseFailuresTotal.WithLabelValues(phase).Inc()
		b.update(ctx, channel, ts, b.failureText(action, err), nil)
		b.closeSession(session.ReasonFailed)
	}

	// Phase A: trigger and wait out the queue.
	start := time.Now()
	handle, err := b.jenkins.Trigger(ctx, job, action, &progressNotifier{
		transport: b.transport, channel: channel, ts: ts, withBar: true,
	})
	metrics.JenkinsPhaseDuration.WithLabelValues("trigger").Observe(time.Since(start).Seconds())
	if err != nil {
		fail("trigger", err)
		return
	}

	// Phase B: progress animation. The percentage is a capped simulation;
	// the loop ends as soon as Jenkins reports the build done.
	start = time.Now()
	percent := 2
	for percent < 95 {
		select {
		case <-ctx.Done():
			fail("progress", ctx.Err())
			return
		case <-time.After(b.progressTick):
		}
		percent += 2
		b.update(ctx, channel, ts, msgProgress(action, percent), nil)
		if b.jenkins.IsBuildDone(ctx, handle.Job, handle.Number) {
			break
		}
	}
	metrics.JenkinsPhaseDuration.WithLabelValues("progress").Observe(time.Since(start).Seconds())

	// Phase C: bounded wait for actual completion.
	start = time.Now()
	if err := b.jenkins.WaitForCompletion(ctx, handle.Job, handle.Number); err != nil {
		fail("wait_build", err)
		return
	}
	metrics.JenkinsPhaseDuration.WithLabelValues("wait_build").Observe(time.Since(start).Seconds())
	b.update(ctx, channel, ts, msgProgress(action, 100), nil)

	// Phase D: fetch and classify the console log.
	start = time.Now()
	raw, err := b.jenkins.ConsoleLog(ctx, handle.Job, handle.Number)
	if err != nil {
		fail("console_log", err)
		return
	}
	metrics.JenkinsPhaseDuration.WithLabelValues("console_log").Observe(time.Since(start).Seconds())

	status := jenkins.Classify(raw)
	metrics.ClassifierResultsTotal.WithLabelValues(string(status)).Inc()

	logger.Info().
		Str("event", "action.success").
		Str(log.FieldUser, approver).
		Str(log.FieldService, snap.Service.Label).
		Str(log.FieldAction, action).
		Str(log.FieldStatus, string(status)).
		Int(log.FieldBuildNumber, handle.Number).
		Str("initiated_by", snap.Initiator).
		Msg("action completed")

	b.update(ctx, channel, ts,
		msgSuccess(action, snap.Service.Label, status, snap.Initiator, approver), nil)
	b.closeSession(session.ReasonCompleted)
}
