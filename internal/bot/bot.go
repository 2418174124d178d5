// SPDX-License-Identifier: MIT

// Package bot wires the session state machine, the authorization
// predicates, the Jenkins protocol client and the Slack transport into the
// operator-facing workflow.
package bot

import (
	"context"
	"time"

	"github.com/raafi-4z1/slack-service-bot/internal/config"
	"github.com/raafi-4z1/slack-service-bot/internal/jenkins"
	"github.com/raafi-4z1/slack-service-bot/internal/session"
	"github.com/raafi-4z1/slack-service-bot/internal/slack"
)

// Transport is the chat surface the bot renders into. Implemented by
// *slack.Client.
type Transport interface {
	PostMessage(ctx context.Context, channel, text string, blocks []slack.Block) (string, error)
	UpdateMessage(ctx context.Context, channel, ts, text string, blocks []slack.Block) error
	PostEphemeral(ctx context.Context, channel, user, text string) error
}

// Authorizer answers the four permission questions. All predicates are
// expected to fail closed. Implemented by *authz.Cache.
type Authorizer interface {
	Refresh(ctx context.Context) error
	ChannelAllowed(id string) bool
	MentionerAllowed(id string) bool
	UserAllowed(id string) bool
	ApproverAllowed(id string) bool
}

// Bot owns the full conversation workflow.
type Bot struct {
	sessions  *session.Manager
	jenkins   jenkins.API
	transport Transport
	authz     Authorizer
	catalog   *config.Catalog

	ttl          time.Duration
	progressTick time.Duration
}

// New assembles a bot from its collaborators.
func New(sessions *session.Manager, jenkinsAPI jenkins.API, transport Transport, authorizer Authorizer, catalog *config.Catalog, ttl, progressTick time.Duration) *Bot {
	if progressTick <= 0 {
		progressTick = 500 * time.Millisecond
	}
	return &Bot{
		sessions:     sessions,
		jenkins:      jenkinsAPI,
		transport:    transport,
		authz:        authorizer,
		catalog:      catalog,
		ttl:          ttl,
		progressTick: progressTick,
	}
}
