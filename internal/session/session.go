// SPDX-License-Identifier: MIT

// Package session owns the single global workflow session. At most one
// session exists at any time across all channels and users; everything else
// in the bot is layered on top of that mutual exclusion.
package session

import (
	"fmt"
	"time"

	"github.com/raafi-4z1/slack-service-bot/internal/config"
)

// Stage is the session's position in the menu → status → actions → confirm
// → running progression.
type Stage string

const (
	StageMenu           Stage = "menu"
	StageServiceStatus  Stage = "service_status"
	StageServiceActions Stage = "service_actions"
	StageConfirm        Stage = "confirm"
	StageRunning        Stage = "running"
)

// EventType identifies one user interaction against the active session.
type EventType string

const (
	EventSelectService EventType = "select_service"
	EventOpenActions   EventType = "open_actions"
	EventBack          EventType = "back"
	EventActionExec    EventType = "action_exec"
	EventConfirmYes    EventType = "confirm_yes"
	EventConfirmNo     EventType = "confirm_no"
)

// Back targets for EventBack.
const (
	BackToServiceList   = "service_list"
	BackToServiceStatus = "service_status"
)

// Event is one interaction delivered to Advance. Channel and MessageTS must
// match the active session's binding or the event is rejected.
type Event struct {
	Type      EventType
	User      string
	Channel   string
	MessageTS string
	Service   config.Service // for select_service / open_actions / action_exec
	Action    string         // for action_exec
	Target    string         // for back
}

// Session is the one in-flight workflow. Fields are only safe to read via a
// Snapshot or while holding the Manager's lock; handlers receive copies.
type Session struct {
	ID        string
	TraceID   string
	Initiator string
	Channel   string
	MessageTS string

	Stage   Stage
	Service config.Service
	Status  string // last observed service status, empty until a check ran
	Action  string // pending action, set only in Confirm/Running

	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
}

// Snapshot is an immutable copy of a session, used for logging and
// notifications after the live session is gone.
type Snapshot struct {
	ID        string
	TraceID   string
	Initiator string
	Channel   string
	MessageTS string
	Stage     Stage
	Service   config.Service
	Status    string
	Action    string
	Reason    string
}

// Close reasons recorded on the snapshot.
const (
	ReasonUserExit        = "user_exit"
	ReasonUserCancel      = "user_cancel"
	ReasonConfirmExpired  = "confirm_expired"
	ReasonExpiredByWorker = "expired_by_worker"
	ReasonCompleted       = "completed"
	ReasonFailed          = "failed"
	ReasonHandlerError    = "handler_error"
)

// Rejection explains why TryOpen refused a new session. It names the
// blocking session so the caller can render a useful busy message.
type Rejection struct {
	BlockingInitiator string
	BlockingChannel   string
}

var (
	ErrNoActiveSession = fmt.Errorf("session: no active session")
	ErrSessionMismatch = fmt.Errorf("session: event does not belong to the active session")
	ErrBadTransition   = fmt.Errorf("session: event not valid in current stage")
)
