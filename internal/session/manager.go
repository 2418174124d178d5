// SPDX-License-Identifier: MIT

package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raafi-4z1/slack-service-bot/internal/config"
	"github.com/raafi-4z1/slack-service-bot/internal/log"
)

// Manager is the single-writer state cell guarding the global session. All
// reads and writes happen under one mutex so concurrent interaction events
// cannot both pass a stage check and both take the same transition.
type Manager struct {
	mu     sync.Mutex
	active *Session
	ttl    time.Duration
	now    func() time.Time // injectable clock for tests
}

// NewManager creates a manager with the given session TTL.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{ttl: ttl, now: time.Now}
}

// SetClock overrides the manager's clock. Test use only.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// TryOpen admits a new session if none is active. On rejection it returns
// the identity and channel of the blocking session.
func (m *Manager) TryOpen(initiator, channel string) (Snapshot, *Rejection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return Snapshot{}, &Rejection{
			BlockingInitiator: m.active.Initiator,
			BlockingChannel:   m.active.Channel,
		}
	}

	now := m.now()
	m.active = &Session{
		ID:             fmt.Sprintf("sess_%d", now.UnixMilli()),
		TraceID:        uuid.NewString(),
		Initiator:      initiator,
		Channel:        channel,
		Stage:          StageMenu,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(m.ttl),
	}

	logger := log.WithComponent("session")
	logger.Info().
		Str("event", "session.opened").
		Str(log.FieldSessionID, m.active.ID).
		Str(log.FieldTraceID, m.active.TraceID).
		Str(log.FieldUser, initiator).
		Str(log.FieldChannel, channel).
		Msg("global session opened")

	return m.snapshotLocked(""), nil
}

// Bind records the message the session is rendered into. Interaction events
// are only accepted against this (channel, ts) pair.
func (m *Manager) Bind(messageTS string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return
	}
	m.active.MessageTS = messageTS
	m.touchLocked()
}

// Advance validates the event against the active session and applies the
// stage transition. The returned snapshot reflects the session after the
// transition. Authorization is the caller's concern; by the time an event
// reaches Advance it is assumed permitted.
func (m *Manager) Advance(ev Event) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return Snapshot{}, ErrNoActiveSession
	}
	if ev.Channel != m.active.Channel || ev.MessageTS != m.active.MessageTS {
		return Snapshot{}, ErrSessionMismatch
	}

	if err := m.applyLocked(ev); err != nil {
		return Snapshot{}, err
	}
	m.touchLocked()

	logger := log.WithComponent("session")
	logger.Info().
		Str("event", "session.advanced").
		Str(log.FieldSessionID, m.active.ID).
		Str(log.FieldTraceID, m.active.TraceID).
		Str(log.FieldUser, ev.User).
		Str("interaction", string(ev.Type)).
		Str(log.FieldStage, string(m.active.Stage)).
		Msg("session stage advanced")

	return m.snapshotLocked(""), nil
}

// applyLocked is the transition table. Exit is legal from any stage and is
// handled by the caller through Close, not here.
func (m *Manager) applyLocked(ev Event) error {
	s := m.active
	switch ev.Type {
	case EventSelectService:
		if s.Stage != StageMenu {
			return ErrBadTransition
		}
		s.Stage = StageServiceStatus
		s.Service = ev.Service
		s.Status = ""
		return nil

	case EventOpenActions:
		if s.Stage != StageServiceStatus {
			return ErrBadTransition
		}
		s.Stage = StageServiceActions
		return nil

	case EventBack:
		switch {
		case ev.Target == BackToServiceList && s.Stage == StageServiceStatus:
			s.Stage = StageMenu
			s.Service = config.Service{}
			s.Status = ""
			s.Action = ""
			return nil
		case ev.Target == BackToServiceStatus && s.Stage == StageServiceActions:
			s.Stage = StageServiceStatus
			return nil
		default:
			return ErrBadTransition
		}

	case EventActionExec:
		if s.Stage != StageServiceActions {
			return ErrBadTransition
		}
		s.Stage = StageConfirm
		s.Action = ev.Action
		return nil

	case EventConfirmYes:
		if s.Stage != StageConfirm {
			return ErrBadTransition
		}
		// Claim-once: a racing second confirm lands in Running and is refused.
		s.Stage = StageRunning
		return nil

	case EventConfirmNo:
		if s.Stage != StageConfirm {
			return ErrBadTransition
		}
		return nil

	default:
		return ErrBadTransition
	}
}

// SetStatus records the last observed service status on the active session.
func (m *Manager) SetStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return
	}
	m.active.Status = status
	m.touchLocked()
}

// Close clears the active session and returns a snapshot for logging and
// notification, or nil if no session exists. Idempotent.
func (m *Manager) Close(reason string) *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil
	}
	snap := m.snapshotLocked(reason)
	m.active = nil

	logger := log.WithComponent("session")
	logger.Info().
		Str("event", "session.closed").
		Str(log.FieldSessionID, snap.ID).
		Str(log.FieldTraceID, snap.TraceID).
		Str(log.FieldReason, reason).
		Str(log.FieldChannel, snap.Channel).
		Str(log.FieldUser, snap.Initiator).
		Str(log.FieldStage, string(snap.Stage)).
		Str(log.FieldService, snap.Service.Key).
		Str(log.FieldAction, snap.Action).
		Msg("global session cleared")

	return &snap
}

// Expired reports whether a session exists and its TTL has elapsed.
func (m *Manager) Expired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil && !m.now().Before(m.active.ExpiresAt)
}

// Sweep force-closes an expired session and returns its snapshot so the
// caller can overwrite the stale message. A session in Running is sweep
// immune: the execution protocol owns its lifecycle and always closes it.
func (m *Manager) Sweep() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil || m.now().Before(m.active.ExpiresAt) || m.active.Stage == StageRunning {
		return nil
	}
	snap := m.snapshotLocked(ReasonExpiredByWorker)
	m.active = nil

	logger := log.WithComponent("session")
	logger.Info().
		Str("event", "session.expired").
		Str(log.FieldSessionID, snap.ID).
		Str(log.FieldTraceID, snap.TraceID).
		Str(log.FieldChannel, snap.Channel).
		Str(log.FieldUser, snap.Initiator).
		Str(log.FieldStage, string(snap.Stage)).
		Msg("expired session swept")

	return &snap
}

// Snapshot returns a copy of the active session, or nil if none exists.
func (m *Manager) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	snap := m.snapshotLocked("")
	return &snap
}

// touchLocked refreshes last-activity and the absolute expiry.
func (m *Manager) touchLocked() {
	now := m.now()
	m.active.LastActivityAt = now
	m.active.ExpiresAt = now.Add(m.ttl)
}

func (m *Manager) snapshotLocked(reason string) Snapshot {
	s := m.active
	return Snapshot{
		ID:        s.ID,
		TraceID:   s.TraceID,
		Initiator: s.Initiator,
		Channel:   s.Channel,
		MessageTS: s.MessageTS,
		Stage:     s.Stage,
		Service:   s.Service,
		Status:    s.Status,
		Action:    s.Action,
		Reason:    reason,
	}
}
