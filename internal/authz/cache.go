// SPDX-License-Identifier: MIT

package authz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raafi-4z1/slack-service-bot/internal/log"
)

// Lists is the read side the handlers use. Implemented by *Cache.
type Lists interface {
	ChannelAllowed(id string) bool
	MentionerAllowed(id string) bool
	UserAllowed(id string) bool
	ApproverAllowed(id string) bool
}

// Cache holds all four allow lists in memory. An empty or never-refreshed
// cache allows nothing.
type Cache struct {
	store *Store

	mu          sync.RWMutex
	channels    map[string]struct{}
	mentioners  map[string]struct{}
	users       map[string]struct{}
	approvers   map[string]struct{}
	refreshedAt time.Time
}

// NewCache creates a cache over the given store. Call Refresh before use;
// predicates deny everything until then.
func NewCache(store *Store) *Cache {
	return &Cache{store: store}
}

// Refresh reloads all four lists from the store atomically.
func (c *Cache) Refresh(ctx context.Context) error {
	channels, err := c.store.Active(ctx, RoleChannel)
	if err != nil {
		return fmt.Errorf("refresh acl: %w", err)
	}
	mentioners, err := c.store.Active(ctx, RoleMentioner)
	if err != nil {
		return fmt.Errorf("refresh acl: %w", err)
	}
	users, err := c.store.Active(ctx, RoleUser)
	if err != nil {
		return fmt.Errorf("refresh acl: %w", err)
	}
	approvers, err := c.store.Active(ctx, RoleApprover)
	if err != nil {
		return fmt.Errorf("refresh acl: %w", err)
	}

	c.mu.Lock()
	c.channels = toSet(channels)
	c.mentioners = toSet(mentioners)
	c.users = toSet(users)
	c.approvers = toSet(approvers)
	c.refreshedAt = time.Now()
	c.mu.Unlock()

	logger := log.WithComponent("authz")
	logger.Info().
		Str("event", "acl.refreshed").
		Int("channels", len(channels)).
		Int("mentioners", len(mentioners)).
		Int("users", len(users)).
		Int("approvers", len(approvers)).
		Msg("permissions cache refreshed")
	return nil
}

// RefreshedAt reports when the cache last loaded successfully; zero if never.
func (c *Cache) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}

// ChannelAllowed reports whether the channel may host bot sessions.
func (c *Cache) ChannelAllowed(id string) bool {
	return c.member(func() map[string]struct{} { return c.channels }, id)
}

// MentionerAllowed reports whether the user may open a session.
func (c *Cache) MentionerAllowed(id string) bool {
	return c.member(func() map[string]struct{} { return c.mentioners }, id)
}

// UserAllowed reports whether the user may interact with an open session.
func (c *Cache) UserAllowed(id string) bool {
	return c.member(func() map[string]struct{} { return c.users }, id)
}

// ApproverAllowed reports whether the user may confirm or deny an action.
func (c *Cache) ApproverAllowed(id string) bool {
	return c.member(func() map[string]struct{} { return c.approvers }, id)
}

func (c *Cache) member(pick func() map[string]struct{}, id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set := pick()
	if len(set) == 0 {
		// Fail closed: an unloaded or empty list allows nobody.
		return false
	}
	_, ok := set[id]
	return ok
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
