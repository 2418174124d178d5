// SPDX-License-Identifier: MIT

// Package slack is the chat transport: a thin client for the Slack Web API
// plus the Block Kit shapes and webhook payloads the bot exchanges with it.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/raafi-4z1/slack-service-bot/internal/log"
)

const defaultAPIBase = "https://slack.com/api"

// Client calls the Slack Web API with a bot token. Outbound calls share a
// rate limiter sized for the chat.* method tier.
type Client struct {
	base    string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a Slack Web API client.
func New(token string) *Client {
	return &Client{
		base:    defaultAPIBase,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(1), 5),
	}
}

// NewWithBase creates a client against a custom API base URL. Test use only.
func NewWithBase(base, token string) *Client {
	c := New(token)
	c.base = strings.TrimRight(base, "/")
	return c
}

// envelope is the common part of every Web API response.
type envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	TS    string `json:"ts"`
}

// PostMessage posts a new message and returns its timestamp handle.
func (c *Client) PostMessage(ctx context.Context, channel, text string, blocks []Block) (string, error) {
	payload := map[string]any{
		"channel": channel,
		"text":    orBlank(text),
	}
	if len(blocks) > 0 {
		payload["blocks"] = blocks
	}
	env, err := c.call(ctx, "chat.postMessage", payload)
	if err != nil {
		return "", err
	}
	logger := log.WithComponentFromContext(ctx, "slack")
	logger.Debug().
		Str(log.FieldChannel, channel).
		Str("ts", env.TS).
		Msg("message posted")
	return env.TS, nil
}

// UpdateMessage replaces the text and blocks of an existing message.
func (c *Client) UpdateMessage(ctx context.Context, channel, ts, text string, blocks []Block) error {
	payload := map[string]any{
		"channel": channel,
		"ts":      ts,
		"text":    orBlank(text),
		// Always send blocks so an empty list clears previous buttons.
		"blocks": blocksOrEmpty(blocks),
	}
	_, err := c.call(ctx, "chat.update", payload)
	return err
}

// PostEphemeral sends a private notice visible only to one user.
func (c *Client) PostEphemeral(ctx context.Context, channel, user, text string) error {
	payload := map[string]any{
		"channel": channel,
		"user":    user,
		"text":    text,
	}
	_, err := c.call(ctx, "chat.postEphemeral", payload)
	return err
}

func (c *Client) call(ctx context.Context, method string, payload map[string]any) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("slack %s: encode: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("slack %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("slack %s: %w", method, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("slack %s: HTTP %d", method, res.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("slack %s: decode: %w", method, err)
	}
	if !env.OK {
		return nil, fmt.Errorf("slack %s: %s", method, env.Error)
	}
	return &env, nil
}

// orBlank keeps Slack happy: text must never be empty on chat.* calls.
func orBlank(text string) string {
	if text == "" {
		return " "
	}
	return text
}

func blocksOrEmpty(blocks []Block) []Block {
	if blocks == nil {
		return []Block{}
	}
	return blocks
}
