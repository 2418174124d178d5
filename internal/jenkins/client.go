// SPDX-License-Identifier: MIT

// Package jenkins drives a remote Jenkins job through the four-phase
// protocol the bot relies on: trigger, queue wait, build wait, log fetch.
// The client is stateless across calls; the build handle is threaded
// explicitly by the caller.
package jenkins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/raafi-4z1/slack-service-bot/internal/log"
)

// Options tunes the polling phases. Zero values fall back to the defaults
// the production pipelines were sized for.
type Options struct {
	QueuePollInterval time.Duration // default 700ms
	QueuePollCeiling  time.Duration // default 180s
	BuildPollInterval time.Duration // default 500ms
	BuildPollCeiling  time.Duration // default 30s
	HTTPTimeout       time.Duration // default 20s
}

func (o Options) withDefaults() Options {
	if o.QueuePollInterval <= 0 {
		o.QueuePollInterval = 700 * time.Millisecond
	}
	if o.QueuePollCeiling <= 0 {
		o.QueuePollCeiling = 180 * time.Second
	}
	if o.BuildPollInterval <= 0 {
		o.BuildPollInterval = 500 * time.Millisecond
	}
	if o.BuildPollCeiling <= 0 {
		o.BuildPollCeiling = 30 * time.Second
	}
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = 20 * time.Second
	}
	return o
}

// BuildHandle identifies one concrete execution on the Jenkins side. It only
// lives for the duration of a single orchestration call chain.
type BuildHandle struct {
	Job    string
	Action string
	Number int
}

// ProgressNotifier receives at-most-once callbacks from the trigger phase so
// the transport can tell the operator what the queue is doing. Notifier
// errors are deliberately not surfaced; a failed render must not abort the
// build.
type ProgressNotifier interface {
	Queued(ctx context.Context)
	Started(ctx context.Context, buildNumber int)
}

// NopNotifier discards all progress callbacks.
type NopNotifier struct{}

func (NopNotifier) Queued(context.Context)       {}
func (NopNotifier) Started(context.Context, int) {}

// API is the surface the orchestrator consumes; *Client implements it.
type API interface {
	Trigger(ctx context.Context, job, action string, notify ProgressNotifier) (BuildHandle, error)
	IsBuildDone(ctx context.Context, job string, number int) bool
	WaitForCompletion(ctx context.Context, job string, number int) error
	ConsoleLog(ctx context.Context, job string, number int) (string, error)
	CheckStatus(ctx context.Context, job string, notify ProgressNotifier) (Status, error)
}

// Client talks to a single Jenkins instance with static credentials.
type Client struct {
	base  string
	user  string
	token string
	http  *http.Client
	opts  Options
}

var _ API = (*Client)(nil)

// New creates a Jenkins client for the given base URL. User and token may be
// empty for an unauthenticated instance.
func New(base, user, token string, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		base:  strings.TrimRight(base, "/"),
		user:  user,
		token: token,
		http:  &http.Client{Timeout: opts.HTTPTimeout},
		opts:  opts,
	}
}

var queueItemRe = regexp.MustCompile(`item/(\d+)`)

// Trigger starts a parameterized build and waits for it to leave the queue.
// Jenkins answers buildWithParameters with a queue location, not a build
// number; the build number only exists once an executor picks the item up.
// If that does not happen before the queue ceiling, the queue item is
// cancelled best-effort and ErrQueueTimeout is returned.
func (c *Client) Trigger(ctx context.Context, job, action string, notify ProgressNotifier) (BuildHandle, error) {
	logger := log.WithComponentFromContext(ctx, "jenkins")
	if notify == nil {
		notify = NopNotifier{}
	}

	triggerURL := fmt.Sprintf("%s/job/%s/buildWithParameters?ACTION=%s",
		c.base, url.PathEscape(job), url.QueryEscape(action))

	res, err := c.do(ctx, "trigger", http.MethodPost, triggerURL)
	if err != nil {
		return BuildHandle{}, err
	}
	queueURL := res.Header.Get("Location")
	drain(res)
	if queueURL == "" {
		return BuildHandle{}, &Error{Sentinel: ErrBadResponse, Operation: "trigger", Status: res.StatusCode, Body: "missing queue Location header"}
	}
	if !strings.HasSuffix(queueURL, "/") {
		queueURL += "/"
	}

	deadline := time.Now().Add(c.opts.QueuePollCeiling)
	queueNotified := false
	ticker := time.NewTicker(c.opts.QueuePollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return BuildHandle{}, ctx.Err()
		case <-ticker.C:
		}

		var item struct {
			Executable *struct {
				Number int `json:"number"`
			} `json:"executable"`
		}
		if err := c.getJSON(ctx, "queue_status", queueURL+"api/json", &item); err != nil {
			return BuildHandle{}, err
		}

		if item.Executable == nil {
			if !queueNotified {
				queueNotified = true
				logger.Info().
					Str("event", "jenkins.queued").
					Str(log.FieldJenkinsJob, job).
					Str(log.FieldAction, action).
					Str(log.FieldQueueURL, queueURL).
					Msg("build waiting for an executor")
				notify.Queued(ctx)
			}
			continue
		}

		number := item.Executable.Number
		logger.Info().
			Str("event", "jenkins.dequeued").
			Str(log.FieldJenkinsJob, job).
			Str(log.FieldAction, action).
			Int(log.FieldBuildNumber, number).
			Msg("build left the queue and started")
		notify.Started(ctx, number)
		return BuildHandle{Job: job, Action: action, Number: number}, nil
	}

	c.cancelQueueItem(ctx, job, action, queueURL)
	return BuildHandle{}, &Error{Sentinel: ErrQueueTimeout, Operation: "trigger"}
}

// cancelQueueItem cancels a still-queued item after a queue timeout. Failure
// to cancel is logged but never fatal; the build was abandoned either way.
func (c *Client) cancelQueueItem(ctx context.Context, job, action, queueURL string) {
	logger := log.WithComponentFromContext(ctx, "jenkins")
	m := queueItemRe.FindStringSubmatch(queueURL)
	if m == nil {
		logger.Warn().
			Str(log.FieldQueueURL, queueURL).
			Msg("cannot extract queue item id, skipping cancel")
		return
	}
	cancelURL := fmt.Sprintf("%s/queue/cancelItem?id=%s", c.base, m[1])
	res, err := c.do(ctx, "cancel_queue_item", http.MethodPost, cancelURL)
	if err != nil {
		logger.Error().Err(err).
			Str(log.FieldJenkinsJob, job).
			Str("queue_id", m[1]).
			Msg("failed to cancel queued build")
		return
	}
	drain(res)
	logger.Warn().
		Str("event", "jenkins.queue_cancelled").
		Str(log.FieldJenkinsJob, job).
		Str(log.FieldAction, action).
		Str("queue_id", m[1]).
		Dur("timeout", c.opts.QueuePollCeiling).
		Msg("queued build cancelled after timeout")
}

// IsBuildDone reports whether a known build has finished executing. Any
// query error degrades to false so the caller's progress loop keeps going
// through transient Jenkins unavailability.
func (c *Client) IsBuildDone(ctx context.Context, job string, number int) bool {
	var info struct {
		Building bool `json:"building"`
	}
	if err := c.getJSON(ctx, "is_build_done", c.buildURL(job, number)+"/api/json", &info); err != nil {
		logger := log.WithComponentFromContext(ctx, "jenkins")
		logger.Error().Err(err).
			Str(log.FieldJenkinsJob, job).
			Int(log.FieldBuildNumber, number).
			Msg("is_build_done query failed, assuming still building")
		return false
	}
	return !info.Building
}

// WaitForCompletion polls the build until Jenkins reports it no longer
// executing. Reaching the ceiling is not an error: the caller fetches
// whatever log exists afterwards.
func (c *Client) WaitForCompletion(ctx context.Context, job string, number int) error {
	logger := log.WithComponentFromContext(ctx, "jenkins")
	deadline := time.Now().Add(c.opts.BuildPollCeiling)
	ticker := time.NewTicker(c.opts.BuildPollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		var info struct {
			Building bool   `json:"building"`
			Result   string `json:"result"`
		}
		if err := c.getJSON(ctx, "wait_build", c.buildURL(job, number)+"/api/json", &info); err != nil {
			return err
		}
		if !info.Building {
			logger.Info().
				Str("event", "jenkins.build_finished").
				Str(log.FieldJenkinsJob, job).
				Int(log.FieldBuildNumber, number).
				Str("result", info.Result).
				Msg("build finished")
			return nil
		}
	}
	logger.Warn().
		Str(log.FieldJenkinsJob, job).
		Int(log.FieldBuildNumber, number).
		Dur("ceiling", c.opts.BuildPollCeiling).
		Msg("stopped waiting for build completion")
	return nil
}

// ConsoleLog fetches the full console text of a build.
func (c *Client) ConsoleLog(ctx context.Context, job string, number int) (string, error) {
	res, err := c.do(ctx, "console_log", http.MethodGet, c.buildURL(job, number)+"/consoleText")
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return "", &Error{Sentinel: ErrRunnerUnavailable, Operation: "console_log", Err: err}
	}
	return string(raw), nil
}

// CheckStatus runs the read-only status pipeline to completion and
// classifies its console output. It is the whole four-phase protocol for
// ACTION=status.
func (c *Client) CheckStatus(ctx context.Context, job string, notify ProgressNotifier) (Status, error) {
	handle, err := c.Trigger(ctx, job, "status", notify)
	if err != nil {
		return StatusUnknown, err
	}
	if err := c.WaitForCompletion(ctx, handle.Job, handle.Number); err != nil {
		return StatusUnknown, err
	}
	raw, err := c.ConsoleLog(ctx, handle.Job, handle.Number)
	if err != nil {
		return StatusUnknown, err
	}
	return Classify(raw), nil
}

func (c *Client) buildURL(job string, number int) string {
	return fmt.Sprintf("%s/job/%s/%d", c.base, url.PathEscape(job), number)
}

// do issues a request and maps transport and HTTP-level failures onto the
// package's error taxonomy. Callers own the response body on success.
func (c *Client) do(ctx context.Context, op, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, &Error{Sentinel: ErrBadResponse, Operation: op, Err: err}
	}
	if c.user != "" && c.token != "" {
		req.SetBasicAuth(c.user, c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Sentinel: ErrRunnerUnavailable, Operation: op, Err: err}
	}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return res, nil
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		body := readSnippet(res)
		return nil, &Error{Sentinel: ErrForbidden, Operation: op, Status: res.StatusCode, Body: body}
	case res.StatusCode >= 500:
		body := readSnippet(res)
		return nil, &Error{Sentinel: ErrServerError, Operation: op, Status: res.StatusCode, Body: body}
	default:
		body := readSnippet(res)
		return nil, &Error{Sentinel: ErrBadResponse, Operation: op, Status: res.StatusCode, Body: body}
	}
}

func (c *Client) getJSON(ctx context.Context, op, rawURL string, out any) error {
	res, err := c.do(ctx, op, http.MethodGet, rawURL)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &Error{Sentinel: ErrBadResponse, Operation: op, Err: err}
	}
	return nil
}

// readSnippet drains up to 512 bytes of an error body for diagnostics and
// closes it.
func readSnippet(res *http.Response) string {
	defer res.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	return strings.TrimSpace(string(raw))
}

func drain(res *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
	res.Body.Close()
}
