// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raafi-4z1/slack-service-bot/internal/slack"
)

const testSecret = "8f742231b10e8888abcd99yyyzzz85a5"

type recordingDispatcher struct {
	mentions     []slack.Event
	interactions []slack.InteractionPayload
}

func (d *recordingDispatcher) HandleMention(_ context.Context, ev slack.Event) {
	d.mentions = append(d.mentions, ev)
}

func (d *recordingDispatcher) HandleInteraction(_ context.Context, p slack.InteractionPayload) {
	d.interactions = append(d.interactions, p)
}

func newTestServer(ready func() bool) (*Server, *recordingDispatcher) {
	d := &recordingDispatcher{}
	s := New(d, testSecret, ready)
	s.now = func() time.Time { return time.Unix(1740000000, 0) }
	s.dispatch = func(fn func(ctx context.Context)) { fn(context.Background()) }
	return s, d
}

func sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:", timestamp)
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func signedRequest(t *testing.T, method, target, contentType string, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(string(body)))
	ts := strconv.FormatInt(time.Unix(1740000000, 0).Unix(), 10)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", sign(testSecret, ts, body))
	return req
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestReadyz(t *testing.T) {
	ready := false
	s, _ := newTestServer(func() bool { return ready })
	router := s.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready = true
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpointServes(t *testing.T) {
	s, _ := newTestServer(nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestEventsRejectsBadSignature(t *testing.T) {
	s, d := newTestServer(nil)
	body := []byte(`{"type":"event_callback","event":{"type":"app_mention","user":"U1","channel":"C1"}}`)
	req := signedRequest(t, "POST", "/slack/events", "application/json", body)
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, d.mentions)
}

func TestEventsRejectsStaleTimestamp(t *testing.T) {
	s, d := newTestServer(nil)
	body := []byte(`{"type":"event_callback","event":{"type":"app_mention","user":"U1","channel":"C1"}}`)
	stale := strconv.FormatInt(time.Unix(1740000000, 0).Add(-10*time.Minute).Unix(), 10)

	req := httptest.NewRequest("POST", "/slack/events", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Slack-Request-Timestamp", stale)
	req.Header.Set("X-Slack-Signature", sign(testSecret, stale, body))

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, d.mentions)
}

func TestEventsURLVerificationEchoesChallenge(t *testing.T) {
	s, _ := newTestServer(nil)
	body := []byte(`{"type":"url_verification","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P"}`)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, signedRequest(t, "POST", "/slack/events", "application/json", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P")
}

func TestEventsDispatchesAppMention(t *testing.T) {
	s, d := newTestServer(nil)
	body := []byte(`{"type":"event_callback","event":{"type":"app_mention","user":"U_OPS","channel":"C_OPS","text":"<@B1> hi"}}`)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, signedRequest(t, "POST", "/slack/events", "application/json", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, d.mentions, 1)
	assert.Equal(t, "U_OPS", d.mentions[0].User)
	assert.Equal(t, "C_OPS", d.mentions[0].Channel)
}

func TestEventsIgnoresOtherEventTypes(t *testing.T) {
	s, d := newTestServer(nil)
	body := []byte(`{"type":"event_callback","event":{"type":"message","user":"U1","channel":"C1"}}`)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, signedRequest(t, "POST", "/slack/events", "application/json", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, d.mentions)
}

func TestInteractionsDispatchesPayload(t *testing.T) {
	s, d := newTestServer(nil)
	payload := `{"type":"block_actions","user":{"id":"U_OPS"},"channel":{"id":"C_OPS"},"message":{"ts":"1.000100"},"actions":[{"value":"exit:U_OPS"}]}`
	form := url.Values{"payload": {payload}}
	body := []byte(form.Encode())

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, signedRequest(t, "POST", "/slack/interactions", "application/x-www-form-urlencoded", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, d.interactions, 1)
	assert.Equal(t, "U_OPS", d.interactions[0].User.ID)
	assert.Equal(t, "exit:U_OPS", d.interactions[0].ActionRaw())
}

func TestInteractionsMissingPayloadIsBadRequest(t *testing.T) {
	s, d := newTestServer(nil)
	body := []byte("not_payload=x")

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, signedRequest(t, "POST", "/slack/interactions", "application/x-www-form-urlencoded", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, d.interactions)
}
