// SPDX-License-Identifier: MIT

// Package api exposes the bot's HTTP surface: the Slack webhook intake,
// health probes and Prometheus metrics.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raafi-4z1/slack-service-bot/internal/log"
	"github.com/raafi-4z1/slack-service-bot/internal/slack"
)

// maxBodyBytes bounds webhook bodies; Slack payloads are small.
const maxBodyBytes = 1 << 20

// dispatchTimeout bounds one full action workflow, comfortably above the
// queue ceiling plus the build ceiling.
const dispatchTimeout = 5 * time.Minute

// Dispatcher consumes verified Slack deliveries. Implemented by *bot.Bot.
type Dispatcher interface {
	HandleMention(ctx context.Context, ev slack.Event)
	HandleInteraction(ctx context.Context, p slack.InteractionPayload)
}

// Server terminates Slack webhooks. Slack expects an ACK within three
// seconds, so deliveries are acknowledged immediately and processed on a
// detached context.
type Server struct {
	dispatcher    Dispatcher
	signingSecret string
	ready         func() bool

	now      func() time.Time
	dispatch func(fn func(ctx context.Context)) // test seam, defaults to a goroutine
}

// New builds a webhook server. ready reports whether collaborators (ACL
// store, catalog) are usable; nil means always ready.
func New(dispatcher Dispatcher, signingSecret string, ready func() bool) *Server {
	s := &Server{
		dispatcher:    dispatcher,
		signingSecret: signingSecret,
		ready:         ready,
		now:           time.Now,
	}
	s.dispatch = func(fn func(ctx context.Context)) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
			defer cancel()
			fn(ctx)
		}()
	}
	return s
}

// Router assembles the chi routing tree.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(60, time.Minute))
		r.Use(s.verifySlackSignature)
		r.Post("/slack/events", s.handleEvents)
		r.Post("/slack/interactions", s.handleInteractions)
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if s.ready != nil && !s.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// verifySlackSignature authenticates the request against Slack's v0
// signing scheme and replaces the consumed body so handlers can re-read it.
func (s *Server) verifySlackSignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "unreadable body", http.StatusBadRequest)
			return
		}
		_ = r.Body.Close()

		timestamp := r.Header.Get("X-Slack-Request-Timestamp")
		signature := r.Header.Get("X-Slack-Signature")
		if !slack.VerifySignature(s.signingSecret, timestamp, signature, body, s.now()) {
			logger := log.WithComponent("api")
			logger.Warn().
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Msg("rejected webhook with invalid signature")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	var cb slack.EventCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	switch cb.Type {
	case "url_verification":
		writeJSON(w, http.StatusOK, map[string]string{"challenge": cb.Challenge})
		return
	case "event_callback":
		if cb.Event.Type == "app_mention" {
			ev := cb.Event
			s.dispatch(func(ctx context.Context) {
				s.dispatcher.HandleMention(ctx, ev)
			})
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleInteractions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	raw := r.PostFormValue("payload")
	if raw == "" {
		http.Error(w, "missing payload", http.StatusBadRequest)
		return
	}

	p, err := slack.ParseInteractionPayload([]byte(raw))
	if err != nil {
		logger := log.WithComponent("api")
		logger.Warn().Err(err).Msg("undecodable interaction payload")
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	s.dispatch(func(ctx context.Context) {
		s.dispatcher.HandleInteraction(ctx, p)
	})
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
