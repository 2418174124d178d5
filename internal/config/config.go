// SPDX-License-Identifier: MIT

// Package config loads the daemon configuration from the environment and the
// service catalog from a YAML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds all runtime configuration for the bot daemon.
type Config struct {
	// Slack
	SlackBotToken      string
	SlackSigningSecret string

	// Jenkins
	JenkinsURL   string
	JenkinsUser  string
	JenkinsToken string

	// Session lifecycle
	SessionTTL      time.Duration
	SweeperInterval time.Duration

	// Jenkins protocol tuning
	QueuePollInterval time.Duration
	QueuePollCeiling  time.Duration
	BuildPollInterval time.Duration
	BuildPollCeiling  time.Duration
	ProgressTick      time.Duration

	// HTTP intake
	ListenAddr string

	// Authorization store
	ACLDBPath string

	// Service catalog
	CatalogPath string

	LogLevel string
}

// FromEnv builds a Config from environment variables with sane defaults.
func FromEnv() Config {
	return Config{
		SlackBotToken:      ParseString("SLACK_BOT_TOKEN", ""),
		SlackSigningSecret: ParseString("SLACK_SIGNING_SECRET", ""),

		JenkinsURL:   ParseString("JENKINS_URL", ""),
		JenkinsUser:  ParseString("JENKINS_USER", ""),
		JenkinsToken: ParseString("JENKINS_TOKEN", ""),

		SessionTTL:      time.Duration(ParseInt("SESSION_EXPIRE_SECONDS", 45)) * time.Second,
		SweeperInterval: ParseDuration("SWEEPER_INTERVAL", 5*time.Second),

		QueuePollInterval: ParseDuration("QUEUE_POLL_INTERVAL", 700*time.Millisecond),
		QueuePollCeiling:  ParseDuration("QUEUE_POLL_CEILING", 180*time.Second),
		BuildPollInterval: ParseDuration("BUILD_POLL_INTERVAL", 500*time.Millisecond),
		BuildPollCeiling:  ParseDuration("BUILD_POLL_CEILING", 30*time.Second),
		ProgressTick:      ParseDuration("PROGRESS_TICK", 500*time.Millisecond),

		ListenAddr:  ParseString("LISTEN_ADDR", ":8080"),
		ACLDBPath:   ParseString("ACL_DB_PATH", "data/acl.db"),
		CatalogPath: ParseString("SERVICES_PATH", ""),

		LogLevel: ParseString("LOG_LEVEL", "info"),
	}
}

// Validate reports configuration that prevents the daemon from starting.
func (c Config) Validate() error {
	var problems []string
	if c.SlackBotToken == "" {
		problems = append(problems, "SLACK_BOT_TOKEN is required")
	}
	if c.SlackSigningSecret == "" {
		problems = append(problems, "SLACK_SIGNING_SECRET is required")
	}
	if strings.TrimSpace(c.JenkinsURL) == "" {
		problems = append(problems, "JENKINS_URL is required")
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, "SESSION_EXPIRE_SECONDS must be positive")
	}
	if c.QueuePollInterval <= 0 || c.BuildPollInterval <= 0 {
		problems = append(problems, "poll intervals must be positive")
	}
	if c.QueuePollCeiling < c.QueuePollInterval {
		problems = append(problems, "QUEUE_POLL_CEILING must be at least one poll interval")
	}
	if len(problems) > 0 {
		return errors.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// MaskedJenkinsURL returns the Jenkins base URL without credentials for logging.
func (c Config) MaskedJenkinsURL() string {
	u := c.JenkinsURL
	if at := strings.LastIndex(u, "@"); at >= 0 {
		if scheme := strings.Index(u, "://"); scheme >= 0 && at > scheme {
			return u[:scheme+3] + "***" + u[at:]
		}
	}
	return u
}

// String renders a redacted summary of the configuration.
func (c Config) String() string {
	return fmt.Sprintf("listen=%s jenkins=%s ttl=%s catalog=%s acl_db=%s",
		c.ListenAddr, c.MaskedJenkinsURL(), c.SessionTTL, c.CatalogPath, c.ACLDBPath)
}
