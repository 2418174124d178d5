// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/raafi-4z1/slack-service-bot/internal/log"
)

// Service is one operator-visible service the bot can act on. The catalog is
// read-only at runtime; a Service value is safe to copy and share.
type Service struct {
	Key        string `yaml:"key"`
	Label      string `yaml:"label"`
	Icon       string `yaml:"icon"`
	JenkinsJob string `yaml:"jenkins_job"`
}

// Catalog is the ordered set of services the bot offers. Lookup is by key.
type Catalog struct {
	mu       sync.RWMutex
	services []Service
}

// DefaultServices is the built-in catalog used when no catalog file is given.
func DefaultServices() []Service {
	return []Service{
		{Key: "elasticsearch", Label: "Elasticsearch", Icon: "🟦", JenkinsJob: "Service-Elasticsearch"},
		{Key: "kibana", Label: "Kibana", Icon: "🟪", JenkinsJob: "Service-Kibana"},
		{Key: "filebeat", Label: "Filebeat", Icon: "🟧", JenkinsJob: "Service-Filebeat"},
	}
}

// NewCatalog builds a catalog from the given services.
func NewCatalog(services []Service) (*Catalog, error) {
	if err := validateServices(services); err != nil {
		return nil, err
	}
	c := &Catalog{}
	c.replace(services)
	return c, nil
}

// LoadCatalog reads a catalog from a YAML file. An empty path yields the
// default catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(DefaultServices())
	}
	services, err := readCatalogFile(path)
	if err != nil {
		return nil, err
	}
	return NewCatalog(services)
}

func readCatalogFile(path string) ([]Service, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var doc struct {
		Services []Service `yaml:"services"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := validateServices(doc.Services); err != nil {
		return nil, err
	}
	return doc.Services, nil
}

func validateServices(services []Service) error {
	if len(services) == 0 {
		return fmt.Errorf("catalog: no services defined")
	}
	seen := make(map[string]struct{}, len(services))
	for _, s := range services {
		if s.Key == "" || s.Label == "" || s.JenkinsJob == "" {
			return fmt.Errorf("catalog: service %q must have key, label and jenkins_job", s.Key)
		}
		if _, dup := seen[s.Key]; dup {
			return fmt.Errorf("catalog: duplicate service key %q", s.Key)
		}
		seen[s.Key] = struct{}{}
	}
	return nil
}

func (c *Catalog) replace(services []Service) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services = append([]Service(nil), services...)
}

// Services returns a copy of the catalog in declaration order.
func (c *Catalog) Services() []Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Service(nil), c.services...)
}

// Lookup finds a service by key.
func (c *Catalog) Lookup(key string) (Service, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.services {
		if s.Key == key {
			return s, true
		}
	}
	return Service{}, false
}

// Watch reloads the catalog whenever the backing file changes. It blocks
// until done is closed or the watcher fails. Invalid updates are logged and
// the previous catalog stays in effect.
func (c *Catalog) Watch(done <-chan struct{}, path string) error {
	if path == "" {
		<-done
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file are still seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("catalog watcher: %w", err)
	}

	logger := log.WithComponent("catalog")
	target := filepath.Clean(path)
	for {
		select {
		case <-done:
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			services, err := readCatalogFile(path)
			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("catalog reload failed, keeping previous catalog")
				continue
			}
			c.replace(services)
			logger.Info().Str("event", "catalog.reloaded").Int("services", len(services)).Msg("catalog reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("catalog watcher error")
		}
	}
}
