// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
services:
  - key: elasticsearch
    label: Elasticsearch
    icon: "🟦"
    jenkins_job: Service-Elasticsearch
  - key: kibana
    label: Kibana
    icon: "🟪"
    jenkins_job: Service-Kibana
`

func writeCatalog(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), catalogYAML)

	cat, err := LoadCatalog(path)
	require.NoError(t, err)

	services := cat.Services()
	require.Len(t, services, 2)
	assert.Equal(t, "elasticsearch", services[0].Key)
	assert.Equal(t, "Service-Kibana", services[1].JenkinsJob)

	svc, ok := cat.Lookup("kibana")
	require.True(t, ok)
	assert.Equal(t, "Kibana", svc.Label)

	_, ok = cat.Lookup("redis")
	assert.False(t, ok)
}

func TestLoadCatalogDefault(t *testing.T) {
	cat, err := LoadCatalog("")
	require.NoError(t, err)
	require.Len(t, cat.Services(), 3)
	_, ok := cat.Lookup("filebeat")
	assert.True(t, ok)
}

func TestLoadCatalogRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "empty", content: "services: []", wantErr: "no services"},
		{
			name: "missing job",
			content: `
services:
  - key: kibana
    label: Kibana
`,
			wantErr: "jenkins_job",
		},
		{
			name: "duplicate key",
			content: `
services:
  - {key: kibana, label: Kibana, jenkins_job: A}
  - {key: kibana, label: Kibana2, jenkins_job: B}
`,
			wantErr: "duplicate",
		},
		{name: "bad yaml", content: "services: [", wantErr: "parse catalog"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCatalog(t, t.TempDir(), tt.content)
			_, err := LoadCatalog(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCatalogWatchReload(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir, catalogYAML)

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, cat.Services(), 2)

	done := make(chan struct{})
	defer close(done)
	go func() {
		_ = cat.Watch(done, path)
	}()

	// Give the watcher a moment to register before mutating the file.
	time.Sleep(100 * time.Millisecond)

	updated := catalogYAML + `
  - key: filebeat
    label: Filebeat
    icon: "🟧"
    jenkins_job: Service-Filebeat
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	require.Eventually(t, func() bool {
		return len(cat.Services()) == 3
	}, 3*time.Second, 50*time.Millisecond, "catalog should pick up the new service")

	// An invalid rewrite must not clobber the loaded catalog.
	require.NoError(t, os.WriteFile(path, []byte("services: ["), 0o600))
	time.Sleep(300 * time.Millisecond)
	assert.Len(t, cat.Services(), 3)
}
