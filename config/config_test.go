package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kartta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
version: "1"
accounts:
  - id: "111122223333"
    name: prod
    credential_profile: prod-scanner
regions:
  - us-west-2
  - eu-west-1
services:
  - compute
  - database
cleanup_stale: true
limits:
  regions: 4
  permission_calls: 25
permissions:
  cache_ttl: 2m
embedding:
  endpoint: http://localhost:11434
  model: all-minilm
  dimension: 384
store:
  path: /tmp/kartta-test.db
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Len(t, cfg.Accounts, 1)
	assert.Equal(t, "111122223333", cfg.Accounts[0].ID)
	assert.Equal(t, "prod-scanner", cfg.Accounts[0].CredentialProfile)
	assert.Equal(t, []string{"us-west-2", "eu-west-1"}, cfg.Regions)
	assert.True(t, cfg.CleanupStale)
	assert.Equal(t, 4, cfg.Limits.Regions)
	assert.Equal(t, 25, cfg.Limits.PermissionCalls)
	assert.Equal(t, 2*time.Minute, cfg.PermissionCacheTTL())
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, "/tmp/kartta-test.db", cfg.StorePath())
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
version: "1"
accounts:
  - id: "111122223333"
regions: [us-west-2]
services: [compute]
embedding:
  endpoint: http://localhost:11434
  model: all-minilm
  dimension: 384
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "./kartta.db", cfg.StorePath())
	assert.Equal(t, 5*time.Minute, cfg.PermissionCacheTTL())
	assert.False(t, cfg.CleanupStale)
}

func TestValidateRejectsIncomplete(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing version", `
accounts: [{id: "1"}]
regions: [us-west-2]
services: [compute]
embedding: {endpoint: "http://x", model: m, dimension: 384}
`},
		{"no accounts", `
version: "1"
regions: [us-west-2]
services: [compute]
embedding: {endpoint: "http://x", model: m, dimension: 384}
`},
		{"account without id", `
version: "1"
accounts: [{name: prod}]
regions: [us-west-2]
services: [compute]
embedding: {endpoint: "http://x", model: m, dimension: 384}
`},
		{"no regions", `
version: "1"
accounts: [{id: "1"}]
services: [compute]
embedding: {endpoint: "http://x", model: m, dimension: 384}
`},
		{"zero dimension", `
version: "1"
accounts: [{id: "1"}]
regions: [us-west-2]
services: [compute]
embedding: {endpoint: "http://x", model: m}
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
