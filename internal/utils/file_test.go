package utils_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fjacquet/restbackup/internal/models"
	"github.com/fjacquet/restbackup/internal/testutil"
	"github.com/fjacquet/restbackup/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes content to a file named name under a fresh directory.
func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileExists(t *testing.T) {
	path := writeConfig(t, "restbackup.yaml", "management: {}\n")

	assert.True(t, utils.FileExists(path))
	assert.True(t, utils.FileExists(filepath.Dir(path)), "directories exist too")
	assert.False(t, utils.FileExists(filepath.Join(filepath.Dir(path), "missing.yaml")))
	assert.False(t, utils.FileExists(""))
}

func TestReadFileDecodesConfig(t *testing.T) {
	path := writeConfig(t, "restbackup.yaml", `
management:
  accessUrl: "`+testutil.TestManagementAccessURL+`"
backup:
  accessUrl: "`+testutil.TestBackupAccessURL+`"
client:
  maxAttempts: 3
  settleDelay: 250ms
  readTimeout: 30m
  maxConnsPerHost: 2
  insecureSkipVerify: true
log:
  name: /var/log/restbackup.log
metrics:
  textfile: /var/lib/node_exporter/restbackup.prom
opentelemetry:
  enabled: true
  endpoint: localhost:4317
  samplingRate: 0.25
`)

	var cfg models.Config
	require.NoError(t, utils.ReadFile(&cfg, path))

	assert.Equal(t, testutil.TestManagementAccessURL, cfg.Management.AccessURL)
	assert.Equal(t, testutil.TestBackupAccessURL, cfg.Backup.AccessURL)
	assert.Equal(t, 3, cfg.Client.MaxAttempts)
	assert.Equal(t, "250ms", cfg.Client.SettleDelay)
	assert.Equal(t, "30m", cfg.Client.ReadTimeout)
	assert.Empty(t, cfg.Client.ConnectTimeout, "defaults are not applied while decoding")
	assert.Equal(t, 2, cfg.Client.MaxConnsPerHost)
	assert.True(t, cfg.Client.InsecureSkipVerify)
	assert.Equal(t, "/var/log/restbackup.log", cfg.Log.Name)
	assert.Equal(t, "/var/lib/node_exporter/restbackup.prom", cfg.Metrics.Textfile)
	assert.True(t, cfg.OpenTelemetry.Enabled)
	assert.Equal(t, "localhost:4317", cfg.OpenTelemetry.Endpoint)
	assert.InDelta(t, 0.25, cfg.OpenTelemetry.SamplingRate, 1e-9)
}

func TestReadFileKeepsUnsetSections(t *testing.T) {
	path := writeConfig(t, "backup-only.yaml", `
backup:
  accessUrl: "`+testutil.TestBackupAccessURL+`"
unknownSection:
  ignored: true
`)

	var cfg models.Config
	cfg.Client.MaxAttempts = 9
	require.NoError(t, utils.ReadFile(&cfg, path))

	assert.Empty(t, cfg.Management.AccessURL)
	assert.Equal(t, testutil.TestBackupAccessURL, cfg.Backup.AccessURL)
	assert.Equal(t, 9, cfg.Client.MaxAttempts, "values absent from the file are left alone")
}

func TestReadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		isEOF   bool
	}{
		{name: "invalid syntax", content: "management: [unclosed"},
		{name: "wrong type", content: "client:\n  maxAttempts: many\n"},
		{name: "section is a scalar", content: "management: https://u:p@host/\n"},
		{name: "empty file", content: "", isEOF: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "broken.yaml", tt.content)

			var cfg models.Config
			err := utils.ReadFile(&cfg, path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to decode config file "+path)
			if tt.isEOF {
				assert.ErrorIs(t, err, io.EOF)
			} else {
				assert.NotErrorIs(t, err, io.EOF)
			}
		})
	}
}

func TestReadFileUnreadable(t *testing.T) {
	var cfg models.Config
	err := utils.ReadFile(&cfg, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "failed to open config file")

	if os.Getuid() == 0 {
		t.Skip("root reads files without read permission")
	}
	path := writeConfig(t, "noperm.yaml", "management: {}\n")
	require.NoError(t, os.Chmod(path, 0))
	t.Cleanup(func() { _ = os.Chmod(path, 0o600) })

	err = utils.ReadFile(&cfg, path)
	assert.ErrorIs(t, err, os.ErrPermission)
}
