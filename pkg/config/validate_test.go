package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/msg-photos/pkg/utils"
)

func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestAppConfig_Validate_Defaults(t *testing.T) {
	cfg := AppConfig{MessagesDir: "messages"}
	warnings, err := cfg.Validate()

	require.NoError(t, err)

	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, DefaultIndexFilename, cfg.IndexFilename)
	assert.Equal(t, DefaultNumWorkers, cfg.NumWorkers)
	assert.Equal(t, FilenameFormatTimestamp, cfg.FilenameFormat)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Duration(0), cfg.InitialRetryDelay)
	assert.Equal(t, DefaultNumWorkers, cfg.MaxRequestsPerHost)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, 60*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, DefaultNumWorkers, cfg.HTTPClientSettings.MaxIdleConnsPerHost)

	assert.True(t, containsWarning(warnings, "out_dir is empty"))
	assert.True(t, containsWarning(warnings, "num_workers should be > 0"))
}

func TestAppConfig_Validate_MissingMessagesDir(t *testing.T) {
	cfg := AppConfig{}
	_, err := cfg.Validate()

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestAppConfig_Validate_UnknownFilenameFormat(t *testing.T) {
	cfg := AppConfig{MessagesDir: "m", FilenameFormat: "uuid"}
	_, err := cfg.Validate()

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
	assert.Contains(t, err.Error(), "uuid")
}

func TestAppConfig_Validate_ClampsWorkers(t *testing.T) {
	cfg := AppConfig{MessagesDir: "m", NumWorkers: 500}
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Equal(t, MaxNumWorkers, cfg.NumWorkers)
	assert.True(t, containsWarning(warnings, "clamping"))
}

func TestAppConfig_Validate_PreservesValues(t *testing.T) {
	cfg := AppConfig{
		MessagesDir:        "m",
		OutputDir:          "/photos",
		NumWorkers:         4,
		FilenameFormat:     FilenameFormatIndex,
		MaxAttempts:        5,
		InitialRetryDelay:  time.Second,
		MaxRequestsPerHost: 2,
		WriteReport:        true,
		WriteManifest:      true,
	}
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "/photos", cfg.OutputDir)
	assert.Equal(t, 4, cfg.NumWorkers)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.MaxRetryDelay)
	assert.Equal(t, 2, cfg.MaxRequestsPerHost)
	assert.Equal(t, DefaultReportFilename, cfg.ReportFilename)
	assert.Equal(t, DefaultManifestFilename, cfg.ManifestFilename)
}

func TestAppConfig_Validate_NegativeDelays(t *testing.T) {
	cfg := AppConfig{MessagesDir: "m", OutputDir: "o", NumWorkers: 1, InitialRetryDelay: -time.Second, DelayPerHost: -time.Second}
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.InitialRetryDelay)
	assert.Equal(t, time.Duration(0), cfg.DelayPerHost)
	assert.Len(t, warnings, 2)
}

func TestFileName(t *testing.T) {
	sentAt := time.Date(2021, 6, 3, 22, 15, 0, 0, time.UTC)

	ts := AppConfig{FilenameFormat: FilenameFormatTimestamp}
	assert.Equal(t, "2021-06-03_22-15-00_7.jpg", ts.FileName(7, sentAt))

	idx := AppConfig{FilenameFormat: FilenameFormatIndex}
	assert.Equal(t, "0.jpg", idx.FileName(0, sentAt))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
messages_dir: ./messages
out_dir: ./photos
num_workers: 8
filename_format: index
initial_retry_delay: 250ms
http_client_settings:
  timeout: 20s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "./messages", cfg.MessagesDir)
	assert.Equal(t, "./photos", cfg.OutputDir)
	assert.Equal(t, 8, cfg.NumWorkers)
	assert.Equal(t, FilenameFormatIndex, cfg.FilenameFormat)
	assert.Equal(t, 250*time.Millisecond, cfg.InitialRetryDelay)
	assert.Equal(t, 20*time.Second, cfg.HTTPClientSettings.Timeout)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("num_workers: [oops"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}
