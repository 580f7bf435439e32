package config

import (
	"fmt"
	"time"

	"github.com/Sriram-PR/msg-photos/pkg/utils"
)

const (
	DefaultOutputDir        = "out"
	DefaultIndexFilename    = "index-messages.html"
	DefaultNumWorkers       = 16
	MaxNumWorkers           = 64
	DefaultMaxAttempts      = 3
	DefaultReportFilename   = "download_report.tsv"
	DefaultManifestFilename = "manifest.yaml"
	DefaultUserAgent        = "msg-photos/1.0"
)

// Validate checks AppConfig fields and applies defaults in place.
// Returns collected warnings and a fatal error only for unusable settings.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.MessagesDir == "" {
		return nil, fmt.Errorf("%w: messages_dir is required", utils.ErrConfigValidation)
	}

	switch c.FilenameFormat {
	case "":
		c.FilenameFormat = FilenameFormatTimestamp
	case FilenameFormatTimestamp, FilenameFormatIndex:
	default:
		return nil, fmt.Errorf("%w: unknown filename_format '%s' (want '%s' or '%s')",
			utils.ErrConfigValidation, c.FilenameFormat, FilenameFormatTimestamp, FilenameFormatIndex)
	}

	if c.OutputDir == "" {
		warnings = append(warnings, fmt.Sprintf("out_dir is empty, defaulting to '%s'", DefaultOutputDir))
		c.OutputDir = DefaultOutputDir
	}

	if c.IndexFilename == "" {
		c.IndexFilename = DefaultIndexFilename
	}

	if c.NumWorkers <= 0 {
		warnings = append(warnings, fmt.Sprintf("num_workers should be > 0, defaulting to %d", DefaultNumWorkers))
		c.NumWorkers = DefaultNumWorkers
	} else if c.NumWorkers > MaxNumWorkers {
		warnings = append(warnings, fmt.Sprintf("num_workers %d exceeds %d, clamping", c.NumWorkers, MaxNumWorkers))
		c.NumWorkers = MaxNumWorkers
	}

	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}

	if c.InitialRetryDelay < 0 {
		warnings = append(warnings, "initial_retry_delay cannot be negative, disabling backoff")
		c.InitialRetryDelay = 0
	}
	if c.MaxRetryDelay < c.InitialRetryDelay {
		c.MaxRetryDelay = c.InitialRetryDelay
	}

	if c.MaxRequestsPerHost <= 0 {
		c.MaxRequestsPerHost = c.NumWorkers
	}

	if c.DelayPerHost < 0 {
		warnings = append(warnings, "delay_per_host cannot be negative, disabling pacing")
		c.DelayPerHost = 0
	}

	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	if c.WriteReport && c.ReportFilename == "" {
		c.ReportFilename = DefaultReportFilename
	}
	if c.WriteManifest && c.ManifestFilename == "" {
		c.ManifestFilename = DefaultManifestFilename
	}

	c.validateHTTPClientSettings()

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 60 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = c.NumWorkers
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
