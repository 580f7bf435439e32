package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Filename formats for downloaded images
const (
	FilenameFormatTimestamp = "timestamp" // {YYYY-MM-DD_HH-MM-SS}_{index}.jpg
	FilenameFormatIndex     = "index"     // {index}.jpg
)

// AppConfig holds the configuration of one export run
type AppConfig struct {
	MessagesDir        string           `yaml:"messages_dir"`
	OutputDir          string           `yaml:"out_dir"`
	IndexFilename      string           `yaml:"index_filename,omitempty"`
	NumWorkers         int              `yaml:"num_workers"`
	FilenameFormat     string           `yaml:"filename_format,omitempty"`
	MaxAttempts        int              `yaml:"max_attempts,omitempty"`        // Total attempts per download, including the first
	InitialRetryDelay  time.Duration    `yaml:"initial_retry_delay,omitempty"` // 0 = retry immediately
	MaxRetryDelay      time.Duration    `yaml:"max_retry_delay,omitempty"`
	MaxRequestsPerHost int              `yaml:"max_requests_per_host,omitempty"`
	DelayPerHost       time.Duration    `yaml:"delay_per_host,omitempty"` // 0 = no pacing
	UserAgent          string           `yaml:"user_agent,omitempty"`
	StateDir           string           `yaml:"state_dir,omitempty"` // Empty = in-memory ledger
	WriteReport        bool             `yaml:"write_report,omitempty"`
	ReportFilename     string           `yaml:"report_filename,omitempty"`
	WriteManifest      bool             `yaml:"write_manifest,omitempty"`
	ManifestFilename   string           `yaml:"manifest_filename,omitempty"`
	WriteTree          bool             `yaml:"write_tree,omitempty"`
	VerifyMetadata     bool             `yaml:"verify_metadata,omitempty"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout             time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns        int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	DialerTimeout       time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive     time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// Load reads a YAML config file. Validation is left to the caller so CLI flags can be applied first.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// FileName returns the image file name for a sequence index and send time
func (c *AppConfig) FileName(index int, sentAt time.Time) string {
	if c.FilenameFormat == FilenameFormatIndex {
		return fmt.Sprintf("%d.jpg", index)
	}
	return fmt.Sprintf("%s_%d.jpg", sentAt.Format("2006-01-02_15-04-05"), index)
}
