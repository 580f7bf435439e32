package orchestrate

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/msg-photos/pkg/config"
	"github.com/Sriram-PR/msg-photos/pkg/models"
	"github.com/Sriram-PR/msg-photos/pkg/utils"
)

// BuildManifest describes a finished run
func BuildManifest(cfg *config.AppConfig, s Summary) models.RunManifest {
	totals := make(map[string]int, len(s.Counts))
	for _, status := range models.AllDownloadStatuses() {
		totals[status.String()] = s.Counts[status]
	}
	return models.RunManifest{
		MessagesDir:   cfg.MessagesDir,
		OutputDir:     cfg.OutputDir,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		Elapsed:       s.Elapsed.String(),
		Totals:        totals,
		FilesWritten:  s.FilesWritten,
		Conversations: s.SortedConversations(),
	}
}

// WriteManifest writes m as YAML to path, creating parent directories
func WriteManifest(path string, m models.RunManifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: create manifest directory: %w", utils.ErrFilesystem, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: write manifest '%s': %w", utils.ErrFilesystem, path, err)
	}
	return nil
}
