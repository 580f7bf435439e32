package models

import "time"

// ImageRecord is one photo attachment recovered from an exported conversation document
type ImageRecord struct {
	Link   string    // Attachment URL
	SentAt time.Time // Wall-clock send time parsed from the message header
}

// ConversationRecord pairs an image with the conversation it was found in
type ConversationRecord struct {
	ConversationID string
	Image          ImageRecord
	SourcePath     string // Document the record was parsed from
}

// Conversation is a conversation id and its run-unique display name
type Conversation struct {
	ID          string
	DisplayName string
}

// DownloadTask holds everything a worker needs to materialize one image
type DownloadTask struct {
	Record          ImageRecord
	Conversation    Conversation
	SequenceIndex   int    // Per-conversation ordinal, starts at 0
	DestinationPath string // Unique for the whole run
}

// DownloadDBEntry stores the outcome of one download task in the run ledger
type DownloadDBEntry struct {
	Status         DownloadStatus `json:"status"`
	ConversationID string         `json:"conversation_id"`
	SequenceIndex  int            `json:"sequence_index"`
	URL            string         `json:"url"`
	Path           string         `json:"path"`
	SentAt         time.Time      `json:"sent_at"`
	ErrorType      string         `json:"error_type,omitempty"` // Error category (on failure)
	FinishedAt     time.Time      `json:"finished_at"`
}

// RunManifest describes one export run, written as YAML next to the output
type RunManifest struct {
	MessagesDir   string                 `yaml:"messages_dir"`
	OutputDir     string                 `yaml:"output_dir"`
	StartTime     time.Time              `yaml:"start_time"`
	EndTime       time.Time              `yaml:"end_time"`
	Elapsed       string                 `yaml:"elapsed"`
	Totals        map[string]int         `yaml:"totals"`
	FilesWritten  int                    `yaml:"files_written"`
	Conversations []ConversationManifest `yaml:"conversations"`
}

// ConversationManifest holds per-conversation counts for a RunManifest
type ConversationManifest struct {
	ID            string `yaml:"id"`
	DisplayName   string `yaml:"display_name"`
	Directory     string `yaml:"directory,omitempty"`
	Images        int    `yaml:"images"`
	FilesWritten  int    `yaml:"files_written"`
	Saved         int    `yaml:"saved"`
	Skipped       int    `yaml:"skipped,omitempty"`
	Failed        int    `yaml:"failed,omitempty"`
	MetadataError int    `yaml:"metadata_error,omitempty"`
}
