package storage

import (
	"github.com/Sriram-PR/msg-photos/pkg/models"
)

// ResultStore records the terminal outcome of every download task in a run
type ResultStore interface {
	// RecordResult stores the outcome for one task, replacing any earlier outcome for the same task.
	// Entries without a terminal status are rejected.
	RecordResult(entry *models.DownloadDBEntry) error

	// CheckResult returns the stored outcome for a conversation and sequence index.
	// Returns DownloadStatusUnset and a nil entry if nothing was recorded.
	CheckResult(conversationID string, sequenceIndex int) (models.DownloadStatus, *models.DownloadDBEntry, error)

	// ForEach visits every entry ordered by conversation id, then sequence index
	ForEach(fn func(entry models.DownloadDBEntry) error) error

	// CountByStatus tallies recorded outcomes
	CountByStatus() (map[models.DownloadStatus]int, error)

	// ResultCount returns the number of tasks recorded
	ResultCount() int

	// WriteReport writes all entries as a tab-separated file
	WriteReport(filePath string) error

	// Close cleanly closes the database
	Close() error
}
