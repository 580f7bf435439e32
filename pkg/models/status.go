package models

// DownloadStatus is the terminal outcome of a download task
type DownloadStatus string

const (
	DownloadStatusUnset         DownloadStatus = ""               // Zero value = unset/unknown
	DownloadStatusSaved         DownloadStatus = "saved"          // File written and metadata rewritten
	DownloadStatusSkipped       DownloadStatus = "skipped"        // All attempts exhausted, no file written
	DownloadStatusFailed        DownloadStatus = "failed"         // Name resolution or filesystem error
	DownloadStatusMetadataError DownloadStatus = "metadata_error" // File written, metadata rewrite failed
)

// String implements fmt.Stringer for logging
func (s DownloadStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known terminal value
func (s DownloadStatus) IsValid() bool {
	switch s {
	case DownloadStatusSaved, DownloadStatusSkipped, DownloadStatusFailed, DownloadStatusMetadataError:
		return true
	}
	return false
}

// FileWritten reports whether the image exists on disk after a task with this status
func (s DownloadStatus) FileWritten() bool {
	return s == DownloadStatusSaved || s == DownloadStatusMetadataError
}

// AllDownloadStatuses lists the terminal statuses in reporting order
func AllDownloadStatuses() []DownloadStatus {
	return []DownloadStatus{
		DownloadStatusSaved,
		DownloadStatusMetadataError,
		DownloadStatusSkipped,
		DownloadStatusFailed,
	}
}
