package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/msg-photos/pkg/config"
	"github.com/Sriram-PR/msg-photos/pkg/exifmeta"
	"github.com/Sriram-PR/msg-photos/pkg/models"
	"github.com/Sriram-PR/msg-photos/pkg/storage"
	"github.com/Sriram-PR/msg-photos/pkg/utils"
)

// Downloader fetches one URL into destPath. A failed download must not leave a file at destPath.
type Downloader interface {
	Download(ctx context.Context, url, destPath string) error
}

// MetadataWriter rewrites the capture timestamps of a saved image
type MetadataWriter interface {
	Rewrite(path string, sentAt time.Time) error
}

// NameResolver maps conversation ids to display names and directory names
type NameResolver interface {
	Lookup(id string) (models.Conversation, error)
	DirName(id string) (string, error)
	Conversations() []models.Conversation
}

// Summary aggregates the outcome of one Run
type Summary struct {
	StartTime     time.Time
	EndTime       time.Time
	Elapsed       time.Duration
	Dispatched    int
	FilesWritten  int
	Counts        map[models.DownloadStatus]int
	Conversations map[string]*models.ConversationManifest // Keyed by conversation id
}

// Orchestrator turns a stream of conversation records into files on disk
type Orchestrator struct {
	cfg        *config.AppConfig
	names      NameResolver
	downloader Downloader
	metadata   MetadataWriter
	store      storage.ResultStore // Optional
	log        *logrus.Entry

	dirOwners map[string]string // Directory name -> conversation id, dispatcher only
	dirsMu    sync.Mutex
	dirsReady map[string]bool

	summaryMu sync.Mutex
	summary   Summary
}

// NewOrchestrator wires the pipeline stages. store may be nil.
func NewOrchestrator(cfg *config.AppConfig, names NameResolver, downloader Downloader, metadata MetadataWriter, store storage.ResultStore, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		names:      names,
		downloader: downloader,
		metadata:   metadata,
		store:      store,
		log:        log,
		dirOwners:  make(map[string]string),
		dirsReady:  make(map[string]bool),
	}
}

// Run dispatches one download task per record to a pool of cfg.NumWorkers workers and
// returns once every dispatched task has finished. Records are pulled lazily; dispatch
// blocks while all workers are busy. Task failures are recorded, never returned.
// Cancelling ctx stops dispatching new tasks.
func (o *Orchestrator) Run(ctx context.Context, records iter.Seq[models.ConversationRecord]) Summary {
	o.summary = Summary{
		StartTime:     time.Now(),
		Counts:        make(map[models.DownloadStatus]int),
		Conversations: make(map[string]*models.ConversationManifest),
	}
	for _, conv := range o.names.Conversations() {
		o.conversationEntry(conv.ID, conv.DisplayName)
	}

	var g errgroup.Group
	g.SetLimit(o.cfg.NumWorkers)
	seq := NewSequencer()

	o.log.Infof("Dispatching downloads with %d worker(s)", o.cfg.NumWorkers)
	for rec := range records {
		if ctx.Err() != nil {
			o.log.Warnf("Stopping dispatch: %v", ctx.Err())
			break
		}

		index := seq.Next(rec.ConversationID)
		o.summary.Dispatched++

		task, err := o.buildTask(rec, index)
		if err != nil {
			o.finish(task, models.DownloadStatusFailed, err)
			continue
		}

		g.Go(func() error {
			o.runTask(ctx, task)
			return nil
		})
	}
	g.Wait()

	o.summary.EndTime = time.Now()
	o.summary.Elapsed = o.summary.EndTime.Sub(o.summary.StartTime)
	o.logSummary()
	return o.summary
}

// buildTask resolves the destination of a record. Always returns a task usable for reporting.
func (o *Orchestrator) buildTask(rec models.ConversationRecord, index int) (models.DownloadTask, error) {
	task := models.DownloadTask{
		Record:        rec.Image,
		Conversation:  models.Conversation{ID: rec.ConversationID},
		SequenceIndex: index,
	}

	conv, err := o.names.Lookup(rec.ConversationID)
	if err != nil {
		return task, err
	}
	task.Conversation = conv

	dirName, err := o.names.DirName(rec.ConversationID)
	if err != nil {
		return task, err
	}
	if owner, taken := o.dirOwners[dirName]; taken && owner != rec.ConversationID {
		return task, utils.WrapErrorf(utils.ErrFilesystem, "directory '%s' already used by conversation '%s'", dirName, owner)
	}
	o.dirOwners[dirName] = rec.ConversationID

	task.DestinationPath = filepath.Join(o.cfg.OutputDir, dirName, o.cfg.FileName(index, rec.Image.SentAt))
	return task, nil
}

func (o *Orchestrator) runTask(ctx context.Context, task models.DownloadTask) {
	taskLog := o.log.WithFields(logrus.Fields{
		"conversation": task.Conversation.ID,
		"index":        task.SequenceIndex,
		"url":          task.Record.Link,
	})

	defer func() {
		if r := recover(); r != nil {
			taskLog.Errorf("PANIC in download task: %v\n%s", r, debug.Stack())
			o.finish(task, models.DownloadStatusFailed, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := o.ensureDir(filepath.Dir(task.DestinationPath)); err != nil {
		taskLog.Errorf("Cannot create conversation directory: %v", err)
		o.finish(task, models.DownloadStatusFailed, err)
		return
	}

	if err := o.downloader.Download(ctx, task.Record.Link, task.DestinationPath); err != nil {
		if errors.Is(err, utils.ErrRetryFailed) || errors.Is(err, utils.ErrSkipped) {
			taskLog.Warnf("Skipping image: %v", err)
			o.finish(task, models.DownloadStatusSkipped, err)
			return
		}
		taskLog.Errorf("Download failed: %v", err)
		o.finish(task, models.DownloadStatusFailed, err)
		return
	}

	if err := o.metadata.Rewrite(task.DestinationPath, task.Record.SentAt); err != nil {
		taskLog.Warnf("Saved image but could not rewrite its metadata: %v", err)
		o.finish(task, models.DownloadStatusMetadataError, err)
		return
	}

	if o.cfg.VerifyMetadata {
		o.verify(task, taskLog)
	}
	taskLog.WithField("path", task.DestinationPath).Debug("Saved image")
	o.finish(task, models.DownloadStatusSaved, nil)
}

// ensureDir creates dir once per run; concurrent first access is tolerated
func (o *Orchestrator) ensureDir(dir string) error {
	o.dirsMu.Lock()
	defer o.dirsMu.Unlock()
	if o.dirsReady[dir] {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: create '%s': %w", utils.ErrFilesystem, dir, err)
	}
	o.dirsReady[dir] = true
	return nil
}

func (o *Orchestrator) verify(task models.DownloadTask, taskLog *logrus.Entry) {
	times, err := exifmeta.ReadCaptureTimes(task.DestinationPath)
	if err != nil {
		taskLog.Warnf("Metadata verification could not read timestamps: %v", err)
		return
	}
	if !times.Matches(task.Record.SentAt) {
		taskLog.Warnf("Metadata verification mismatch: want %s, got %+v",
			task.Record.SentAt.Format(exifmeta.ExifTimeLayout), times)
	}
}

// finish records the terminal outcome of a task in the summary and the ledger
func (o *Orchestrator) finish(task models.DownloadTask, status models.DownloadStatus, taskErr error) {
	o.summaryMu.Lock()
	o.summary.Counts[status]++
	conv := o.conversationEntry(task.Conversation.ID, task.Conversation.DisplayName)
	conv.Images++
	if status.FileWritten() {
		conv.FilesWritten++
		o.summary.FilesWritten++
	}
	switch status {
	case models.DownloadStatusSaved:
		conv.Saved++
	case models.DownloadStatusSkipped:
		conv.Skipped++
	case models.DownloadStatusFailed:
		conv.Failed++
	case models.DownloadStatusMetadataError:
		conv.MetadataError++
	}
	if conv.Directory == "" && task.DestinationPath != "" {
		conv.Directory = filepath.Base(filepath.Dir(task.DestinationPath))
	}
	o.summaryMu.Unlock()

	if o.store == nil {
		return
	}
	if prev, _, err := o.store.CheckResult(task.Conversation.ID, task.SequenceIndex); err == nil && prev != models.DownloadStatusUnset {
		o.log.Warnf("Result for %s #%d already recorded as %s, replacing with %s", task.Conversation.ID, task.SequenceIndex, prev, status)
	}
	entry := &models.DownloadDBEntry{
		Status:         status,
		ConversationID: task.Conversation.ID,
		SequenceIndex:  task.SequenceIndex,
		URL:            task.Record.Link,
		Path:           task.DestinationPath,
		SentAt:         task.Record.SentAt,
		FinishedAt:     time.Now(),
	}
	if taskErr != nil {
		entry.ErrorType = utils.CategorizeError(taskErr)
	}
	if err := o.store.RecordResult(entry); err != nil {
		o.log.Errorf("Failed to record result for %s #%d: %v", task.Conversation.ID, task.SequenceIndex, err)
	}
}

// conversationEntry returns the summary row for id, creating it. Caller holds summaryMu or is the only goroutine.
func (o *Orchestrator) conversationEntry(id, displayName string) *models.ConversationManifest {
	conv, ok := o.summary.Conversations[id]
	if !ok {
		conv = &models.ConversationManifest{ID: id, DisplayName: displayName}
		if dirName, err := o.names.DirName(id); err == nil {
			conv.Directory = dirName
		}
		o.summary.Conversations[id] = conv
	}
	return conv
}

// SortedConversations returns the per-conversation rows ordered by id
func (s Summary) SortedConversations() []models.ConversationManifest {
	out := make([]models.ConversationManifest, 0, len(s.Conversations))
	for _, c := range s.Conversations {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (o *Orchestrator) logSummary() {
	s := o.summary
	o.log.Info("============================================")
	o.log.Infof("Export completed in %v", s.Elapsed)
	o.log.Infof("Dispatched %d image(s) across %d conversation(s)", s.Dispatched, len(s.Conversations))
	for _, status := range models.AllDownloadStatuses() {
		o.log.Infof("  %-15s %d", status.String()+":", s.Counts[status])
	}
	o.log.Infof("Files written: %d", s.FilesWritten)
	o.log.Info("============================================")
}
