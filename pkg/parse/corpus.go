package parse

import (
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/msg-photos/pkg/models"
)

const htmlExt = ".html"

// CorpusStats counts what a pass over the corpus produced
type CorpusStats struct {
	Documents     int64 // Documents opened and parsed
	Records       int64 // Records emitted
	SkippedRecord int64 // Photo attachments dropped for malformed structure
	FailedDocs    int64 // Documents that could not be read or parsed
}

// Corpus walks an exported messages directory and streams the photo attachments it contains
type Corpus struct {
	root          string
	indexFilename string
	log           *logrus.Entry

	documents     atomic.Int64
	records       atomic.Int64
	skippedRecord atomic.Int64
	failedDocs    atomic.Int64
}

// NewCorpus creates a Corpus rooted at messagesDir. Documents whose path contains
// indexFilename as a path element are not treated as conversations.
func NewCorpus(messagesDir, indexFilename string, log *logrus.Entry) *Corpus {
	return &Corpus{
		root:          messagesDir,
		indexFilename: indexFilename,
		log:           log,
	}
}

// Records returns a lazy sequence of (conversation, image) records in document order,
// then DOM order within a document. Every call starts a fresh pass over the tree.
// Unreadable documents and malformed attachments are logged and skipped.
func (c *Corpus) Records() iter.Seq[models.ConversationRecord] {
	return func(yield func(models.ConversationRecord) bool) {
		for path := range c.documentPaths() {
			conversationID := filepath.Base(filepath.Dir(path))
			docLog := c.log.WithFields(logrus.Fields{"document": path, "conversation": conversationID})

			records, ok := c.parseFile(path, docLog)
			if !ok {
				continue
			}
			for _, rec := range records {
				c.records.Add(1)
				if !yield(models.ConversationRecord{ConversationID: conversationID, Image: rec, SourcePath: path}) {
					return
				}
			}
		}
	}
}

// Stats returns counters accumulated over every pass so far
func (c *Corpus) Stats() CorpusStats {
	return CorpusStats{
		Documents:     c.documents.Load(),
		Records:       c.records.Load(),
		SkippedRecord: c.skippedRecord.Load(),
		FailedDocs:    c.failedDocs.Load(),
	}
}

// documentPaths yields every *.html file under the root in lexical order, excluding the index
func (c *Corpus) documentPaths() iter.Seq[string] {
	return func(yield func(string) bool) {
		stopped := false
		walkErr := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				c.log.Warnf("Skipping unreadable path '%s': %v", path, err)
				if d != nil && d.IsDir() && path != c.root {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(path), htmlExt) {
				return nil
			}
			if c.isIndexPath(path) {
				return nil
			}
			if !yield(path) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})
		if walkErr != nil && !stopped {
			c.log.Errorf("Walking messages directory '%s' failed: %v", c.root, walkErr)
		}
	}
}

func (c *Corpus) isIndexPath(path string) bool {
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		rel = path
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == c.indexFilename {
			return true
		}
	}
	return false
}

func (c *Corpus) parseFile(path string, docLog *logrus.Entry) ([]models.ImageRecord, bool) {
	f, err := os.Open(path)
	if err != nil {
		c.failedDocs.Add(1)
		docLog.Errorf("Failed to open conversation document: %v", err)
		return nil, false
	}
	defer f.Close()

	records, recordErrs, err := ParseDocument(f)
	if err != nil {
		c.failedDocs.Add(1)
		docLog.Errorf("Failed to parse conversation document: %v", err)
		return nil, false
	}
	c.documents.Add(1)

	for _, recErr := range recordErrs {
		c.skippedRecord.Add(1)
		docLog.Warnf("Skipping photo attachment: %v", recErr)
	}
	docLog.Debugf("Parsed %d photo attachment(s)", len(records))
	return records, true
}
