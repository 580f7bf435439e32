package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/msg-photos/pkg/log"
	"github.com/Sriram-PR/msg-photos/pkg/models"
	"github.com/Sriram-PR/msg-photos/pkg/utils"
)

const (
	resultKeyPrefix = "dl:"        // Prefix for download result keys
	ledgerDBDir     = "results_db" // Subdirectory suffix within stateDir
	reportHeader    = "conversation_id\tsequence_index\tstatus\terror_type\tsent_at\tpath\turl"
)

// BadgerStore implements ResultStore using BadgerDB
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	ctx      context.Context
	keyCount atomic.Int64
}

// NewBadgerStore opens a fresh ledger for one run. Any ledger left by a previous run
// with the same runKey is removed first. An empty stateDir keeps the ledger in memory.
func NewBadgerStore(ctx context.Context, stateDir, runKey string, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{log: logger, ctx: ctx}

	var opts badger.Options
	if stateDir == "" {
		logger.Debug("Using in-memory results ledger")
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		dbPath := filepath.Join(stateDir, utils.SanitizeFilename(runKey)+"_"+ledgerDBDir)
		if err := os.RemoveAll(dbPath); err != nil {
			logger.Errorf("Failed to remove previous results ledger %s: %v", dbPath, err)
		}
		if err := os.MkdirAll(dbPath, 0755); err != nil {
			return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
		}
		logger.Infof("Initializing results ledger at: %s", dbPath)
		opts = badger.DefaultOptions(dbPath)
	}
	opts = opts.
		WithLogger(log.NewBadgerLogger(logger)).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database: %w", utils.ErrDatabase, err)
	}
	return store, nil
}

func resultKey(conversationID string, sequenceIndex int) []byte {
	// Zero padding keeps lexical key order equal to numeric index order
	return []byte(fmt.Sprintf("%s%s/%010d", resultKeyPrefix, conversationID, sequenceIndex))
}

const maxConflictRetries = 10

// dbUpdate retries db.Update on MVCC transaction conflicts
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// RecordResult implements ResultStore
func (s *BadgerStore) RecordResult(entry *models.DownloadDBEntry) error {
	if !entry.Status.IsValid() {
		return fmt.Errorf("%w: invalid status '%s' for %s #%d", utils.ErrDatabase, entry.Status, entry.ConversationID, entry.SequenceIndex)
	}
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = time.Now()
	}
	key := resultKey(entry.ConversationID, entry.SequenceIndex)

	entryBytes, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: marshal result for key '%s': %w", utils.ErrDatabase, key, err)
	}

	isNew := false
	err = s.dbUpdate(func(txn *badger.Txn) error {
		if _, errGet := txn.Get(key); errors.Is(errGet, badger.ErrKeyNotFound) {
			isNew = true
		}
		return txn.SetEntry(badger.NewEntry(key, entryBytes))
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in RecordResult: %v", err)
		return fmt.Errorf("%w: setting result for key '%s': %w", utils.ErrDatabase, key, err)
	}
	if isNew {
		s.keyCount.Add(1)
	}
	return nil
}

// CheckResult implements ResultStore
func (s *BadgerStore) CheckResult(conversationID string, sequenceIndex int) (models.DownloadStatus, *models.DownloadDBEntry, error) {
	key := resultKey(conversationID, sequenceIndex)
	var entry *models.DownloadDBEntry

	err := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return errGet
		}
		return item.Value(func(val []byte) error {
			var decoded models.DownloadDBEntry
			if errJson := json.Unmarshal(val, &decoded); errJson != nil {
				return errJson
			}
			entry = &decoded
			return nil
		})
	})
	if err != nil {
		return models.DownloadStatusUnset, nil, fmt.Errorf("%w: reading result key '%s': %w", utils.ErrDatabase, key, err)
	}
	if entry == nil {
		return models.DownloadStatusUnset, nil, nil
	}
	return entry.Status, entry, nil
}

// ForEach implements ResultStore. Undecodable values are logged and skipped.
func (s *BadgerStore) ForEach(fn func(entry models.DownloadDBEntry) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(resultKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := s.ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			var entry models.DownloadDBEntry
			errValue := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if errValue != nil {
				s.log.Warnf("Skipping undecodable ledger entry '%s': %v", item.Key(), errValue)
				continue
			}
			if err := fn(entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountByStatus implements ResultStore
func (s *BadgerStore) CountByStatus() (map[models.DownloadStatus]int, error) {
	counts := make(map[models.DownloadStatus]int)
	err := s.ForEach(func(entry models.DownloadDBEntry) error {
		counts[entry.Status]++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: counting results: %w", utils.ErrDatabase, err)
	}
	return counts, nil
}

// ResultCount implements ResultStore
func (s *BadgerStore) ResultCount() int {
	return int(s.keyCount.Load())
}

// WriteReport implements ResultStore
func (s *BadgerStore) WriteReport(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("%w: create report '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintln(writer, reportHeader)

	written := 0
	iterErr := s.ForEach(func(e models.DownloadDBEntry) error {
		_, werr := fmt.Fprintf(writer, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			e.ConversationID, e.SequenceIndex, e.Status, e.ErrorType,
			e.SentAt.Format(time.RFC3339), tsvField(e.Path), tsvField(e.URL))
		written++
		return werr
	})
	if flushErr := writer.Flush(); flushErr != nil && iterErr == nil {
		iterErr = flushErr
	}
	if iterErr != nil {
		return fmt.Errorf("write report '%s': %w", filePath, iterErr)
	}

	s.log.Infof("Wrote %d result(s) to report: %s", written, filePath)
	return nil
}

func tsvField(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
}

// Close implements ResultStore
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing results ledger: %v", err)
		return err
	}
	return nil
}
