package log

import "github.com/sirupsen/logrus"

// BadgerLogger routes badger's internal logging through logrus.
// Badger reports routine compaction and replay progress at info level, so that is demoted to debug.
type BadgerLogger struct {
	entry *logrus.Entry
}

// NewBadgerLogger creates a badger.Logger tagged with component=badgerdb
func NewBadgerLogger(entry *logrus.Entry) *BadgerLogger {
	return &BadgerLogger{entry: entry.WithField("component", "badgerdb")}
}

func (l *BadgerLogger) Errorf(f string, v ...interface{})   { l.entry.Errorf(f, v...) }
func (l *BadgerLogger) Warningf(f string, v ...interface{}) { l.entry.Warnf(f, v...) }
func (l *BadgerLogger) Infof(f string, v ...interface{})    { l.entry.Debugf(f, v...) }
func (l *BadgerLogger) Debugf(f string, v ...interface{})   { l.entry.Tracef(f, v...) }
