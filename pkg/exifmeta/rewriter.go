package exifmeta

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/msg-photos/pkg/utils"
)

// ExifTimeLayout is the EXIF "YYYY:MM:DD HH:MM:SS" timestamp format
const ExifTimeLayout = "2006:01:02 15:04:05"

const (
	ifd0Path = "IFD"
	exifPath = "IFD/Exif"

	tagDateTime          = "DateTime"
	tagDateTimeOriginal  = "DateTimeOriginal"
	tagDateTimeDigitized = "DateTimeDigitized"
)

// Rewriter sets the capture timestamps of downloaded JPEG files
type Rewriter struct {
	log *logrus.Entry
}

// NewRewriter creates a Rewriter
func NewRewriter(log *logrus.Entry) *Rewriter {
	return &Rewriter{log: log}
}

// Rewrite sets DateTime, DateTimeOriginal and DateTimeDigitized of the JPEG at path to sentAt.
// Other EXIF tags are kept. The file is replaced atomically; on any error it is left unchanged
// and the returned error wraps ErrMetadataRewrite.
func (r *Rewriter) Rewrite(path string, sentAt time.Time) (err error) {
	// The EXIF libraries panic on some malformed inputs
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: '%s': panic: %v", utils.ErrMetadataRewrite, path, p)
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read '%s': %w", utils.ErrMetadataRewrite, path, err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return fmt.Errorf("%w: '%s' is not a JPEG", utils.ErrMetadataRewrite, path)
	}

	mc, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return fmt.Errorf("%w: parse JPEG '%s': %w", utils.ErrMetadataRewrite, path, err)
	}
	sl, ok := mc.(*jpegstructure.SegmentList)
	if !ok {
		return fmt.Errorf("%w: unexpected JPEG structure in '%s'", utils.ErrMetadataRewrite, path)
	}

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		r.log.WithField("path", path).Debugf("No usable EXIF block, creating one: %v", err)
		if rootIb, err = newRootBuilder(); err != nil {
			return fmt.Errorf("%w: new EXIF block for '%s': %w", utils.ErrMetadataRewrite, path, err)
		}
	}

	stamp := sentAt.Format(ExifTimeLayout)
	if err := setTag(rootIb, ifd0Path, tagDateTime, stamp); err != nil {
		return fmt.Errorf("%w: '%s': %w", utils.ErrMetadataRewrite, path, err)
	}
	for _, name := range []string{tagDateTimeOriginal, tagDateTimeDigitized} {
		if err := setTag(rootIb, exifPath, name, stamp); err != nil {
			return fmt.Errorf("%w: '%s': %w", utils.ErrMetadataRewrite, path, err)
		}
	}

	if err := sl.SetExif(rootIb); err != nil {
		return fmt.Errorf("%w: attach EXIF to '%s': %w", utils.ErrMetadataRewrite, path, err)
	}

	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		return fmt.Errorf("%w: encode '%s': %w", utils.ErrMetadataRewrite, path, err)
	}
	if err := replaceFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %w", utils.ErrMetadataRewrite, err)
	}

	r.log.WithFields(logrus.Fields{"path": path, "timestamp": stamp}).Debug("Rewrote EXIF timestamps")
	return nil
}

func newRootBuilder() (*exif.IfdBuilder, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, err
	}
	ti := exif.NewTagIndex()
	return exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder), nil
}

func setTag(rootIb *exif.IfdBuilder, ifdPath, name, value string) error {
	ib := rootIb
	if ifdPath != ifd0Path {
		var err error
		if ib, err = exif.GetOrCreateIbFromRootIb(rootIb, ifdPath); err != nil {
			return fmt.Errorf("get IFD '%s': %w", ifdPath, err)
		}
	}
	if err := ib.SetStandardWithName(name, value); err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return nil
}

// replaceFile writes data next to path and renames it over path, keeping the original mode
func replaceFile(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat '%s': %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".exif-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for '%s': %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write '%s': %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close '%s': %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod '%s': %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename over '%s': %w", path, err)
	}
	return nil
}
