package exifmeta

import (
	"fmt"
	"os"
	"strings"
	"time"

	goexif "github.com/rwcarlsen/goexif/exif"

	"github.com/Sriram-PR/msg-photos/pkg/utils"
)

// CaptureTimes holds the EXIF timestamps of an image. Missing tags are zero.
type CaptureTimes struct {
	DateTime          time.Time
	DateTimeOriginal  time.Time
	DateTimeDigitized time.Time
}

// Matches reports whether all three timestamps equal t at second precision
func (c CaptureTimes) Matches(t time.Time) bool {
	want := t.Truncate(time.Second)
	return c.DateTime.Equal(want) && c.DateTimeOriginal.Equal(want) && c.DateTimeDigitized.Equal(want)
}

// ReadCaptureTimes decodes the EXIF timestamps of the image at path, as UTC wall-clock times
func ReadCaptureTimes(path string) (CaptureTimes, error) {
	f, err := os.Open(path)
	if err != nil {
		return CaptureTimes{}, fmt.Errorf("%w: open '%s': %w", utils.ErrFilesystem, path, err)
	}
	defer f.Close()

	x, err := goexif.Decode(f)
	if err != nil {
		return CaptureTimes{}, fmt.Errorf("%w: decode EXIF in '%s': %w", utils.ErrParsing, path, err)
	}

	var c CaptureTimes
	for field, dst := range map[goexif.FieldName]*time.Time{
		goexif.DateTime:          &c.DateTime,
		goexif.DateTimeOriginal:  &c.DateTimeOriginal,
		goexif.DateTimeDigitized: &c.DateTimeDigitized,
	} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			continue
		}
		t, err := time.Parse(ExifTimeLayout, strings.TrimRight(strings.TrimSpace(s), "\x00"))
		if err != nil {
			return c, fmt.Errorf("%w: %s timestamp '%s' in '%s': %w", utils.ErrParsing, field, s, path, err)
		}
		*dst = t
	}
	return c, nil
}
