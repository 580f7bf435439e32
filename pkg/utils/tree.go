package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	indentPrefix    = "    "
	entryPrefix     = "├── "
	lastEntryPrefix = "└── "
	verticalLine    = "│   "
)

// WriteOutputTree writes a directory-only tree of targetDir to outputFilePath.
// Each directory line carries the number of regular files it holds directly, so
// a conversation with thousands of photos stays a single line.
func WriteOutputTree(targetDir, outputFilePath string, log *logrus.Entry) error {
	info, err := os.Stat(targetDir)
	if err != nil {
		return fmt.Errorf("%w: stat output directory '%s': %w", ErrFilesystem, targetDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: '%s' is not a directory", ErrFilesystem, targetDir)
	}

	file, err := os.Create(outputFilePath)
	if err != nil {
		return fmt.Errorf("%w: create tree file '%s': %w", ErrFilesystem, outputFilePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	rootFiles, err := countFiles(targetDir)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(writer, "%s/ (%d files)\n", filepath.Base(targetDir), rootFiles); err != nil {
		return err
	}
	if err := writeDirLevel(writer, targetDir, "", log); err != nil {
		return fmt.Errorf("write tree for '%s': %w", targetDir, err)
	}
	return writer.Flush()
}

func writeDirLevel(w io.Writer, dirPath, indent string, log *logrus.Entry) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		log.Warnf("Failed to read directory '%s': %v", dirPath, err)
		return fmt.Errorf("%w: read directory '%s': %w", ErrFilesystem, dirPath, err)
	}

	dirs := slices.DeleteFunc(entries, func(e os.DirEntry) bool { return !e.IsDir() })
	slices.SortFunc(dirs, func(a, b os.DirEntry) int {
		return strings.Compare(strings.ToLower(a.Name()), strings.ToLower(b.Name()))
	})

	for i, entry := range dirs {
		isLast := i == len(dirs)-1
		connector, nextIndent := entryPrefix, indent+verticalLine
		if isLast {
			connector, nextIndent = lastEntryPrefix, indent+indentPrefix
		}

		subDir := filepath.Join(dirPath, entry.Name())
		n, err := countFiles(subDir)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s%s%s/ (%d files)\n", indent, connector, entry.Name(), n); err != nil {
			return err
		}
		if err := writeDirLevel(w, subDir, nextIndent, log); err != nil {
			return err
		}
	}
	return nil
}

func countFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("%w: read directory '%s': %w", ErrFilesystem, dir, err)
	}
	n := 0
	for _, e := range entries {
		if e.Type().IsRegular() {
			n++
		}
	}
	return n, nil
}
