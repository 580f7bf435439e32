package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorizeError_NilError(t *testing.T) {
	assert.Equal(t, "None", CategorizeError(nil))
}

func TestCategorizeError_Sentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"retry failed on 5xx", fmt.Errorf("%w: %w", ErrRetryFailed, fmt.Errorf("%w: status 503", ErrServerHTTPError)), "RetryFailed_HTTPServer"},
		{"retry failed on 4xx", fmt.Errorf("%w: %w", ErrRetryFailed, fmt.Errorf("%w: status 404", ErrClientHTTPError)), "RetryFailed_HTTPClient"},
		{"retry failed on refused", fmt.Errorf("%w: %w", ErrRetryFailed, errors.New("dial tcp: connection refused")), "RetryFailed_ConnectionRefused"},
		{"retry failed bare", ErrRetryFailed, "RetryFailed_Unknown"},
		{"skipped request creation", fmt.Errorf("%w: %w", ErrSkipped, ErrRequestCreation), "Skipped_RequestCreation"},
		{"unknown conversation", fmt.Errorf("dir for '123': %w", ErrUnknownConversation), "Name_UnknownConversation"},
		{"metadata", fmt.Errorf("%w: bad jpeg", ErrMetadataRewrite), "Metadata_Rewrite"},
		{"parse header", WrapErrorf(ErrParsing, "no message header before attachment"), "Parse_Header"},
		{"parse link", WrapErrorf(ErrParsing, "no attachment link after description"), "Parse_Link"},
		{"filesystem permission", fmt.Errorf("%w: %w", ErrFilesystem, os.ErrPermission), "Filesystem_Permission"},
		{"filesystem other", ErrFilesystem, "Filesystem_Other"},
		{"database", ErrDatabase, "Database_Other"},
		{"config", ErrConfigValidation, "Config_Validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategorizeError(tt.err))
		})
	}
}

func TestCategorizeError_ContextAndUnknown(t *testing.T) {
	assert.Equal(t, "System_ContextCanceled", CategorizeError(context.Canceled))
	assert.Equal(t, "System_ContextDeadlineExceeded", CategorizeError(context.DeadlineExceeded))
	assert.Equal(t, "Network_DNSLookup", CategorizeError(errors.New("lookup cdn: no such host")))
	assert.Equal(t, "Unknown", CategorizeError(errors.New("something odd")))
}

func TestWrapErrorf(t *testing.T) {
	err := WrapErrorf(ErrParsing, "bad value %q", "x")
	assert.ErrorIs(t, err, ErrParsing)
	assert.Contains(t, err.Error(), `bad value "x"`)
}

func TestConversationDirName(t *testing.T) {
	tests := []struct {
		name     string
		display  string
		id       string
		expected string
	}{
		{"plain", "Alex", "123", "Alex-123"},
		{"strips invalid characters", `A<l>e:x|?/\"*`, "42", "Alex-42"},
		{"keeps spaces and unicode", "Ана Мария", "-7", "Ана Мария--7"},
		{"composes decomposed accents", "Jose\u0301", "5", "Jos\u00e9-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ConversationDirName(tt.display, tt.id))
		})
	}
}

func TestConversationDirName_Truncates(t *testing.T) {
	long := strings.Repeat("ж", 150)
	name := ConversationDirName(long, "999")

	assert.Equal(t, MaxDirNameLength, utf8.RuneCountInString(name))
	assert.True(t, utf8.ValidString(name))
	assert.True(t, strings.HasPrefix(name, "жжж"))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "", TruncateRunes("abc", 0))
	assert.Equal(t, "ab", TruncateRunes("abc", 2))
	assert.Equal(t, "abc", TruncateRunes("abc", 10))
	assert.Equal(t, "日本", TruncateRunes("日本語", 2))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b", SanitizeFilename("a/b"))
	assert.Equal(t, "untitled", SanitizeFilename("///"))
}

func TestWriteOutputTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Bob-2"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "alice-1"), 0755))
	for _, name := range []string{"0.jpg", "1.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, "alice-1", name), []byte("x"), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "Bob-2", "0.jpg"), []byte("x"), 0644))

	log := logrus.New()
	log.SetOutput(io.Discard)

	outFile := filepath.Join(t.TempDir(), "tree.txt")
	require.NoError(t, WriteOutputTree(root, outFile, logrus.NewEntry(log)))

	content, err := os.ReadFile(outFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, filepath.Base(root)+"/ (0 files)", lines[0])
	assert.Equal(t, "├── alice-1/ (2 files)", lines[1])
	assert.Equal(t, "└── Bob-2/ (1 files)", lines[2])
}

func TestWriteOutputTree_MissingTarget(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	err := WriteOutputTree(filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "t.txt"), logrus.NewEntry(log))
	assert.ErrorIs(t, err, ErrFilesystem)
}
