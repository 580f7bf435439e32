package parse

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/msg-photos/pkg/models"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func buildCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeFile(t, filepath.Join(root, testIndexFilename), `<a href="100/messages.html">Alice</a>`)
	writeFile(t, filepath.Join(root, "100", "messages.html"), conversationPage(
		photoMessage("at 1:00 pm on 1 March 2020", "https://example.com/a1.jpg"),
		photoMessage("at 2:00 pm on 1 March 2020", "https://example.com/a2.jpg"),
	))
	writeFile(t, filepath.Join(root, "100", "messages2.html"), conversationPage(
		photoMessage("at 3:00 pm on 1 March 2020", "https://example.com/a3.jpg"),
	))
	writeFile(t, filepath.Join(root, "-200", "messages.html"), conversationPage(
		photoMessage("at 4:00 pm on 1 March 2020", "https://example.com/b1.jpg"),
		`<div class="attachment"><div class="attachment__description">Photo</div></div>`,
	))
	writeFile(t, filepath.Join(root, "100", "notes.txt"), "not a document")
	return root
}

// testIndexFilename matches the default index_filename
const testIndexFilename = "index-messages.html"

func collect(c *Corpus) []models.ConversationRecord {
	return slices.Collect(c.Records())
}

func TestCorpus_Records(t *testing.T) {
	root := buildCorpus(t)
	c := NewCorpus(root, testIndexFilename, discardLogger())

	records := collect(c)
	require.Len(t, records, 4)

	// Lexical walk order: "-200" sorts before "100"
	assert.Equal(t, "-200", records[0].ConversationID)
	assert.Equal(t, "https://example.com/b1.jpg", records[0].Image.Link)

	var links []string
	for _, rec := range records[1:] {
		assert.Equal(t, "100", rec.ConversationID)
		links = append(links, rec.Image.Link)
	}
	assert.Equal(t, []string{
		"https://example.com/a1.jpg",
		"https://example.com/a2.jpg",
		"https://example.com/a3.jpg",
	}, links)

	stats := c.Stats()
	assert.EqualValues(t, 3, stats.Documents)
	assert.EqualValues(t, 4, stats.Records)
	assert.EqualValues(t, 1, stats.SkippedRecord)
	assert.EqualValues(t, 0, stats.FailedDocs)
}

func TestCorpus_ExcludesIndexPaths(t *testing.T) {
	root := t.TempDir()
	// Photos inside the index or under a directory named like it are never conversation records
	writeFile(t, filepath.Join(root, testIndexFilename), conversationPage(
		photoMessage("at 1:00 pm on 1 March 2020", "https://example.com/index.jpg"),
	))
	writeFile(t, filepath.Join(root, "archive", testIndexFilename, "inner.html"), conversationPage(
		photoMessage("at 1:00 pm on 1 March 2020", "https://example.com/nested.jpg"),
	))

	writeFile(t, filepath.Join(root, "archive", "message_1.html"), conversationPage(
		photoMessage("at 1:00 pm on 1 March 2020", "https://example.com/kept.jpg"),
	))

	c := NewCorpus(root, testIndexFilename, discardLogger())
	records := collect(c)
	require.Len(t, records, 1)
	assert.Equal(t, "archive", records[0].ConversationID)
	assert.Equal(t, "https://example.com/kept.jpg", records[0].Image.Link)
}

func TestCorpus_RecordsIsRestartable(t *testing.T) {
	root := buildCorpus(t)
	c := NewCorpus(root, testIndexFilename, discardLogger())

	first := collect(c)
	second := collect(c)
	assert.Equal(t, first, second)
}

func TestCorpus_EarlyStop(t *testing.T) {
	root := buildCorpus(t)
	c := NewCorpus(root, testIndexFilename, discardLogger())

	n := 0
	for range c.Records() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestCorpus_MissingRoot(t *testing.T) {
	c := NewCorpus(filepath.Join(t.TempDir(), "absent"), testIndexFilename, discardLogger())
	assert.Empty(t, collect(c))
}
