package parse

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/msg-photos/pkg/models"
	"github.com/Sriram-PR/msg-photos/pkg/utils"
)

// Index links point at "<conversation-id>/messages..."
var conversationHrefPattern = regexp.MustCompile(`^([^/?#]+)/messages`)

const collisionSuffixLen = 4

// NameMap maps conversation ids to run-unique display names
type NameMap struct {
	names map[string]string
}

// NewNameMap builds a NameMap from an id -> display name mapping the caller guarantees unique
func NewNameMap(names map[string]string) *NameMap {
	m := &NameMap{names: make(map[string]string, len(names))}
	for id, name := range names {
		m.names[id] = name
	}
	return m
}

// Len returns the number of resolved conversations
func (m *NameMap) Len() int {
	return len(m.names)
}

// Lookup returns the conversation for id or ErrUnknownConversation
func (m *NameMap) Lookup(id string) (models.Conversation, error) {
	name, ok := m.names[id]
	if !ok {
		return models.Conversation{}, fmt.Errorf("conversation '%s': %w", id, utils.ErrUnknownConversation)
	}
	return models.Conversation{ID: id, DisplayName: name}, nil
}

// DirName returns the sanitized output directory name for id
func (m *NameMap) DirName(id string) (string, error) {
	conv, err := m.Lookup(id)
	if err != nil {
		return "", err
	}
	return utils.ConversationDirName(conv.DisplayName, conv.ID), nil
}

// Conversations returns all entries sorted by id
func (m *NameMap) Conversations() []models.Conversation {
	out := make([]models.Conversation, 0, len(m.names))
	for id, name := range m.names {
		out = append(out, models.Conversation{ID: id, DisplayName: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ResolveConversationNames reads the index document in messagesDir and builds the name map.
// An unreadable index is a run-level failure; an index without conversation links yields an empty map.
func ResolveConversationNames(messagesDir, indexFilename string, log *logrus.Entry) (*NameMap, error) {
	indexPath := filepath.Join(messagesDir, indexFilename)
	f, err := os.Open(indexPath)
	if err != nil {
		return &NameMap{names: map[string]string{}}, fmt.Errorf("%w: '%s': %w", utils.ErrIndexUnreadable, indexPath, err)
	}
	defer f.Close()

	m, err := ResolveConversationNamesFromReader(f, log)
	if err != nil {
		return m, fmt.Errorf("%w: '%s': %w", utils.ErrIndexUnreadable, indexPath, err)
	}
	log.Infof("Resolved %d conversation name(s) from %s", m.Len(), indexPath)
	return m, nil
}

// ResolveConversationNamesFromReader builds the name map from an index document.
// Colliding display names get a "-xxxx" random hex suffix; the first holder keeps the plain name.
func ResolveConversationNamesFromReader(r io.Reader, log *logrus.Entry) (*NameMap, error) {
	m := &NameMap{names: map[string]string{}}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return m, fmt.Errorf("%w: index HTML: %w", utils.ErrParsing, err)
	}

	taken := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		match := conversationHrefPattern.FindStringSubmatch(href)
		if match == nil || match[1] == "." || match[1] == ".." {
			return
		}
		id := match[1]
		if _, seen := m.names[id]; seen {
			log.Debugf("Conversation '%s' linked more than once in index, keeping first name", id)
			return
		}

		name := link.Text()
		if _, collides := taken[name]; collides {
			unique := disambiguate(name, taken)
			log.Debugf("Display name '%s' already taken, using '%s' for conversation '%s'", name, unique, id)
			name = unique
		}

		m.names[id] = name
		taken[name] = struct{}{}
	})

	return m, nil
}

func disambiguate(name string, taken map[string]struct{}) string {
	for {
		candidate := name + "-" + uuid.NewString()[:collisionSuffixLen]
		if _, exists := taken[candidate]; !exists {
			return candidate
		}
	}
}
