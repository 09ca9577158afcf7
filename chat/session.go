package chat

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/famworld/famagent/auth"
	"github.com/famworld/famagent/store"
)

const (
	// Seed label used when a turn carries attachments but no text.
	fallbackWorkspaceLabel = "New Attachment Chat"
	// Workspace keys derive from the first characters of the seed text.
	workspaceKeyLength = 25
)

// Store is the single source of truth for workspace membership and the
// active/inactive split of conversation state. The live message sequence
// mirrors the active workspace; both are mutated under one lock, so no reader
// observes one reflecting an update the other doesn't.
type Store struct {
	docs      store.Documents
	sanitizer *Sanitizer
	debounce  time.Duration
	log       *slog.Logger

	mu        sync.Mutex
	user      *auth.User
	activeKey string
	live      []*Message
	index     map[string][]*Message

	timerMu sync.Mutex
	timer   *time.Timer
}

// NewStore instantiates a workspace store, loading persisted histories and
// the saved user profile. A corrupt or unreadable durable store is treated as
// no history. A non-positive debounce disables the automatic persist pass;
// callers then persist explicitly.
func NewStore(docs store.Documents, sanitizer *Sanitizer, debounce time.Duration, logger *slog.Logger) *Store {
	s := &Store{
		docs:      docs,
		sanitizer: sanitizer,
		debounce:  debounce,
		log:       logger,
		live:      []*Message{newGreeting()},
		index:     map[string][]*Message{},
	}
	s.loadHistories()
	s.loadUser()
	return s
}

// SelectWorkspace flushes the live sequence into the previously active
// workspace, then activates key, synthesizing an initialization message when
// key has no history yet. It never fails.
func (s *Store) SelectWorkspace(key string) {
	s.mu.Lock()
	s.writeBackLocked()
	s.activeKey = key
	if messages, ok := s.index[key]; ok {
		s.live = append([]*Message(nil), messages...)
	} else {
		init := newWorkspaceInit(key)
		s.index[key] = []*Message{init}
		s.live = []*Message{init}
	}
	s.mu.Unlock()
	s.markDirty()
}

// CreateWorkspaceFromTurn derives a workspace key from the seed text of a
// first turn, disambiguates collisions with a counter suffix, activates the
// workspace and seeds it with the current live sequence. Returns the key.
func (s *Store) CreateWorkspaceFromTurn(seedText string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createWorkspaceFromTurnLocked(seedText)
}

func (s *Store) createWorkspaceFromTurnLocked(seedText string) string {
	key := s.deriveKeyLocked(seedText)
	s.activeKey = key
	s.index[key] = append([]*Message(nil), s.live...)
	return key
}

func (s *Store) deriveKeyLocked(seedText string) string {
	title := strings.TrimSpace(seedText)
	if title == "" {
		title = fallbackWorkspaceLabel
	}
	if runes := []rune(title); len(runes) > workspaceKeyLength {
		title = string(runes[:workspaceKeyLength]) + "..."
	}

	key := title
	for counter := 1; ; counter++ {
		if _, ok := s.index[key]; !ok {
			return key
		}
		key = fmt.Sprintf("%s (%d)", title, counter)
	}
}

// DeleteWorkspace removes key from the index unconditionally. Deleting the
// active workspace resets the session to its placeholder state. Irreversible.
func (s *Store) DeleteWorkspace(key string) {
	s.mu.Lock()
	delete(s.index, key)
	if s.activeKey == key {
		s.resetLocked()
	}
	s.mu.Unlock()
	s.markDirty()
}

// NewConversation writes the live sequence back and resets the session to its
// placeholder state with no active workspace.
func (s *Store) NewConversation() {
	s.mu.Lock()
	s.writeBackLocked()
	s.resetLocked()
	s.mu.Unlock()
	s.markDirty()
}

// AppendMessage inserts message at the end of the addressed workspace and,
// when it is the active one, of the live sequence in the same step.
func (s *Store) AppendMessage(key string, message *Message) {
	s.mu.Lock()
	s.appendMessageLocked(key, message)
	s.mu.Unlock()
	s.markDirty()
}

func (s *Store) appendMessageLocked(key string, message *Message) {
	if _, ok := s.index[key]; !ok && key != s.activeKey {
		// Appending to an unknown, inactive workspace creates it.
		s.index[key] = nil
	}
	s.index[key] = append(s.index[key], message)
	if key == s.activeKey {
		s.live = append(s.live, message)
	}
}

// UpdateMessage locates a message by id within the addressed workspace and
// applies a shallow merge. A missing workspace or message is a silent no-op,
// tolerating updates racing a deletion. The live mirror shares message
// pointers with the index, so both views reflect the patch atomically.
func (s *Store) UpdateMessage(key, messageID string, patch MessagePatch) {
	s.mu.Lock()
	for _, message := range s.index[key] {
		if message.ID == messageID {
			patch.apply(message)
			break
		}
	}
	s.mu.Unlock()
	s.markDirty()
}

// SetUser records the current user and persists the profile document.
// A write failure keeps the in-memory profile authoritative.
func (s *Store) SetUser(user *auth.User) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	s.persistUser(user)
}

// User returns the current user, or nil when logged out.
func (s *Store) User() *auth.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	user := *s.user
	return &user
}

// Logout clears the saved profile and resets the session.
func (s *Store) Logout() {
	s.mu.Lock()
	s.user = nil
	s.resetLocked()
	s.mu.Unlock()
	if err := s.docs.Delete(userKey); err != nil {
		s.log.Warn("clearing saved user", "error", err)
	}
}

// ActiveWorkspace returns the active workspace key, or "" when none is.
func (s *Store) ActiveWorkspace() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeKey
}

// LiveMessages returns a deep copy of the rendered message sequence.
func (s *Store) LiveMessages() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.live)
}

// Messages returns a deep copy of the addressed workspace's sequence.
func (s *Store) Messages(key string) ([]*Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages, ok := s.index[key]
	if !ok {
		return nil, false
	}
	return cloneMessages(messages), true
}

// WorkspaceKeys returns all workspace keys, sorted.
func (s *Store) WorkspaceKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.index))
	for key := range s.index {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// writeBackLocked flushes the live sequence into the active workspace's slot.
func (s *Store) writeBackLocked() {
	if s.activeKey == "" {
		return
	}
	s.index[s.activeKey] = append([]*Message(nil), s.live...)
}

// resetLocked restores the single-placeholder session state.
func (s *Store) resetLocked() {
	s.activeKey = ""
	s.live = []*Message{newGreeting()}
}

// beginTurn fixes the workspace addressed by a turn, creating one when none
// is active, and appends the user message and the streaming placeholder in
// one step. It returns the captured key, a snapshot of the history prior to
// the turn and the placeholder's id.
func (s *Store) beginTurn(text string, attachments []*Attachment) (key string, history []*Message, placeholderID string) {
	s.mu.Lock()
	key = s.activeKey
	if key == "" {
		key = s.createWorkspaceFromTurnLocked(text)
	}
	history = cloneMessages(s.index[key])
	userMessage := NewUserMessage(text, attachments)
	placeholder := newPlaceholder()
	s.appendMessageLocked(key, userMessage)
	s.appendMessageLocked(key, placeholder)
	s.mu.Unlock()
	s.markDirty()
	return key, history, placeholder.ID
}
