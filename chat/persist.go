package chat

import (
	"encoding/json"
	"time"

	"github.com/famworld/famagent/auth"
)

// Durable store document keys.
const (
	historiesKey = "famagent_histories"
	userKey      = "famagent_user"
)

// markDirty schedules a sanitize-and-persist pass after the debounce window,
// coalescing bursts of mutations into one write.
func (s *Store) markDirty() {
	if s.debounce <= 0 {
		return
	}
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.Persist)
		return
	}
	s.timer.Reset(s.debounce)
}

// Persist writes a sanitized deep copy of the workspace index to the durable
// store. Sanitization runs against a snapshot, never the live object graph.
// Write failures are logged and swallowed; in-memory state stays
// authoritative.
func (s *Store) Persist() {
	s.mu.Lock()
	s.writeBackLocked()
	snapshot := make(map[string][]*Message, len(s.index))
	for key, messages := range s.index {
		snapshot[key] = cloneMessages(messages)
	}
	s.mu.Unlock()

	sanitized := s.sanitizer.Index(snapshot)
	bytes, err := json.Marshal(sanitized)
	if err != nil {
		s.log.Warn("marshaling histories", "error", err)
		return
	}
	if err := s.docs.Put(historiesKey, string(bytes)); err != nil {
		s.log.Warn("persisting histories", "error", err)
	}
}

// Flush cancels any pending pass and persists synchronously. Called on
// shutdown.
func (s *Store) Flush() {
	s.timerMu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timerMu.Unlock()
	s.Persist()
}

// loadHistories reads the persisted workspace index. Absence or corrupt JSON
// is an empty index, never an error.
func (s *Store) loadHistories() {
	value, ok, err := s.docs.Get(historiesKey)
	if err != nil {
		s.log.Warn("reading histories document", "error", err)
		return
	}
	if !ok {
		return
	}
	index := map[string][]*Message{}
	if err := json.Unmarshal([]byte(value), &index); err != nil {
		s.log.Warn("discarding corrupt histories document", "error", err)
		return
	}
	s.index = index
}

// loadUser reads the saved profile. Absence or corrupt JSON leaves the
// session logged out.
func (s *Store) loadUser() {
	value, ok, err := s.docs.Get(userKey)
	if err != nil {
		s.log.Warn("reading user document", "error", err)
		return
	}
	if !ok {
		return
	}
	user := &auth.User{}
	if err := json.Unmarshal([]byte(value), user); err != nil {
		s.log.Warn("discarding corrupt user document", "error", err)
		return
	}
	s.user = user
}

// persistUser saves the profile document, best effort.
func (s *Store) persistUser(user *auth.User) {
	bytes, err := json.Marshal(user)
	if err != nil {
		s.log.Warn("marshaling user", "error", err)
		return
	}
	if err := s.docs.Put(userKey, string(bytes)); err != nil {
		s.log.Warn("persisting user", "error", err)
	}
}
