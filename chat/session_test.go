package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/famworld/famagent/auth"
	"github.com/famworld/famagent/internal/debug"
	"github.com/famworld/famagent/store"
)

// newTestStore returns a store with automatic persistence disabled; tests
// drive Persist explicitly.
func newTestStore(t *testing.T, docs store.Documents) *Store {
	t.Helper()
	sanitizer := NewSanitizer(nil, debug.Discard())
	return NewStore(docs, sanitizer, 0, debug.Discard())
}

func TestNewStoreStartsWithGreeting(t *testing.T) {
	s := newTestStore(t, store.NewMemory())

	require.Empty(t, s.ActiveWorkspace())
	messages := s.LiveMessages()
	require.Len(t, messages, 1)
	require.Equal(t, InitMessageID, messages[0].ID)
	require.Equal(t, RoleAssistant, messages[0].Role)
	require.Empty(t, s.WorkspaceKeys())
}

func TestSelectWorkspaceSynthesizesInitMessage(t *testing.T) {
	s := newTestStore(t, store.NewMemory())

	s.SelectWorkspace("planning")

	require.Equal(t, "planning", s.ActiveWorkspace())
	messages := s.LiveMessages()
	require.Len(t, messages, 1)
	require.Contains(t, messages[0].Text, "Workspace **planning** initialized.")
	stored, ok := s.Messages("planning")
	require.True(t, ok)
	require.Len(t, stored, 1)
}

func TestSelectWorkspaceWritesBackActive(t *testing.T) {
	s := newTestStore(t, store.NewMemory())

	s.SelectWorkspace("a")
	s.AppendMessage("a", NewUserMessage("hello from a", nil))
	s.SelectWorkspace("b")

	stored, ok := s.Messages("a")
	require.True(t, ok)
	require.Len(t, stored, 2)
	require.Equal(t, "hello from a", stored[1].Text)
	require.Equal(t, "b", s.ActiveWorkspace())
}

func TestSelectWorkspaceLoadsExistingHistory(t *testing.T) {
	s := newTestStore(t, store.NewMemory())

	s.SelectWorkspace("a")
	s.AppendMessage("a", NewUserMessage("remembered", nil))
	s.SelectWorkspace("b")
	s.SelectWorkspace("a")

	messages := s.LiveMessages()
	require.Len(t, messages, 2)
	require.Equal(t, "remembered", messages[1].Text)
}

func TestCreateWorkspaceFromTurnDerivesKey(t *testing.T) {
	tests := []struct {
		name string
		seed string
		want string
	}{
		{
			name: "plain text",
			seed: "Plan my week",
			want: "Plan my week",
		},
		{
			name: "whitespace trimmed",
			seed: "  Plan my week  ",
			want: "Plan my week",
		},
		{
			name: "empty seed falls back",
			seed: "",
			want: "New Attachment Chat",
		},
		{
			name: "long seed truncated",
			seed: "this seed text is much longer than twenty five characters",
			want: "this seed text is much lo...",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, store.NewMemory())
			key := s.CreateWorkspaceFromTurn(tt.seed)
			require.Equal(t, tt.want, key)
			require.Equal(t, key, s.ActiveWorkspace())
		})
	}
}

func TestCreateWorkspaceFromTurnDisambiguatesCollisions(t *testing.T) {
	s := newTestStore(t, store.NewMemory())

	first := s.CreateWorkspaceFromTurn("Hi")
	s.NewConversation()
	second := s.CreateWorkspaceFromTurn("Hi")
	s.NewConversation()
	third := s.CreateWorkspaceFromTurn("Hi")

	require.Equal(t, "Hi", first)
	require.Equal(t, "Hi (1)", second)
	require.Equal(t, "Hi (2)", third)

	// All keys pairwise distinct.
	seen := map[string]bool{}
	for _, key := range s.WorkspaceKeys() {
		require.False(t, seen[key])
		seen[key] = true
	}
}

func TestCreateWorkspaceFromTurnSeedsWithLiveSnapshot(t *testing.T) {
	s := newTestStore(t, store.NewMemory())

	key := s.CreateWorkspaceFromTurn("seeded")

	stored, ok := s.Messages(key)
	require.True(t, ok)
	require.Len(t, stored, 1)
	require.Equal(t, InitMessageID, stored[0].ID)
}

func TestDeleteWorkspaceResetsSessionWhenActive(t *testing.T) {
	s := newTestStore(t, store.NewMemory())

	s.SelectWorkspace("doomed")
	s.AppendMessage("doomed", NewUserMessage("hello", nil))
	s.DeleteWorkspace("doomed")

	require.Empty(t, s.ActiveWorkspace())
	messages := s.LiveMessages()
	require.Len(t, messages, 1)
	require.Equal(t, InitMessageID, messages[0].ID)
	_, ok := s.Messages("doomed")
	require.False(t, ok)
}

func TestDeleteWorkspaceLeavesOtherSessionsAlone(t *testing.T) {
	s := newTestStore(t, store.NewMemory())

	s.SelectWorkspace("keep")
	s.SelectWorkspace("drop")
	s.SelectWorkspace("keep")
	s.DeleteWorkspace("drop")

	require.Equal(t, "keep", s.ActiveWorkspace())
	_, ok := s.Messages("keep")
	require.True(t, ok)
}

func TestAppendMessageTargetsInactiveWorkspace(t *testing.T) {
	s := newTestStore(t, store.NewMemory())

	s.SelectWorkspace("a")
	s.SelectWorkspace("b")
	s.AppendMessage("a", NewUserMessage("to a", nil))

	// The live mirror belongs to b and must not see the append.
	for _, message := range s.LiveMessages() {
		require.NotEqual(t, "to a", message.Text)
	}
	stored, ok := s.Messages("a")
	require.True(t, ok)
	require.Equal(t, "to a", stored[len(stored)-1].Text)
}

func TestUpdateMessageAppliesShallowMerge(t *testing.T) {
	s := newTestStore(t, store.NewMemory())

	s.SelectWorkspace("a")
	message := NewUserMessage("before", nil)
	s.AppendMessage("a", message)

	text := "after"
	s.UpdateMessage("a", message.ID, MessagePatch{Text: &text})

	stored, _ := s.Messages("a")
	require.Equal(t, "after", stored[len(stored)-1].Text)
	// The live mirror reflects the same patch.
	live := s.LiveMessages()
	require.Equal(t, "after", live[len(live)-1].Text)
}

func TestUpdateMessageMissingTargetsAreNoOps(t *testing.T) {
	s := newTestStore(t, store.NewMemory())
	text := "never lands"

	// Unknown workspace.
	s.UpdateMessage("ghost", "id", MessagePatch{Text: &text})

	// Known workspace, unknown message.
	s.SelectWorkspace("a")
	s.UpdateMessage("a", "no-such-id", MessagePatch{Text: &text})

	for _, message := range s.LiveMessages() {
		require.NotEqual(t, text, message.Text)
	}
}

func TestNewConversationResetsToPlaceholder(t *testing.T) {
	s := newTestStore(t, store.NewMemory())

	s.SelectWorkspace("a")
	s.AppendMessage("a", NewUserMessage("kept", nil))
	s.NewConversation()

	require.Empty(t, s.ActiveWorkspace())
	messages := s.LiveMessages()
	require.Len(t, messages, 1)
	require.Equal(t, InitMessageID, messages[0].ID)

	// The previous workspace kept its history.
	stored, ok := s.Messages("a")
	require.True(t, ok)
	require.Len(t, stored, 2)
}

func TestUserRoundTrip(t *testing.T) {
	docs := store.NewMemory()
	s := newTestStore(t, docs)

	require.Nil(t, s.User())
	s.SetUser(&auth.User{Name: "Ada Lovelace", Email: "ada@example.com"})
	require.Equal(t, "Ada Lovelace", s.User().Name)

	// A fresh store sees the persisted profile.
	restored := newTestStore(t, docs)
	require.NotNil(t, restored.User())
	require.Equal(t, "ada@example.com", restored.User().Email)
}

func TestLogoutClearsUserAndResets(t *testing.T) {
	docs := store.NewMemory()
	s := newTestStore(t, docs)

	s.SetUser(&auth.User{Name: "Ada", Email: "ada@example.com"})
	s.SelectWorkspace("a")
	s.Logout()

	require.Nil(t, s.User())
	require.Empty(t, s.ActiveWorkspace())
	restored := newTestStore(t, docs)
	require.Nil(t, restored.User())
}

func TestWorkspaceKeyDerivationHandlesUnicode(t *testing.T) {
	s := newTestStore(t, store.NewMemory())

	seed := strings.Repeat("é", 40)
	key := s.CreateWorkspaceFromTurn(seed)
	require.Equal(t, strings.Repeat("é", 25)+"...", key)
}
