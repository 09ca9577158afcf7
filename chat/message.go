// Package chat implements the conversation core: the workspace store, the
// sanitize-and-persist pipeline and the streaming reconciler. It owns all
// session state; rendering shells consume it read-only.
package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// InitMessageID identifies the greeting placeholder seeded into a fresh
// session. It is filtered out of completion requests.
const InitMessageID = "system-init"

const greetingText = "Hello! How can I help you today?"

// Attachment carries a user-selected file through a turn. Payload holds the
// raw base64 encoding and is stripped before persistence; at most the preview
// surrogate and extracted text survive a persistence pass.
type Attachment struct {
	Filename      string `json:"filename,omitempty"`
	MimeType      string `json:"mimeType"`
	Payload       string `json:"base64,omitempty"`
	PreviewURL    string `json:"previewUrl,omitempty"`
	ExtractedText string `json:"textContent,omitempty"`
}

// Message is one conversation turn. Text is mutable while Streaming is set
// and immutable after. Streaming and Errored are mutually exclusive.
type Message struct {
	ID          string        `json:"id"`
	Role        string        `json:"role"`
	Text        string        `json:"text"`
	Attachments []*Attachment `json:"attachments,omitempty"`
	Timestamp   int64         `json:"timestamp"`
	Streaming   bool          `json:"isStreaming,omitempty"`
	Errored     bool          `json:"isError,omitempty"`
}

// MessagePatch is a shallow merge applied by UpdateMessage. Nil fields are
// left untouched.
type MessagePatch struct {
	Text      *string
	Streaming *bool
	Errored   *bool
}

func (p MessagePatch) apply(m *Message) {
	if p.Text != nil {
		m.Text = *p.Text
	}
	if p.Streaming != nil {
		m.Streaming = *p.Streaming
	}
	if p.Errored != nil {
		m.Errored = *p.Errored
	}
}

// NewUserMessage instantiates a user turn.
func NewUserMessage(text string, attachments []*Attachment) *Message {
	return &Message{
		ID:          newMessageID(),
		Role:        RoleUser,
		Text:        text,
		Attachments: attachments,
		Timestamp:   time.Now().UnixMilli(),
	}
}

// newPlaceholder instantiates the empty streaming assistant message filled in
// as fragments arrive.
func newPlaceholder() *Message {
	return &Message{
		ID:        newMessageID(),
		Role:      RoleAssistant,
		Timestamp: time.Now().UnixMilli(),
		Streaming: true,
	}
}

// newGreeting instantiates the session greeting placeholder.
func newGreeting() *Message {
	return &Message{
		ID:        InitMessageID,
		Role:      RoleAssistant,
		Text:      greetingText,
		Timestamp: time.Now().UnixMilli(),
	}
}

// newWorkspaceInit instantiates the message seeded into a workspace selected
// before it ever received a turn.
func newWorkspaceInit(key string) *Message {
	return &Message{
		ID:        newMessageID(),
		Role:      RoleAssistant,
		Text:      fmt.Sprintf("Workspace **%s** initialized.", key),
		Timestamp: time.Now().UnixMilli(),
	}
}

func newMessageID() string {
	return uuid.New().String()[:8]
}

func (a *Attachment) clone() *Attachment {
	copied := *a
	return &copied
}

func (m *Message) clone() *Message {
	copied := *m
	if m.Attachments != nil {
		copied.Attachments = make([]*Attachment, 0, len(m.Attachments))
		for _, attachment := range m.Attachments {
			copied.Attachments = append(copied.Attachments, attachment.clone())
		}
	}
	return &copied
}

func cloneMessages(messages []*Message) []*Message {
	copied := make([]*Message, 0, len(messages))
	for _, message := range messages {
		copied = append(copied, message.clone())
	}
	return copied
}
