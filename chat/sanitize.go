package chat

import (
	"log/slog"
	"strings"
)

// Thumbnail re-encodes a base64 image payload into a small preview surrogate.
type Thumbnail func(payload string) (string, error)

// Sanitizer produces the storage-safe projection of a workspace index: raw
// attachment payloads are too large for the local storage quota, so they are
// stripped unconditionally; image previews are replaced with re-encoded
// thumbnails, document previews and extracted text survive as-is. The
// transform is one-way and idempotent; its output is never fed back into
// live state.
type Sanitizer struct {
	thumbnail Thumbnail
	log       *slog.Logger
}

// NewSanitizer instantiates a sanitizer. A nil thumbnail function keeps the
// existing preview surrogate for images.
func NewSanitizer(thumbnail Thumbnail, logger *slog.Logger) *Sanitizer {
	return &Sanitizer{thumbnail: thumbnail, log: logger}
}

// Index sanitizes a whole workspace index. The input is not mutated.
func (s *Sanitizer) Index(index map[string][]*Message) map[string][]*Message {
	sanitized := make(map[string][]*Message, len(index))
	for key, messages := range index {
		sanitized[key] = s.messages(messages)
	}
	return sanitized
}

func (s *Sanitizer) messages(messages []*Message) []*Message {
	sanitized := make([]*Message, 0, len(messages))
	for _, message := range messages {
		copied := message.clone()
		for _, attachment := range copied.Attachments {
			s.attachment(attachment)
		}
		sanitized = append(sanitized, copied)
	}
	return sanitized
}

func (s *Sanitizer) attachment(attachment *Attachment) {
	if strings.HasPrefix(attachment.MimeType, "image/") && attachment.Payload != "" && s.thumbnail != nil {
		preview, err := s.thumbnail(attachment.Payload)
		if err != nil {
			// Keep whatever preview we already have.
			s.log.Warn("thumbnailing attachment", "filename", attachment.Filename, "error", err)
		} else {
			attachment.PreviewURL = preview
		}
	}
	attachment.Payload = ""
}
