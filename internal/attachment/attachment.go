// Package attachment converts user-selected files into their transport-ready
// representation: a base64 payload, a preview surrogate and, for text files,
// the extracted text.
package attachment

import (
	"encoding/base64"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/famworld/famagent/chat"
)

// Load reads the given files into attachments. Only images, PDFs and text
// files are accepted.
func Load(paths []string) ([]*chat.Attachment, error) {
	attachments := make([]*chat.Attachment, 0, len(paths))
	for _, path := range paths {
		attachment, err := load(path)
		if err != nil {
			return nil, errors.Wrapf(err, "loading attachment (%s)", path)
		}
		attachments = append(attachments, attachment)
	}
	return attachments, nil
}

func load(path string) (*chat.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading file")
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.Index(mimeType, ";"); i != -1 {
		mimeType = mimeType[:i]
	}

	attachment := &chat.Attachment{
		Filename: filepath.Base(path),
		MimeType: mimeType,
		Payload:  base64.StdEncoding.EncodeToString(data),
	}
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		// The preview surrogate is produced at persistence time.
	case mimeType == "application/pdf":
		attachment.PreviewURL = "icon:pdf"
	case strings.HasPrefix(mimeType, "text/"):
		attachment.PreviewURL = "icon:text"
		attachment.ExtractedText = string(data)
	default:
		return nil, errors.Errorf("unsupported attachment type (%s)", mimeType)
	}
	return attachment, nil
}
