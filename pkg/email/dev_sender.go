package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// DevSender writes each email to DevDir as one JSON document instead of
// delivering it. Used for local development.
type DevSender struct {
	dir string
	now func() time.Time
	seq atomic.Uint64
}

// NewDevSender returns a sender that writes into dir, creating it on first use.
func NewDevSender(dir string) EmailSender {
	return &DevSender{dir: dir, now: time.Now}
}

// DevEmail is the document DevSender writes.
type DevEmail struct {
	ID       string    `json:"id"`
	SentAt   time.Time `json:"sent_at"`
	SendTo   string    `json:"send_to"`
	Subject  string    `json:"subject"`
	Tag      string    `json:"tag,omitempty"`
	BodyHTML string    `json:"body_html,omitempty"`
	BodyText string    `json:"body_text,omitempty"`
}

// SendEmail writes <timestamp>_<seq>_<tag|subject>.json and returns the
// file name without extension as the message id.
func (d *DevSender) SendEmail(_ context.Context, params SendEmailParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create dir: %v", ErrFailedToSendEmail, err)
	}

	now := d.now()
	label := params.Tag
	if label == "" {
		label = params.Subject
	}
	id := fmt.Sprintf("%s_%04d_%s", now.Format("20060102_150405"), d.seq.Add(1), fileSafe(label))

	data, err := json.MarshalIndent(DevEmail{
		ID:       id,
		SentAt:   now,
		SendTo:   params.SendTo,
		Subject:  params.Subject,
		Tag:      params.Tag,
		BodyHTML: params.BodyHTML,
		BodyText: params.BodyText,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: encode: %v", ErrFailedToSendEmail, err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, id+".json"), data, 0o644); err != nil {
		return "", fmt.Errorf("%w: write: %v", ErrFailedToSendEmail, err)
	}
	return id, nil
}

const maxLabelLength = 64

// fileSafe lowercases s and keeps [a-z0-9._-], mapping spaces to '_'.
func fileSafe(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return -1
		}
	}, s)
	if len(s) > maxLabelLength {
		s = s[:maxLabelLength]
	}
	if s == "" {
		return "email"
	}
	return s
}
