package notifications

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JobName is the queue job name of notification fan-out jobs.
const JobName = "sendNotification"

// DefaultSubject is used by channels that need a subject when none is set.
const DefaultSubject = "Statuscast Notification"

// Request asks for message to be delivered to recipient on every listed
// channel. It is the payload of a notification job.
type Request struct {
	Recipient string   `json:"recipient"`
	Channels  []string `json:"channels"`
	Message   string   `json:"message"`
	Options   Options  `json:"options,omitzero"`
}

// Options are optional per-request delivery hints.
type Options struct {
	Subject  string         `json:"subject,omitempty"`
	Type     string         `json:"type,omitempty"`
	Template string         `json:"template,omitempty"`
	Media    string         `json:"media,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// UnmarshalJSON accepts "userId" as an alias of "recipient".
func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	var aux struct {
		plain
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Request(aux.plain)
	if r.Recipient == "" {
		r.Recipient = aux.UserID
	}
	return nil
}

// Validate checks the request fields.
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Recipient) == "":
		return fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	case len(r.Channels) == 0:
		return fmt.Errorf("%w: channels must be a non-empty array", ErrInvalidRequest)
	case strings.TrimSpace(r.Message) == "":
		return fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	for _, name := range r.Channels {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: channel name must not be empty", ErrInvalidRequest)
		}
	}
	return nil
}

// ValidationMessage returns the human readable part of a validation error.
func ValidationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), ErrInvalidRequest.Error()+": ")
}
