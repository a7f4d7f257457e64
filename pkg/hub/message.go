package hub

import (
	"time"

	"github.com/dmitrymomot/statuscast/pkg/status"
)

// MessageType identifies a protocol message.
type MessageType string

// Client to hub.
const (
	TypeSubscribe     MessageType = "subscribe"
	TypeUnsubscribe   MessageType = "unsubscribe"
	TypePing          MessageType = "ping"
	TypeStartAnalysis MessageType = "start_analysis"
	TypeStopAnalysis  MessageType = "stop_analysis"
)

// Hub to client.
const (
	TypeConnected    MessageType = "connected"
	TypeSubscribed   MessageType = "subscribed"
	TypeUnsubscribed MessageType = "unsubscribed"
	TypeStatusUpdate MessageType = "status_update"
	TypeNotification MessageType = "notification"
	TypePong         MessageType = "pong"
	TypeError        MessageType = "error"
)

// TimeFormat is the UTC millisecond ISO-8601 layout of message timestamps.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// InboundMessage is a client request. AnalysisID is accepted as an alias
// of Topic.
type InboundMessage struct {
	Type       MessageType `json:"type"`
	Topic      string      `json:"topic,omitempty"`
	AnalysisID string      `json:"analysisId,omitempty"`
}

func (m InboundMessage) topic() string {
	if m.Topic != "" {
		return m.Topic
	}
	return m.AnalysisID
}

// OutboundMessage is everything the hub sends. Topic-bound messages carry
// the topic under both topic and analysisId.
type OutboundMessage struct {
	Type         MessageType    `json:"type"`
	Topic        string         `json:"topic,omitempty"`
	AnalysisID   string         `json:"analysisId,omitempty"`
	Status       status.Status  `json:"status,omitempty"`
	Progress     *int           `json:"progress,omitempty"`
	CurrentStage string         `json:"currentStage,omitempty"`
	Error        string         `json:"error,omitempty"`
	Results      map[string]any `json:"results,omitempty"`
	Notification *Notice        `json:"notification,omitempty"`
	Message      string         `json:"message,omitempty"`
	Timestamp    string         `json:"timestamp"`

	// updatedAt orders snapshots against held broadcasts. Not serialized.
	updatedAt time.Time
}

// Notice is an in-app notification pushed with Notify.
type Notice struct {
	ID      string         `json:"id,omitempty"`
	Source  string         `json:"source,omitempty"`
	Title   string         `json:"title,omitempty"`
	Body    string         `json:"body"`
	Data    map[string]any `json:"data,omitempty"`
	Created string         `json:"createdAt,omitempty"`
}

func stamp(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

func statusMessage(topic string, s status.Snapshot, at time.Time) OutboundMessage {
	progress := s.Progress
	msg := OutboundMessage{
		Type:         TypeStatusUpdate,
		Topic:        topic,
		AnalysisID:   topic,
		Status:       s.Status,
		Progress:     &progress,
		CurrentStage: s.CurrentStage,
		Error:        s.Error,
		Timestamp:    stamp(at),
		updatedAt:    s.UpdatedAt,
	}
	if s.Status == status.Completed {
		msg.Results = s.Results
	}
	return msg
}

func topicMessage(t MessageType, topic string, at time.Time) OutboundMessage {
	return OutboundMessage{Type: t, Topic: topic, AnalysisID: topic, Timestamp: stamp(at)}
}

func errorMessage(text string, at time.Time) OutboundMessage {
	return OutboundMessage{Type: TypeError, Message: text, Timestamp: stamp(at)}
}
