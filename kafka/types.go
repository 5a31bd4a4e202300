package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published by imgprep.
const (
	EventRunCompleted = "imgprep.run.completed"
	EventRunFailed    = "imgprep.run.failed"
)

// Event is the JSON envelope written to the events topic.
type Event struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Source      string                 `json:"source"`
	ContentType string                 `json:"content_type"`
	Version     string                 `json:"version"`
	Timestamp   time.Time              `json:"timestamp"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Subject     string                 `json:"subject,omitempty"`
}

// NewEvent builds an event with a fresh ID and the current time. Subject
// becomes the partition key, so events about one run share a partition.
func NewEvent(eventType, source, subject string, data map[string]interface{}) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		Source:      source,
		ContentType: "application/json",
		Version:     "1.0",
		Timestamp:   time.Now().UTC(),
		Data:        data,
		Subject:     subject,
	}
}

// ToJSON marshals the event to JSON.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEvent decodes an event written by ToJSON.
func ParseEvent(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}
