package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CallAuditMessage records the outcome of one IVR operation.
type CallAuditMessage struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id,omitempty"`
	Action     string    `json:"action"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Count      int       `json:"count"`
	Retried    bool      `json:"retried"`
	Period     string    `json:"period,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewCallAuditMessage creates a message with a fresh id.
func NewCallAuditMessage(action string) *CallAuditMessage {
	return &CallAuditMessage{
		ID:        uuid.NewString(),
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *CallAuditMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CallAuditMessageFromJSON decodes a message and checks its id.
func CallAuditMessageFromJSON(data []byte) (*CallAuditMessage, error) {
	var msg CallAuditMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(msg.ID); err != nil {
		return nil, err
	}
	return &msg, nil
}
