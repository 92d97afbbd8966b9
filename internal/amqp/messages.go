package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrMissingRunID = errors.New("export request without run id")

// ExportRequestMessage asks the worker to publish a fresh report for an export run.
// The worker reads the invoices itself; only the run id and bucketing travel.
type ExportRequestMessage struct {
	RunID     string    `json:"run_id"`
	WeekStart string    `json:"week_start"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExportRequestMessage creates a request stamped with the current time
func NewExportRequestMessage(runID string, weekStart time.Weekday) *ExportRequestMessage {
	return &ExportRequestMessage{
		RunID:     runID,
		WeekStart: weekStart.String(),
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExportRequestMessageFromJSON decodes a message and checks it carries a run id.
func ExportRequestMessageFromJSON(data []byte) (*ExportRequestMessage, error) {
	var msg ExportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RunID == "" {
		return nil, ErrMissingRunID
	}
	return &msg, nil
}
