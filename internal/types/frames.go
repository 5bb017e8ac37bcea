package types

import (
	"encoding/json"
	"fmt"
)

// Frame type discriminators carried by the push channel.
const (
	FrameMultiTaskUpdate    = "multi_task_update"
	FrameTaskUpdate         = "task_update"
	FrameSessionTitleUpdate = "session_title_update"
	FrameConnectionTest     = "connection_test"
)

// Frame is a validated inbound channel message. Payloads arrive as untyped
// JSON and are parsed into one of the concrete variants at the transport
// boundary; consumers never touch raw maps.
type Frame interface {
	FrameType() string
}

// MultiTaskUpdate carries a full task list snapshot; it replaces whatever
// the consumer currently displays.
type MultiTaskUpdate struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId"`
	Tasks     []AgentTask `json:"tasks"`
}

func (MultiTaskUpdate) FrameType() string { return FrameMultiTaskUpdate }

// TaskUpdate carries a single task snapshot.
type TaskUpdate struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId"`
	Task      AgentTask `json:"task"`
}

func (TaskUpdate) FrameType() string { return FrameTaskUpdate }

// SessionTitleUpdate renames the session the channel belongs to.
type SessionTitleUpdate struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Title     string `json:"title"`
}

func (SessionTitleUpdate) FrameType() string { return FrameSessionTitleUpdate }

// ConnectionTest is a liveness probe sent by the backend after connect.
type ConnectionTest struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message,omitempty"`
}

func (ConnectionTest) FrameType() string { return FrameConnectionTest }

// UnknownFrame preserves messages with an unrecognized discriminator so the
// channel manager can log them without dropping the connection.
type UnknownFrame struct {
	Type string
	Raw  json.RawMessage
}

func (f UnknownFrame) FrameType() string { return f.Type }

// ParseFrame decodes an inbound channel payload into a typed frame. A JSON
// parse failure or missing discriminator is an error; an unrecognized
// discriminator is not (it yields UnknownFrame).
func ParseFrame(data []byte) (Frame, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("malformed channel payload: %w", err)
	}
	if envelope.Type == "" {
		return nil, fmt.Errorf("channel payload missing type discriminator")
	}

	switch envelope.Type {
	case FrameMultiTaskUpdate:
		var frame MultiTaskUpdate
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
		}
		for _, task := range frame.Tasks {
			if !task.Status.Valid() {
				return nil, fmt.Errorf("decode %s: invalid task status %q", envelope.Type, task.Status)
			}
		}
		return frame, nil
	case FrameTaskUpdate:
		var frame TaskUpdate
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
		}
		if !frame.Task.Status.Valid() {
			return nil, fmt.Errorf("decode %s: invalid task status %q", envelope.Type, frame.Task.Status)
		}
		return frame, nil
	case FrameSessionTitleUpdate:
		var frame SessionTitleUpdate
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
		}
		return frame, nil
	case FrameConnectionTest:
		var frame ConnectionTest
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
		}
		return frame, nil
	default:
		return UnknownFrame{Type: envelope.Type, Raw: append([]byte(nil), data...)}, nil
	}
}
