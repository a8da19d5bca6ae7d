package broadcast

import (
	"encoding/json"
	"fmt"
	"time"
)

// Realtime event names.
const (
	EventConnected        = "connected"
	EventJoinProjectRoom  = "joinProjectRoom"
	EventJoinBoardRoom    = "joinBoardRoom"
	EventPresenceJoined   = "presenceJoined"
	EventPresenceSnapshot = "presenceSnapshot"
	EventDomain           = "domainEvent"
	EventBoard            = "boardEvent"
	EventError            = "error"
)

// Domain event types carried in BoardEvent.Type.
const (
	TypeProjectCreated = "project.created"
	TypeBoardCreated   = "board.created"
	TypeBoardMoved     = "board.moved"
	TypeBoardDeleted   = "board.deleted"
	TypeListCreated    = "list.created"
	TypeListEdited     = "list.edited"
	TypeListMoved      = "list.moved"
	TypeListDeleted    = "list.deleted"
	TypeCardCreated    = "card.created"
	TypeCardEdited     = "card.edited"
	TypeCardMoved      = "card.moved"
	TypeCardDeleted    = "card.deleted"
)

// Frame is the JSON envelope of every realtime message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// BoardEvent is the payload of a boardEvent frame.
type BoardEvent struct {
	Type      string      `json:"type"`
	Message   string      `json:"message"`
	Actor     string      `json:"actor"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Encode marshals payload into a frame named event.
func Encode(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("broadcast: encode %s: %w", event, err)
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("broadcast: encode %s: %w", event, err)
	}
	return frame, nil
}

// Decode parses a frame; Data is left raw for the caller.
func Decode(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("broadcast: decode frame: %w", err)
	}
	if f.Event == "" {
		return f, fmt.Errorf("broadcast: decode frame: missing event name")
	}
	return f, nil
}
