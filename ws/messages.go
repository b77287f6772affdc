package ws

import (
	"github.com/kralgram/kralgram/store"
)

// Client actions.
const (
	ActionMessage = "message"
	ActionRead    = "read"
)

// Server actions.
const (
	ActionNewMessage   = "new_message"
	ActionStatusUpdate = "status_update"
)

// ClientMsg is one inbound client event, decoded from a websocket text frame.
type ClientMsg struct {
	Action string `json:"action"`

	// `message` fields.
	TargetID string `json:"target_id,omitempty"`
	Content  string `json:"content,omitempty"`
	Kind     string `json:"type,omitempty"`
	IsGroup  bool   `json:"is_group,omitempty"`

	// `read` fields. SenderID is what the client believes the original
	// sender is; the router verifies it against the store and never routes
	// on it.
	MsgID    string `json:"msg_id,omitempty"`
	SenderID string `json:"sender_id,omitempty"`
}

// ServerMsg is one outbound event pushed to a live connection.
type ServerMsg struct {
	Action string `json:"action"`

	// new_message fields.
	ID        string  `json:"id,omitempty"`
	SenderID  string  `json:"sender_id,omitempty"`
	RoomID    string  `json:"room_id,omitempty"`
	Content   string  `json:"content,omitempty"`
	Kind      string  `json:"type,omitempty"`
	IsGroup   bool    `json:"is_group"`
	Timestamp float64 `json:"timestamp,omitempty"`

	// status_update fields; Status is shared with new_message.
	MsgID  string `json:"msg_id,omitempty"`
	Status string `json:"status,omitempty"`

	// Error reports a rejected request back to the originating connection
	// only; it never fans out.
	Error string `json:"error,omitempty"`
}

func newMessagePayload(m *store.Message, isGroup bool) *ServerMsg {
	return &ServerMsg{
		Action:    ActionNewMessage,
		ID:        m.ID,
		SenderID:  m.SenderID,
		RoomID:    m.RoomID,
		Content:   m.Content,
		Kind:      m.Kind,
		IsGroup:   isGroup,
		Status:    m.Status,
		Timestamp: unixSeconds(m),
	}
}

func statusUpdatePayload(msgID, status string) *ServerMsg {
	return &ServerMsg{
		Action: ActionStatusUpdate,
		MsgID:  msgID,
		Status: status,
	}
}

func errorPayload(err error) *ServerMsg {
	return &ServerMsg{Error: err.Error()}
}

// unixSeconds renders the create time as float seconds, the wire format
// clients expect.
func unixSeconds(m *store.Message) float64 {
	return float64(m.CreateTime.UnixNano()) / 1e9
}
