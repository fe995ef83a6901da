package signaling

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies a signaling message variant
type MessageType string

const (
	MessageOffer  MessageType = "offer"
	MessageAnswer MessageType = "answer"
	MessageICE    MessageType = "ice"
	MessageEnd    MessageType = "end"
)

// SessionDescription carries an SDP offer or answer over the channel
type SessionDescription struct {
	Type string `json:"type"` // "offer" or "answer"
	SDP  string `json:"sdp"`
}

// ICECandidate carries one ICE candidate over the channel
type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// Message is the tagged union exchanged over the room broadcast topic.
// Transient; consumed at most once per recipient action.
type Message struct {
	Type      MessageType         `json:"type"`
	From      string              `json:"from"`
	SDP       *SessionDescription `json:"sdp,omitempty"`
	Candidate *ICECandidate       `json:"candidate,omitempty"`
}

// Validate checks that the message carries the payload its type requires
func (m *Message) Validate() error {
	if m.From == "" {
		return fmt.Errorf("signaling message missing sender identity")
	}
	switch m.Type {
	case MessageOffer, MessageAnswer:
		if m.SDP == nil || m.SDP.SDP == "" {
			return fmt.Errorf("%s message missing session description", m.Type)
		}
	case MessageICE:
		if m.Candidate == nil || m.Candidate.Candidate == "" {
			return fmt.Errorf("ice message missing candidate")
		}
	case MessageEnd:
	default:
		return fmt.Errorf("unknown signaling message type: %q", m.Type)
	}
	return nil
}

// Frame wire events for the realtime pub/sub service
const (
	frameJoin          = "join"
	frameJoined        = "joined"
	frameLeave         = "leave"
	frameBroadcast     = "broadcast"
	framePresenceState = "presence_state"
	framePresenceJoin  = "presence_join"
	framePresenceLeave = "presence_leave"
	frameError         = "error"
)

// frame is one websocket frame on the realtime service connection
type frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// presenceEntry is one tracked member of a room's presence set
type presenceEntry struct {
	Key      string `json:"key"`
	JoinedAt string `json:"joined_at"`
}

// presenceState is the full presence snapshot sent on join and sync
type presenceState struct {
	Members []presenceEntry `json:"members"`
}
