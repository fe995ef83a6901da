package signaling

import (
	"encoding/json"
	"testing"
)

func TestMessageValidate(t *testing.T) {
	mid := "0"
	sdp := &SessionDescription{Type: "offer", SDP: "v=0"}
	cand := &ICECandidate{Candidate: "candidate:1", SDPMid: &mid}

	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"valid offer", Message{Type: MessageOffer, From: "a", SDP: sdp}, false},
		{"valid answer", Message{Type: MessageAnswer, From: "a", SDP: sdp}, false},
		{"valid ice", Message{Type: MessageICE, From: "a", Candidate: cand}, false},
		{"valid end", Message{Type: MessageEnd, From: "a"}, false},
		{"missing sender", Message{Type: MessageOffer, SDP: sdp}, true},
		{"offer without sdp", Message{Type: MessageOffer, From: "a"}, true},
		{"offer with empty sdp", Message{Type: MessageOffer, From: "a", SDP: &SessionDescription{Type: "offer"}}, true},
		{"ice without candidate", Message{Type: MessageICE, From: "a"}, true},
		{"ice with empty candidate", Message{Type: MessageICE, From: "a", Candidate: &ICECandidate{}}, true},
		{"unknown type", Message{Type: "renegotiate", From: "a"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageJSONShape(t *testing.T) {
	mid := "audio"
	idx := uint16(0)
	msg := Message{
		Type: MessageICE,
		From: "client-1",
		Candidate: &ICECandidate{
			Candidate:     "candidate:1 1 udp 2130706431 10.0.0.1 54321 typ host",
			SDPMid:        &mid,
			SDPMLineIndex: &idx,
		},
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Type != MessageICE || decoded.From != "client-1" {
		t.Errorf("decoded = %+v, want original identity", decoded)
	}
	if decoded.Candidate == nil || *decoded.Candidate.SDPMid != "audio" || *decoded.Candidate.SDPMLineIndex != 0 {
		t.Errorf("candidate fields lost in round trip: %+v", decoded.Candidate)
	}
	if decoded.SDP != nil {
		t.Error("absent sdp should stay nil")
	}
}

func TestOfferOmitsCandidateField(t *testing.T) {
	msg := Message{Type: MessageOffer, From: "a", SDP: &SessionDescription{Type: "offer", SDP: "v=0"}}
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := generic["candidate"]; ok {
		t.Error("offer wire form should omit the candidate field")
	}
}
