package call

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/guardline-io/guardline/internal/signaling"
	"github.com/guardline-io/guardline/pkg/logger"
)

// ErrNegotiation indicates an SDP or ICE application failure. Negotiation
// errors are surfaced as notifications and never tear down the session.
var ErrNegotiation = errors.New("call: negotiation failed")

// Peer abstracts the single peer connection owned by a negotiator. The
// production implementation wraps a pion PeerConnection; tests use a fake.
type Peer interface {
	// EnsureLocalMedia acquires (or reuses) the local audio and video
	// tracks and attaches them to the connection.
	EnsureLocalMedia() error
	// CreateOffer builds an offer requesting to send and receive both
	// audio and video, and applies it as the local description.
	CreateOffer() (*signaling.SessionDescription, error)
	// CreateAnswer builds an answer and applies it as the local description.
	CreateAnswer() (*signaling.SessionDescription, error)
	SetRemoteDescription(desc signaling.SessionDescription) error
	AddICECandidate(cand signaling.ICECandidate) error
	// OnICECandidate registers the hook for locally gathered candidates.
	// End-of-candidates markers are filtered out before the hook fires.
	OnICECandidate(fn func(signaling.ICECandidate))
	OnConnectionChange(fn func(connected bool))
	// ReplaceAudioTrack swaps the outgoing audio track; RestoreAudioTrack
	// reinstates the original capture track. Calls are sequenced by the
	// agent, never concurrent.
	ReplaceAudioTrack(track webrtc.TrackLocal) error
	RestoreAudioTrack() error
	Close() error
}

// pionPeer implements Peer on pion/webrtc
type pionPeer struct {
	pc     *webrtc.PeerConnection
	logger *logger.Logger

	mu            sync.Mutex
	audioTrack    *webrtc.TrackLocalStaticSample
	videoTrack    *webrtc.TrackLocalStaticSample
	audioSender   *webrtc.RTPSender
	originalTrack webrtc.TrackLocal
	mediaAttached bool
}

// NewPeer creates a pion-backed peer connection configured with the given
// STUN servers.
func NewPeer(stunServers []string, log *logger.Logger) (Peer, error) {
	cfg := webrtc.Configuration{}
	if len(stunServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: stunServers}}
	}

	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create peer connection: %v", ErrNegotiation, err)
	}

	return &pionPeer{pc: pc, logger: log.Named("peer")}, nil
}

// EnsureLocalMedia creates and attaches the local tracks once
func (p *pionPeer) EnsureLocalMedia() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.mediaAttached {
		return nil
	}

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 1},
		"audio", "guardline-audio")
	if err != nil {
		return fmt.Errorf("%w: audio track: %v", ErrNegotiation, err)
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"video", "guardline-video")
	if err != nil {
		return fmt.Errorf("%w: video track: %v", ErrNegotiation, err)
	}

	audioSender, err := p.pc.AddTrack(audio)
	if err != nil {
		return fmt.Errorf("%w: add audio track: %v", ErrNegotiation, err)
	}
	if _, err := p.pc.AddTrack(video); err != nil {
		return fmt.Errorf("%w: add video track: %v", ErrNegotiation, err)
	}

	p.audioTrack = audio
	p.videoTrack = video
	p.audioSender = audioSender
	p.originalTrack = audio
	p.mediaAttached = true
	return nil
}

func (p *pionPeer) CreateOffer() (*signaling.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create offer: %v", ErrNegotiation, err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("%w: set local description: %v", ErrNegotiation, err)
	}
	return &signaling.SessionDescription{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

func (p *pionPeer) CreateAnswer() (*signaling.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create answer: %v", ErrNegotiation, err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("%w: set local description: %v", ErrNegotiation, err)
	}
	return &signaling.SessionDescription{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

func (p *pionPeer) SetRemoteDescription(desc signaling.SessionDescription) error {
	sdpType := webrtc.NewSDPType(desc.Type)
	if err := p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: sdpType, SDP: desc.SDP}); err != nil {
		return fmt.Errorf("%w: set remote description: %v", ErrNegotiation, err)
	}
	return nil
}

func (p *pionPeer) AddICECandidate(cand signaling.ICECandidate) error {
	init := webrtc.ICECandidateInit{
		Candidate:     cand.Candidate,
		SDPMid:        cand.SDPMid,
		SDPMLineIndex: cand.SDPMLineIndex,
	}
	if err := p.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("%w: add ice candidate: %v", ErrNegotiation, err)
	}
	return nil
}

func (p *pionPeer) OnICECandidate(fn func(signaling.ICECandidate)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			// End-of-candidates marker, never broadcast
			return
		}
		init := c.ToJSON()
		fn(signaling.ICECandidate{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})
}

func (p *pionPeer) OnConnectionChange(fn func(connected bool)) {
	p.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.logger.Debug("Peer connection state changed",
			logger.String("state", state.String()))
		fn(state == webrtc.PeerConnectionStateConnected)
	})
}

func (p *pionPeer) ReplaceAudioTrack(track webrtc.TrackLocal) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.audioSender == nil {
		return fmt.Errorf("%w: no audio sender to replace", ErrNegotiation)
	}
	if err := p.audioSender.ReplaceTrack(track); err != nil {
		return fmt.Errorf("%w: replace track: %v", ErrNegotiation, err)
	}
	return nil
}

func (p *pionPeer) RestoreAudioTrack() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.audioSender == nil || p.originalTrack == nil {
		return nil
	}
	if err := p.audioSender.ReplaceTrack(p.originalTrack); err != nil {
		return fmt.Errorf("%w: restore track: %v", ErrNegotiation, err)
	}
	return nil
}

func (p *pionPeer) Close() error {
	return p.pc.Close()
}
