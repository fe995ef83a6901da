package call

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/guardline-io/guardline/internal/signaling"
	"github.com/guardline-io/guardline/pkg/logger"
)

// State is the negotiator's position in the connection lifecycle
type State string

const (
	StateIdle                State = "idle"
	StateAcquiringMedia      State = "acquiring-media"
	StateChannelJoining      State = "channel-joining"
	StateRolePending         State = "role-pending"
	StateCallerOffering      State = "caller-offering"
	StateCalleeAwaitingOffer State = "callee-awaiting-offer"
	StateNegotiating         State = "negotiating"
	StateConnected           State = "connected"
	StateEnded               State = "ended"
)

// Role is the negotiation role derived from presence at channel join
type Role string

const (
	RoleNone   Role = ""
	RoleCaller Role = "caller"
	RoleCallee Role = "callee"
)

// Notifier surfaces non-fatal, user-visible notifications
type Notifier interface {
	Notify(room, severity, message string)
}

// Status is a snapshot of the negotiator's observable state
type Status struct {
	State     State  `json:"state"`
	Role      Role   `json:"role"`
	Connected bool   `json:"connected"`
	Presence  int    `json:"presence"`
	Room      string `json:"room"`
}

// StatusFunc is invoked whenever the observable status changes
type StatusFunc func(Status)

// Negotiator owns one peer connection and drives the offer/answer/ICE
// exchange over the signaling channel. Role arbitration: the sole member of
// the room at join time becomes the caller; later joiners become callees.
type Negotiator struct {
	room     string
	clientID string
	channel  signaling.Channel
	peer     Peer
	notifier Notifier
	onStatus StatusFunc
	logger   *logger.Logger

	mu            sync.Mutex
	state         State
	role          Role
	connected     bool
	remoteDescSet bool
	offered       bool
	pending       []signaling.ICECandidate
	ended         bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNegotiator creates a negotiator for one room
func NewNegotiator(room, clientID string, channel signaling.Channel, peer Peer, notifier Notifier, onStatus StatusFunc, log *logger.Logger) *Negotiator {
	return &Negotiator{
		room:     room,
		clientID: clientID,
		channel:  channel,
		peer:     peer,
		notifier: notifier,
		onStatus: onStatus,
		logger:   log.Named("negotiator"),
		state:    StateIdle,
	}
}

// Start acquires local media, joins the signaling channel, derives the role
// from presence and begins consuming channel events.
func (n *Negotiator) Start(ctx context.Context) error {
	n.setState(StateAcquiringMedia)
	if err := n.peer.EnsureLocalMedia(); err != nil {
		n.setState(StateIdle)
		return err
	}

	n.peer.OnICECandidate(n.broadcastCandidate)
	n.peer.OnConnectionChange(n.handleConnectionChange)

	n.setState(StateChannelJoining)
	if err := n.channel.Join(ctx); err != nil {
		n.setState(StateIdle)
		return err
	}

	n.setState(StateRolePending)
	presence := n.channel.Presence()

	n.mu.Lock()
	// Role is fixed for the session; re-derived only on the next Start
	if presence <= 1 {
		n.role = RoleCaller
	} else {
		n.role = RoleCallee
	}
	role := n.role
	n.mu.Unlock()

	if role == RoleCaller {
		n.setState(StateCallerOffering)
	} else {
		n.setState(StateCalleeAwaitingOffer)
	}

	n.logger.Info("Joined call room",
		logger.String("room", n.room),
		logger.String("role", string(role)),
		logger.Int("presence", presence))

	loopCtx, cancel := context.WithCancel(ctx)
	n.mu.Lock()
	n.cancel = cancel
	n.mu.Unlock()

	n.wg.Add(1)
	go n.eventLoop(loopCtx)

	return nil
}

// eventLoop consumes presence and broadcast events until the channel closes
func (n *Negotiator) eventLoop(ctx context.Context) {
	defer n.wg.Done()
	events := n.channel.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			n.handleEvent(ev)
		}
	}
}

func (n *Negotiator) handleEvent(ev signaling.Event) {
	switch ev.Kind {
	case signaling.EventPresenceJoin:
		n.handlePresenceJoin(ev.Presence)
	case signaling.EventPresenceLeave:
		n.mu.Lock()
		// Allow a fresh offer if the remote side dropped and rejoins
		if ev.Presence < 2 {
			n.offered = false
		}
		n.mu.Unlock()
		n.publishStatus()
	case signaling.EventBroadcast:
		n.handleMessage(ev.Message)
	case signaling.EventClosed:
		n.notifier.Notify(n.room, "warning", "Signaling channel closed")
	}
}

// handlePresenceJoin creates the offer when the caller observes the room
// reaching two or more members. Guarded so a session produces exactly one
// offer per remote join.
func (n *Negotiator) handlePresenceJoin(presence int) {
	n.mu.Lock()
	shouldOffer := n.role == RoleCaller && presence >= 2 && !n.offered && !n.ended
	if shouldOffer {
		n.offered = true
	}
	n.mu.Unlock()
	n.publishStatus()

	if !shouldOffer {
		return
	}

	if err := n.peer.EnsureLocalMedia(); err != nil {
		n.surfaceError("Failed to acquire media for offer", err)
		return
	}
	offer, err := n.peer.CreateOffer()
	if err != nil {
		n.mu.Lock()
		n.offered = false
		n.mu.Unlock()
		n.surfaceError("Failed to create offer", err)
		return
	}

	n.setState(StateNegotiating)
	msg := &signaling.Message{Type: signaling.MessageOffer, From: n.clientID, SDP: offer}
	if err := n.channel.Broadcast(msg); err != nil {
		n.surfaceError("Failed to send offer", err)
	}
}

// handleMessage dispatches one broadcast. Self-origin messages are always
// ignored: broadcasts are visible to the sender on the same channel.
func (n *Negotiator) handleMessage(msg *signaling.Message) {
	if msg == nil || msg.From == n.clientID {
		return
	}

	switch msg.Type {
	case signaling.MessageOffer:
		n.handleOffer(msg)
	case signaling.MessageAnswer:
		n.handleAnswer(msg)
	case signaling.MessageICE:
		n.handleCandidate(msg)
	case signaling.MessageEnd:
		n.logger.Info("Remote ended the call", logger.String("room", n.room))
		// End waits for the event loop; run it off this goroutine
		go n.End()
	}
}

// handleOffer runs the callee side: apply the remote offer, drain buffered
// candidates, answer.
func (n *Negotiator) handleOffer(msg *signaling.Message) {
	if err := n.peer.EnsureLocalMedia(); err != nil {
		n.surfaceError("Failed to acquire media", err)
		return
	}

	n.setState(StateNegotiating)
	if err := n.peer.SetRemoteDescription(*msg.SDP); err != nil {
		n.surfaceError("Failed to apply offer", err)
		return
	}
	n.markRemoteDescSet()
	n.drainPendingCandidates()

	answer, err := n.peer.CreateAnswer()
	if err != nil {
		n.surfaceError("Failed to create answer", err)
		return
	}

	reply := &signaling.Message{Type: signaling.MessageAnswer, From: n.clientID, SDP: answer}
	if err := n.channel.Broadcast(reply); err != nil {
		n.surfaceError("Failed to send answer", err)
	}
}

// handleAnswer runs the caller side: apply the answer, drain buffered
// candidates.
func (n *Negotiator) handleAnswer(msg *signaling.Message) {
	if err := n.peer.SetRemoteDescription(*msg.SDP); err != nil {
		n.surfaceError("Failed to apply answer", err)
		return
	}
	n.markRemoteDescSet()
	n.drainPendingCandidates()
}

// handleCandidate applies a remote candidate immediately when the remote
// description is set; otherwise it is buffered in arrival order and flushed
// exactly once right after the description is applied.
func (n *Negotiator) handleCandidate(msg *signaling.Message) {
	n.mu.Lock()
	if !n.remoteDescSet {
		n.pending = append(n.pending, *msg.Candidate)
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()

	if err := n.peer.AddICECandidate(*msg.Candidate); err != nil {
		n.logger.Warn("Failed to add ICE candidate", logger.Error(err))
	}
}

func (n *Negotiator) markRemoteDescSet() {
	n.mu.Lock()
	n.remoteDescSet = true
	n.mu.Unlock()
}

func (n *Negotiator) drainPendingCandidates() {
	n.mu.Lock()
	pending := n.pending
	n.pending = nil
	n.mu.Unlock()

	for _, cand := range pending {
		if err := n.peer.AddICECandidate(cand); err != nil {
			n.logger.Warn("Failed to add buffered ICE candidate", logger.Error(err))
		}
	}
}

// broadcastCandidate publishes a locally gathered candidate immediately
func (n *Negotiator) broadcastCandidate(cand signaling.ICECandidate) {
	msg := &signaling.Message{Type: signaling.MessageICE, From: n.clientID, Candidate: &cand}
	if err := n.channel.Broadcast(msg); err != nil {
		n.logger.Warn("Failed to broadcast ICE candidate", logger.Error(err))
	}
}

func (n *Negotiator) handleConnectionChange(connected bool) {
	n.mu.Lock()
	n.connected = connected
	if connected {
		n.state = StateConnected
	}
	n.mu.Unlock()
	n.publishStatus()
}

// ReplaceAudioTrack swaps the outgoing audio track for the agent's
// synthesized voice. RestoreAudioTrack reinstates the capture track. The
// peer serializes the underlying sender operation.
func (n *Negotiator) ReplaceAudioTrack(track webrtc.TrackLocal) error {
	return n.peer.ReplaceAudioTrack(track)
}

// RestoreAudioTrack reinstates the original capture track
func (n *Negotiator) RestoreAudioTrack() error {
	return n.peer.RestoreAudioTrack()
}

// Status returns the current observable status
func (n *Negotiator) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Status{
		State:     n.state,
		Role:      n.role,
		Connected: n.connected,
		Presence:  n.channel.Presence(),
		Room:      n.room,
	}
}

// End broadcasts a best-effort end message, leaves the channel, closes the
// peer connection and resets state. Safe to call multiple times.
func (n *Negotiator) End() {
	n.mu.Lock()
	if n.ended {
		n.mu.Unlock()
		return
	}
	n.ended = true
	n.state = StateEnded
	cancel := n.cancel
	n.mu.Unlock()

	// Best effort; the channel drops our presence on leave regardless
	_ = n.channel.Broadcast(&signaling.Message{Type: signaling.MessageEnd, From: n.clientID})
	_ = n.channel.Leave()

	if cancel != nil {
		cancel()
	}
	n.wg.Wait()

	if err := n.peer.Close(); err != nil {
		n.logger.Warn("Failed to close peer connection", logger.Error(err))
	}

	n.mu.Lock()
	n.role = RoleNone
	n.connected = false
	n.remoteDescSet = false
	n.offered = false
	n.pending = nil
	n.mu.Unlock()

	n.logger.Info("Call ended", logger.String("room", n.room))
	n.publishStatus()
}

func (n *Negotiator) setState(s State) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
	n.publishStatus()
}

func (n *Negotiator) publishStatus() {
	if n.onStatus != nil {
		n.onStatus(n.Status())
	}
}

// surfaceError reports a negotiation failure as a non-fatal notification.
// The session stays in its last stable state; a later presence or broadcast
// event may implicitly retry the exchange.
func (n *Negotiator) surfaceError(msg string, err error) {
	n.logger.Error(msg, logger.Error(err))
	n.notifier.Notify(n.room, "error", msg)
}
