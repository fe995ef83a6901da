package scam

import (
	"math"
	"sync"

	"github.com/guardline-io/guardline/pkg/logger"
)

// Utterance is one completed sentence-level transcript segment with its own
// risk classification. Immutable once created.
type Utterance struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp string    `json:"timestamp"`
	Risk      RiskLevel `json:"risk"`
	Score     float64   `json:"score"`
	Language  string    `json:"language,omitempty"`
}

// SessionRisk is the aggregate risk over all utterances in the current room
type SessionRisk struct {
	Value int       `json:"value"` // 0..100
	Level RiskLevel `json:"level"`
}

// Session-level percent thresholds, the percent equivalents of the
// per-utterance score mapping.
const (
	sessionHighThreshold   = 70
	sessionMediumThreshold = 35
)

// Per-level contribution to the smoothed session average
var levelWeights = map[RiskLevel]float64{
	RiskLow:    0.2,
	RiskMedium: 0.6,
	RiskHigh:   0.9,
}

// AggregatorConfig represents configuration for the risk aggregator
type AggregatorConfig struct {
	MaxUtterances  int // bounded utterance list cap
	AlertThreshold int // session value that edge-triggers the alert
	OverrideFloor  int // forced floor when financial bait words appear
}

// AlertFunc is invoked exactly once per session when the session value first
// crosses above the alert threshold.
type AlertFunc func(room string, risk SessionRisk)

// SensitiveFunc is invoked exactly once per session on the first utterance
// requesting sensitive data (one-time codes, passwords).
type SensitiveFunc func(room string, u Utterance)

// Aggregator folds per-utterance risk results into a session-level score and
// level. It owns the bounded, most-recent-first utterance list.
type Aggregator struct {
	config      AggregatorConfig
	onAlert     AlertFunc
	onSensitive SensitiveFunc
	logger      *logger.Logger

	mu             sync.Mutex
	room           string
	utterances     []Utterance
	alertFired     bool
	sensitiveFired bool
}

// NewAggregator creates a new risk aggregator
func NewAggregator(config AggregatorConfig, onAlert AlertFunc, onSensitive SensitiveFunc, log *logger.Logger) *Aggregator {
	if config.MaxUtterances <= 0 {
		config.MaxUtterances = 100
	}
	if config.AlertThreshold <= 0 {
		config.AlertThreshold = 50
	}
	if config.OverrideFloor <= 0 {
		config.OverrideFloor = 51
	}
	return &Aggregator{
		config:      config,
		onAlert:     onAlert,
		onSensitive: onSensitive,
		logger:      log.Named("risk-aggregator"),
	}
}

// SetSensitiveFunc binds the sensitive-data callback after construction.
// The session wiring needs the capture chain built before the hook exists.
func (a *Aggregator) SetSensitiveFunc(fn SensitiveFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onSensitive = fn
}

// Reset clears all session state. The one-shot triggers re-arm only here,
// on a room identity change.
func (a *Aggregator) Reset(room string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.room = room
	a.utterances = nil
	a.alertFired = false
	a.sensitiveFired = false
}

// Insert adds an utterance (most-recent-first, capped) and recomputes the
// session risk. Side-effect callbacks fire synchronously under the edge
// trigger rules before Insert returns.
func (a *Aggregator) Insert(u Utterance) SessionRisk {
	a.mu.Lock()

	a.utterances = append([]Utterance{u}, a.utterances...)
	if len(a.utterances) > a.config.MaxUtterances {
		a.utterances = a.utterances[:a.config.MaxUtterances]
	}

	risk := a.computeLocked()

	var alert AlertFunc
	var sensitive SensitiveFunc
	var room string

	if risk.Value > a.config.AlertThreshold && !a.alertFired {
		a.alertFired = true
		alert = a.onAlert
	}
	if !a.sensitiveFired && MatchesSensitiveData(u.Text) {
		a.sensitiveFired = true
		sensitive = a.onSensitive
	}
	room = a.room
	a.mu.Unlock()

	if alert != nil {
		a.logger.Warn("Session risk alert",
			logger.String("room", room),
			logger.Int("value", risk.Value),
			logger.String("level", string(risk.Level)))
		alert(room, risk)
	}
	if sensitive != nil {
		a.logger.Warn("Sensitive data request detected",
			logger.String("room", room),
			logger.String("utterance_id", u.ID))
		sensitive(room, u)
	}

	return risk
}

// Current recomputes the session risk from the unchanged utterance list.
// Calling it repeatedly yields identical output and never re-fires alerts.
func (a *Aggregator) Current() SessionRisk {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.computeLocked()
}

// Utterances returns a copy of the utterance list, most recent first
func (a *Aggregator) Utterances() []Utterance {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Utterance, len(a.utterances))
	copy(out, a.utterances)
	return out
}

func (a *Aggregator) computeLocked() SessionRisk {
	if len(a.utterances) == 0 {
		return SessionRisk{Value: 0, Level: RiskLow}
	}

	sum := 0.0
	for _, u := range a.utterances {
		sum += levelWeights[u.Risk]
	}
	value := int(math.Round(100 * sum / float64(len(a.utterances))))

	// Blunt financial bait guarantees at least medium escalation,
	// independent of the smoothing average.
	if value < a.config.OverrideFloor {
		for _, u := range a.utterances {
			if MatchesFinancialBait(u.Text) {
				value = a.config.OverrideFloor
				break
			}
		}
	}

	return SessionRisk{Value: value, Level: levelForValue(value)}
}

// levelForValue is the percent-scale equivalent of LevelForScore
func levelForValue(value int) RiskLevel {
	switch {
	case value >= sessionHighThreshold:
		return RiskHigh
	case value >= sessionMediumThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}
