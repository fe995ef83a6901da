package sqlite

import "time"

// UtteranceRecord is one persisted transcript utterance with its risk result
type UtteranceRecord struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Risk      string    `json:"risk"` // "low", "medium", "high"
	Score     float64   `json:"score"`
	Language  string    `json:"language,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionSummary aggregates persisted risk data for one call session
type SessionSummary struct {
	SessionID  string    `json:"session_id"`
	Room       string    `json:"room"`
	Utterances int       `json:"utterances"`
	HighRisk   int       `json:"high_risk"`
	MaxScore   float64   `json:"max_score"`
	StartedAt  time.Time `json:"started_at"`
	LastSeen   time.Time `json:"last_seen"`
}
