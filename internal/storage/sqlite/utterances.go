package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/guardline-io/guardline/pkg/logger"
)

// UtteranceStorage handles storage of transcript utterances
type UtteranceStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewUtteranceStorage creates a new SQLite utterance storage
func NewUtteranceStorage(db *sql.DB, log *logger.Logger) (*UtteranceStorage, error) {
	storage := &UtteranceStorage{
		db:     db,
		logger: log.Named("sqlite-utterances"),
	}

	if err := storage.initDB(); err != nil {
		return nil, err
	}

	return storage, nil
}

// initDB initializes the database tables
func (s *UtteranceStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS utterances (
			id TEXT PRIMARY KEY,
			room TEXT NOT NULL,
			session_id TEXT NOT NULL,
			text TEXT NOT NULL,
			risk TEXT NOT NULL,
			score REAL NOT NULL,
			language TEXT,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create utterances table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_utterances_room ON utterances(room)`,
		`CREATE INDEX IF NOT EXISTS idx_utterances_session ON utterances(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_utterances_created_at ON utterances(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_utterances_risk ON utterances(risk)`,
	}

	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create utterance index: %w", err)
		}
	}

	return nil
}

// StoreUtterance stores one utterance record
func (s *UtteranceStorage) StoreUtterance(record *UtteranceRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO utterances
		(id, room, session_id, text, risk, score, language, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Room,
		record.SessionID,
		record.Text,
		record.Risk,
		record.Score,
		record.Language,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store utterance: %w", err)
	}
	return nil
}

// GetBySession returns the utterances of one session, newest first, capped
func (s *UtteranceStorage) GetBySession(sessionID string, limit int) ([]*UtteranceRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, room, session_id, text, risk, score, COALESCE(language, ''), created_at
		FROM utterances WHERE session_id = ?
		ORDER BY created_at DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query utterances: %w", err)
	}
	defer rows.Close()

	return scanUtterances(rows)
}

// GetByRoom returns the utterances recorded in a room within a time range
func (s *UtteranceStorage) GetByRoom(room string, since time.Time, limit int) ([]*UtteranceRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, room, session_id, text, risk, score, COALESCE(language, ''), created_at
		FROM utterances WHERE room = ? AND created_at >= ?
		ORDER BY created_at DESC LIMIT ?`,
		room, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query utterances: %w", err)
	}
	defer rows.Close()

	return scanUtterances(rows)
}

// GetSessionSummary aggregates the persisted risk data for one session
func (s *UtteranceStorage) GetSessionSummary(sessionID string) (*SessionSummary, error) {
	row := s.db.QueryRow(
		`SELECT session_id, room, COUNT(*),
			SUM(CASE WHEN risk = 'high' THEN 1 ELSE 0 END),
			MAX(score)
		FROM utterances WHERE session_id = ? GROUP BY session_id, room`,
		sessionID,
	)

	summary := &SessionSummary{}
	err := row.Scan(
		&summary.SessionID,
		&summary.Room,
		&summary.Utterances,
		&summary.HighRisk,
		&summary.MaxScore,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session summary: %w", err)
	}

	// The driver only maps declared TIMESTAMP columns back to time.Time, so
	// the session bounds come from the column itself rather than MIN/MAX.
	err = s.db.QueryRow(
		`SELECT created_at FROM utterances WHERE session_id = ?
		ORDER BY created_at ASC LIMIT 1`, sessionID,
	).Scan(&summary.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to query session start: %w", err)
	}
	err = s.db.QueryRow(
		`SELECT created_at FROM utterances WHERE session_id = ?
		ORDER BY created_at DESC LIMIT 1`, sessionID,
	).Scan(&summary.LastSeen)
	if err != nil {
		return nil, fmt.Errorf("failed to query session end: %w", err)
	}
	return summary, nil
}

// StartRetention prunes utterances older than maxAge on the given interval
// until the context is cancelled.
func (s *UtteranceStorage) StartRetention(ctx context.Context, every, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.PruneOlderThan(time.Now().UTC().Add(-maxAge)); err != nil {
					s.logger.Warn("Utterance retention prune failed", logger.Error(err))
				}
			}
		}
	}()
}

// PruneOlderThan deletes utterances older than the cutoff and returns the
// number removed.
func (s *UtteranceStorage) PruneOlderThan(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM utterances WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune utterances: %w", err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		s.logger.Debug("Pruned old utterances", logger.Int64("count", n))
	}
	return n, nil
}

func scanUtterances(rows *sql.Rows) ([]*UtteranceRecord, error) {
	var records []*UtteranceRecord
	for rows.Next() {
		record := &UtteranceRecord{}
		if err := rows.Scan(
			&record.ID,
			&record.Room,
			&record.SessionID,
			&record.Text,
			&record.Risk,
			&record.Score,
			&record.Language,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan utterance row: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
