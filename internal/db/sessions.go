package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/video-stream/transcut/internal/db/models"
	"github.com/video-stream/transcut/internal/segment"
	"github.com/video-stream/transcut/internal/transcript"
)

const sessionColumns = "id, owner_id, file_name, video_path, duration, language, position, created_at, updated_at"

func scanSession(row interface{ Scan(...any) error }) (*models.Session, error) {
	s := &models.Session{}
	err := row.Scan(&s.ID, &s.OwnerID, &s.FileName, &s.VideoPath, &s.Duration,
		&s.Language, &s.Position, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (d *Database) CreateSession(s *models.Session) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	_, err := d.db.Exec(`
		INSERT INTO sessions (id, owner_id, file_name, video_path, duration, language, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.OwnerID, s.FileName, s.VideoPath, s.Duration, s.Language, s.Position, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (d *Database) GetSession(id string) (*models.Session, error) {
	s, err := scanSession(d.db.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// ListSessions returns sessions newest first. ownerID 0 lists every session.
func (d *Database) ListSessions(ownerID int64) ([]*models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions"
	var args []any
	if ownerID != 0 {
		query += " WHERE owner_id = ?"
		args = append(args, ownerID)
	}
	query += " ORDER BY created_at DESC, id ASC"

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []*models.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// UpdateSessionMeta stores the mutable header fields.
func (d *Database) UpdateSessionMeta(id, language string, duration, position float64) error {
	res, err := d.db.Exec(
		"UPDATE sessions SET language = ?, duration = ?, position = ?, updated_at = ? WHERE id = ?",
		language, duration, position, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *Database) DeleteSession(id string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM deletions WHERE session_id = ?",
		"DELETE FROM transcripts WHERE session_id = ?",
		"DELETE FROM sessions WHERE id = ?",
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveDeletions replaces the raw deletion history of a session.
func (d *Database) SaveDeletions(sessionID string, history []segment.TimeRange) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM deletions WHERE session_id = ?", sessionID); err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO deletions (session_id, seq, start_time, end_time) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, r := range history {
		if _, err := stmt.Exec(sessionID, i, r.Start, r.End); err != nil {
			return fmt.Errorf("insert deletion %d: %w", i, err)
		}
	}
	if _, err := tx.Exec("UPDATE sessions SET updated_at = ? WHERE id = ?", time.Now().UTC(), sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadDeletions returns the raw deletion history, oldest first.
func (d *Database) LoadDeletions(sessionID string) ([]segment.TimeRange, error) {
	rows, err := d.db.Query(
		"SELECT start_time, end_time FROM deletions WHERE session_id = ? ORDER BY seq ASC", sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []segment.TimeRange
	for rows.Next() {
		var r segment.TimeRange
		if err := rows.Scan(&r.Start, &r.End); err != nil {
			return nil, err
		}
		history = append(history, r)
	}
	return history, rows.Err()
}

// SaveTranscript replaces the stored words of a session.
func (d *Database) SaveTranscript(sessionID, language, engine string, words []transcript.Word) error {
	data, err := json.Marshal(words)
	if err != nil {
		return fmt.Errorf("marshal words: %w", err)
	}
	_, err = d.db.Exec(`
		INSERT INTO transcripts (session_id, language, engine, words, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET language = excluded.language, engine = excluded.engine,
			words = excluded.words, updated_at = excluded.updated_at`,
		sessionID, language, engine, string(data), time.Now().UTC(),
	)
	return err
}

// LoadTranscript returns the stored words, or nil when the session has not
// been transcribed.
func (d *Database) LoadTranscript(sessionID string) ([]transcript.Word, string, error) {
	var data, language string
	err := d.db.QueryRow("SELECT words, language FROM transcripts WHERE session_id = ?", sessionID).Scan(&data, &language)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	var words []transcript.Word
	if err := json.Unmarshal([]byte(data), &words); err != nil {
		return nil, "", fmt.Errorf("decode words: %w", err)
	}
	return words, language, nil
}
