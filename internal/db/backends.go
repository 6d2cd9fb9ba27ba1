package db

import "github.com/video-stream/transcut/internal/db/models"

const backendColumns = "id, name, backend_type, url, api_key, model, enabled, priority, created_at"

func scanBackend(row interface{ Scan(...any) error }) (*models.SpeechBackend, error) {
	var b models.SpeechBackend
	var enabled int
	if err := row.Scan(&b.ID, &b.Name, &b.BackendType, &b.URL, &b.APIKey, &b.Model, &enabled, &b.Priority, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.Enabled = enabled != 0
	return &b, nil
}

// ListSpeechBackends returns all backends ordered by priority
func (d *Database) ListSpeechBackends() ([]models.SpeechBackend, error) {
	rows, err := d.db.Query("SELECT " + backendColumns + " FROM speech_backends ORDER BY priority ASC, id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	backends := []models.SpeechBackend{}
	for rows.Next() {
		b, err := scanBackend(rows)
		if err != nil {
			return nil, err
		}
		backends = append(backends, *b)
	}
	return backends, rows.Err()
}

func (d *Database) GetSpeechBackend(id int64) (*models.SpeechBackend, error) {
	b, err := scanBackend(d.db.QueryRow("SELECT "+backendColumns+" FROM speech_backends WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (d *Database) CreateSpeechBackend(b *models.SpeechBackend) (int64, error) {
	result, err := d.db.Exec(
		"INSERT INTO speech_backends (name, backend_type, url, api_key, model, enabled, priority) VALUES (?, ?, ?, ?, ?, ?, ?)",
		b.Name, b.BackendType, b.URL, b.APIKey, b.Model, boolInt(b.Enabled), b.Priority,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// UpdateSpeechBackend modifies an existing backend. An empty APIKey keeps the
// stored key.
func (d *Database) UpdateSpeechBackend(b *models.SpeechBackend) error {
	res, err := d.db.Exec(`
		UPDATE speech_backends SET name = ?, backend_type = ?, url = ?,
			api_key = CASE WHEN ? = '' THEN api_key ELSE ? END,
			model = ?, enabled = ?, priority = ?
		WHERE id = ?`,
		b.Name, b.BackendType, b.URL, b.APIKey, b.APIKey, b.Model, boolInt(b.Enabled), b.Priority, b.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *Database) DeleteSpeechBackend(id int64) error {
	_, err := d.db.Exec("DELETE FROM speech_backends WHERE id = ?", id)
	return err
}

// SeedSpeechBackends inserts defaults on first run only.
func (d *Database) SeedSpeechBackends(defaults []models.SpeechBackend) error {
	var count int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM speech_backends").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for i := range defaults {
		if _, err := d.CreateSpeechBackend(&defaults[i]); err != nil {
			return err
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
