package store

import (
	"time"

	"netbill.id/panel/internal/models"
	"netbill.id/panel/pkg/database"
)

type UsageStore struct {
	db *database.DB
}

func NewUsageStore(db *database.DB) *UsageStore {
	return &UsageStore{db: db}
}

func (s *UsageStore) OpenLogs() ([]models.UsageLog, error) {
	rows, err := s.db.Query(`
        SELECT id, account_id, username, address, caller_id, started_at, ended_at,
               bytes_in, bytes_out, updated_at
        FROM usage_logs WHERE ended_at IS NULL ORDER BY started_at
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.UsageLog
	for rows.Next() {
		var l models.UsageLog
		if err := rows.Scan(&l.ID, &l.AccountID, &l.Username, &l.Address, &l.CallerID,
			&l.StartedAt, &l.EndedAt, &l.BytesIn, &l.BytesOut, &l.UpdatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *UsageStore) Open(l *models.UsageLog) error {
	return s.db.QueryRow(`
        INSERT INTO usage_logs (account_id, username, address, caller_id, started_at, bytes_in, bytes_out)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id
    `, l.AccountID, l.Username, l.Address, l.CallerID, l.StartedAt, l.BytesIn, l.BytesOut).Scan(&l.ID)
}

func (s *UsageStore) UpdateCounters(id int64, bytesIn, bytesOut int64, address, callerID string) error {
	_, err := s.db.Exec(`
        UPDATE usage_logs SET
            bytes_in = $1, bytes_out = $2,
            address = COALESCE(NULLIF($3, ''), address),
            caller_id = COALESCE(NULLIF($4, ''), caller_id),
            updated_at = NOW()
        WHERE id = $5
    `, bytesIn, bytesOut, address, callerID, id)
	return err
}

func (s *UsageStore) CloseLog(id int64, at time.Time) error {
	_, err := s.db.Exec("UPDATE usage_logs SET ended_at = $1, updated_at = NOW() WHERE id = $2", at, id)
	return err
}
