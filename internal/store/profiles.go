// Package store implements the sync engine's store interfaces on the
// billing database.
package store

import (
	"database/sql"

	"netbill.id/panel/internal/models"
	"netbill.id/panel/pkg/database"
)

const profileColumns = `id, name, local_address, remote_address, rate_limit, price, only_one,
       description, sync_enabled, router_id, last_synced_name, created_at, updated_at`

type ProfileStore struct {
	db *database.DB
}

func NewProfileStore(db *database.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) List() ([]models.ServiceProfile, error) {
	return s.list("SELECT " + profileColumns + " FROM service_profiles ORDER BY name")
}

func (s *ProfileStore) ListSyncEnabled() ([]models.ServiceProfile, error) {
	return s.list("SELECT " + profileColumns + " FROM service_profiles WHERE sync_enabled = true ORDER BY name")
}

func (s *ProfileStore) list(query string, args ...interface{}) ([]models.ServiceProfile, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []models.ServiceProfile
	for rows.Next() {
		var p models.ServiceProfile
		if err := scanProfile(rows, &p); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *ProfileStore) GetByID(id int) (*models.ServiceProfile, error) {
	return s.get("SELECT "+profileColumns+" FROM service_profiles WHERE id = $1", id)
}

func (s *ProfileStore) GetByName(name string) (*models.ServiceProfile, error) {
	return s.get("SELECT "+profileColumns+" FROM service_profiles WHERE name = $1", name)
}

func (s *ProfileStore) get(query string, arg interface{}) (*models.ServiceProfile, error) {
	var p models.ServiceProfile
	err := scanProfile(s.db.QueryRow(query, arg), &p)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProfileStore) Create(p *models.ServiceProfile) error {
	return s.db.QueryRow(`
        INSERT INTO service_profiles
            (name, local_address, remote_address, rate_limit, price, only_one,
             description, sync_enabled, router_id, last_synced_name)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id
    `, p.Name, p.LocalAddress, p.RemoteAddress, p.RateLimit, p.Price, p.OnlyOne,
		p.Description, p.SyncEnabled, p.RouterID, p.LastSyncedName).Scan(&p.ID)
}

func (s *ProfileStore) Update(p *models.ServiceProfile) error {
	_, err := s.db.Exec(`
        UPDATE service_profiles SET
            name = $1, local_address = $2, remote_address = $3, rate_limit = $4,
            price = $5, only_one = $6, description = $7, sync_enabled = $8,
            router_id = $9, last_synced_name = $10, updated_at = NOW()
        WHERE id = $11
    `, p.Name, p.LocalAddress, p.RemoteAddress, p.RateLimit, p.Price, p.OnlyOne,
		p.Description, p.SyncEnabled, p.RouterID, p.LastSyncedName, p.ID)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner, p *models.ServiceProfile) error {
	return row.Scan(&p.ID, &p.Name, &p.LocalAddress, &p.RemoteAddress, &p.RateLimit,
		&p.Price, &p.OnlyOne, &p.Description, &p.SyncEnabled, &p.RouterID,
		&p.LastSyncedName, &p.CreatedAt, &p.UpdatedAt)
}
