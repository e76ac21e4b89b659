package store

import (
	"database/sql"

	"netbill.id/panel/internal/models"
	"netbill.id/panel/pkg/database"
)

const accountColumns = `id, customer_id, username, password, service, profile_id, is_active,
       comment, installed_at, due_date, router_id, last_synced_name, last_synced_profile,
       saved_profile_id, auto_sync, created_at, updated_at`

type AccountStore struct {
	db *database.DB
}

func NewAccountStore(db *database.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) List() ([]models.SubscriberAccount, error) {
	return s.list("SELECT " + accountColumns + " FROM subscriber_accounts ORDER BY username")
}

func (s *AccountStore) ListAutoSync() ([]models.SubscriberAccount, error) {
	return s.list("SELECT " + accountColumns + " FROM subscriber_accounts WHERE auto_sync = true ORDER BY username")
}

func (s *AccountStore) list(query string, args ...interface{}) ([]models.SubscriberAccount, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.SubscriberAccount
	for rows.Next() {
		var a models.SubscriberAccount
		if err := scanAccount(rows, &a); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *AccountStore) GetByID(id int) (*models.SubscriberAccount, error) {
	return s.get("SELECT "+accountColumns+" FROM subscriber_accounts WHERE id = $1", id)
}

func (s *AccountStore) GetByUsername(username string) (*models.SubscriberAccount, error) {
	return s.get("SELECT "+accountColumns+" FROM subscriber_accounts WHERE username = $1", username)
}

func (s *AccountStore) get(query string, arg interface{}) (*models.SubscriberAccount, error) {
	var a models.SubscriberAccount
	err := scanAccount(s.db.QueryRow(query, arg), &a)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AccountStore) Create(a *models.SubscriberAccount) error {
	return s.db.QueryRow(`
        INSERT INTO subscriber_accounts
            (customer_id, username, password, service, profile_id, is_active, comment,
             installed_at, due_date, router_id, last_synced_name, last_synced_profile,
             saved_profile_id, auto_sync)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id
    `, a.CustomerID, a.Username, a.Password, a.Service, a.ProfileID, a.IsActive, a.Comment,
		a.InstalledAt, a.DueDate, a.RouterID, a.LastSyncedName, a.LastSyncedProfile,
		a.SavedProfileID, a.AutoSync).Scan(&a.ID)
}

func (s *AccountStore) Update(a *models.SubscriberAccount) error {
	_, err := s.db.Exec(`
        UPDATE subscriber_accounts SET
            customer_id = $1, username = $2, password = $3, service = $4, profile_id = $5,
            is_active = $6, comment = $7, installed_at = $8, due_date = $9, router_id = $10,
            last_synced_name = $11, last_synced_profile = $12, saved_profile_id = $13,
            auto_sync = $14, updated_at = NOW()
        WHERE id = $15
    `, a.CustomerID, a.Username, a.Password, a.Service, a.ProfileID, a.IsActive, a.Comment,
		a.InstalledAt, a.DueDate, a.RouterID, a.LastSyncedName, a.LastSyncedProfile,
		a.SavedProfileID, a.AutoSync, a.ID)
	return err
}

func (s *AccountStore) Delete(id int) error {
	_, err := s.db.Exec("DELETE FROM subscriber_accounts WHERE id = $1", id)
	return err
}

func scanAccount(row rowScanner, a *models.SubscriberAccount) error {
	return row.Scan(&a.ID, &a.CustomerID, &a.Username, &a.Password, &a.Service, &a.ProfileID,
		&a.IsActive, &a.Comment, &a.InstalledAt, &a.DueDate, &a.RouterID, &a.LastSyncedName,
		&a.LastSyncedProfile, &a.SavedProfileID, &a.AutoSync, &a.CreatedAt, &a.UpdatedAt)
}
