package store

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"netbill.id/panel/pkg/database"
)

type CustomerStore struct {
	db *database.DB
}

func NewCustomerStore(db *database.DB) *CustomerStore {
	return &CustomerStore{db: db}
}

// EnsurePlaceholder returns the placeholder customer owning an imported
// account, creating one if missing. Imported secrets have no billing
// owner yet, and accounts cannot exist without one.
func (s *CustomerStore) EnsurePlaceholder(username string) (int, error) {
	var id int
	err := s.db.QueryRow(
		"SELECT id FROM customers WHERE full_name = $1 AND is_placeholder = true",
		username,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	code := "IMP-" + strings.ToUpper(uuid.NewString()[:8])
	err = s.db.QueryRow(
		"INSERT INTO customers (code, full_name, is_placeholder) VALUES ($1, $2, true) RETURNING id",
		code, username,
	).Scan(&id)
	return id, err
}
