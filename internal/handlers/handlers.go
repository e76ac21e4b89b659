package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"netbill.id/panel/internal/models"
	"netbill.id/panel/internal/sync"
	"netbill.id/panel/pkg/database"
	"netbill.id/panel/pkg/logger"
)

type Handler struct {
	db       *database.DB
	logger   *logger.Logger
	engine   *sync.Engine
	accounts sync.AccountStore
	profiles sync.ProfileStore
}

func New(db *database.DB, l *logger.Logger, engine *sync.Engine,
	accounts sync.AccountStore, profiles sync.ProfileStore) *Handler {
	return &Handler{db: db, logger: l, engine: engine, accounts: accounts, profiles: profiles}
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (h *Handler) sendJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// sendSyncError maps the engine's error taxonomy onto status codes and
// attaches the operator guidance for the failure class.
func (h *Handler) sendSyncError(w http.ResponseWriter, err error) {
	msg := err.Error()
	if advice := sync.Advice(err); advice != "" {
		msg += "; " + advice
	}

	status := http.StatusInternalServerError
	switch sync.KindOf(err) {
	case sync.KindNotFound:
		status = http.StatusNotFound
	case sync.KindValidation:
		status = http.StatusBadRequest
	case sync.KindNetwork, sync.KindProtocol, sync.KindAuth:
		status = http.StatusBadGateway
	}

	h.sendJSON(w, status, Response{Success: false, Error: msg})
}

// activeEndpoint resolves the single active router record. The active
// endpoint is persisted configuration, not engine state; it is read per
// request and passed into the engine explicitly.
func (h *Handler) activeEndpoint() (*models.RouterEndpoint, error) {
	var ep models.RouterEndpoint
	err := h.db.QueryRow(`
        SELECT id, name, host, port, username, password, use_tls, is_active,
               last_connected_at, created_at, updated_at
        FROM router_endpoints WHERE is_active = true LIMIT 1
    `).Scan(&ep.ID, &ep.Name, &ep.Host, &ep.Port, &ep.Username, &ep.Password, &ep.UseTLS,
		&ep.IsActive, &ep.LastConnectedAt, &ep.CreatedAt, &ep.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ep, nil
}

// connectActive opens one session against the active endpoint. Callers
// must Close it when the operation finishes.
func (h *Handler) connectActive(w http.ResponseWriter) (sync.Runner, bool) {
	ep, err := h.activeEndpoint()
	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Database error"})
		return nil, false
	}
	if ep == nil {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "No active router endpoint configured"})
		return nil, false
	}

	conn, err := h.engine.Manager.Connect(*ep)
	if err != nil {
		h.sendSyncError(w, err)
		return nil, false
	}

	h.db.Exec("UPDATE router_endpoints SET last_connected_at = NOW() WHERE id = $1", ep.ID)
	return conn, true
}

// recordLog writes a sync/session event into the system log table.
func (h *Handler) recordLog(level, source, message string, metadata map[string]interface{}) {
	payload, _ := json.Marshal(metadata)
	h.db.Exec(
		"INSERT INTO system_logs (level, source, message, metadata) VALUES ($1, $2, $3, $4)",
		level, source, message, payload,
	)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var dbStatus string
	if err := h.db.Ping(); err != nil {
		dbStatus = "disconnected"
	} else {
		dbStatus = "connected"
	}

	h.sendJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Billing panel API is running",
		Data: map[string]interface{}{
			"version":   "1.0.0",
			"timestamp": time.Now().Format(time.RFC3339),
			"database":  dbStatus,
		},
	})
}
