package handlers

import (
	"encoding/json"
	"net/http"

	"netbill.id/panel/internal/middleware"
)

type SettingResponse struct {
	ID          int    `json:"id"`
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
	UpdatedAt   string `json:"updated_at"`
}

type UpdateSettingRequest struct {
	Value string `json:"value"`
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims.Role != "admin" {
		h.sendJSON(w, http.StatusForbidden, Response{Success: false, Error: "Admin access required"})
		return
	}

	rows, err := h.db.Query(`
        SELECT id, key, COALESCE(value, ''), COALESCE(description, ''), updated_at
        FROM settings ORDER BY key
    `)
	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Database error"})
		return
	}
	defer rows.Close()

	var settings []SettingResponse
	for rows.Next() {
		var s SettingResponse
		rows.Scan(&s.ID, &s.Key, &s.Value, &s.Description, &s.UpdatedAt)
		settings = append(settings, s)
	}

	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: settings})
}

func (h *Handler) GetSetting(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Key parameter required"})
		return
	}

	var value string
	err := h.db.QueryRow("SELECT COALESCE(value, '') FROM settings WHERE key = $1", key).Scan(&value)
	if err != nil {
		h.sendJSON(w, http.StatusNotFound, Response{Success: false, Error: "Setting not found"})
		return
	}

	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: map[string]string{"key": key, "value": value}})
}

func (h *Handler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims.Role != "admin" {
		h.sendJSON(w, http.StatusForbidden, Response{Success: false, Error: "Admin access required"})
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Key parameter required"})
		return
	}

	var req UpdateSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	result, err := h.db.Exec(`
        UPDATE settings SET value = $1, updated_by = $2, updated_at = NOW() WHERE key = $3
    `, req.Value, claims.UserID, key)

	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Failed to update setting"})
		return
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		h.sendJSON(w, http.StatusNotFound, Response{Success: false, Error: "Setting not found"})
		return
	}

	h.logger.Info("Setting updated", "key", key, "value", req.Value, "by", claims.UserID)
	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Setting updated successfully"})
}

// GetDashboardStats aggregates the panel's headline numbers: accounts
// by sync state, profile and customer counts, open sessions, and todays
// traffic totals.
func (h *Handler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{})

	syncStats, err := h.engine.Secrets.Stats()
	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Database error"})
		return
	}
	stats["accounts"] = syncStats

	var totalProfiles, totalCustomers int
	h.db.QueryRow("SELECT COUNT(*) FROM service_profiles").Scan(&totalProfiles)
	h.db.QueryRow("SELECT COUNT(*) FROM customers WHERE is_placeholder = false").Scan(&totalCustomers)
	stats["profiles"] = map[string]int{"total": totalProfiles}
	stats["customers"] = map[string]int{"total": totalCustomers}

	var openSessions int
	h.db.QueryRow("SELECT COUNT(*) FROM usage_logs WHERE ended_at IS NULL").Scan(&openSessions)
	stats["sessions"] = map[string]int{"open": openSessions}

	var bytesIn, bytesOut int64
	h.db.QueryRow(`
        SELECT COALESCE(SUM(bytes_in), 0), COALESCE(SUM(bytes_out), 0)
        FROM usage_logs WHERE started_at > NOW() - INTERVAL '24 hours'
    `).Scan(&bytesIn, &bytesOut)
	stats["traffic_24h"] = map[string]int64{
		"bytes_in":  bytesIn,
		"bytes_out": bytesOut,
	}

	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: stats})
}
