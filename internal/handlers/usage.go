package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

type UsageLogResponse struct {
	ID        int     `json:"id"`
	AccountID int     `json:"account_id"`
	Username  string  `json:"username"`
	Address   string  `json:"address"`
	CallerID  string  `json:"caller_id"`
	StartedAt string  `json:"started_at"`
	EndedAt   *string `json:"ended_at"`
	BytesIn   int64   `json:"bytes_in"`
	BytesOut  int64   `json:"bytes_out"`
}

// GetUsageLogs lists session history, newest first, optionally filtered
// to one account.
func (h *Handler) GetUsageLogs(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	limit := 100
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}

	query := `
        SELECT id, account_id, username, COALESCE(address, ''), COALESCE(caller_id, ''),
               started_at, ended_at, bytes_in, bytes_out
        FROM usage_logs
    `
	args := []interface{}{}
	if accountID != "" {
		query += " WHERE account_id = $1 ORDER BY started_at DESC LIMIT $2"
		args = append(args, accountID, limit)
	} else {
		query += " ORDER BY started_at DESC LIMIT $1"
		args = append(args, limit)
	}

	rows, err := h.db.Query(query, args...)
	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Database error"})
		return
	}
	defer rows.Close()

	var logs []UsageLogResponse
	for rows.Next() {
		var log UsageLogResponse
		rows.Scan(&log.ID, &log.AccountID, &log.Username, &log.Address, &log.CallerID,
			&log.StartedAt, &log.EndedAt, &log.BytesIn, &log.BytesOut)
		logs = append(logs, log)
	}

	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: logs})
}

// GetAccountUsage aggregates an account's traffic over the last 30 days.
func (h *Handler) GetAccountUsage(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["id"]

	row := h.db.QueryRow(`
        SELECT
            COALESCE(SUM(bytes_in), 0) as total_in,
            COALESCE(SUM(bytes_out), 0) as total_out,
            COUNT(*) as session_count,
            COUNT(*) FILTER (WHERE ended_at IS NULL) as open_sessions
        FROM usage_logs
        WHERE account_id = $1 AND started_at > NOW() - INTERVAL '30 days'
    `, accountID)

	var stats struct {
		TotalBytesIn  int64 `json:"total_bytes_in"`
		TotalBytesOut int64 `json:"total_bytes_out"`
		SessionCount  int   `json:"session_count"`
		OpenSessions  int   `json:"open_sessions"`
	}

	if err := row.Scan(&stats.TotalBytesIn, &stats.TotalBytesOut, &stats.SessionCount, &stats.OpenSessions); err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Database error"})
		return
	}

	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: stats})
}
