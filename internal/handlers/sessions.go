package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"netbill.id/panel/internal/middleware"
	"netbill.id/panel/internal/sync"
)

// GetSessions lists live PPP sessions from the active router.
func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.connectActive(w)
	if !ok {
		return
	}
	defer conn.Close()

	sessions, err := h.engine.Monitor.List(conn)
	if err != nil {
		h.sendSyncError(w, err)
		return
	}

	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: sessions})
}

// DisconnectSession kicks the named session. The outcome is always a
// 200 with the tri-state result; only connection setup itself errors.
func (h *Handler) DisconnectSession(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	claims := middleware.GetUserFromContext(r)

	conn, ok := h.connectActive(w)
	if !ok {
		return
	}
	defer conn.Close()

	result := h.engine.Monitor.Disconnect(conn, username)

	h.logger.Info("Session disconnect requested", "username", username,
		"outcome", string(result.Outcome), "by", claims.UserID)
	h.recordLog("INFO", "session", "Session disconnect", map[string]interface{}{
		"username": username, "outcome": string(result.Outcome), "reason": result.Reason,
	})

	message := "Session disconnected"
	switch result.Outcome {
	case sync.OutcomeSoft:
		message = "Disconnect sent, confirmation timed out"
	case sync.OutcomeFailed:
		message = "Disconnect failed"
	}

	h.sendJSON(w, http.StatusOK, Response{
		Success: result.Outcome != sync.OutcomeFailed,
		Message: message,
		Data:    result,
	})
}

// ReconcileSessions aligns usage logs with the live session list.
func (h *Handler) ReconcileSessions(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.connectActive(w)
	if !ok {
		return
	}
	defer conn.Close()

	result, err := h.engine.Monitor.Reconcile(conn)
	if err != nil {
		h.sendSyncError(w, err)
		return
	}

	h.recordLog("INFO", "session", "Session reconcile finished", map[string]interface{}{
		"opened": result.Created, "updated": result.Updated, "skipped": result.Skipped,
	})
	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Session reconcile finished", Data: result})
}
