package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"netbill.id/panel/internal/middleware"
	"netbill.id/panel/internal/models"
)

type AccountResponse struct {
	ID         int     `json:"id"`
	CustomerID int     `json:"customer_id"`
	Username   string  `json:"username"`
	Service    string  `json:"service"`
	ProfileID  int     `json:"profile_id"`
	Profile    string  `json:"profile"`
	IsActive   bool    `json:"is_active"`
	Comment    string  `json:"comment,omitempty"`
	RouterID   *string `json:"router_id"`
	SyncState  string  `json:"sync_state"`
	AutoSync   bool    `json:"auto_sync"`
	CreatedAt  string  `json:"created_at"`
}

type CreateAccountRequest struct {
	CustomerID int    `json:"customer_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Service    string `json:"service"`
	ProfileID  int    `json:"profile_id"`
	Comment    string `json:"comment,omitempty"`
	AutoSync   *bool  `json:"auto_sync,omitempty"`
}

type UpdateAccountRequest struct {
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	Service   string `json:"service,omitempty"`
	ProfileID int    `json:"profile_id,omitempty"`
	Comment   string `json:"comment,omitempty"`
	AutoSync  *bool  `json:"auto_sync,omitempty"`
}

var accountServices = map[string]bool{
	"pppoe": true,
	"pptp":  true,
	"l2tp":  true,
	"sstp":  true,
}

func (h *Handler) accountResponse(a *models.SubscriberAccount) AccountResponse {
	profileName := ""
	if p, err := h.profiles.GetByID(a.ProfileID); err == nil && p != nil {
		profileName = p.Name
	}

	resp := AccountResponse{
		ID:         a.ID,
		CustomerID: a.CustomerID,
		Username:   a.Username,
		Service:    a.Service,
		ProfileID:  a.ProfileID,
		Profile:    profileName,
		IsActive:   a.IsActive,
		Comment:    a.Comment.String,
		SyncState:  a.SyncState(profileName),
		AutoSync:   a.AutoSync,
		CreatedAt:  a.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if a.RouterID.Valid {
		resp.RouterID = &a.RouterID.String
	}
	return resp
}

func (h *Handler) GetAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List()
	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Database error"})
		return
	}

	responses := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		responses = append(responses, h.accountResponse(&accounts[i]))
	}
	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: responses})
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	a, err := h.accounts.GetByID(id)
	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Database error"})
		return
	}
	if a == nil {
		h.sendJSON(w, http.StatusNotFound, Response{Success: false, Error: "Account not found"})
		return
	}

	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: h.accountResponse(a)})
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)

	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	if req.Username == "" || req.Password == "" || req.CustomerID == 0 || req.ProfileID == 0 {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Username, password, customer_id, and profile_id are required"})
		return
	}
	if req.Service == "" {
		req.Service = "pppoe"
	}
	if !accountServices[req.Service] {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid service type"})
		return
	}

	autoSync := true
	if req.AutoSync != nil {
		autoSync = *req.AutoSync
	}

	a := &models.SubscriberAccount{
		CustomerID: req.CustomerID,
		Username:   req.Username,
		Password:   req.Password,
		Service:    req.Service,
		ProfileID:  req.ProfileID,
		IsActive:   true,
		Comment:    nullString(req.Comment),
		AutoSync:   autoSync,
	}
	if err := h.accounts.Create(a); err != nil {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Failed to create account. Username may already exist."})
		return
	}

	h.logger.Info("Subscriber account created", "account_id", a.ID, "username", a.Username, "by", claims.UserID)
	h.sendJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Account created successfully",
		Data:    map[string]int{"id": a.ID},
	})
}

// UpdateAccount edits the local record. Last-synced fields stay as they
// are, so a username or profile change is picked up as a rename on the
// next push.
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	a, err := h.accounts.GetByID(id)
	if err != nil || a == nil {
		h.sendJSON(w, http.StatusNotFound, Response{Success: false, Error: "Account not found"})
		return
	}

	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	if req.Username != "" {
		a.Username = req.Username
	}
	if req.Password != "" {
		a.Password = req.Password
	}
	if req.Service != "" {
		if !accountServices[req.Service] {
			h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid service type"})
			return
		}
		a.Service = req.Service
	}
	if req.ProfileID != 0 {
		a.ProfileID = req.ProfileID
	}
	if req.Comment != "" {
		a.Comment = nullString(req.Comment)
	}
	if req.AutoSync != nil {
		a.AutoSync = *req.AutoSync
	}

	if err := h.accounts.Update(a); err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Failed to update account"})
		return
	}

	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Account updated successfully"})
}

// ImportAccounts pulls the router's secret list into the billing store.
func (h *Handler) ImportAccounts(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.connectActive(w)
	if !ok {
		return
	}
	defer conn.Close()

	result, err := h.engine.Secrets.Import(conn, h.engine.BatchSize)
	if err != nil {
		h.sendSyncError(w, err)
		return
	}

	h.recordLog("INFO", "sync", "Account import finished", map[string]interface{}{
		"created": result.Created, "updated": result.Updated, "skipped": result.Skipped,
		"source": result.Source,
	})
	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Account import finished", Data: result})
}

// PushAccounts exports every auto-sync account to the router.
func (h *Handler) PushAccounts(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.connectActive(w)
	if !ok {
		return
	}
	defer conn.Close()

	result, err := h.engine.Secrets.PushAll(conn)
	if err != nil {
		h.sendSyncError(w, err)
		return
	}

	h.recordLog("INFO", "sync", "Account push finished", map[string]interface{}{
		"created": result.Created, "updated": result.Updated, "errors": len(result.Errors),
	})
	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Account push finished", Data: result})
}

// PushAccount exports a single account.
func (h *Handler) PushAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	a, err := h.accounts.GetByID(id)
	if err != nil || a == nil {
		h.sendJSON(w, http.StatusNotFound, Response{Success: false, Error: "Account not found"})
		return
	}

	conn, ok := h.connectActive(w)
	if !ok {
		return
	}
	defer conn.Close()

	if err := h.engine.Secrets.Push(conn, a); err != nil {
		h.sendSyncError(w, err)
		return
	}

	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Account pushed successfully"})
}

// DisableAccount suspends the subscriber: profile swapped to the
// blocking profile, previous profile remembered, live session kicked.
func (h *Handler) DisableAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	claims := middleware.GetUserFromContext(r)

	a, err := h.accounts.GetByID(id)
	if err != nil || a == nil {
		h.sendJSON(w, http.StatusNotFound, Response{Success: false, Error: "Account not found"})
		return
	}

	conn, ok := h.connectActive(w)
	if !ok {
		return
	}
	defer conn.Close()

	if err := h.engine.Secrets.Disable(conn, a); err != nil {
		h.sendSyncError(w, err)
		return
	}

	h.logger.Info("Account suspended", "username", a.Username, "by", claims.UserID)
	h.recordLog("INFO", "sync", "Account suspended", map[string]interface{}{"username": a.Username})
	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Account suspended successfully"})
}

// EnableAccount restores the exact profile held before suspension.
func (h *Handler) EnableAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	claims := middleware.GetUserFromContext(r)

	a, err := h.accounts.GetByID(id)
	if err != nil || a == nil {
		h.sendJSON(w, http.StatusNotFound, Response{Success: false, Error: "Account not found"})
		return
	}

	conn, ok := h.connectActive(w)
	if !ok {
		return
	}
	defer conn.Close()

	if err := h.engine.Secrets.Enable(conn, a); err != nil {
		h.sendSyncError(w, err)
		return
	}

	h.logger.Info("Account restored", "username", a.Username, "by", claims.UserID)
	h.recordLog("INFO", "sync", "Account restored", map[string]interface{}{"username": a.Username})
	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Account restored successfully"})
}

// DeleteAccount removes the secret remotely first, then locally. A
// failed remote delete blocks the local one unless force=true.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	claims := middleware.GetUserFromContext(r)
	if claims.Role != "admin" {
		h.sendJSON(w, http.StatusForbidden, Response{Success: false, Error: "Admin access required"})
		return
	}

	a, err := h.accounts.GetByID(id)
	if err != nil || a == nil {
		h.sendJSON(w, http.StatusNotFound, Response{Success: false, Error: "Account not found"})
		return
	}

	force := r.URL.Query().Get("force") == "true"

	// Never-pushed accounts have nothing to remove remotely.
	if !a.RouterID.Valid {
		if err := h.accounts.Delete(a.ID); err != nil {
			h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Failed to delete account"})
			return
		}
		h.logger.Info("Account deleted", "username", a.Username, "by", claims.UserID)
		h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Account deleted successfully"})
		return
	}

	conn, ok := h.connectActive(w)
	if !ok {
		return
	}
	defer conn.Close()

	if err := h.engine.Secrets.Delete(conn, a, force); err != nil {
		h.sendSyncError(w, err)
		return
	}

	h.logger.Info("Account deleted", "username", a.Username, "forced", force, "by", claims.UserID)
	h.recordLog("INFO", "sync", "Account deleted", map[string]interface{}{
		"username": a.Username, "forced": force,
	})
	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Account deleted successfully"})
}

// GetSyncStats summarizes accounts by sync state.
func (h *Handler) GetSyncStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Secrets.Stats()
	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Database error"})
		return
	}
	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: stats})
}
