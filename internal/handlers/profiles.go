package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"netbill.id/panel/internal/middleware"
	"netbill.id/panel/internal/models"
)

type ProfileResponse struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	LocalAddress  string  `json:"local_address"`
	RemoteAddress string  `json:"remote_address"`
	RateLimit     string  `json:"rate_limit"`
	Price         float64 `json:"price"`
	OnlyOne       bool    `json:"only_one"`
	Description   string  `json:"description"`
	SyncEnabled   bool    `json:"sync_enabled"`
	RouterID      *string `json:"router_id"`
	CreatedAt     string  `json:"created_at"`
}

type ProfileRequest struct {
	Name          string   `json:"name"`
	LocalAddress  string   `json:"local_address,omitempty"`
	RemoteAddress string   `json:"remote_address,omitempty"`
	RateLimit     string   `json:"rate_limit,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	OnlyOne       *bool    `json:"only_one,omitempty"`
	Description   string   `json:"description,omitempty"`
	SyncEnabled   *bool    `json:"sync_enabled,omitempty"`
}

func profileResponse(p *models.ServiceProfile) ProfileResponse {
	resp := ProfileResponse{
		ID:            p.ID,
		Name:          p.Name,
		LocalAddress:  p.LocalAddress.String,
		RemoteAddress: p.RemoteAddress.String,
		RateLimit:     p.RateLimit.String,
		Price:         p.Price,
		OnlyOne:       p.OnlyOne,
		Description:   p.Description.String,
		SyncEnabled:   p.SyncEnabled,
		CreatedAt:     p.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if p.RouterID.Valid {
		resp.RouterID = &p.RouterID.String
	}
	return resp
}

func (h *Handler) GetProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.List()
	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Database error"})
		return
	}

	responses := make([]ProfileResponse, 0, len(profiles))
	for i := range profiles {
		responses = append(responses, profileResponse(&profiles[i]))
	}
	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: responses})
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	p, err := h.profiles.GetByID(id)
	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Database error"})
		return
	}
	if p == nil {
		h.sendJSON(w, http.StatusNotFound, Response{Success: false, Error: "Profile not found"})
		return
	}

	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: profileResponse(p)})
}

func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}
	if req.Name == "" {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Name is required"})
		return
	}

	p := &models.ServiceProfile{Name: req.Name, SyncEnabled: true}
	applyProfileRequest(p, &req)
	if err := h.profiles.Create(p); err != nil {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Failed to create profile. Name may already exist."})
		return
	}

	h.logger.Info("Profile created", "profile_id", p.ID, "name", p.Name, "by", claims.UserID)
	h.sendJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Profile created successfully",
		Data:    map[string]int{"id": p.ID},
	})
}

// UpdateProfile edits the local record only. The last-synced name is
// left untouched so a rename is detected on the next push.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	p, err := h.profiles.GetByID(id)
	if err != nil || p == nil {
		h.sendJSON(w, http.StatusNotFound, Response{Success: false, Error: "Profile not found"})
		return
	}

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	if req.Name != "" {
		p.Name = req.Name
	}
	applyProfileRequest(p, &req)

	if err := h.profiles.Update(p); err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Failed to update profile"})
		return
	}

	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Profile updated successfully"})
}

func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims.Role != "admin" {
		h.sendJSON(w, http.StatusForbidden, Response{Success: false, Error: "Admin access required"})
		return
	}

	id := mux.Vars(r)["id"]

	var assigned int
	h.db.QueryRow("SELECT COUNT(*) FROM subscriber_accounts WHERE profile_id = $1", id).Scan(&assigned)
	if assigned > 0 {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Profile is assigned to subscriber accounts"})
		return
	}

	_, err := h.db.Exec("DELETE FROM service_profiles WHERE id = $1", id)
	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Failed to delete profile"})
		return
	}

	h.logger.Info("Profile deleted", "profile_id", id, "by", claims.UserID)
	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Profile deleted successfully"})
}

// ImportProfiles pulls the router's profile list into the billing store.
func (h *Handler) ImportProfiles(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.connectActive(w)
	if !ok {
		return
	}
	defer conn.Close()

	result, err := h.engine.Profiles.Import(conn, h.engine.BatchSize)
	if err != nil {
		h.sendSyncError(w, err)
		return
	}

	h.recordLog("INFO", "sync", "Profile import finished", map[string]interface{}{
		"created": result.Created, "updated": result.Updated, "skipped": result.Skipped,
		"source": result.Source,
	})
	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Profile import finished", Data: result})
}

// PushProfiles exports every sync-enabled profile to the router.
func (h *Handler) PushProfiles(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.connectActive(w)
	if !ok {
		return
	}
	defer conn.Close()

	result, err := h.engine.Profiles.PushAll(conn)
	if err != nil {
		h.sendSyncError(w, err)
		return
	}

	h.recordLog("INFO", "sync", "Profile push finished", map[string]interface{}{
		"created": result.Created, "updated": result.Updated, "errors": len(result.Errors),
	})
	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Profile push finished", Data: result})
}

// PushProfile exports a single profile.
func (h *Handler) PushProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	p, err := h.profiles.GetByID(id)
	if err != nil || p == nil {
		h.sendJSON(w, http.StatusNotFound, Response{Success: false, Error: "Profile not found"})
		return
	}

	conn, ok := h.connectActive(w)
	if !ok {
		return
	}
	defer conn.Close()

	if err := h.engine.Profiles.Push(conn, p); err != nil {
		h.sendSyncError(w, err)
		return
	}

	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Profile pushed successfully"})
}

func applyProfileRequest(p *models.ServiceProfile, req *ProfileRequest) {
	if req.LocalAddress != "" {
		p.LocalAddress = nullString(req.LocalAddress)
	}
	if req.RemoteAddress != "" {
		p.RemoteAddress = nullString(req.RemoteAddress)
	}
	if req.RateLimit != "" {
		p.RateLimit = nullString(req.RateLimit)
	}
	if req.Description != "" {
		p.Description = nullString(req.Description)
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.OnlyOne != nil {
		p.OnlyOne = *req.OnlyOne
	}
	if req.SyncEnabled != nil {
		p.SyncEnabled = *req.SyncEnabled
	}
}
