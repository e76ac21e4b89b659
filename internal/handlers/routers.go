package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"netbill.id/panel/internal/middleware"
	"netbill.id/panel/internal/models"
	"netbill.id/panel/internal/sync"
)

type RouterResponse struct {
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	Host            string  `json:"host"`
	Port            int     `json:"port"`
	Username        string  `json:"username"`
	UseTLS          bool    `json:"use_tls"`
	IsActive        bool    `json:"is_active"`
	LastConnectedAt *string `json:"last_connected_at"`
	CreatedAt       string  `json:"created_at"`
}

type CreateRouterRequest struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	UseTLS   bool   `json:"use_tls"`
}

type UpdateRouterRequest struct {
	Name     string `json:"name,omitempty"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	UseTLS   *bool  `json:"use_tls,omitempty"`
}

func (h *Handler) GetRouters(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query(`
        SELECT id, name, host, port, username, use_tls, is_active, last_connected_at, created_at
        FROM router_endpoints ORDER BY id
    `)
	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Database error"})
		return
	}
	defer rows.Close()

	var routers []RouterResponse
	for rows.Next() {
		var rt RouterResponse
		rows.Scan(&rt.ID, &rt.Name, &rt.Host, &rt.Port, &rt.Username, &rt.UseTLS,
			&rt.IsActive, &rt.LastConnectedAt, &rt.CreatedAt)
		routers = append(routers, rt)
	}

	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: routers})
}

func (h *Handler) GetRouter(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	var rt RouterResponse
	err := h.db.QueryRow(`
        SELECT id, name, host, port, username, use_tls, is_active, last_connected_at, created_at
        FROM router_endpoints WHERE id = $1
    `, id).Scan(&rt.ID, &rt.Name, &rt.Host, &rt.Port, &rt.Username, &rt.UseTLS,
		&rt.IsActive, &rt.LastConnectedAt, &rt.CreatedAt)

	if err != nil {
		h.sendJSON(w, http.StatusNotFound, Response{Success: false, Error: "Router not found"})
		return
	}

	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: rt})
}

func (h *Handler) CreateRouter(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)

	var req CreateRouterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	if req.Name == "" || req.Host == "" || req.Username == "" {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Name, host, and username are required"})
		return
	}

	if req.Port == 0 {
		if req.UseTLS {
			req.Port = sync.DefaultTLSPort
		} else {
			req.Port = sync.DefaultPort
		}
	}

	var routerID int
	err := h.db.QueryRow(`
        INSERT INTO router_endpoints (name, host, port, username, password, use_tls)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id
    `, req.Name, req.Host, req.Port, req.Username, req.Password, req.UseTLS).Scan(&routerID)

	if err != nil {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Failed to create router. Name may already exist."})
		return
	}

	h.logger.Info("Router endpoint created", "router_id", routerID, "host", req.Host, "by", claims.UserID)
	h.sendJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Router created successfully",
		Data:    map[string]int{"id": routerID},
	})
}

func (h *Handler) UpdateRouter(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	var req UpdateRouterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	_, err := h.db.Exec(`
        UPDATE router_endpoints SET
            name = COALESCE(NULLIF($1, ''), name),
            host = COALESCE(NULLIF($2, ''), host),
            port = CASE WHEN $3 > 0 THEN $3 ELSE port END,
            username = COALESCE(NULLIF($4, ''), username),
            password = COALESCE(NULLIF($5, ''), password),
            use_tls = COALESCE($6, use_tls),
            updated_at = NOW()
        WHERE id = $7
    `, req.Name, req.Host, req.Port, req.Username, req.Password, req.UseTLS, id)

	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Failed to update router"})
		return
	}

	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Router updated successfully"})
}

// ActivateRouter makes this endpoint the single active one; any other
// active endpoint is cleared in the same transaction.
func (h *Handler) ActivateRouter(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	claims := middleware.GetUserFromContext(r)
	if claims.Role != "admin" {
		h.sendJSON(w, http.StatusForbidden, Response{Success: false, Error: "Admin access required"})
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Database error"})
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE router_endpoints SET is_active = false WHERE is_active = true"); err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Failed to activate router"})
		return
	}

	result, err := tx.Exec("UPDATE router_endpoints SET is_active = true, updated_at = NOW() WHERE id = $1", id)
	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Failed to activate router"})
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		h.sendJSON(w, http.StatusNotFound, Response{Success: false, Error: "Router not found"})
		return
	}

	if err := tx.Commit(); err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Failed to activate router"})
		return
	}

	h.logger.Info("Router endpoint activated", "router_id", id, "by", claims.UserID)
	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Router activated successfully"})
}

func (h *Handler) DeleteRouter(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	claims := middleware.GetUserFromContext(r)
	if claims.Role != "admin" {
		h.sendJSON(w, http.StatusForbidden, Response{Success: false, Error: "Admin access required"})
		return
	}

	_, err := h.db.Exec("DELETE FROM router_endpoints WHERE id = $1", id)
	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Failed to delete router"})
		return
	}

	h.logger.Info("Router endpoint deleted", "router_id", id, "by", claims.UserID)
	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Router deleted successfully"})
}

// TestRouterConnection runs a full connect+login against the endpoint
// and reports a boolean, never an error page.
func (h *Handler) TestRouterConnection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ep, ok := h.routerByID(w, vars["id"])
	if !ok {
		return
	}

	reachable := h.engine.Manager.TestConnection(*ep)
	if reachable {
		h.db.Exec("UPDATE router_endpoints SET last_connected_at = NOW() WHERE id = $1", ep.ID)
	}

	h.sendJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]bool{"connected": reachable},
	})
}

// RouterDiagnostics returns the aggregated troubleshooting report.
func (h *Handler) RouterDiagnostics(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ep, ok := h.routerByID(w, vars["id"])
	if !ok {
		return
	}

	report := h.engine.Manager.RunDiagnostics(*ep)
	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: report})
}

func (h *Handler) routerByID(w http.ResponseWriter, id string) (*models.RouterEndpoint, bool) {
	var ep models.RouterEndpoint
	err := h.db.QueryRow(`
        SELECT id, name, host, port, username, password, use_tls, is_active,
               last_connected_at, created_at, updated_at
        FROM router_endpoints WHERE id = $1
    `, id).Scan(&ep.ID, &ep.Name, &ep.Host, &ep.Port, &ep.Username, &ep.Password, &ep.UseTLS,
		&ep.IsActive, &ep.LastConnectedAt, &ep.CreatedAt, &ep.UpdatedAt)
	if err != nil {
		h.sendJSON(w, http.StatusNotFound, Response{Success: false, Error: "Router not found"})
		return nil, false
	}
	return &ep, true
}
