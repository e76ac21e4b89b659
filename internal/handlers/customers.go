package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"netbill.id/panel/internal/middleware"
)

type CustomerResponse struct {
	ID            int    `json:"id"`
	Code          string `json:"code"`
	FullName      string `json:"full_name"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	IsPlaceholder bool   `json:"is_placeholder"`
	AccountCount  int    `json:"account_count"`
	CreatedAt     string `json:"created_at"`
}

type CustomerRequest struct {
	Code     string `json:"code,omitempty"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

func (h *Handler) GetCustomers(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query(`
        SELECT c.id, c.code, c.full_name, COALESCE(c.phone, ''), COALESCE(c.address, ''),
               c.is_placeholder, COUNT(a.id), c.created_at
        FROM customers c
        LEFT JOIN subscriber_accounts a ON a.customer_id = c.id
        GROUP BY c.id ORDER BY c.id
    `)
	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Database error"})
		return
	}
	defer rows.Close()

	var customers []CustomerResponse
	for rows.Next() {
		var c CustomerResponse
		rows.Scan(&c.ID, &c.Code, &c.FullName, &c.Phone, &c.Address,
			&c.IsPlaceholder, &c.AccountCount, &c.CreatedAt)
		customers = append(customers, c)
	}

	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: customers})
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var c CustomerResponse
	err := h.db.QueryRow(`
        SELECT c.id, c.code, c.full_name, COALESCE(c.phone, ''), COALESCE(c.address, ''),
               c.is_placeholder, COUNT(a.id), c.created_at
        FROM customers c
        LEFT JOIN subscriber_accounts a ON a.customer_id = c.id
        WHERE c.id = $1 GROUP BY c.id
    `, id).Scan(&c.ID, &c.Code, &c.FullName, &c.Phone, &c.Address,
		&c.IsPlaceholder, &c.AccountCount, &c.CreatedAt)

	if err != nil {
		h.sendJSON(w, http.StatusNotFound, Response{Success: false, Error: "Customer not found"})
		return
	}

	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: c})
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)

	var req CustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	if req.FullName == "" {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Full name is required"})
		return
	}
	if req.Code == "" {
		req.Code = "CUS-" + strings.ToUpper(uuid.NewString()[:8])
	}

	var customerID int
	err := h.db.QueryRow(`
        INSERT INTO customers (code, full_name, phone, address)
        VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, '')) RETURNING id
    `, req.Code, req.FullName, req.Phone, req.Address).Scan(&customerID)

	if err != nil {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Failed to create customer. Code may already exist."})
		return
	}

	h.logger.Info("Customer created", "customer_id", customerID, "code", req.Code, "by", claims.UserID)
	h.sendJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Customer created successfully",
		Data:    map[string]int{"id": customerID},
	})
}

// UpdateCustomer also clears the placeholder flag: editing an imported
// stub promotes it to a real customer record.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req CustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	result, err := h.db.Exec(`
        UPDATE customers SET
            full_name = COALESCE(NULLIF($1, ''), full_name),
            phone = COALESCE(NULLIF($2, ''), phone),
            address = COALESCE(NULLIF($3, ''), address),
            is_placeholder = false,
            updated_at = NOW()
        WHERE id = $4
    `, req.FullName, req.Phone, req.Address, id)

	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Failed to update customer"})
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		h.sendJSON(w, http.StatusNotFound, Response{Success: false, Error: "Customer not found"})
		return
	}

	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Customer updated successfully"})
}

func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	claims := middleware.GetUserFromContext(r)
	if claims.Role != "admin" {
		h.sendJSON(w, http.StatusForbidden, Response{Success: false, Error: "Admin access required"})
		return
	}

	var accounts int
	h.db.QueryRow("SELECT COUNT(*) FROM subscriber_accounts WHERE customer_id = $1", id).Scan(&accounts)
	if accounts > 0 {
		h.sendJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Customer has subscriber accounts"})
		return
	}

	_, err := h.db.Exec("DELETE FROM customers WHERE id = $1", id)
	if err != nil {
		h.sendJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Failed to delete customer"})
		return
	}

	h.logger.Info("Customer deleted", "customer_id", id, "by", claims.UserID)
	h.sendJSON(w, http.StatusOK, Response{Success: true, Message: "Customer deleted successfully"})
}
