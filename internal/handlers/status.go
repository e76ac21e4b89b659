package handlers

import (
	"errors"
	"net/http"

	"netbill.id/panel/internal/sync"
)

// GetRouterStatus serves the active router's resource snapshot through
// the status cache. Live query failures degrade to the last-known data
// instead of erroring, so the dashboard stays up while the router is
// down.
func (h *Handler) GetRouterStatus(w http.ResponseWriter, r *http.Request) {
	status := h.engine.Cache.Get("router_status", h.engine.CacheTTL, func() (map[string]interface{}, error) {
		return h.loadRouterData("/system/resource/print")
	})
	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: status})
}

// GetRouterHealth serves identity plus session count, cached the same
// way as the resource snapshot.
func (h *Handler) GetRouterHealth(w http.ResponseWriter, r *http.Request) {
	status := h.engine.Cache.Get("router_health", h.engine.CacheTTL, h.loadRouterHealth)
	h.sendJSON(w, http.StatusOK, Response{Success: true, Data: status})
}

// loadRouterData connects to the active endpoint and returns the first
// reply sentence of the given command as a generic map.
func (h *Handler) loadRouterData(command string) (map[string]interface{}, error) {
	conn, err := h.connectForStatus()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	reply, err := conn.Run(command)
	if err != nil {
		return nil, sync.Classify(command, err)
	}
	if len(reply.Re) == 0 {
		return nil, errors.New("empty reply from " + command)
	}

	data := make(map[string]interface{}, len(reply.Re[0].Map))
	for k, v := range reply.Re[0].Map {
		data[k] = v
	}
	data["available"] = true
	return data, nil
}

func (h *Handler) loadRouterHealth() (map[string]interface{}, error) {
	conn, err := h.connectForStatus()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	data := map[string]interface{}{"available": true}

	identity, err := conn.Run("/system/identity/print")
	if err != nil {
		return nil, sync.Classify("/system/identity/print", err)
	}
	if len(identity.Re) > 0 {
		data["identity"] = identity.Re[0].Map["name"]
	}

	sessions, err := h.engine.Monitor.List(conn)
	if err != nil {
		return nil, err
	}
	data["active_sessions"] = len(sessions)

	return data, nil
}

// connectForStatus is the cache-loader variant of connectActive: it
// returns errors instead of writing them, so a failure degrades the
// cached value rather than aborting the response.
func (h *Handler) connectForStatus() (sync.Runner, error) {
	ep, err := h.activeEndpoint()
	if err != nil {
		return nil, err
	}
	if ep == nil {
		return nil, errors.New("no active router endpoint configured")
	}
	return h.engine.Manager.Connect(*ep)
}
