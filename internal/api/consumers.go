package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/smarteb/smarteb/internal/auth"
	"github.com/smarteb/smarteb/internal/storage"
)

// authorize enforces obj/act for the request's token. With auth disabled
// every request passes.
func (h *handler) authorize(w http.ResponseWriter, r *http.Request, obj, act string) bool {
	if h.deps.Auth == nil {
		return true
	}
	token, ok := r.Context().Value(auth.TokenContextKey).(*storage.Token)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return false
	}
	allowed, err := h.deps.Auth.Enforce(token.UserID, obj, act)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authorization check failed")
		return false
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

// scopeConsumer rejects consumer-role requests that target someone else's
// connection.
func (h *handler) scopeConsumer(w http.ResponseWriter, r *http.Request, number string) bool {
	if h.deps.Auth == nil {
		return true
	}
	if !auth.CanAccessConsumer(r.Context(), number) {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

// handleConsumers serves the collection: list and create.
// @Summary List consumers / create a consumer
// @Tags consumers
// @Produce json
// @Router /api/v1/consumers [get]
// @Router /api/v1/consumers [post]
func (h *handler) handleConsumers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !h.authorize(w, r, "consumers", "read") {
			return
		}
		list, err := h.deps.Consumers.List(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if list == nil {
			list = []storage.Consumer{}
		}
		writeJSON(w, http.StatusOK, list)

	case http.MethodPost:
		if !h.authorize(w, r, "consumers", "write") {
			return
		}
		var in storage.Consumer
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		created, err := h.deps.Consumers.Create(r.Context(), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleConsumerSubtree dispatches everything under /api/v1/consumers/:
// billing sub-resources first, then the single-consumer CRUD.
func (h *handler) handleConsumerSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/consumers/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case parts[0] == "fines" && len(parts) == 2 && parts[1] == "all":
		h.handleFinesRoster(w, r)
	case parts[0] == "add-reading" && len(parts) == 2:
		h.handleAddReading(w, r, parts[1])
	case parts[0] == "bill-summary" && len(parts) == 2:
		h.handleBillSummary(w, r, parts[1])
	case parts[0] == "mark-paid" && len(parts) == 2:
		h.handleMarkPaid(w, r, parts[1])
	case parts[0] == "validate-meter-image" && len(parts) == 1:
		h.handleValidateMeterImage(w, r)
	case len(parts) == 1 && parts[0] != "":
		h.handleConsumer(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// handleConsumer serves one consumer record.
// @Summary Get, update or delete a consumer
// @Tags consumers
// @Produce json
// @Param number path string true "Consumer number"
// @Router /api/v1/consumers/{number} [get]
// @Router /api/v1/consumers/{number} [put]
// @Router /api/v1/consumers/{number} [delete]
func (h *handler) handleConsumer(w http.ResponseWriter, r *http.Request, number string) {
	switch r.Method {
	case http.MethodGet:
		if !h.authorize(w, r, "consumers", "read") || !h.scopeConsumer(w, r, number) {
			return
		}
		c, err := h.deps.Consumers.Get(r.Context(), number)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)

	case http.MethodPut:
		if !h.authorize(w, r, "consumers", "write") {
			return
		}
		var in storage.Consumer
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		updated, err := h.deps.Consumers.Update(r.Context(), number, in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if !h.authorize(w, r, "consumers", "write") {
			return
		}
		if err := h.deps.Consumers.Delete(r.Context(), number); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
