package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/smarteb/smarteb/internal/consumers"
)

// handleAddReading ingests a meter reading and opens a new billing cycle.
// @Summary Submit a meter reading
// @Tags billing
// @Accept json
// @Produce json
// @Param number path string true "Consumer number"
// @Router /api/v1/consumers/add-reading/{number} [put]
func (h *handler) handleAddReading(w http.ResponseWriter, r *http.Request, number string) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.authorize(w, r, "readings", "write") || !h.scopeConsumer(w, r, number) {
		return
	}

	var req consumers.ReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.deps.Consumers.AddReading(r.Context(), number, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleBillSummary returns the full bill view, applying any due transition
// (deadline backfill, overdue fine) as a side effect.
// @Summary Get a consumer's bill summary
// @Tags billing
// @Produce json
// @Param number path string true "Consumer number"
// @Router /api/v1/consumers/bill-summary/{number} [get]
func (h *handler) handleBillSummary(w http.ResponseWriter, r *http.Request, number string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.authorize(w, r, "billing", "read") || !h.scopeConsumer(w, r, number) {
		return
	}

	summary, err := h.deps.Consumers.BillSummary(r.Context(), number, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleMarkPaid settles the outstanding bill.
// @Summary Mark a consumer's bill as paid
// @Tags billing
// @Produce json
// @Param number path string true "Consumer number"
// @Router /api/v1/consumers/mark-paid/{number} [post]
func (h *handler) handleMarkPaid(w http.ResponseWriter, r *http.Request, number string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.authorize(w, r, "billing", "write") || !h.scopeConsumer(w, r, number) {
		return
	}

	settled, err := h.deps.Consumers.MarkPaid(r.Context(), number, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settled)
}

// handleFinesRoster lists all consumers with unsettled fines.
// @Summary List consumers with outstanding fines
// @Tags billing
// @Produce json
// @Router /api/v1/consumers/fines/all [get]
func (h *handler) handleFinesRoster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.authorize(w, r, "billing", "read") {
		return
	}

	roster, err := h.deps.Consumers.FinesRoster(r.Context(), time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}
