package httpapi

import (
	"net/http"
	"strings"

	"github.com/abbakary/okpos/internal/models"
)

func (h *Handler) handleFindCustomers(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	customers, err := h.store.FindCustomers(r.Context(), query, queryInt(r, "limit", 20))
	if err != nil {
		writeMappedError(w, r, "", err)
		return
	}
	if customers == nil {
		customers = []models.Customer{}
	}
	writeJSON(w, http.StatusOK, customers)
}

func (h *Handler) handleCustomerDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.store.GetCustomerDetails(r.Context(), r.PathValue("id"))
	if err != nil {
		writeMappedError(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handler) handleTechnicians(w http.ResponseWriter, r *http.Request) {
	technicians, err := h.store.ListTechnicians(r.Context())
	if err != nil {
		writeMappedError(w, r, "", err)
		return
	}
	if technicians == nil {
		technicians = []models.Technician{}
	}
	writeJSON(w, http.StatusOK, technicians)
}

func (h *Handler) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	day, ok := queryDate(r, "date")
	if !ok {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return
	}
	if day.IsZero() {
		day = h.now().UTC()
	}
	stats, err := h.store.DashboardStats(r.Context(), day)
	if err != nil {
		writeMappedError(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
