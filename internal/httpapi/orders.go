package httpapi

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/abbakary/okpos/internal/models"
	"github.com/abbakary/okpos/internal/store"
	"github.com/abbakary/okpos/internal/telemetry"
	"github.com/abbakary/okpos/internal/workflow"
)

type updateOrderRequest struct {
	RequestID       string `json:"request_id"`
	ExpectedVersion *int   `json:"expected_version"`
	workflow.OrderUpdate
}

type orderEventsResponse struct {
	Events   []store.OrderEvent `json:"events"`
	Verified bool               `json:"verified"`
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	filter, ok := orderFilterFromRequest(w, r)
	if !ok {
		return
	}
	orders, err := h.store.ListOrders(r.Context(), filter)
	if err != nil {
		writeMappedError(w, r, "", err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func orderFilterFromRequest(w http.ResponseWriter, r *http.Request) (store.OrderFilter, bool) {
	query := r.URL.Query()
	filter := store.OrderFilter{
		Status:     strings.TrimSpace(query.Get("status")),
		CustomerID: strings.TrimSpace(query.Get("customer_id")),
		Limit:      queryInt(r, "limit", 100),
	}
	if filter.Status != "" && !models.IsKnownStatus(filter.Status) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "unknown status")
		return store.OrderFilter{}, false
	}
	from, okFrom := queryDate(r, "from")
	to, okTo := queryDate(r, "to")
	if !okFrom || !okTo {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "from and to must be YYYY-MM-DD")
		return store.OrderFilter{}, false
	}
	filter.From = from
	if !to.IsZero() {
		// to is inclusive of the whole day
		filter.To = to.Add(24 * time.Hour)
	}
	return filter, true
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.store.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeMappedError(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleOrderDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.ListDocuments(r.Context(), r.PathValue("id"))
	if err != nil {
		writeMappedError(w, r, "", err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *Handler) handleOrderEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.ListOrderEvents(r.Context(), r.PathValue("id"))
	if err != nil {
		writeMappedError(w, r, "", err)
		return
	}
	if events == nil {
		events = []store.OrderEvent{}
	}
	writeJSON(w, http.StatusOK, orderEventsResponse{Events: events, Verified: store.VerifyOrderEvents(events) == nil})
}

func (h *Handler) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	if req.RequestID != "" && !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return
	}

	orderID := r.PathValue("id")
	role := actorRole(r)
	ctx, span := telemetry.Tracer().Start(r.Context(), "order.apply_update")
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("actor.role", role))
	defer span.End()

	res, err := h.store.ApplyOrderUpdate(ctx, store.UpdateOrderInput{
		RequestID:       req.RequestID,
		OrderID:         orderID,
		ExpectedVersion: req.ExpectedVersion,
		ActorID:         actorID(r),
		ActorRole:       role,
	}, func(order models.Order) (workflow.Result, error) {
		return h.engine.ApplyUpdate(order, req.OrderUpdate, role)
	})
	if err != nil {
		span.RecordError(err)
		writeMappedError(w, r, req.RequestID, err)
		return
	}

	for _, event := range res.Events {
		if event.Type == workflow.EventOrderCompleted {
			ordersCompleted.Add(1)
		}
	}
	documentsIssued.Add(int64(len(res.Documents)))
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleExportOrders(w http.ResponseWriter, r *http.Request) {
	filter, ok := orderFilterFromRequest(w, r)
	if !ok {
		return
	}
	filter.Limit = queryInt(r, "limit", 10000)
	orders, err := h.store.ListOrders(r.Context(), filter)
	if err != nil {
		writeMappedError(w, r, "", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=orders.csv")
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"order_id", "order_number", "order_type", "status", "priority", "customer_id", "total_amount", "discount_amount", "tax_amount", "final_amount", "created_at", "started_at", "actual_completion"})
	for _, order := range orders {
		_ = writer.Write([]string{
			order.OrderID,
			order.OrderNumber,
			order.OrderType,
			order.Status,
			order.Priority,
			order.CustomerID,
			formatAmount(order.TotalAmount),
			formatAmount(order.DiscountAmount),
			formatAmount(order.TaxAmount),
			formatAmount(order.FinalAmount),
			order.CreatedAt.Format(time.RFC3339),
			formatTime(order.StartedAt),
			formatTime(order.ActualCompletion),
		})
	}
	writer.Flush()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

type addAttachmentRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// attachments resolves the gated manager for the caller. A denied role gets
// the access-denied body and nothing else.
func (h *Handler) attachments(w http.ResponseWriter, r *http.Request) (*workflow.AttachmentManager, bool) {
	manager, err := h.engine.Attachments(actorRole(r), h.store)
	if err != nil {
		writeMappedError(w, r, "", err)
		return nil, false
	}
	return manager, true
}

func (h *Handler) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	manager, ok := h.attachments(w, r)
	if !ok {
		return
	}
	list, err := manager.List(r.Context(), r.PathValue("id"))
	if err != nil {
		writeMappedError(w, r, "", err)
		return
	}
	if list == nil {
		list = []models.Attachment{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleAddAttachment(w http.ResponseWriter, r *http.Request) {
	manager, ok := h.attachments(w, r)
	if !ok {
		return
	}
	var req addAttachmentRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	attachment, err := manager.Add(r.Context(), models.Attachment{
		OrderID:     r.PathValue("id"),
		FileName:    strings.TrimSpace(req.FileName),
		ContentType: strings.TrimSpace(req.ContentType),
		URL:         strings.TrimSpace(req.URL),
		UploadedBy:  actorID(r),
	})
	if err != nil {
		writeMappedError(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusCreated, attachment)
}

func (h *Handler) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	manager, ok := h.attachments(w, r)
	if !ok {
		return
	}
	if err := manager.Remove(r.Context(), r.PathValue("id"), r.PathValue("attachment_id")); err != nil {
		writeMappedError(w, r, "", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
