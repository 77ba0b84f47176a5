package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/abbakary/okpos/internal/intake"
	"github.com/abbakary/okpos/internal/models"
	"github.com/abbakary/okpos/internal/store"
	"github.com/abbakary/okpos/internal/workflow"
)

const orderColumns = `
	o.order_id, o.order_number, o.order_type, o.status, o.priority, o.customer_id, o.vehicle_id,
	o.assigned_to, o.description, o.total_amount, o.discount_amount, o.tax_amount, o.final_amount,
	o.estimated_duration, o.details_json, o.started_at, o.actual_completion, o.created_at, o.updated_at, o.version`

func scanOrder(row pgx.Row) (models.Order, error) {
	var order models.Order
	var vehicleID, assignedTo sql.NullString
	var startedAt, completion sql.NullTime
	var details []byte
	if err := row.Scan(
		&order.OrderID, &order.OrderNumber, &order.OrderType, &order.Status, &order.Priority, &order.CustomerID, &vehicleID,
		&assignedTo, &order.Description, &order.TotalAmount, &order.DiscountAmount, &order.TaxAmount, &order.FinalAmount,
		&order.EstimatedDuration, &details, &startedAt, &completion, &order.CreatedAt, &order.UpdatedAt, &order.Version,
	); err != nil {
		return models.Order{}, err
	}
	order.VehicleID = nullStringPtr(vehicleID)
	order.AssignedTo = nullStringPtr(assignedTo)
	order.StartedAt = nullTimePtr(startedAt)
	order.ActualCompletion = nullTimePtr(completion)
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	if len(details) > 0 {
		order.Details = json.RawMessage(details)
	}
	return order, nil
}

func (s *Store) CreateOrderFromIntake(ctx context.Context, input store.CreateOrderInput) (models.Order, bool, error) {
	fields, err := mapIntake(input.Intake)
	if err != nil {
		return models.Order{}, false, err
	}
	details, err := intake.MarshalDetail(input.Intake.Detail)
	if err != nil {
		return models.Order{}, false, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Order{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if input.RequestID != "" {
		existing, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.request_id = $1`, input.RequestID))
		if err == nil {
			return existing, false, tx.Commit(ctx)
		}
		if !isNoRows(err) {
			return models.Order{}, false, err
		}
	}

	now := s.now().UTC()
	customer, err := upsertCustomer(ctx, tx, input.Intake, now)
	if err != nil {
		return models.Order{}, false, err
	}
	vehicleIDs, err := upsertVehicles(ctx, tx, customer.CustomerID, input.Intake.Vehicles)
	if err != nil {
		return models.Order{}, false, err
	}

	number, err := nextOrderNumber(ctx, tx, now.Year())
	if err != nil {
		return models.Order{}, false, err
	}

	order := models.Order{
		OrderID:           uuid.NewString(),
		OrderNumber:       number,
		OrderType:         fields.OrderType,
		Status:            models.StatusCreated,
		Priority:          fields.Priority,
		CustomerID:        customer.CustomerID,
		Description:       fields.Description,
		TotalAmount:       fields.TotalAmount,
		FinalAmount:       models.FinalAmount(fields.TotalAmount, 0, 0),
		EstimatedDuration: fields.EstimatedDuration,
		Details:           details,
		CreatedAt:         now,
		UpdatedAt:         now,
		Version:           1,
	}
	if fields.VehicleIndex >= 0 && fields.VehicleIndex < len(vehicleIDs) {
		id := vehicleIDs[fields.VehicleIndex]
		order.VehicleID = &id
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			order_id, request_id, order_number, order_type, status, priority, customer_id, vehicle_id,
			description, total_amount, discount_amount, tax_amount, final_amount, estimated_duration,
			details_json, created_by, created_at, updated_at, version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,0,0,$11,$12,$13,$14,$15,$15,1)
	`, order.OrderID, nullIfEmpty(input.RequestID), order.OrderNumber, order.OrderType, order.Status, order.Priority,
		order.CustomerID, order.VehicleID, order.Description, order.TotalAmount, order.FinalAmount,
		order.EstimatedDuration, []byte(details), nullIfEmpty(input.CreatedBy), now)
	if err != nil {
		return models.Order{}, false, err
	}

	payload := outboxPayload(order, customer)
	payload["intent"] = input.Intake.Intent
	payload["service_type"] = input.Intake.ServiceType
	if err := insertOutboxEvent(ctx, tx, "order.created", order.OrderID, payload, now); err != nil {
		return models.Order{}, false, err
	}
	if err := insertOrderEvent(ctx, tx, order.OrderID, "order.created", store.SnapshotPayload(order), now); err != nil {
		return models.Order{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Order{}, false, err
	}
	return order, true, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	order, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.order_id = $1`, orderID))
	if err != nil {
		if isNoRows(err) {
			return models.Order{}, store.ErrOrderNotFound
		}
		return models.Order{}, err
	}
	return order, nil
}

// maxOrderListLimit bounds a single listing, CSV export included.
const maxOrderListLimit = 10000

func (s *Store) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE 1=1`
	var args []interface{}
	add := func(clause string, value interface{}) {
		args = append(args, value)
		query += fmt.Sprintf(" AND "+clause, len(args))
	}
	if filter.Status != "" {
		add("o.status = $%d", filter.Status)
	}
	if filter.CustomerID != "" {
		add("o.customer_id = $%d", filter.CustomerID)
	}
	if !filter.From.IsZero() {
		add("o.created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("o.created_at < $%d", filter.To)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	if limit > maxOrderListLimit {
		limit = maxOrderListLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY o.created_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// ApplyOrderUpdate locks the order row, runs apply against it and writes the
// result with its documents, notes and events in one transaction. The row
// lock is taken before the request_id lookup, so a retry racing the original
// waits for it and replays its result.
func (s *Store) ApplyOrderUpdate(ctx context.Context, input store.UpdateOrderInput, apply store.UpdateFunc) (workflow.Result, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return workflow.Result{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.order_id = $1 FOR UPDATE`, input.OrderID))
	if err != nil {
		if isNoRows(err) {
			return workflow.Result{}, store.ErrOrderNotFound
		}
		return workflow.Result{}, err
	}

	if input.RequestID != "" {
		replayed, found, err := findActionRequest(ctx, tx, "update", input.RequestID)
		if err != nil {
			return workflow.Result{}, err
		}
		if found {
			return workflow.Result{Order: replayed, Documents: []models.Document{}}, tx.Commit(ctx)
		}
	}
	if input.ExpectedVersion != nil && *input.ExpectedVersion != current.Version {
		return workflow.Result{}, fmt.Errorf("%w: expected %d, current %d", store.ErrVersionConflict, *input.ExpectedVersion, current.Version)
	}

	res, err := apply(current)
	if err != nil {
		return workflow.Result{}, err
	}
	next := res.Order
	next.Version = current.Version + 1

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $2, priority = $3, assigned_to = $4, description = $5,
		    total_amount = $6, discount_amount = $7, tax_amount = $8, final_amount = $9,
		    started_at = $10, actual_completion = $11, updated_at = $12, version = $13
		WHERE order_id = $1 AND version = $14
	`, next.OrderID, next.Status, next.Priority, next.AssignedTo, next.Description,
		next.TotalAmount, next.DiscountAmount, next.TaxAmount, next.FinalAmount,
		next.StartedAt, next.ActualCompletion, next.UpdatedAt, next.Version, current.Version)
	if err != nil {
		return workflow.Result{}, err
	}
	if tag.RowsAffected() != 1 {
		return workflow.Result{}, store.ErrVersionConflict
	}
	res.Order = next

	for i := range res.Documents {
		doc := &res.Documents[i]
		number, err := nextDocumentNumber(ctx, tx, doc.Kind, doc.GeneratedAt.Year())
		if err != nil {
			return workflow.Result{}, err
		}
		doc.Number = number
		if _, err := tx.Exec(ctx, `
			INSERT INTO documents (document_id, order_id, kind, number, amount, status, generated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, doc.DocumentID, doc.OrderID, doc.Kind, doc.Number, doc.Amount, doc.Status, doc.GeneratedAt); err != nil {
			return workflow.Result{}, err
		}
	}

	if res.Notes != nil {
		notes, err := jsonBytes(res.Notes)
		if err != nil {
			return workflow.Result{}, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_notes (note_id, order_id, actor_id, actor_role, notes_json, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.NewString(), next.OrderID, nullIfEmpty(input.ActorID), nullIfEmpty(input.ActorRole), notes, next.UpdatedAt); err != nil {
			return workflow.Result{}, err
		}
	}

	customer, err := loadCustomer(ctx, tx, next.CustomerID)
	if err != nil {
		return workflow.Result{}, err
	}
	for _, event := range res.Events {
		payload := outboxPayload(next, customer)
		payload["actor_role"] = event.ActorRole
		for k, v := range event.Data {
			payload[k] = v
		}
		if event.Type == workflow.EventDocumentGenerated {
			if number := documentNumberFor(res.Documents, event.Data["document_id"]); number != "" {
				payload["number"] = number
			}
		}
		if err := insertOutboxEvent(ctx, tx, event.Type, next.OrderID, payload, event.OccurredAt); err != nil {
			return workflow.Result{}, err
		}
	}
	snapshot := store.SnapshotPayload(next)
	snapshot.ActorRole = input.ActorRole
	if err := insertOrderEvent(ctx, tx, next.OrderID, workflow.EventOrderUpdated, snapshot, next.UpdatedAt); err != nil {
		return workflow.Result{}, err
	}

	if input.RequestID != "" {
		tag, err := tx.Exec(ctx, `
			INSERT INTO order_action_requests (request_id, action, order_id) VALUES ($1, $2, $3)
			ON CONFLICT (request_id, action) DO NOTHING
		`, input.RequestID, "update", next.OrderID)
		if err != nil {
			return workflow.Result{}, err
		}
		if tag.RowsAffected() == 0 {
			// Committed meanwhile under another order's lock: drop this
			// attempt and replay the recorded one.
			_ = tx.Rollback(ctx)
			return s.replayActionRequest(ctx, "update", input.RequestID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return workflow.Result{}, err
	}
	return res, nil
}

func (s *Store) replayActionRequest(ctx context.Context, action, requestID string) (workflow.Result, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return workflow.Result{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	replayed, found, err := findActionRequest(ctx, tx, action, requestID)
	if err != nil {
		return workflow.Result{}, err
	}
	if !found {
		return workflow.Result{}, store.ErrVersionConflict
	}
	return workflow.Result{Order: replayed, Documents: []models.Document{}}, nil
}

func documentNumberFor(docs []models.Document, id interface{}) string {
	for _, doc := range docs {
		if doc.DocumentID == id {
			return doc.Number
		}
	}
	return ""
}

func findActionRequest(ctx context.Context, tx pgx.Tx, action, requestID string) (models.Order, bool, error) {
	var orderID string
	row := tx.QueryRow(ctx, `
		SELECT order_id
		FROM order_action_requests
		WHERE request_id = $1 AND action = $2
	`, requestID, action)
	if err := row.Scan(&orderID); err != nil {
		if isNoRows(err) {
			return models.Order{}, false, nil
		}
		return models.Order{}, false, err
	}
	order, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.order_id = $1`, orderID))
	if err != nil {
		return models.Order{}, false, err
	}
	return order, true, nil
}

func (s *Store) ListDocuments(ctx context.Context, orderID string) ([]models.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT document_id, order_id, kind, number, amount, status, generated_at
		FROM documents
		WHERE order_id = $1
		ORDER BY generated_at ASC, kind DESC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func scanDocuments(rows pgx.Rows) ([]models.Document, error) {
	docs := []models.Document{}
	for rows.Next() {
		var doc models.Document
		var amount sql.NullFloat64
		if err := rows.Scan(&doc.DocumentID, &doc.OrderID, &doc.Kind, &doc.Number, &amount, &doc.Status, &doc.GeneratedAt); err != nil {
			return nil, err
		}
		if amount.Valid {
			v := amount.Float64
			doc.Amount = &v
		}
		doc.GeneratedAt = doc.GeneratedAt.UTC()
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) ListOrderEvents(ctx context.Context, orderID string) ([]store.OrderEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT order_id, order_seq, type, payload_text, created_at, prev_hash, hash
		FROM order_events
		WHERE order_id = $1
		ORDER BY order_seq ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []store.OrderEvent{}
	for rows.Next() {
		var event store.OrderEvent
		var payload string
		if err := rows.Scan(&event.OrderID, &event.OrderSeq, &event.Type, &payload, &event.CreatedAt, &event.PrevHash, &event.Hash); err != nil {
			return nil, err
		}
		event.Payload = json.RawMessage(payload)
		event.CreatedAt = event.CreatedAt.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func outboxPayload(order models.Order, customer models.Customer) map[string]interface{} {
	return map[string]interface{}{
		"order_id":       order.OrderID,
		"order_number":   order.OrderNumber,
		"order_type":     order.OrderType,
		"status":         order.Status,
		"priority":       order.Priority,
		"final_amount":   order.FinalAmount,
		"customer_id":    customer.CustomerID,
		"customer_name":  customer.Name,
		"customer_phone": customer.Phone,
		"customer_email": customer.Email,
	}
}

// outboxLockKey serialises outbox writers until commit, so seq values become
// visible in the order they were assigned and the relay never pages past a
// seq that is still uncommitted.
const outboxLockKey = 7340021

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, eventType, orderID string, payload map[string]interface{}, createdAt time.Time) error {
	payloadJSON, err := jsonBytes(payload)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, outboxLockKey); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, type, order_id, payload_json, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), eventType, nullIfEmpty(orderID), payloadJSON, createdAt)
	return err
}

// insertOrderEvent appends to the order's hash chain. The advisory lock
// serialises writers of the same order.
func insertOrderEvent(ctx context.Context, tx pgx.Tx, orderID, eventType string, snapshot store.OrderEventPayload, createdAt time.Time) error {
	payload, err := jsonBytes(snapshot)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, orderID); err != nil {
		return err
	}

	var lastSeq int
	var prevHash sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT order_seq, hash
		FROM order_events
		WHERE order_id = $1
		ORDER BY order_seq DESC
		LIMIT 1
	`, orderID)
	if err := row.Scan(&lastSeq, &prevHash); err != nil && !isNoRows(err) {
		return err
	}
	nextSeq := lastSeq + 1
	prev := nullString(prevHash)
	createdAt = createdAt.UTC().Truncate(time.Microsecond)
	hash := store.ComputeOrderEventHash(prev, orderID, eventType, payload, createdAt, nextSeq)

	_, err = tx.Exec(ctx, `
		INSERT INTO order_events (order_id, order_seq, type, payload_text, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, orderID, nextSeq, eventType, string(payload), createdAt, prev, hash)
	return err
}

func normalizeQuery(q string) string {
	return strings.TrimSpace(q)
}
