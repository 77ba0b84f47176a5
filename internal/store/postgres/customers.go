package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/abbakary/okpos/internal/intake"
	"github.com/abbakary/okpos/internal/models"
	"github.com/abbakary/okpos/internal/store"
)

const customerColumns = `customer_id, name, phone, email, address, notes, customer_type, business_name, tax_number, last_visit, created_at`

func scanCustomer(row pgx.Row) (models.Customer, error) {
	var c models.Customer
	var email, address, notes, customerType, businessName, taxNumber sql.NullString
	var lastVisit sql.NullTime
	if err := row.Scan(&c.CustomerID, &c.Name, &c.Phone, &email, &address, &notes, &customerType, &businessName, &taxNumber, &lastVisit, &c.CreatedAt); err != nil {
		return models.Customer{}, err
	}
	c.Email = nullString(email)
	c.Address = nullString(address)
	c.Notes = nullString(notes)
	c.CustomerType = nullString(customerType)
	c.BusinessName = nullString(businessName)
	c.TaxNumber = nullString(taxNumber)
	c.LastVisit = nullTimePtr(lastVisit)
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

// upsertCustomer links the intake to the selected customer, or to the one
// already registered under the same phone, creating it otherwise.
func upsertCustomer(ctx context.Context, tx pgx.Tx, in intake.OrderIntake, now time.Time) (models.Customer, error) {
	c := in.Customer
	var businessName, taxNumber string
	isOwner := false
	if in.Business != nil {
		businessName = in.Business.BusinessName
		taxNumber = in.Business.TaxNumber
		isOwner = in.Business.IsOwner
	}

	if c.CustomerID != "" {
		customer, err := scanCustomer(tx.QueryRow(ctx, `
			UPDATE customers
			SET name = $2, phone = $3, email = $4, address = $5, notes = $6,
			    customer_type = COALESCE($7, customer_type),
			    business_name = COALESCE($8, business_name),
			    tax_number = COALESCE($9, tax_number),
			    last_visit = $10
			WHERE customer_id = $1
			RETURNING `+customerColumns,
			c.CustomerID, c.Name, c.Phone, nullIfEmpty(c.Email), nullIfEmpty(c.Address), nullIfEmpty(c.Notes),
			nullIfEmpty(in.CustomerType), nullIfEmpty(businessName), nullIfEmpty(taxNumber), now))
		if isNoRows(err) {
			return models.Customer{}, store.ErrCustomerNotFound
		}
		return customer, err
	}

	return scanCustomer(tx.QueryRow(ctx, `
		INSERT INTO customers (customer_id, name, phone, email, address, notes, customer_type, business_name, tax_number, is_owner, last_visit, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		ON CONFLICT (phone) DO UPDATE
		SET name = EXCLUDED.name,
		    email = COALESCE(EXCLUDED.email, customers.email),
		    address = COALESCE(EXCLUDED.address, customers.address),
		    notes = COALESCE(EXCLUDED.notes, customers.notes),
		    customer_type = COALESCE(EXCLUDED.customer_type, customers.customer_type),
		    business_name = COALESCE(EXCLUDED.business_name, customers.business_name),
		    tax_number = COALESCE(EXCLUDED.tax_number, customers.tax_number),
		    last_visit = EXCLUDED.last_visit
		RETURNING `+customerColumns,
		uuid.NewString(), c.Name, c.Phone, nullIfEmpty(c.Email), nullIfEmpty(c.Address), nullIfEmpty(c.Notes),
		nullIfEmpty(in.CustomerType), nullIfEmpty(businessName), nullIfEmpty(taxNumber), isOwner, now))
}

// upsertVehicles returns the stored vehicle id for each intake vehicle, in order.
func upsertVehicles(ctx context.Context, tx pgx.Tx, customerID string, vehicles []intake.VehicleDraft) ([]string, error) {
	ids := make([]string, 0, len(vehicles))
	for _, v := range vehicles {
		var id string
		row := tx.QueryRow(ctx, `
			INSERT INTO vehicles (vehicle_id, customer_id, plate_number, make, model, year, color, vehicle_type)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (customer_id, plate_number) DO UPDATE
			SET make = EXCLUDED.make, model = EXCLUDED.model,
			    year = COALESCE(EXCLUDED.year, vehicles.year),
			    color = COALESCE(EXCLUDED.color, vehicles.color),
			    vehicle_type = COALESCE(EXCLUDED.vehicle_type, vehicles.vehicle_type)
			RETURNING vehicle_id
		`, uuid.NewString(), customerID, strings.ToUpper(strings.TrimSpace(v.PlateNumber)), v.Make, v.Model,
			nullIfEmpty(v.Year), nullIfEmpty(v.Color), nullIfEmpty(v.VehicleType))
		if err := row.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func loadCustomer(ctx context.Context, tx pgx.Tx, customerID string) (models.Customer, error) {
	customer, err := scanCustomer(tx.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE customer_id = $1`, customerID))
	if isNoRows(err) {
		return models.Customer{}, store.ErrCustomerNotFound
	}
	return customer, err
}

// FindCustomers matches a case-insensitive substring of name or phone.
func (s *Store) FindCustomers(ctx context.Context, query string, limit int) ([]models.Customer, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	pattern := "%" + escapeLike(normalizeQuery(query)) + "%"
	rows, err := s.pool.Query(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE name ILIKE $1 OR phone ILIKE $1
		ORDER BY last_visit DESC NULLS LAST, name ASC
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := []models.Customer{}
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, customerID string) (models.Customer, []models.Vehicle, error) {
	customer, err := scanCustomer(s.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE customer_id = $1`, customerID))
	if err != nil {
		if isNoRows(err) {
			return models.Customer{}, nil, store.ErrCustomerNotFound
		}
		return models.Customer{}, nil, err
	}
	vehicles, err := s.listVehicles(ctx, customerID)
	if err != nil {
		return models.Customer{}, nil, err
	}
	return customer, vehicles, nil
}

func (s *Store) listVehicles(ctx context.Context, customerID string) ([]models.Vehicle, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT vehicle_id, customer_id, plate_number, make, model, year, color, vehicle_type
		FROM vehicles
		WHERE customer_id = $1
		ORDER BY created_at ASC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vehicles := []models.Vehicle{}
	for rows.Next() {
		var v models.Vehicle
		var year, color, vehicleType sql.NullString
		if err := rows.Scan(&v.VehicleID, &v.CustomerID, &v.PlateNumber, &v.Make, &v.Model, &year, &color, &vehicleType); err != nil {
			return nil, err
		}
		v.Year = nullString(year)
		v.Color = nullString(color)
		v.VehicleType = nullString(vehicleType)
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vehicles, nil
}

// GetCustomerDetails returns the customer with vehicles, service history and
// invoices.
func (s *Store) GetCustomerDetails(ctx context.Context, customerID string) (models.CustomerDetails, error) {
	customer, vehicles, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		return models.CustomerDetails{}, err
	}
	details := models.CustomerDetails{Customer: customer, Vehicles: vehicles, History: []models.ServiceHistoryEntry{}}

	rows, err := s.pool.Query(ctx, `
		SELECT o.order_id, o.order_number, o.created_at, o.order_type, o.final_amount, o.status,
		       COALESCE(v.make || ' ' || v.model || ' (' || v.plate_number || ')', ''),
		       COALESCE((SELECT d.number FROM documents d WHERE d.order_id = o.order_id AND d.kind = 'job_card' LIMIT 1), '')
		FROM orders o
		LEFT JOIN vehicles v ON v.vehicle_id = o.vehicle_id
		WHERE o.customer_id = $1
		ORDER BY o.created_at DESC
	`, customerID)
	if err != nil {
		return models.CustomerDetails{}, err
	}
	for rows.Next() {
		var entry models.ServiceHistoryEntry
		if err := rows.Scan(&entry.OrderID, &entry.OrderNumber, &entry.Date, &entry.OrderType, &entry.Amount, &entry.Status, &entry.Vehicle, &entry.JobCard); err != nil {
			rows.Close()
			return models.CustomerDetails{}, err
		}
		entry.Date = entry.Date.UTC()
		details.History = append(details.History, entry)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return models.CustomerDetails{}, err
	}

	invoiceRows, err := s.pool.Query(ctx, `
		SELECT d.document_id, d.order_id, d.kind, d.number, d.amount, d.status, d.generated_at
		FROM documents d
		JOIN orders o ON o.order_id = d.order_id
		WHERE o.customer_id = $1 AND d.kind = 'invoice'
		ORDER BY d.generated_at DESC
	`, customerID)
	if err != nil {
		return models.CustomerDetails{}, err
	}
	defer invoiceRows.Close()
	details.Invoices, err = scanDocuments(invoiceRows)
	if err != nil {
		return models.CustomerDetails{}, err
	}
	return details, nil
}

func (s *Store) ListTechnicians(ctx context.Context) ([]models.Technician, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT technician_id, name, active
		FROM technicians
		WHERE active = TRUE
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	technicians := []models.Technician{}
	for rows.Next() {
		var tech models.Technician
		if err := rows.Scan(&tech.TechnicianID, &tech.Name, &tech.Active); err != nil {
			return nil, err
		}
		technicians = append(technicians, tech)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return technicians, nil
}
