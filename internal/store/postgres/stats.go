package postgres

import (
	"context"
	"time"

	"github.com/abbakary/okpos/internal/models"
)

func (s *Store) DashboardStats(ctx context.Context, day time.Time) (models.DashboardStats, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	stats := models.DashboardStats{Date: start.Format(time.DateOnly)}

	row := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE order_type = 'service'),
			COUNT(*) FILTER (WHERE order_type = 'sales'),
			COUNT(*) FILTER (WHERE order_type = 'consultation')
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
	`, start, end)
	if err := row.Scan(&stats.ServicesToday, &stats.CarServices, &stats.TireSales, &stats.Consultations); err != nil {
		return models.DashboardStats{}, err
	}

	row = s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status IN ('assigned', 'in_progress')),
			COUNT(*) FILTER (WHERE status = 'in_progress'),
			COUNT(*) FILTER (WHERE status = 'created')
		FROM orders
	`)
	if err := row.Scan(&stats.ActiveJobCards, &stats.InProgress, &stats.Waiting); err != nil {
		return models.DashboardStats{}, err
	}

	row = s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(d.amount), 0),
			COALESCE(SUM(d.amount) FILTER (WHERE o.order_type = 'service'), 0),
			COALESCE(SUM(d.amount) FILTER (WHERE o.order_type = 'sales'), 0)
		FROM documents d
		JOIN orders o ON o.order_id = d.order_id
		WHERE d.kind = 'invoice' AND d.generated_at >= $1 AND d.generated_at < $2
	`, start, end)
	if err := row.Scan(&stats.DailyRevenue, &stats.ServiceRevenue, &stats.SalesRevenue); err != nil {
		return models.DashboardStats{}, err
	}

	row = s.pool.QueryRow(ctx, `
		SELECT
			COUNT(DISTINCT c.customer_id),
			COUNT(DISTINCT c.customer_id) FILTER (WHERE c.created_at >= $1)
		FROM orders o
		JOIN customers c ON c.customer_id = o.customer_id
		WHERE o.created_at >= $1 AND o.created_at < $2
	`, start, end)
	if err := row.Scan(&stats.CustomerVisits, &stats.NewCustomers); err != nil {
		return models.DashboardStats{}, err
	}
	stats.ReturningCustomers = stats.CustomerVisits - stats.NewCustomers
	return stats, nil
}
