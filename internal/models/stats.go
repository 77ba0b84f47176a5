package models

// DashboardStats are the day's figures shown on the back-office dashboard.
type DashboardStats struct {
	Date               string  `json:"date"`
	ServicesToday      int     `json:"services_today"`
	CarServices        int     `json:"car_services"`
	TireSales          int     `json:"tire_sales"`
	Consultations      int     `json:"consultations"`
	ActiveJobCards     int     `json:"active_job_cards"`
	InProgress         int     `json:"in_progress"`
	Waiting            int     `json:"waiting"`
	DailyRevenue       float64 `json:"daily_revenue"`
	ServiceRevenue     float64 `json:"service_revenue"`
	SalesRevenue       float64 `json:"sales_revenue"`
	CustomerVisits     int     `json:"customer_visits"`
	NewCustomers       int     `json:"new_customers"`
	ReturningCustomers int     `json:"returning_customers"`
}
