package postgres

import (
	"fmt"
	"strings"

	"github.com/abbakary/okpos/internal/intake"
	"github.com/abbakary/okpos/internal/models"
	"github.com/abbakary/okpos/internal/workflow"
)

// orderFields is what an intake contributes to the new order row.
type orderFields struct {
	OrderType         string
	Priority          string
	TotalAmount       float64
	EstimatedDuration int
	Description       string
	VehicleIndex      int
}

func mapIntake(in intake.OrderIntake) (orderFields, error) {
	fields := orderFields{Priority: models.PriorityNormal, VehicleIndex: -1}
	switch d := in.Detail.(type) {
	case intake.TireServiceDetail:
		fields.OrderType = models.OrderTypeSales
		fields.TotalAmount = d.Total()
		desc := fmt.Sprintf("%d x %s %s", d.Quantity, d.TireBrand, d.TireSize)
		if d.TireType != "" {
			desc += " (" + d.TireType + ")"
		}
		fields.Description = desc

	case intake.CarServiceDetail:
		priority, err := workflow.NormalizePriority(d.Priority)
		if err != nil {
			return orderFields{}, err
		}
		fields.OrderType = models.OrderTypeService
		fields.Priority = priority
		fields.EstimatedDuration = d.EstimatedDuration
		desc := strings.Join(d.ServiceTypes, ", ")
		if d.ProblemDescription != "" {
			desc += ": " + d.ProblemDescription
		}
		fields.Description = desc
		if d.VehicleIndex != nil {
			fields.VehicleIndex = *d.VehicleIndex
		}

	case intake.InquiryDetail:
		fields.OrderType = models.OrderTypeConsultation
		desc := "Inquiry: " + d.InquiryType
		if d.Questions != "" {
			desc += ": " + d.Questions
		}
		fields.Description = desc

	default:
		return orderFields{}, fmt.Errorf("intake has no detail")
	}
	return fields, nil
}
