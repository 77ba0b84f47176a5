package workflow

import "github.com/abbakary/okpos/internal/models"

// transitionMap lists, for each target status, the statuses an order may move
// from. Completed and cancelled orders only accept their own status again.
var transitionMap = map[string][]string{
	models.StatusCreated:    {models.StatusCreated, models.StatusAssigned},
	models.StatusAssigned:   {models.StatusCreated, models.StatusAssigned, models.StatusInProgress},
	models.StatusInProgress: {models.StatusCreated, models.StatusAssigned, models.StatusInProgress},
	models.StatusCompleted:  {models.StatusCreated, models.StatusAssigned, models.StatusInProgress, models.StatusCompleted},
	models.StatusCancelled:  {models.StatusCreated, models.StatusAssigned, models.StatusInProgress, models.StatusCancelled},
}

func ValidTransition(fromStatus, toStatus string) bool {
	allowed, ok := transitionMap[toStatus]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}
