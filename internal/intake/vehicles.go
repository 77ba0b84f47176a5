package intake

import "github.com/abbakary/okpos/internal/apperr"

func (w *Wizard) requireVehicleEditing() error {
	if w.state != StateDetails || w.serviceType != ServiceCarService {
		return apperr.Routing(string(w.state), "vehicles are edited on the car service details step")
	}
	return nil
}

func (w *Wizard) checkVehicleIndex(i int) error {
	if i < 0 || i >= len(w.vehicles) {
		return apperr.Validation("vehicle_index", "does not reference a vehicle")
	}
	return nil
}

// AddVehicle appends an empty vehicle and returns its index.
func (w *Wizard) AddVehicle() (int, error) {
	if err := w.requireVehicleEditing(); err != nil {
		return 0, err
	}
	w.vehicles = append(w.vehicles, VehicleDraft{})
	return len(w.vehicles) - 1, nil
}

func (w *Wizard) UpdateVehicle(i int, v VehicleDraft) error {
	if err := w.requireVehicleEditing(); err != nil {
		return err
	}
	if err := w.checkVehicleIndex(i); err != nil {
		return err
	}
	w.vehicles[i] = v
	return nil
}

// RemoveVehicle deletes the vehicle at i. The list never drops below one
// entry, and the car detail's vehicle reference follows the shift.
func (w *Wizard) RemoveVehicle(i int) error {
	if err := w.requireVehicleEditing(); err != nil {
		return err
	}
	if err := w.checkVehicleIndex(i); err != nil {
		return err
	}
	if len(w.vehicles) == 1 {
		return apperr.Validation("vehicles", "at least one vehicle is required")
	}
	w.vehicles = append(w.vehicles[:i], w.vehicles[i+1:]...)

	car, ok := w.detail.(CarServiceDetail)
	if !ok || car.VehicleIndex == nil {
		return nil
	}
	switch idx := *car.VehicleIndex; {
	case idx == i:
		car.VehicleIndex = nil
	case idx > i:
		shifted := idx - 1
		car.VehicleIndex = &shifted
	}
	w.detail = car
	return nil
}
