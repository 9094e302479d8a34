package registry

import "github.com/Shivanand-hulikatti/ecopoints/internal/model"

// CanTransition enforces the event lifecycle. Terminal states have no
// outgoing edges and no state may be re-entered.
func CanTransition(from, to model.EventStatus) bool {
	switch from {
	case model.StatusScheduled:
		return to == model.StatusOngoing || to == model.StatusCompleted || to == model.StatusCancelled
	case model.StatusOngoing:
		return to == model.StatusCompleted || to == model.StatusCancelled
	default:
		return false
	}
}
