package queue

import "clinicq/ehr-service/internal/models"

// Queue actions. Each maps to the statuses it may start from.
const (
	ActionCallNext        = "call_next"
	ActionFinalize        = "finalize"
	ActionCancel          = "cancel"
	ActionNoShow          = "no_show"
	ActionReturn          = "return"
	ActionStartListening  = "start_listening"
	ActionFinishListening = "finish_listening"
)

var transitionMap = map[string][]string{
	ActionCallNext:        {models.StatusWaiting},
	ActionFinalize:        {models.StatusInProgress},
	ActionCancel:          {models.StatusWaiting, models.StatusInProgress, models.StatusInitialListening},
	ActionNoShow:          {models.StatusWaiting},
	ActionReturn:          {models.StatusNoShow},
	ActionStartListening:  {models.StatusWaiting},
	ActionFinishListening: {models.StatusInitialListening},
}

// ValidTransition reports whether action may be applied to an entry in
// fromStatus. completed and cancelled are terminal; no action starts there.
func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
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
