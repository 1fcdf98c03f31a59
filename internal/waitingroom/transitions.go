package waitingroom

// transitionMap lists, per action, the statuses an entry may be in when the
// action is applied. Terminal statuses appear only where the action is an
// audit or cleanup concern, never a state change.
var transitionMap = map[string][]Status{
	"start":        {StatusWaiting},
	"complete":     {StatusInConsultation},
	"cancel":       {StatusWaiting, StatusInConsultation},
	"set_priority": {StatusWaiting, StatusInConsultation},
	"delete":       {StatusWaiting, StatusCompleted, StatusCancelled},
	"append_note":  {StatusWaiting, StatusInConsultation, StatusCompleted, StatusCancelled},
}

func ValidTransition(action string, from Status) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}
