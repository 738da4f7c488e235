package task

import "github.com/CandyToyBox/AllowanceApp/internal/model"

// transitions lists the statuses each status may move to.
var transitions = map[model.TaskStatus][]model.TaskStatus{
	model.TaskPending:   {model.TaskCompleted},
	model.TaskCompleted: {model.TaskApproved, model.TaskRejected},
}

// CanTransition reports whether a task in status from may move to status to.
func CanTransition(from, to model.TaskStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s model.TaskStatus) bool {
	return len(transitions[s]) == 0
}

// ParseStatus validates a status name from a request.
func ParseStatus(s string) (model.TaskStatus, bool) {
	switch st := model.TaskStatus(s); st {
	case model.TaskPending, model.TaskCompleted, model.TaskApproved, model.TaskRejected:
		return st, true
	}
	return "", false
}
