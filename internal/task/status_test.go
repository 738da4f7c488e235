package task

import (
	"testing"

	"github.com/CandyToyBox/AllowanceApp/internal/model"
)

func TestCanTransition(t *testing.T) {
	all := []model.TaskStatus{model.TaskPending, model.TaskCompleted, model.TaskApproved, model.TaskRejected}
	legal := map[[2]model.TaskStatus]bool{
		{model.TaskPending, model.TaskCompleted}:  true,
		{model.TaskCompleted, model.TaskApproved}: true,
		{model.TaskCompleted, model.TaskRejected}: true,
	}

	for _, from := range all {
		for _, to := range all {
			want := legal[[2]model.TaskStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		status model.TaskStatus
		want   bool
	}{
		{model.TaskPending, false},
		{model.TaskCompleted, false},
		{model.TaskApproved, true},
		{model.TaskRejected, true},
	}
	for _, tt := range tests {
		if got := IsTerminal(tt.status); got != tt.want {
			t.Errorf("IsTerminal(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if st, ok := ParseStatus("completed"); !ok || st != model.TaskCompleted {
		t.Errorf("ParseStatus(completed) = %q, %v", st, ok)
	}
	if _, ok := ParseStatus("done"); ok {
		t.Error("ParseStatus(done) should fail")
	}
	if _, ok := ParseStatus("Completed"); ok {
		t.Error("status names are case-sensitive")
	}
}
