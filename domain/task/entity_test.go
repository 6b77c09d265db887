package task

import (
	"testing"
	"time"
)

func TestValidDate(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"2026-01-24", true},
		{"2024-02-29", true},
		{"2026-13-40", false},
		{"2026-02-30", false},
		{"2026-1-24", false},
		{"2026-01-24T10:00", false},
		{"24/01/2026", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ValidDate(tt.in); got != tt.want {
				t.Errorf("ValidDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidReminder(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"2026-01-24T09:30", true},
		{"2026-01-24T24:00", false},
		{"2026-01-24 09:30", false},
		{"2026-01-24T09:30:00", false},
		{"2026-01-24", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ValidReminder(tt.in); got != tt.want {
				t.Errorf("ValidReminder(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"Todo", "In Progress", "Done"} {
		if _, ok := ParseStatus(s); !ok {
			t.Errorf("ParseStatus(%q) rejected a valid status", s)
		}
	}
	for _, s := range []string{"done", "In progress", "Blocked", ""} {
		if _, ok := ParseStatus(s); ok {
			t.Errorf("ParseStatus(%q) accepted an invalid status", s)
		}
	}
}

func TestTask_Normalize(t *testing.T) {
	created := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	empty := ""

	tests := []struct {
		name          string
		in            Task
		wantStatus    Status
		wantCompleted bool
		wantPriority  Priority
	}{
		{
			name:          "legacy completed record",
			in:            Task{Completed: true, CreatedAt: created},
			wantStatus:    StatusDone,
			wantCompleted: true,
			wantPriority:  PriorityMedium,
		},
		{
			name:          "legacy open record",
			in:            Task{CreatedAt: created, DueDate: &empty},
			wantStatus:    StatusTodo,
			wantCompleted: false,
			wantPriority:  PriorityMedium,
		},
		{
			name:          "status wins over stale completed flag",
			in:            Task{Status: StatusInProgress, Completed: true, Priority: PriorityHigh, CreatedAt: created},
			wantStatus:    StatusInProgress,
			wantCompleted: false,
			wantPriority:  PriorityHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := tt.in
			task.Normalize()

			if task.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", task.Status, tt.wantStatus)
			}
			if task.Completed != tt.wantCompleted {
				t.Errorf("Completed = %v, want %v", task.Completed, tt.wantCompleted)
			}
			if task.Priority != tt.wantPriority {
				t.Errorf("Priority = %v, want %v", task.Priority, tt.wantPriority)
			}
			if task.DueDate != nil {
				t.Errorf("DueDate = %q, want nil", *task.DueDate)
			}
			if !task.UpdatedAt.Equal(created) {
				t.Errorf("UpdatedAt = %v, want %v", task.UpdatedAt, created)
			}
		})
	}
}

func TestChanges_Apply(t *testing.T) {
	due := "2026-02-01"
	done := StatusDone
	task := Task{Status: StatusTodo, DueDate: &due, Priority: PriorityLow}

	changes := Changes{
		Status:  &done,
		DueDate: NullableChange{Set: true},
	}
	if changes.Empty() {
		t.Fatal("Empty() = true, want false")
	}
	changes.Apply(&task)

	if task.Status != StatusDone || !task.Completed {
		t.Errorf("status/completed = %v/%v, want Done/true", task.Status, task.Completed)
	}
	if task.DueDate != nil {
		t.Errorf("DueDate = %v, want cleared", *task.DueDate)
	}
	if task.Priority != PriorityLow {
		t.Errorf("Priority = %v, want unchanged Low", task.Priority)
	}
}

func TestChanges_Empty(t *testing.T) {
	if !(Changes{UpdatedAt: time.Now()}).Empty() {
		t.Error("Empty() = false for a change set with only a timestamp")
	}
}
