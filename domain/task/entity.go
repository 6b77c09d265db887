package task

import (
	"time"
)

// Status is the primary state of a task.
type Status string

const (
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// ParseStatus returns the Status named by s. Matching is exact.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusTodo, StatusInProgress, StatusDone:
		return Status(s), true
	}
	return "", false
}

// Priority orders tasks for the focus list.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// ParsePriority returns the Priority named by s. Matching is exact.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(s), true
	}
	return "", false
}

// Rank returns 3 for High, 2 for Medium and 1 for Low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	default:
		return 2
	}
}

const (
	// DateLayout is the only accepted dueDate form.
	DateLayout = "2006-01-02"
	// ReminderLayout is the only accepted reminderAt form (local, no zone).
	ReminderLayout = "2006-01-02T15:04"
)

// ValidDate reports whether s is a real calendar date written as YYYY-MM-DD.
func ValidDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ValidReminder reports whether s is a real local date-time written as YYYY-MM-DDTHH:MM.
func ValidReminder(s string) bool {
	if len(s) != len(ReminderLayout) {
		return false
	}
	_, err := time.Parse(ReminderLayout, s)
	return err == nil
}

// Task is a unit of work owned by exactly one user.
type Task struct {
	ID         string    `gorm:"primaryKey;type:text" json:"id"`
	OwnerID    string    `gorm:"not null;type:text;index:idx_tasks_owner_created,priority:1" json:"-"`
	Title      string    `gorm:"not null;type:text" json:"title"`
	Status     Status    `gorm:"type:text;index" json:"status"`
	Completed  bool      `gorm:"not null;default:false" json:"completed"`
	Priority   Priority  `gorm:"type:text" json:"priority"`
	DueDate    *string   `gorm:"type:text" json:"dueDate"`
	ReminderAt *string   `gorm:"type:text" json:"reminderAt"`
	CreatedAt  time.Time `gorm:"autoCreateTime:false;index:idx_tasks_owner_created,priority:2,sort:desc" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime:false" json:"updatedAt"`
}

// TableName returns the table name for the Task entity.
func (Task) TableName() string {
	return "tasks"
}

// SetStatus sets the status and keeps Completed in agreement with it.
func (t *Task) SetStatus(s Status) {
	t.Status = s
	t.Completed = s == StatusDone
}

// IsDone reports whether the task counts as completed.
func (t *Task) IsDone() bool {
	return t.Status == StatusDone || t.Completed
}

// Touched returns the last modification time, falling back to creation time.
func (t *Task) Touched() time.Time {
	if t.UpdatedAt.IsZero() {
		return t.CreatedAt
	}
	return t.UpdatedAt
}

// Normalize fills defaults for records written before status, priority and
// the date fields existed.
func (t *Task) Normalize() {
	status, ok := ParseStatus(string(t.Status))
	if !ok {
		status = StatusTodo
		if t.Completed {
			status = StatusDone
		}
	}
	t.SetStatus(status)

	if _, ok := ParsePriority(string(t.Priority)); !ok {
		t.Priority = PriorityMedium
	}
	if t.DueDate != nil && *t.DueDate == "" {
		t.DueDate = nil
	}
	if t.ReminderAt != nil && *t.ReminderAt == "" {
		t.ReminderAt = nil
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
}

// NullableChange describes an update to an optional string field.
// Set=false leaves the field alone; Set=true with a nil Value clears it.
type NullableChange struct {
	Set   bool
	Value *string
}

// Changes is a validated partial update. Status also drives Completed.
type Changes struct {
	Title      *string
	Status     *Status
	Priority   *Priority
	DueDate    NullableChange
	ReminderAt NullableChange
	UpdatedAt  time.Time
}

// Empty reports whether no field would change.
func (c Changes) Empty() bool {
	return c.Title == nil && c.Status == nil && c.Priority == nil &&
		!c.DueDate.Set && !c.ReminderAt.Set
}

// Apply writes the changes onto t.
func (c Changes) Apply(t *Task) {
	if c.Title != nil {
		t.Title = *c.Title
	}
	if c.Status != nil {
		t.SetStatus(*c.Status)
	}
	if c.Priority != nil {
		t.Priority = *c.Priority
	}
	if c.DueDate.Set {
		t.DueDate = c.DueDate.Value
	}
	if c.ReminderAt.Set {
		t.ReminderAt = c.ReminderAt.Value
	}
	if !c.UpdatedAt.IsZero() {
		t.UpdatedAt = c.UpdatedAt
	}
}
