package task

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/example/taskboard/domain/apperr"
	domain "github.com/example/taskboard/domain/task"
)

var (
	ErrTitleRequired   = apperr.Validation("Title is required")
	ErrInvalidTitle    = apperr.Validation("Title must be a non-empty string")
	ErrInvalidStatus   = apperr.Validation("Status must be one of Todo, In Progress, Done")
	ErrInvalidPriority = apperr.Validation("Priority must be one of Low, Medium, High")
	ErrInvalidComplete = apperr.Validation("Completed must be a boolean")
	ErrInvalidDueDate  = apperr.Validation("Due date must be formatted as YYYY-MM-DD")
	ErrInvalidReminder = apperr.Validation("Reminder must be formatted as YYYY-MM-DDTHH:MM")
	ErrInvalidPatch    = apperr.Validation("Request body must be a JSON object")
	ErrNoChanges       = apperr.Validation("No changes provided")
)

// Patch field names, in the order they are reported.
const (
	fieldTitle      = "title"
	fieldStatus     = "status"
	fieldPriority   = "priority"
	fieldDueDate    = "dueDate"
	fieldReminderAt = "reminderAt"
	fieldCompleted  = "completed"
)

// parsePatch turns a raw JSON object into a validated change set and the list
// of fields it changes. Unknown keys are ignored. A status key wins over
// completed. For the date fields "" means not provided and null clears.
func parsePatch(raw json.RawMessage) (domain.Changes, []string, error) {
	var changes domain.Changes

	var fields map[string]json.RawMessage
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if trimmed[0] != '{' {
			return changes, nil, ErrInvalidPatch
		}
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return changes, nil, ErrInvalidPatch
		}
	}

	var changed []string

	if value, ok := fields[fieldTitle]; ok {
		var title string
		if err := json.Unmarshal(value, &title); err != nil || isNull(value) {
			return changes, nil, ErrInvalidTitle
		}
		title = strings.TrimSpace(title)
		if title == "" {
			return changes, nil, ErrInvalidTitle
		}
		changes.Title = &title
		changed = append(changed, fieldTitle)
	}

	if value, ok := fields[fieldStatus]; ok {
		var s string
		if err := json.Unmarshal(value, &s); err != nil || isNull(value) {
			return changes, nil, ErrInvalidStatus
		}
		status, ok := domain.ParseStatus(s)
		if !ok {
			return changes, nil, ErrInvalidStatus
		}
		changes.Status = &status
		changed = append(changed, fieldStatus)
	} else if value, ok := fields[fieldCompleted]; ok {
		var completed bool
		if err := json.Unmarshal(value, &completed); err != nil || isNull(value) {
			return changes, nil, ErrInvalidComplete
		}
		status := domain.StatusTodo
		if completed {
			status = domain.StatusDone
		}
		changes.Status = &status
		changed = append(changed, fieldStatus)
	}

	if value, ok := fields[fieldPriority]; ok {
		var p string
		if err := json.Unmarshal(value, &p); err != nil || isNull(value) {
			return changes, nil, ErrInvalidPriority
		}
		priority, ok := domain.ParsePriority(p)
		if !ok {
			return changes, nil, ErrInvalidPriority
		}
		changes.Priority = &priority
		changed = append(changed, fieldPriority)
	}

	if value, ok := fields[fieldDueDate]; ok {
		change, err := parseNullable(value, domain.ValidDate, ErrInvalidDueDate)
		if err != nil {
			return changes, nil, err
		}
		if change.Set {
			changes.DueDate = change
			changed = append(changed, fieldDueDate)
		}
	}

	if value, ok := fields[fieldReminderAt]; ok {
		change, err := parseNullable(value, domain.ValidReminder, ErrInvalidReminder)
		if err != nil {
			return changes, nil, err
		}
		if change.Set {
			changes.ReminderAt = change
			changed = append(changed, fieldReminderAt)
		}
	}

	if changes.Empty() {
		return changes, nil, ErrNoChanges
	}
	return changes, changed, nil
}

func parseNullable(value json.RawMessage, valid func(string) bool, invalid error) (domain.NullableChange, error) {
	if isNull(value) {
		return domain.NullableChange{Set: true}, nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return domain.NullableChange{}, invalid
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.NullableChange{}, nil
	}
	if !valid(s) {
		return domain.NullableChange{}, invalid
	}
	return domain.NullableChange{Set: true, Value: &s}, nil
}

// optionalDate normalizes a create-time optional field: "" becomes nil.
func optionalDate(s string, valid func(string) bool, invalid error) (*string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if !valid(s) {
		return nil, invalid
	}
	return &s, nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}
