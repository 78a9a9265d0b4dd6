package models

import (
	"database/sql/driver"
	"fmt"
)

// ScheduleStatus is the lifecycle status shared by campaigns and follow-up rounds
type ScheduleStatus string

const (
	ScheduleStatusDraft     ScheduleStatus = "draft"
	ScheduleStatusScheduled ScheduleStatus = "scheduled"
	ScheduleStatusCompleted ScheduleStatus = "completed"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
)

// String returns the string representation of the status
func (s ScheduleStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s ScheduleStatus) Valid() bool {
	switch s {
	case ScheduleStatusDraft, ScheduleStatusScheduled,
		ScheduleStatusCompleted, ScheduleStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no pending work is expected for the owner
func (s ScheduleStatus) IsTerminal() bool {
	return s == ScheduleStatusCompleted || s == ScheduleStatusCancelled
}

// Scan implements the sql.Scanner interface for ScheduleStatus
func (s *ScheduleStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ScheduleStatus(v)
	case []byte:
		*s = ScheduleStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ScheduleStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ScheduleStatus
func (s ScheduleStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ScheduleStatus: %s", s)
	}
	return string(s), nil
}

// CanTransitionTo checks the owner state machine.
// Scheduling is allowed from every state (a second schedule replaces the pending queue).
// Completion and cancellation only leave scheduled. Only a finished follow-up goes back to draft.
func (s ScheduleStatus) CanTransitionTo(next ScheduleStatus) bool {
	switch next {
	case ScheduleStatusScheduled:
		return s.Valid()
	case ScheduleStatusCompleted, ScheduleStatusCancelled:
		return s == ScheduleStatusScheduled
	case ScheduleStatusDraft:
		return s.IsTerminal()
	default:
		return false
	}
}

// DisplayName returns a human-readable status name
func (s ScheduleStatus) DisplayName() string {
	switch s {
	case ScheduleStatusDraft:
		return "Draft"
	case ScheduleStatusScheduled:
		return "Sending"
	case ScheduleStatusCompleted:
		return "Completed"
	case ScheduleStatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}
