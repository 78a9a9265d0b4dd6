// Package businessflow contains the core business logic: send-time scheduling, the queue lifecycle and follow-up gating
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Lookup errors
	ErrCampaignNotFound         = errors.New("campaign not found")
	ErrFollowupNotFound         = errors.New("follow-up not found")
	ErrProspectNotFound         = errors.New("prospect not found")
	ErrCampaignProspectNotFound = errors.New("prospect is not linked to campaign")

	// Schedule validation errors
	ErrNoRecipients        = errors.New("recipient list is empty")
	ErrNoEligibleProspects = errors.New("no eligible prospects")
	ErrVariantsRequired    = errors.New("at least one variant is required")
	ErrTooManyVariants     = errors.New("at most three variants are allowed")
	ErrIncompleteVariant   = errors.New("all variants must have subject and body filled")
	ErrDuplicateVariant    = errors.New("variant ids must be unique")
	ErrInvalidClock        = errors.New("time of day must be HH:MM")
	ErrInvalidInterval     = errors.New("interval must be at least 1 minute")

	// Lifecycle errors
	ErrInvalidFollowupRound    = errors.New("follow-up round must be 1 or 2")
	ErrFollowupLocked          = errors.New("follow-up round is locked until the previous round completes")
	ErrFollowupNotResettable   = errors.New("only completed or cancelled follow-ups can be reset")
	ErrCampaignNotCompleted    = errors.New("campaign is not completed")
	ErrOwnerNotScheduled       = errors.New("nothing is scheduled")
	ErrInvalidStatusTransition = errors.New("status transition is not allowed")

	// Concurrency errors
	ErrScheduleInProgress = errors.New("another schedule call is running for this owner")
	ErrDispatchInProgress = errors.New("another dispatch tick is running")

	// Campaign and prospect input errors
	ErrCampaignNameRequired = errors.New("campaign name is required")
	ErrNoProspectsProvided  = errors.New("no prospects provided")
	ErrInvalidEmail         = errors.New("invalid email address")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsFollowupNotFound(err error) bool {
	return errors.Is(err, ErrFollowupNotFound)
}

func IsProspectNotFound(err error) bool {
	return errors.Is(err, ErrProspectNotFound) || errors.Is(err, ErrCampaignProspectNotFound)
}

func IsFollowupLocked(err error) bool {
	return errors.Is(err, ErrFollowupLocked)
}

func IsNoEligibleProspects(err error) bool {
	return errors.Is(err, ErrNoEligibleProspects)
}

func IsScheduleInProgress(err error) bool {
	return errors.Is(err, ErrScheduleInProgress)
}

func IsDispatchInProgress(err error) bool {
	return errors.Is(err, ErrDispatchInProgress)
}

// IsStateConflict reports errors caused by the owner being in the wrong lifecycle state
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrFollowupNotResettable) ||
		errors.Is(err, ErrCampaignNotCompleted) ||
		errors.Is(err, ErrOwnerNotScheduled) ||
		errors.Is(err, ErrInvalidStatusTransition)
}

// IsValidationError reports input errors rejected before any side effect
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrNoRecipients, ErrVariantsRequired, ErrTooManyVariants, ErrIncompleteVariant,
		ErrDuplicateVariant, ErrInvalidClock, ErrInvalidInterval, ErrInvalidFollowupRound,
		ErrCampaignNameRequired, ErrNoProspectsProvided, ErrInvalidEmail,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

