// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/drip-mailer/app/dto"
	businessflow "github.com/amirphl/drip-mailer/business_flow"
	"github.com/amirphl/drip-mailer/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/sirupsen/logrus"
)

// baseHandler carries the response envelope helpers shared by every handler
type baseHandler struct {
	validator *validator.Validate
}

func newBaseHandler() baseHandler {
	return baseHandler{validator: validator.New()}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validationDetails runs struct validation and returns the per-field messages, or nil when the request is valid
func (h *baseHandler) validationDetails(req any) any {
	err := h.validator.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err.Error()
	}

	validationErrors := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		validationErrors = append(validationErrors, getValidationErrorMessage(fe))
	}
	return validationErrors
}

// metadata collects the caller information passed down to mutating flows
func (h *baseHandler) metadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	if rid := requestid.FromContext(c); rid != "" {
		metadata.SetRequestID(rid)
	} else {
		metadata.SetRequestID(c.Get(businessflow.RequestIDKey))
	}
	return metadata
}

// createRequestContext creates a context with request-scoped values for observability and timeout.
// The caller must invoke the returned cancel function.
func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, utils.DefaultRequestTimeout)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *baseHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)

	return ctx, cancel
}

// handleBusinessError maps flow errors onto HTTP statuses. Anything unrecognised is logged and
// answered with a 500 carrying the fallback message and code.
func (h *baseHandler) handleBusinessError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	switch {
	case businessflow.IsValidationError(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, validationMessage(err), "VALIDATION_ERROR", nil)
	case businessflow.IsCampaignNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
	case businessflow.IsFollowupNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Follow-up not found", "FOLLOWUP_NOT_FOUND", nil)
	case businessflow.IsProspectNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Prospect not found", "PROSPECT_NOT_FOUND", nil)
	case businessflow.IsFollowupLocked(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Follow-up round is locked until the previous round completes", "FOLLOWUP_LOCKED", nil)
	case businessflow.IsNoEligibleProspects(err):
		return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "No eligible prospects for this follow-up", "NO_ELIGIBLE_PROSPECTS", nil)
	case businessflow.IsStateConflict(err):
		return h.ErrorResponse(c, fiber.StatusConflict, stateMessage(err), "INVALID_STATE", nil)
	case businessflow.IsScheduleInProgress(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Another schedule request is running for this campaign", "SCHEDULE_IN_PROGRESS", nil)
	case businessflow.IsDispatchInProgress(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Another dispatch tick is running", "DISPATCH_IN_PROGRESS", nil)
	}

	logrus.WithFields(h.metadata(c).LogFields()).WithFields(logrus.Fields{
		"path":   c.Path(),
		"method": c.Method(),
	}).WithError(err).Error(fallbackMessage)

	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}

// validationMessage surfaces the sentinel text of a validation error verbatim
func validationMessage(err error) string {
	var be *businessflow.BusinessError
	if errors.As(err, &be) && be.Err != nil {
		return be.Err.Error()
	}
	return err.Error()
}

func stateMessage(err error) string {
	switch {
	case errors.Is(err, businessflow.ErrFollowupNotResettable):
		return "Only completed or cancelled follow-ups can be reset"
	case errors.Is(err, businessflow.ErrCampaignNotCompleted):
		return "Campaign must be completed first"
	case errors.Is(err, businessflow.ErrInvalidStatusTransition):
		return "Status does not allow this change"
	default:
		return "Nothing is scheduled"
	}
}

func parseIDParam(c fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return uint(id), nil
}

func parseRoundParam(c fiber.Ctx) (int, error) {
	round, err := strconv.Atoi(c.Params("round"))
	if err != nil || (round != 1 && round != 2) {
		return 0, businessflow.ErrInvalidFollowupRound
	}
	return round, nil
}

// queryUint reads an optional positive integer query parameter
func queryUint(c fiber.Ctx, name string) *uint {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return nil
	}
	id := uint(v)
	return &id
}

func queryString(c fiber.Ctx, name string) *string {
	if v := c.Query(name); v != "" {
		return &v
	}
	return nil
}

func queryPaging(c fiber.Ctx) (int, int) {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	return page, pageSize
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return err.Field() + " must have at least " + err.Param() + " entries or characters"
	case "max":
		return err.Field() + " must have at most " + err.Param() + " entries or characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
