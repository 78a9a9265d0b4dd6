package handlers

import (
	"github.com/amirphl/drip-mailer/app/dto"
	businessflow "github.com/amirphl/drip-mailer/business_flow"
	"github.com/gofiber/fiber/v3"
)

// QueueHandlerInterface defines the contract for scheduling and queue handlers
type QueueHandlerInterface interface {
	ScheduleCampaign(c fiber.Ctx) error
	CancelCampaign(c fiber.Ctx) error
	ScheduleFollowup(c fiber.Ctx) error
	CancelFollowup(c fiber.Ctx) error
	ListEmails(c fiber.Ctx) error
	DeleteEmails(c fiber.Ctx) error
}

// QueueHandler turns composed variants into queued emails and manages the queue
type QueueHandler struct {
	baseHandler
	queueFlow       businessflow.QueueFlow
	defaultInterval int
}

func NewQueueHandler(queueFlow businessflow.QueueFlow, defaultInterval int) *QueueHandler {
	if defaultInterval < 1 {
		defaultInterval = businessflow.DefaultIntervalMinutes
	}
	return &QueueHandler{
		baseHandler:     newBaseHandler(),
		queueFlow:       queueFlow,
		defaultInterval: defaultInterval,
	}
}

// clampInterval applies the composer defaults: an omitted interval falls back to the default, anything lower is raised to one minute
func clampInterval(minutes, defaultInterval int) int {
	if minutes == 0 {
		return defaultInterval
	}
	return max(1, minutes)
}

// bindSchedule parses the schedule body. A nil request means the error response was already written;
// the returned error is then the result of writing it.
func (h *QueueHandler) bindSchedule(c fiber.Ctx) (*dto.ScheduleRequest, error) {
	campaignID, err := parseIDParam(c, "id")
	if err != nil {
		return nil, h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}

	var req dto.ScheduleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return nil, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.CampaignID = campaignID
	req.IntervalMinutes = clampInterval(req.IntervalMinutes, h.defaultInterval)

	if details := h.validationDetails(&req); details != nil {
		return nil, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}
	return &req, nil
}

// ScheduleCampaign queues one email per linked prospect inside the daily window
// @Summary Schedule Campaign
// @Description Replaces every pending email of the campaign with a fresh schedule
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param id path int true "Campaign ID"
// @Param request body dto.ScheduleRequest true "Variants, daily window and interval"
// @Success 200 {object} dto.APIResponse{data=dto.ScheduleResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Schedule already running"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns/{id}/schedule [post]
func (h *QueueHandler) ScheduleCampaign(c fiber.Ctx) error {
	req, err := h.bindSchedule(c)
	if req == nil {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+c.Params("id")+"/schedule")
	defer cancel()

	result, err := h.queueFlow.ScheduleCampaign(ctx, req, h.metadata(c))
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to schedule campaign", "SCHEDULE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign scheduled successfully", result)
}

// CancelCampaign drops the pending emails of a scheduled campaign
// @Summary Cancel Campaign
// @Tags Scheduling
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.CancelResponse}
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Nothing is scheduled"
// @Router /api/v1/campaigns/{id}/cancel [post]
func (h *QueueHandler) CancelCampaign(c fiber.Ctx) error {
	campaignID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+c.Params("id")+"/cancel")
	defer cancel()

	result, err := h.queueFlow.CancelCampaign(ctx, campaignID, h.metadata(c))
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to cancel campaign", "CANCEL_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// ScheduleFollowup queues a follow-up round for the eligible prospects of a campaign
// @Summary Schedule Follow-Up
// @Tags Follow-Ups
// @Accept json
// @Produce json
// @Param id path int true "Campaign ID"
// @Param round path int true "Round (1 or 2)"
// @Param request body dto.ScheduleRequest true "Variants, daily window and interval"
// @Success 200 {object} dto.APIResponse{data=dto.ScheduleResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Round locked"
// @Failure 422 {object} dto.APIResponse "No eligible prospects"
// @Router /api/v1/campaigns/{id}/followups/{round}/schedule [post]
func (h *QueueHandler) ScheduleFollowup(c fiber.Ctx) error {
	round, err := parseRoundParam(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_ROUND", nil)
	}

	req, err := h.bindSchedule(c)
	if req == nil {
		return err
	}
	req.Round = round

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+c.Params("id")+"/followups/"+c.Params("round")+"/schedule")
	defer cancel()

	result, err := h.queueFlow.ScheduleFollowup(ctx, req, h.metadata(c))
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to schedule follow-up", "SCHEDULE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Follow-up scheduled successfully", result)
}

// CancelFollowup drops the pending emails of a scheduled follow-up round
// @Summary Cancel Follow-Up
// @Tags Follow-Ups
// @Produce json
// @Param id path int true "Campaign ID"
// @Param round path int true "Round (1 or 2)"
// @Success 200 {object} dto.APIResponse{data=dto.CancelResponse}
// @Failure 404 {object} dto.APIResponse "Follow-up not found"
// @Failure 409 {object} dto.APIResponse "Nothing is scheduled"
// @Router /api/v1/campaigns/{id}/followups/{round}/cancel [post]
func (h *QueueHandler) CancelFollowup(c fiber.Ctx) error {
	campaignID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}
	round, err := parseRoundParam(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_ROUND", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+c.Params("id")+"/followups/"+c.Params("round")+"/cancel")
	defer cancel()

	result, err := h.queueFlow.CancelFollowup(ctx, campaignID, round, h.metadata(c))
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to cancel follow-up", "CANCEL_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// ListEmails pages through queued emails
// @Summary List Emails
// @Tags Emails
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page (max 100)" default(20)
// @Param campaign_id query int false "Campaign ID"
// @Param followup_id query int false "Follow-up ID"
// @Param status query string false "pending|sent|failed"
// @Param to_email query string false "Recipient (contains)"
// @Success 200 {object} dto.APIResponse{data=dto.ListEmailsResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/emails [get]
func (h *QueueHandler) ListEmails(c fiber.Ctx) error {
	page, pageSize := queryPaging(c)
	req := &dto.ListEmailsRequest{
		Page:       page,
		PageSize:   pageSize,
		CampaignID: queryUint(c, "campaign_id"),
		FollowupID: queryUint(c, "followup_id"),
		Status:     queryString(c, "status"),
		ToEmail:    queryString(c, "to_email"),
	}
	if details := h.validationDetails(req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/emails")
	defer cancel()

	result, err := h.queueFlow.ListEmails(ctx, req)
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to list emails", "LIST_EMAILS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Emails retrieved successfully", result)
}

// DeleteEmails removes pending emails by id; sent and failed ones are kept
// @Summary Delete Pending Emails
// @Tags Emails
// @Accept json
// @Produce json
// @Param request body dto.DeleteEmailsRequest true "Queue item ids"
// @Success 200 {object} dto.APIResponse{data=dto.DeleteEmailsResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/emails [delete]
func (h *QueueHandler) DeleteEmails(c fiber.Ctx) error {
	var req dto.DeleteEmailsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if details := h.validationDetails(&req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/emails")
	defer cancel()

	result, err := h.queueFlow.DeleteEmails(ctx, &req, h.metadata(c))
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to delete emails", "DELETE_EMAILS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Pending emails deleted", result)
}
