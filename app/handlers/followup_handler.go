package handlers

import (
	businessflow "github.com/amirphl/drip-mailer/business_flow"
	"github.com/gofiber/fiber/v3"
)

// FollowupHandlerInterface defines the contract for follow-up handlers
type FollowupHandlerInterface interface {
	ListFollowups(c fiber.Ctx) error
	ResetFollowup(c fiber.Ctx) error
	ExcludeProspect(c fiber.Ctx) error
}

// FollowupHandler serves the follow-up rounds of a campaign
type FollowupHandler struct {
	baseHandler
	followupFlow businessflow.FollowupFlow
}

func NewFollowupHandler(followupFlow businessflow.FollowupFlow) *FollowupHandler {
	return &FollowupHandler{
		baseHandler:  newBaseHandler(),
		followupFlow: followupFlow,
	}
}

// ListFollowups returns both rounds with their lock flag and queue stats
// @Summary List Follow-Ups
// @Tags Follow-Ups
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.ListFollowupsResponse}
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{id}/followups [get]
func (h *FollowupHandler) ListFollowups(c fiber.Ctx) error {
	campaignID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+c.Params("id")+"/followups")
	defer cancel()

	result, err := h.followupFlow.ListFollowups(ctx, campaignID)
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to list follow-ups", "LIST_FOLLOWUPS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Follow-ups retrieved successfully", result)
}

// ResetFollowup returns a completed or cancelled round to draft
// @Summary Reset Follow-Up
// @Tags Follow-Ups
// @Produce json
// @Param id path int true "Campaign ID"
// @Param round path int true "Round (1 or 2)"
// @Success 200 {object} dto.APIResponse{data=dto.FollowupItem}
// @Failure 404 {object} dto.APIResponse "Follow-up not found"
// @Failure 409 {object} dto.APIResponse "Round is not completed or cancelled"
// @Router /api/v1/campaigns/{id}/followups/{round}/reset [post]
func (h *FollowupHandler) ResetFollowup(c fiber.Ctx) error {
	campaignID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}
	round, err := parseRoundParam(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_ROUND", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+c.Params("id")+"/followups/"+c.Params("round")+"/reset")
	defer cancel()

	result, err := h.followupFlow.ResetFollowup(ctx, campaignID, round, h.metadata(c))
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to reset follow-up", "RESET_FOLLOWUP_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Follow-up reset to draft", result)
}

// ExcludeProspect keeps a prospect out of every follow-up round of the campaign
// @Summary Exclude Prospect From Follow-Ups
// @Tags Follow-Ups
// @Produce json
// @Param id path int true "Campaign ID"
// @Param prospectId path int true "Prospect ID"
// @Success 200 {object} dto.APIResponse{data=dto.ExcludeProspectResponse}
// @Failure 404 {object} dto.APIResponse "Prospect is not linked to the campaign"
// @Failure 409 {object} dto.APIResponse "Campaign is not completed"
// @Router /api/v1/campaigns/{id}/prospects/{prospectId}/exclude [post]
func (h *FollowupHandler) ExcludeProspect(c fiber.Ctx) error {
	campaignID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}
	prospectID, err := parseIDParam(c, "prospectId")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_PROSPECT_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+c.Params("id")+"/prospects/"+c.Params("prospectId")+"/exclude")
	defer cancel()

	result, err := h.followupFlow.ExcludeProspect(ctx, campaignID, prospectID, h.metadata(c))
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to exclude prospect", "EXCLUDE_PROSPECT_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}
