package handlers

import (
	"github.com/amirphl/drip-mailer/app/dto"
	businessflow "github.com/amirphl/drip-mailer/business_flow"
	"github.com/gofiber/fiber/v3"
)

// ProspectHandlerInterface defines the contract for prospect handlers
type ProspectHandlerInterface interface {
	ImportProspects(c fiber.Ctx) error
	ListProspects(c fiber.Ctx) error
	DeleteProspect(c fiber.Ctx) error
	ListCampaignProspects(c fiber.Ctx) error
	LinkProspects(c fiber.Ctx) error
	UnlinkProspect(c fiber.Ctx) error
}

// ProspectHandler handles the contact list and its campaign links
type ProspectHandler struct {
	baseHandler
	prospectFlow businessflow.ProspectFlow
}

func NewProspectHandler(prospectFlow businessflow.ProspectFlow) *ProspectHandler {
	return &ProspectHandler{
		baseHandler:  newBaseHandler(),
		prospectFlow: prospectFlow,
	}
}

// ImportProspects upserts prospects by email
// @Summary Import Prospects
// @Tags Prospects
// @Accept json
// @Produce json
// @Param request body dto.ImportProspectsRequest true "Prospect rows"
// @Success 200 {object} dto.APIResponse{data=dto.ImportProspectsResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/prospects/import [post]
func (h *ProspectHandler) ImportProspects(c fiber.Ctx) error {
	var req dto.ImportProspectsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if details := h.validationDetails(&req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/prospects/import")
	defer cancel()

	result, err := h.prospectFlow.ImportProspects(ctx, &req, h.metadata(c))
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to import prospects", "IMPORT_PROSPECTS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Prospects imported successfully", result)
}

// ListProspects pages through every prospect
// @Summary List Prospects
// @Tags Prospects
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page (max 100)" default(20)
// @Param search query string false "Search email, name or company"
// @Success 200 {object} dto.APIResponse{data=dto.ListProspectsResponse}
// @Router /api/v1/prospects [get]
func (h *ProspectHandler) ListProspects(c fiber.Ctx) error {
	page, pageSize := queryPaging(c)
	req := &dto.ListProspectsRequest{
		Page:     page,
		PageSize: pageSize,
		Search:   queryString(c, "search"),
	}
	return h.listProspects(c, req, "/api/v1/prospects")
}

// ListCampaignProspects pages through the prospects linked to a campaign
// @Summary List Campaign Prospects
// @Tags Prospects
// @Produce json
// @Param id path int true "Campaign ID"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page (max 100)" default(20)
// @Param search query string false "Search email, name or company"
// @Success 200 {object} dto.APIResponse{data=dto.ListProspectsResponse}
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{id}/prospects [get]
func (h *ProspectHandler) ListCampaignProspects(c fiber.Ctx) error {
	campaignID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}

	page, pageSize := queryPaging(c)
	req := &dto.ListProspectsRequest{
		Page:       page,
		PageSize:   pageSize,
		Search:     queryString(c, "search"),
		CampaignID: &campaignID,
	}
	return h.listProspects(c, req, "/api/v1/campaigns/"+c.Params("id")+"/prospects")
}

func (h *ProspectHandler) listProspects(c fiber.Ctx, req *dto.ListProspectsRequest, endpoint string) error {
	ctx, cancel := h.createRequestContext(c, endpoint)
	defer cancel()

	result, err := h.prospectFlow.ListProspects(ctx, req)
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to list prospects", "LIST_PROSPECTS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Prospects retrieved successfully", result)
}

// DeleteProspect removes a prospect and its campaign links
// @Summary Delete Prospect
// @Tags Prospects
// @Produce json
// @Param id path int true "Prospect ID"
// @Success 200 {object} dto.APIResponse{data=dto.DeleteProspectResponse}
// @Failure 404 {object} dto.APIResponse "Prospect not found"
// @Router /api/v1/prospects/{id} [delete]
func (h *ProspectHandler) DeleteProspect(c fiber.Ctx) error {
	prospectID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_PROSPECT_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/prospects/"+c.Params("id"))
	defer cancel()

	result, err := h.prospectFlow.DeleteProspect(ctx, prospectID, h.metadata(c))
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to delete prospect", "DELETE_PROSPECT_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// LinkProspects attaches existing prospects to a campaign
// @Summary Link Prospects
// @Tags Prospects
// @Accept json
// @Produce json
// @Param id path int true "Campaign ID"
// @Param request body dto.LinkProspectsRequest true "Prospect ids"
// @Success 200 {object} dto.APIResponse{data=dto.LinkProspectsResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{id}/prospects [post]
func (h *ProspectHandler) LinkProspects(c fiber.Ctx) error {
	campaignID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}

	var req dto.LinkProspectsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.CampaignID = campaignID
	if details := h.validationDetails(&req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+c.Params("id")+"/prospects")
	defer cancel()

	result, err := h.prospectFlow.LinkProspects(ctx, &req, h.metadata(c))
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to link prospects", "LINK_PROSPECTS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Prospects linked successfully", result)
}

// UnlinkProspect detaches a prospect from a campaign; emails already queued for it stay
// @Summary Unlink Prospect
// @Tags Prospects
// @Produce json
// @Param id path int true "Campaign ID"
// @Param prospectId path int true "Prospect ID"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse "Prospect is not linked to the campaign"
// @Router /api/v1/campaigns/{id}/prospects/{prospectId} [delete]
func (h *ProspectHandler) UnlinkProspect(c fiber.Ctx) error {
	campaignID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}
	prospectID, err := parseIDParam(c, "prospectId")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_PROSPECT_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+c.Params("id")+"/prospects/"+c.Params("prospectId"))
	defer cancel()

	if err := h.prospectFlow.UnlinkProspect(ctx, campaignID, prospectID, h.metadata(c)); err != nil {
		return h.handleBusinessError(c, err, "Failed to unlink prospect", "UNLINK_PROSPECT_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Prospect removed from campaign", nil)
}
