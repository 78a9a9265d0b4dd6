package handlers

import (
	"github.com/amirphl/drip-mailer/app/dto"
	businessflow "github.com/amirphl/drip-mailer/business_flow"
	"github.com/amirphl/drip-mailer/utils"
	"github.com/gofiber/fiber/v3"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	RenameCampaign(c fiber.Ctx) error
	DeleteCampaign(c fiber.Ctx) error
	DuplicateCampaign(c fiber.Ctx) error
	GetAnalytics(c fiber.Ctx) error
	ExportQueue(c fiber.Ctx) error
	GetDashboard(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	baseHandler
	campaignFlow businessflow.CampaignFlow
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow) *CampaignHandler {
	return &CampaignHandler{
		baseHandler:  newBaseHandler(),
		campaignFlow: campaignFlow,
	}
}

// CreateCampaign handles the campaign creation process
// @Summary Create Campaign
// @Description Create a new draft campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param request body dto.CreateCampaignRequest true "Campaign creation data"
// @Success 201 {object} dto.APIResponse{data=dto.CampaignItem} "Campaign created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if details := h.validationDetails(&req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns")
	defer cancel()

	result, err := h.campaignFlow.CreateCampaign(ctx, &req, h.metadata(c))
	if err != nil {
		return h.handleBusinessError(c, err, "Campaign creation failed", "CAMPAIGN_CREATION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", result)
}

// ListCampaigns lists campaigns with their prospect count and queue stats
// @Summary List Campaigns
// @Tags Campaigns
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page (max 100)" default(20)
// @Param name query string false "Filter by name (contains)"
// @Param status query string false "Filter by status (draft|scheduled|completed|cancelled)"
// @Success 200 {object} dto.APIResponse{data=dto.ListCampaignsResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	page, pageSize := queryPaging(c)
	req := &dto.ListCampaignsRequest{
		Page:     page,
		PageSize: pageSize,
		Name:     queryString(c, "name"),
		Status:   queryString(c, "status"),
	}
	if details := h.validationDetails(req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns")
	defer cancel()

	result, err := h.campaignFlow.ListCampaigns(ctx, req)
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to list campaigns", "LIST_CAMPAIGNS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaigns retrieved successfully", result)
}

// GetCampaign returns one campaign
// @Summary Get Campaign
// @Tags Campaigns
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignItem}
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{id} [get]
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	campaignID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+c.Params("id"))
	defer cancel()

	result, err := h.campaignFlow.GetCampaign(ctx, campaignID)
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to get campaign", "GET_CAMPAIGN_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign retrieved successfully", result)
}

// RenameCampaign changes a campaign name
// @Summary Rename Campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path int true "Campaign ID"
// @Param request body dto.RenameCampaignRequest true "New name"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignItem}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{id} [patch]
func (h *CampaignHandler) RenameCampaign(c fiber.Ctx) error {
	campaignID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}

	var req dto.RenameCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.CampaignID = campaignID
	if details := h.validationDetails(&req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+c.Params("id"))
	defer cancel()

	result, err := h.campaignFlow.RenameCampaign(ctx, &req, h.metadata(c))
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to rename campaign", "RENAME_CAMPAIGN_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign renamed successfully", result)
}

// DeleteCampaign removes a campaign together with its queue, follow-ups and prospect links
// @Summary Delete Campaign
// @Tags Campaigns
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.DeleteCampaignResponse}
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{id} [delete]
func (h *CampaignHandler) DeleteCampaign(c fiber.Ctx) error {
	campaignID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+c.Params("id"))
	defer cancel()

	result, err := h.campaignFlow.DeleteCampaign(ctx, campaignID, h.metadata(c))
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to delete campaign", "DELETE_CAMPAIGN_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// DuplicateCampaign copies a campaign and its prospect links into a new draft
// @Summary Duplicate Campaign
// @Tags Campaigns
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 201 {object} dto.APIResponse{data=dto.DuplicateCampaignResponse}
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{id}/duplicate [post]
func (h *CampaignHandler) DuplicateCampaign(c fiber.Ctx) error {
	campaignID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+c.Params("id")+"/duplicate")
	defer cancel()

	result, err := h.campaignFlow.DuplicateCampaign(ctx, campaignID, h.metadata(c))
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to duplicate campaign", "DUPLICATE_CAMPAIGN_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign duplicated successfully", result)
}

// GetAnalytics returns the queue breakdown of a campaign and its follow-up rounds
// @Summary Campaign Analytics
// @Tags Campaigns
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignAnalyticsResponse}
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{id}/analytics [get]
func (h *CampaignHandler) GetAnalytics(c fiber.Ctx) error {
	campaignID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+c.Params("id")+"/analytics")
	defer cancel()

	result, err := h.campaignFlow.GetAnalytics(ctx, campaignID)
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to load analytics", "ANALYTICS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Analytics retrieved successfully", result)
}

// ExportQueue downloads the campaign queue as an xlsx workbook
// @Summary Export Campaign Queue
// @Tags Campaigns
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path int true "Campaign ID"
// @Success 200 {file} file "XLSX workbook"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns/{id}/export [get]
func (h *CampaignHandler) ExportQueue(c fiber.Ctx) error {
	campaignID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CAMPAIGN_ID", nil)
	}

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/campaigns/"+c.Params("id")+"/export", utils.ExportRequestTimeout)
	defer cancel()

	filename, data, err := h.campaignFlow.ExportQueue(ctx, campaignID)
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to export queue", "EXPORT_FAILED")
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// GetDashboard returns the headline counters
// @Summary Dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.DashboardResponse}
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/dashboard [get]
func (h *CampaignHandler) GetDashboard(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/dashboard")
	defer cancel()

	result, err := h.campaignFlow.GetDashboard(ctx)
	if err != nil {
		return h.handleBusinessError(c, err, "Failed to load dashboard", "DASHBOARD_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Dashboard retrieved successfully", result)
}
