package handlers

import (
	"github.com/amirphl/drip-mailer/app/dto"
	businessflow "github.com/amirphl/drip-mailer/business_flow"
	"github.com/gofiber/fiber/v3"
)

// DispatchHandler exposes the dispatch tick to an external trigger such as cron
type DispatchHandler struct {
	baseHandler
	dispatchFlow businessflow.DispatchFlow
}

func NewDispatchHandler(dispatchFlow businessflow.DispatchFlow) *DispatchHandler {
	return &DispatchHandler{
		baseHandler:  newBaseHandler(),
		dispatchFlow: dispatchFlow,
	}
}

// Tick sends the due batch
// @Summary Dispatch Tick
// @Tags Dispatch
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.DispatchResponse}
// @Failure 409 {object} dto.APIResponse "Another tick is running"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/dispatch/tick [post]
func (h *DispatchHandler) Tick(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/dispatch/tick")
	defer cancel()

	result, err := h.dispatchFlow.DispatchTick(ctx)
	if err != nil {
		return h.handleBusinessError(c, err, "Dispatch tick failed", "DISPATCH_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Dispatch tick completed", dto.DispatchResponse{
		Processed: result.Processed,
		Sent:      result.Sent,
		Failed:    result.Failed,
		Completed: result.Completed,
	})
}
