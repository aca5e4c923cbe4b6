package handlers

import (
	"github.com/gin-gonic/gin"

	"indiflow/internal/models"
	"indiflow/internal/services"
	"indiflow/pkg/response"
)

// UpdateFlowRequest edits a stored flow. Omitted fields keep their value;
// an empty schedule string disables scheduling.
type UpdateFlowRequest struct {
	Name     *string            `json:"name"`
	Steps    *[]models.FlowStep `json:"steps"`
	Schedule *string            `json:"schedule"`
}

func (h *Handler) GetFlows(c *gin.Context) {
	flows, err := h.eng.Flows.GetAllFlows(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, flows)
}

func (h *Handler) GetFlow(c *gin.Context) {
	flow, err := h.eng.Flows.GetFlowByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, flow)
}

func (h *Handler) UpdateFlow(c *gin.Context) {
	ctx := c.Request.Context()
	var req UpdateFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	flow, err := h.eng.Flows.GetFlowByID(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if req.Name != nil {
		if *req.Name == "" {
			response.BadRequest(c, "name must not be empty")
			return
		}
		flow.Name = *req.Name
	}
	if req.Steps != nil {
		flow.Steps = *req.Steps
	}
	if req.Schedule != nil {
		if *req.Schedule != "" {
			if _, err := services.Parser.Parse(*req.Schedule); err != nil {
				response.BadRequest(c, "invalid schedule: "+err.Error())
				return
			}
		}
		flow.Schedule = *req.Schedule
	}
	if err := h.eng.Flows.UpdateFlow(ctx, *flow); err != nil {
		h.fail(c, err)
		return
	}
	h.resync(ctx)

	updated, err := h.eng.Flows.GetFlowByID(ctx, flow.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "flow updated", updated)
}

func (h *Handler) DeleteFlow(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.eng.Flows.DeleteFlow(ctx, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	h.resync(ctx)
	response.SuccessWithMessage(c, "flow deleted", nil)
}

// GetFragileLocators reports the locator strategies of a flow that failed
// in most of their attempts across its recent playbacks.
func (h *Handler) GetFragileLocators(c *gin.Context) {
	flow, err := h.eng.Flows.GetFlowByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, h.eng.FragileLocators(flow.ID))
}
