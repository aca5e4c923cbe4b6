package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"indiflow/internal/models"
	"indiflow/pkg/response"
)

type StartRecordingRequest struct {
	Name string `json:"name" binding:"required"`
}

type StopRecordingRequest struct {
	Save bool `json:"save"`
}

type StopRecordingResponse struct {
	Session *models.RecordingSession `json:"session"`
	Flow    *models.IndiFlow         `json:"flow,omitempty"`
}

func (h *Handler) StartRecording(c *gin.Context) {
	var req StartRecordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	rs, err := h.eng.StartRecording(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "recording started", rs)
}

func (h *Handler) StopRecording(c *gin.Context) {
	var req StopRecordingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	ctx := c.Request.Context()
	rs, flow, err := h.eng.StopRecording(ctx, req.Save)
	if err != nil {
		h.fail(c, err)
		return
	}
	if flow != nil {
		h.resync(ctx)
	}
	response.SuccessWithMessage(c, "recording stopped", StopRecordingResponse{Session: rs, Flow: flow})
}

func (h *Handler) GetRecordingStatus(c *gin.Context) {
	rs := h.eng.Recorder.Session()
	data := gin.H{"recording": rs != nil}
	if rs != nil {
		data["session"] = rs
	}
	response.Success(c, data)
}

// AddNetworkCall accepts a network call observed by whatever hosts the page.
func (h *Handler) AddNetworkCall(c *gin.Context) {
	var call models.NetworkCall
	if err := c.ShouldBindJSON(&call); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if call.Method == "" || call.URL == "" {
		response.BadRequest(c, "method and url are required")
		return
	}
	if call.Timestamp.IsZero() {
		call.Timestamp = time.Now()
	}
	response.Success(c, h.eng.AddAPICall(call))
}
