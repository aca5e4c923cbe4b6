package handlers

import (
	"github.com/gin-gonic/gin"

	"indiflow/pkg/response"
)

// PlayFlow starts replaying a flow and returns at once. Progress and the
// result are published on the event stream.
func (h *Handler) PlayFlow(c *gin.Context) {
	flow, err := h.eng.StartPlayback(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "playback started", gin.H{"flowId": flow.ID, "totalSteps": len(flow.Steps)})
}

func (h *Handler) StopPlayback(c *gin.Context) {
	stopped := h.eng.StopPlayback(c.Request.Context())
	response.Success(c, gin.H{"stopped": stopped})
}

func (h *Handler) ResumePlayback(c *gin.Context) {
	resumed, err := h.eng.ResumePlayback(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if !resumed {
		response.NotFound(c, "no playback to resume")
		return
	}
	response.SuccessWithMessage(c, "playback resumed", gin.H{"resumed": true})
}

func (h *Handler) GetPlaybackStatus(c *gin.Context) {
	st, err := h.eng.Status(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	data := gin.H{"playing": st.Mode == "playing"}
	if st.Playback != nil {
		data["session"] = st.Playback
	}
	response.Success(c, data)
}
