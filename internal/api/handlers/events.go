package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"indiflow/internal/events"
)

const (
	eventBuffer = 64
	writeWait   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventsWebSocket streams recording and playback lifecycle events as JSON
// text frames until the client disconnects.
func (h *Handler) EventsWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := make(chan events.Event, eventBuffer)
	unsubscribe := h.eng.Bus.Subscribe(func(ev events.Event) {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("event stream client too slow, dropping event", zap.String("type", string(ev.Type)))
		}
	})
	defer unsubscribe()

	// the read loop only notices the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("encode event", zap.Error(err))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}
