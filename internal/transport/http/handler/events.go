package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hookline/hookline/internal/metrics"
	"github.com/hookline/hookline/internal/notify"
)

// heartbeatInterval keeps intermediaries from timing out an otherwise idle
// event stream.
const heartbeatInterval = 30 * time.Second

type EventsHandler struct {
	broadcaster *notify.Broadcaster
	logger      *slog.Logger
}

func NewEventsHandler(broadcaster *notify.Broadcaster, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		broadcaster: broadcaster,
		logger:      logger.With("component", "events_handler"),
	}
}

// Stream serves the caller's live execution events over SSE. Delivery is
// best-effort: a consumer that stops reading is disconnected by the
// broadcaster, and nothing is replayed on reconnect.
func (h *EventsHandler) Stream(ctx *gin.Context) {
	userID := ctx.GetString("userID")

	sub := h.broadcaster.Subscribe(userID)
	defer sub.Close()

	metrics.SSESubscribers.Inc()
	defer metrics.SSESubscribers.Dec()

	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.Header("X-Accel-Buffering", "no")
	ctx.Writer.Flush()

	h.logger.Debug("sse stream opened", "user_id", userID)
	defer h.logger.Debug("sse stream closed", "user_id", userID)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	clientGone := ctx.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				// Dropped by the broadcaster for falling behind.
				return
			}
			ctx.SSEvent(ev.Type, ev)
			ctx.Writer.Flush()
		case <-heartbeat.C:
			ctx.SSEvent("heartbeat", gin.H{"ts": time.Now().Unix()})
			ctx.Writer.Flush()
		}
	}
}
