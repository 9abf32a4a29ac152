package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/internal/usecase"
)

type ExecutionLogHandler struct {
	uc     *usecase.ExecutionLogUsecase
	logger *slog.Logger
}

func NewExecutionLogHandler(uc *usecase.ExecutionLogUsecase, logger *slog.Logger) *ExecutionLogHandler {
	return &ExecutionLogHandler{uc: uc, logger: logger.With("component", "execlog_handler")}
}

type logResponse struct {
	ID           string               `json:"id"`
	ScheduleID   string               `json:"schedule_id"`
	ScheduleName string               `json:"schedule_name"`
	WebhookURL   string               `json:"webhook_url"`
	HTTPMethod   string               `json:"http_method"`
	Outcome      domain.Outcome       `json:"outcome"`
	Status       *int                 `json:"response_status,omitempty"`
	ResponseBody *string              `json:"response_body,omitempty"`
	ErrorMessage *string              `json:"error_message,omitempty"`
	DurationMS   int64                `json:"duration_ms"`
	TriggeredBy  domain.TriggerSource `json:"triggered_by"`
	ExecutedAt   time.Time            `json:"executed_at"`
}

func toLogResponse(e *domain.ExecutionLog) logResponse {
	return logResponse{
		ID:           e.ID,
		ScheduleID:   e.ScheduleID,
		ScheduleName: e.ScheduleName,
		WebhookURL:   e.WebhookURL,
		HTTPMethod:   e.HTTPMethod,
		Outcome:      e.Outcome,
		Status:       e.ResponseStatus,
		ResponseBody: e.ResponseBody,
		ErrorMessage: e.ErrorMessage,
		DurationMS:   e.DurationMS,
		TriggeredBy:  e.TriggeredBy,
		ExecutedAt:   e.ExecutedAt,
	}
}

func (h *ExecutionLogHandler) List(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	result, err := h.uc.ListLogs(ctx.Request.Context(), usecase.ListLogsInput{
		UserID:     ctx.GetString("userID"),
		ScheduleID: ctx.Query("schedule_id"),
		Outcome:    domain.Outcome(ctx.Query("outcome")),
		Cursor:     ctx.Query("cursor"),
		Limit:      limit,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCursor) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCursor})
			return
		}
		h.logger.Error("list execution logs", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	responses := make([]logResponse, 0, len(result.Logs))
	for _, e := range result.Logs {
		responses = append(responses, toLogResponse(e))
	}

	ctx.JSON(http.StatusOK, gin.H{
		"logs":        responses,
		"next_cursor": result.NextCursor,
	})
}

func (h *ExecutionLogHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := h.uc.DeleteLog(ctx.Request.Context(), id, ctx.GetString("userID")); err != nil {
		if errors.Is(err, domain.ErrLogNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errLogNotFound})
			return
		}
		h.logger.Error("delete execution log", "log_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *ExecutionLogHandler) Clear(ctx *gin.Context) {
	deleted, err := h.uc.ClearLogs(ctx.Request.Context(), ctx.GetString("userID"))
	if err != nil {
		h.logger.Error("clear execution logs", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
