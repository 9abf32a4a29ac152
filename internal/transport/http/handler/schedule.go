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

type ScheduleHandler struct {
	uc     *usecase.ScheduleUsecase
	logger *slog.Logger
}

func NewScheduleHandler(uc *usecase.ScheduleUsecase, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{uc: uc, logger: logger.With("component", "schedule_handler")}
}

type timingRequest struct {
	Frequency       domain.Frequency `json:"frequency"       binding:"required,oneof=once seconds minutes hours days weeks months years"`
	Interval        int              `json:"interval"        binding:"omitempty,min=1"`
	ScheduleAt      time.Time        `json:"schedule_at"     binding:"required"`
	CronExpr        string           `json:"cron_expr"`
	UseSpecificTime bool             `json:"use_specific_time"`
	SpecificHour    *int             `json:"specific_hour"   binding:"omitempty,min=0,max=23"`
	SpecificMinute  *int             `json:"specific_minute" binding:"omitempty,min=0,max=59"`
	DaysOfWeek      []int            `json:"days_of_week"    binding:"omitempty,dive,min=0,max=6"`
	DayOfMonth      *int             `json:"day_of_month"    binding:"omitempty,min=1,max=31"`
}

type scheduleRequest struct {
	Name       string `json:"name"        binding:"required,max=256"`
	WebhookURL string `json:"webhook_url" binding:"required,url,max=2048"`
	HTTPMethod string `json:"http_method" binding:"omitempty,oneof=GET POST PUT PATCH DELETE"`
	JSONBody   string `json:"json_body"`

	AuthType        domain.AuthType `json:"auth_type"          binding:"omitempty,oneof=none bearer apikey basic"`
	AuthToken       string          `json:"auth_token"`
	AuthAPIKeyName  string          `json:"auth_api_key_name"`
	AuthAPIKeyValue string          `json:"auth_api_key_value"`
	AuthUsername    string          `json:"auth_username"`
	AuthPassword    string          `json:"auth_password"`

	CustomHeaders map[string]string `json:"custom_headers"`

	Timing         timingRequest `json:"timing" binding:"required"`
	TimeoutSeconds int           `json:"timeout_seconds" binding:"omitempty,min=1,max=600"`
}

func (r scheduleRequest) toInput(userID string) usecase.CreateScheduleInput {
	return usecase.CreateScheduleInput{
		UserID:          userID,
		Name:            r.Name,
		WebhookURL:      r.WebhookURL,
		HTTPMethod:      r.HTTPMethod,
		JSONBody:        r.JSONBody,
		AuthType:        r.AuthType,
		AuthToken:       r.AuthToken,
		AuthAPIKeyName:  r.AuthAPIKeyName,
		AuthAPIKeyValue: r.AuthAPIKeyValue,
		AuthUsername:    r.AuthUsername,
		AuthPassword:    r.AuthPassword,
		CustomHeaders:   r.CustomHeaders,
		Timing: usecase.ScheduleTimingInput{
			Frequency:       r.Timing.Frequency,
			Interval:        r.Timing.Interval,
			ScheduleAt:      r.Timing.ScheduleAt,
			CronExpr:        r.Timing.CronExpr,
			UseSpecificTime: r.Timing.UseSpecificTime,
			SpecificHour:    r.Timing.SpecificHour,
			SpecificMinute:  r.Timing.SpecificMinute,
			DaysOfWeek:      r.Timing.DaysOfWeek,
			DayOfMonth:      r.Timing.DayOfMonth,
		},
		TimeoutSeconds: r.TimeoutSeconds,
	}
}

type scheduleResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	WebhookURL string `json:"webhook_url"`
	HTTPMethod string `json:"http_method"`

	AuthType domain.AuthType `json:"auth_type"`

	Frequency       domain.Frequency `json:"frequency"`
	Interval        int              `json:"interval"`
	ScheduleAt      time.Time        `json:"schedule_at"`
	CronExpr        string           `json:"cron_expr,omitempty"`
	UseSpecificTime bool             `json:"use_specific_time"`
	SpecificHour    *int             `json:"specific_hour,omitempty"`
	SpecificMinute  *int             `json:"specific_minute,omitempty"`
	DaysOfWeek      []int            `json:"days_of_week,omitempty"`
	DayOfMonth      *int             `json:"day_of_month,omitempty"`

	Status         domain.Status `json:"status"`
	IsActive       bool          `json:"is_active"`
	LastExecuted   *time.Time    `json:"last_executed,omitempty"`
	NextExecution  *time.Time    `json:"next_execution,omitempty"`
	ExecutionCount int           `json:"execution_count"`
	TimeoutSeconds int           `json:"timeout_seconds"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Credential values are deliberately absent from the response.
func toScheduleResponse(s *domain.Schedule) scheduleResponse {
	return scheduleResponse{
		ID:              s.ID,
		Name:            s.Name,
		WebhookURL:      s.WebhookURL,
		HTTPMethod:      s.HTTPMethod,
		AuthType:        s.AuthType,
		Frequency:       s.Frequency,
		Interval:        s.Interval,
		ScheduleAt:      s.ScheduleAt,
		CronExpr:        s.CronExpr,
		UseSpecificTime: s.UseSpecificTime,
		SpecificHour:    s.SpecificHour,
		SpecificMinute:  s.SpecificMinute,
		DaysOfWeek:      s.DaysOfWeek,
		DayOfMonth:      s.DayOfMonth,
		Status:          s.Status,
		IsActive:        s.IsActive,
		LastExecuted:    s.LastExecuted,
		NextExecution:   s.NextExecution,
		ExecutionCount:  s.ExecutionCount,
		TimeoutSeconds:  s.TimeoutSeconds,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func (h *ScheduleHandler) Create(ctx *gin.Context) {
	var req scheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.uc.CreateSchedule(ctx.Request.Context(), req.toInput(ctx.GetString("userID")))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCronExpr):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCronExpr})
		case errors.Is(err, domain.ErrScheduleNameConflict):
			ctx.JSON(http.StatusConflict, gin.H{"error": errScheduleNameConflict})
		default:
			h.logger.Error("create schedule", "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	ctx.JSON(http.StatusCreated, toScheduleResponse(s))
}

func (h *ScheduleHandler) List(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	result, err := h.uc.ListSchedules(ctx.Request.Context(), usecase.ListSchedulesInput{
		UserID:    ctx.GetString("userID"),
		Status:    domain.Status(ctx.Query("status")),
		Frequency: domain.Frequency(ctx.Query("frequency")),
		Cursor:    ctx.Query("cursor"),
		Limit:     limit,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCursor) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCursor})
			return
		}
		h.logger.Error("list schedules", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	responses := make([]scheduleResponse, 0, len(result.Schedules))
	for _, s := range result.Schedules {
		responses = append(responses, toScheduleResponse(s))
	}

	ctx.JSON(http.StatusOK, gin.H{
		"schedules":   responses,
		"next_cursor": result.NextCursor,
	})
}

func (h *ScheduleHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	s, err := h.uc.GetSchedule(ctx.Request.Context(), id, ctx.GetString("userID"))
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
			return
		}
		h.logger.Error("get schedule", "schedule_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, toScheduleResponse(s))
}

func (h *ScheduleHandler) Update(ctx *gin.Context) {
	id := ctx.Param("id")

	var req scheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.uc.UpdateSchedule(ctx.Request.Context(), usecase.UpdateScheduleInput{
		ID:                  id,
		CreateScheduleInput: req.toInput(ctx.GetString("userID")),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrScheduleNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
		case errors.Is(err, domain.ErrInvalidCronExpr):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCronExpr})
		case errors.Is(err, domain.ErrScheduleNameConflict):
			ctx.JSON(http.StatusConflict, gin.H{"error": errScheduleNameConflict})
		default:
			h.logger.Error("update schedule", "schedule_id", id, "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	ctx.JSON(http.StatusOK, toScheduleResponse(s))
}

func (h *ScheduleHandler) Pause(ctx *gin.Context) {
	h.setActive(ctx, false)
}

func (h *ScheduleHandler) Resume(ctx *gin.Context) {
	h.setActive(ctx, true)
}

func (h *ScheduleHandler) setActive(ctx *gin.Context, active bool) {
	id := ctx.Param("id")

	s, err := h.uc.SetScheduleActive(ctx.Request.Context(), id, ctx.GetString("userID"), active)
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
			return
		}
		h.logger.Error("set schedule active", "schedule_id", id, "active", active, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, toScheduleResponse(s))
}

func (h *ScheduleHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := h.uc.DeleteSchedule(ctx.Request.Context(), id, ctx.GetString("userID")); err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
			return
		}
		h.logger.Error("delete schedule", "schedule_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.Status(http.StatusNoContent)
}

type triggerResponse struct {
	Schedule scheduleResponse `json:"schedule"`
	Success  bool             `json:"success"`
	Status   *int             `json:"response_status,omitempty"`
	Error    *string          `json:"error,omitempty"`
}

// Trigger fires the webhook immediately. The armed timer for the next
// scheduled occurrence is not disturbed.
func (h *ScheduleHandler) Trigger(ctx *gin.Context) {
	id := ctx.Param("id")

	s, res, err := h.uc.TriggerSchedule(ctx.Request.Context(), id, ctx.GetString("userID"))
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
			return
		}
		h.logger.Error("trigger schedule", "schedule_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	resp := triggerResponse{
		Schedule: toScheduleResponse(s),
		Success:  res.Success,
		Status:   res.StatusCode,
	}
	if res.Err != nil {
		msg := res.Err.Error()
		resp.Error = &msg
	}

	ctx.JSON(http.StatusOK, resp)
}

type previewResponse struct {
	NextExecution *time.Time `json:"next_execution"`
}

// Preview computes the next occurrence for a timing definition without
// saving anything.
func (h *ScheduleHandler) Preview(ctx *gin.Context) {
	var req timingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	next, err := h.uc.PreviewNext(usecase.ScheduleTimingInput{
		Frequency:       req.Frequency,
		Interval:        req.Interval,
		ScheduleAt:      req.ScheduleAt,
		CronExpr:        req.CronExpr,
		UseSpecificTime: req.UseSpecificTime,
		SpecificHour:    req.SpecificHour,
		SpecificMinute:  req.SpecificMinute,
		DaysOfWeek:      req.DaysOfWeek,
		DayOfMonth:      req.DayOfMonth,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCronExpr) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCronExpr})
			return
		}
		h.logger.Error("preview next execution", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, previewResponse{NextExecution: next})
}
