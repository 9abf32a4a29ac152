package handler

const (
	errInternalServer       = "Internal server error"
	errScheduleNotFound     = "Schedule not found"
	errScheduleNameConflict = "Schedule with this name already exists"
	errLogNotFound          = "Execution log not found"
	errInvalidCronExpr      = "Invalid cron expression"
	errInvalidCursor        = "Invalid pagination cursor"
)
