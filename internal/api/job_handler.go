package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jobs/dedup/internal/dedup"
	"github.com/jobs/dedup/internal/models"
	"go.uber.org/zap"
)

type JobHandler struct {
	scheduler *dedup.Scheduler
	logger    *zap.Logger
}

func NewJobHandler(scheduler *dedup.Scheduler, logger *zap.Logger) *JobHandler {
	return &JobHandler{scheduler: scheduler, logger: logger}
}

type ScheduleJobReq struct {
	Name            string         `json:"name" binding:"required"`
	Group           string         `json:"group"`
	Args            models.JSONMap `json:"args"`
	DelaySeconds    int64          `json:"delay_seconds"`
	Recurring       bool           `json:"recurring"`
	IntervalSeconds int64          `json:"interval_seconds"`
	MaxRuns         int            `json:"max_runs"`
	Priority        int            `json:"priority"`
	Uniqueness      string         `json:"uniqueness"` // none, hook, group, args
}

type ScheduleJobResp struct {
	ID uint64 `json:"id,string"`
}

// Schedule creates a one-shot or recurring job, or returns the handle of
// an equivalent outstanding job when the request asks for uniqueness.
func (h *JobHandler) Schedule(c *gin.Context) {
	var req ScheduleJobReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}

	taskReq := dedup.TaskRequest{
		Name:       req.Name,
		Delay:      time.Duration(req.DelaySeconds) * time.Second,
		Interval:   time.Duration(req.IntervalSeconds) * time.Second,
		Args:       req.Args,
		Group:      req.Group,
		Priority:   req.Priority,
		MaxRuns:    req.MaxRuns,
		Uniqueness: dedup.Uniqueness(req.Uniqueness),
	}

	var id uint64
	var err error
	if req.Recurring {
		id, err = h.scheduler.ScheduleRecurring(c.Request.Context(), taskReq)
	} else {
		id, err = h.scheduler.ScheduleOnce(c.Request.Context(), taskReq)
	}
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, ScheduleJobResp{ID: id})
}

func (h *JobHandler) List(c *gin.Context) {
	name := c.Query("name")
	group := c.Query("group")

	var jobs []*models.Job
	switch {
	case name != "":
		jobs = h.scheduler.ListByName(c.Request.Context(), name)
	case group != "":
		jobs = h.scheduler.ListByGroup(c.Request.Context(), group)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: "name or group query parameter required"})
		return
	}
	if jobs == nil {
		jobs = []*models.Job{}
	}
	c.JSON(http.StatusOK, jobs)
}

func (h *JobHandler) Count(c *gin.Context) {
	group := c.Query("group")
	if group == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: "group query parameter required"})
		return
	}
	count := h.scheduler.CountByGroup(c.Request.Context(), group)
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *JobHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	status, err := h.scheduler.Status(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": strconv.FormatUint(id, 10), "status": status})
}

func (h *JobHandler) Cancel(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	if err := h.scheduler.Cancel(c.Request.Context(), id); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (h *JobHandler) Delete(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	if err := h.scheduler.Delete(c.Request.Context(), id); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *JobHandler) Health(c *gin.Context) {
	if err := h.scheduler.Ready(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Code: "STORE_UNAVAILABLE", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *JobHandler) parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: "invalid job id"})
		return 0, false
	}
	return id, true
}

func (h *JobHandler) renderError(c *gin.Context, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, dedup.ErrInvalidName),
		errors.Is(err, dedup.ErrInvalidDelay),
		errors.Is(err, dedup.ErrInvalidInterval):
		status, code = http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, dedup.ErrTaskNotFound):
		status, code = http.StatusNotFound, "TASK_NOT_FOUND"
	case errors.Is(err, dedup.ErrCancelFailed):
		status, code = http.StatusConflict, "CANCEL_FAILED"
	case errors.Is(err, dedup.ErrDeleteFailed):
		status, code = http.StatusConflict, "DELETE_FAILED"
	case errors.Is(err, dedup.ErrStoreUnavailable):
		status, code = http.StatusServiceUnavailable, "STORE_UNAVAILABLE"
	default:
		status, code = http.StatusInternalServerError, "STORE_ERROR"
	}
	c.JSON(status, ErrorResponse{Code: code, Message: err.Error()})
}
