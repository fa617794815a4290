package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edtia/edtia-api/internal/dto"
	appErrors "github.com/edtia/edtia-api/pkg/errors"
	"github.com/edtia/edtia-api/pkg/response"
)

type optimizationController interface {
	StartRun(ctx context.Context, timetableID int64, req dto.StartOptimizationRequest) (dto.OptimizationRunResponse, error)
	GetRun(ctx context.Context, runID string) (dto.OptimizationRunResponse, error)
	Cancel(ctx context.Context, runID string) error
	SolveTimetable(ctx context.Context, req dto.SolveTimetableRequest) (dto.SolveTimetableResponse, error)
}

// OptimizationHandler exposes the solver job controller.
type OptimizationHandler struct {
	service optimizationController
}

// NewOptimizationHandler constructs the handler.
func NewOptimizationHandler(svc optimizationController) *OptimizationHandler {
	return &OptimizationHandler{service: svc}
}

// Start queues a background optimization run for a stored timetable.
func (h *OptimizationHandler) Start(c *gin.Context) {
	timetableID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.StartOptimizationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid optimization payload"))
			return
		}
	}

	run, err := h.service.StartRun(c.Request.Context(), timetableID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, run)
}

// Get returns the state of one run.
func (h *OptimizationHandler) Get(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run)
}

// Cancel aborts an in-flight run.
func (h *OptimizationHandler) Cancel(c *gin.Context) {
	runID := c.Param("id")
	if err := h.service.Cancel(c.Request.Context(), runID); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"runId": runID, "status": "cancelling"})
}

// Solve runs the solver synchronously over an inline problem.
func (h *OptimizationHandler) Solve(c *gin.Context) {
	var req dto.SolveTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid solve payload"))
		return
	}

	result, err := h.service.SolveTimetable(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid "+name+" path parameter")
	}
	return id, nil
}
