package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edtia/edtia-api/internal/dto"
	appErrors "github.com/edtia/edtia-api/pkg/errors"
	"github.com/edtia/edtia-api/pkg/response"
)

type conflictDetector interface {
	DetectInline(ctx context.Context, req dto.DetectConflictsRequest) (dto.ConflictListResponse, error)
	DetectStored(ctx context.Context, timetableID int64) (dto.ConflictListResponse, error)
}

// ConflictHandler exposes double-booking detection.
type ConflictHandler struct {
	service conflictDetector
}

// NewConflictHandler constructs the handler.
func NewConflictHandler(svc conflictDetector) *ConflictHandler {
	return &ConflictHandler{service: svc}
}

// Detect scans an inline assignment set for resource clashes.
func (h *ConflictHandler) Detect(c *gin.Context) {
	var req dto.DetectConflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid conflict detection payload"))
		return
	}

	result, err := h.service.DetectInline(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// ListStored scans the persisted solution of a timetable.
func (h *ConflictHandler) ListStored(c *gin.Context) {
	timetableID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.DetectStored(c.Request.Context(), timetableID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
