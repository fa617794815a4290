package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edtia/edtia-api/internal/dto"
	appErrors "github.com/edtia/edtia-api/pkg/errors"
	"github.com/edtia/edtia-api/pkg/response"
)

type substituteRanker interface {
	Rank(ctx context.Context, req dto.RankSubstitutesRequest) (dto.SubstituteShortlistResponse, error)
	Invalidate(ctx context.Context, absenceID int64) error
}

// SubstituteHandler exposes replacement-teacher ranking.
type SubstituteHandler struct {
	service substituteRanker
}

// NewSubstituteHandler constructs the handler.
func NewSubstituteHandler(svc substituteRanker) *SubstituteHandler {
	return &SubstituteHandler{service: svc}
}

// Rank returns the ranked shortlist for an absence.
func (h *SubstituteHandler) Rank(c *gin.Context) {
	var req dto.RankSubstitutesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid substitute ranking payload"))
		return
	}

	result, err := h.service.Rank(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// InvalidateShortlist drops the cached shortlist for an absence.
func (h *SubstituteHandler) InvalidateShortlist(c *gin.Context) {
	absenceID, err := pathID(c, "absenceId")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.Invalidate(c.Request.Context(), absenceID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
