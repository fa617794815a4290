package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edtia/edtia-api/internal/conflict"
	"github.com/edtia/edtia-api/internal/dto"
	"github.com/edtia/edtia-api/internal/models"
	appErrors "github.com/edtia/edtia-api/pkg/errors"
)

type solutionReader interface {
	ListByTimetable(ctx context.Context, timetableID int64) ([]models.Assignment, error)
}

// ConflictService audits assignment snapshots for resource clashes, either
// inline payloads or stored solutions.
type ConflictService struct {
	solutions solutionReader
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewConflictService wires the detector dependencies.
func NewConflictService(solutions solutionReader, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *ConflictService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{
		solutions: solutions,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
	}
}

// DetectInline runs the detector over an unsaved snapshot.
func (s *ConflictService) DetectInline(ctx context.Context, req dto.DetectConflictsRequest) (dto.ConflictListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ConflictListResponse{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	for _, a := range req.Assignments {
		if _, err := models.NewTimeSlot(a.Slot.Day, a.Slot.Start, a.Slot.End); err != nil {
			return dto.ConflictListResponse{}, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("assignment for requirement %d: %s", a.RequirementID, appErrors.FromError(err).Message))
		}
	}
	return s.detect(req.TimetableID, req.Assignments), nil
}

// DetectStored audits the persisted solution of a timetable.
func (s *ConflictService) DetectStored(ctx context.Context, timetableID int64) (dto.ConflictListResponse, error) {
	assignments, err := s.solutions.ListByTimetable(ctx, timetableID)
	if err != nil {
		return dto.ConflictListResponse{}, err
	}
	return s.detect(timetableID, assignments), nil
}

func (s *ConflictService) detect(timetableID int64, assignments []models.Assignment) dto.ConflictListResponse {
	records := conflict.Detect(assignments)
	s.metrics.ObserveConflicts(len(records))
	if len(records) > 0 {
		s.logger.Info("conflicts detected",
			zap.Int64("timetableId", timetableID),
			zap.Int("count", len(records)))
	}
	return dto.ConflictListResponse{
		TimetableID: timetableID,
		Conflicts:   records,
		Count:       len(records),
	}
}
