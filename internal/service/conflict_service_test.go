package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtia/edtia-api/internal/dto"
	"github.com/edtia/edtia-api/internal/models"
	appErrors "github.com/edtia/edtia-api/pkg/errors"
)

type stubSolutionReader struct {
	assignments []models.Assignment
	err         error
}

func (s *stubSolutionReader) ListByTimetable(ctx context.Context, timetableID int64) ([]models.Assignment, error) {
	return s.assignments, s.err
}

func mustSlot(t *testing.T, day, start, end int) models.TimeSlot {
	t.Helper()
	slot, err := models.NewTimeSlot(day, start, end)
	require.NoError(t, err)
	return slot
}

func TestConflictServiceDetectInline(t *testing.T) {
	svc := NewConflictService(&stubSolutionReader{}, nil, nil, nil)

	resp, err := svc.DetectInline(context.Background(), dto.DetectConflictsRequest{
		TimetableID: 7,
		Assignments: []models.Assignment{
			{RequirementID: 1, TeacherID: 10, ClassID: 20, RoomID: 30, Slot: mustSlot(t, 1, 540, 600)},
			{RequirementID: 2, TeacherID: 10, ClassID: 21, RoomID: 31, Slot: mustSlot(t, 1, 570, 630)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, models.ResourceTeacher, resp.Conflicts[0].Kind)
}

func TestConflictServiceDetectInlineRejectsBadSlot(t *testing.T) {
	svc := NewConflictService(&stubSolutionReader{}, nil, nil, nil)

	_, err := svc.DetectInline(context.Background(), dto.DetectConflictsRequest{
		Assignments: []models.Assignment{
			{RequirementID: 1, TeacherID: 10, ClassID: 20, RoomID: 30, Slot: models.TimeSlot{Day: 1, Start: 600, End: 540}},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestConflictServiceDetectInlineRequiresAssignments(t *testing.T) {
	svc := NewConflictService(&stubSolutionReader{}, nil, nil, nil)

	_, err := svc.DetectInline(context.Background(), dto.DetectConflictsRequest{TimetableID: 7})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestConflictServiceDetectStored(t *testing.T) {
	reader := &stubSolutionReader{
		assignments: []models.Assignment{
			{RequirementID: 1, TeacherID: 10, ClassID: 20, RoomID: 30, Slot: mustSlot(t, 1, 540, 595)},
			{RequirementID: 2, TeacherID: 11, ClassID: 21, RoomID: 30, Slot: mustSlot(t, 1, 595, 650)},
		},
	}
	svc := NewConflictService(reader, nil, nil, nil)

	resp, err := svc.DetectStored(context.Background(), 7)
	require.NoError(t, err)
	assert.Zero(t, resp.Count, "back-to-back room bookings are not conflicts")
	assert.Equal(t, int64(7), resp.TimetableID)
}
