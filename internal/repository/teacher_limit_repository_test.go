package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeacherLimitRepositoryListByTimetable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherLimitRepository(db)

	rows := sqlmock.NewRows([]string{"teacher_id", "max_daily_minutes", "max_week_minutes"}).
		AddRow(10, 330, 1100).
		AddRow(11, 0, 880)
	mock.ExpectQuery("SELECT l.teacher_id, l.max_daily_minutes, l.max_week_minutes").
		WithArgs(int64(7)).
		WillReturnRows(rows)

	limits, err := repo.ListByTimetable(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, limits, 2)
	assert.Equal(t, int64(10), limits[0].TeacherID)
	assert.Equal(t, 1100, limits[0].MaxWeekMinutes)
	assert.Zero(t, limits[1].MaxDailyMinutes, "zero means unlimited")
	assert.NoError(t, mock.ExpectationsWereMet())
}
