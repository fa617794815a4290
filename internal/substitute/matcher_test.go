package substitute

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtia/edtia-api/internal/models"
)

// Monday through Friday of one school week.
var monday = time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)

func fullWeek() models.WeeklyAvailability {
	avail := make(models.WeeklyAvailability)
	for day := 1; day <= 5; day++ {
		avail[day] = []models.TimeSlot{{Day: day, Start: 480, End: 1020}}
	}
	return avail
}

func candidate(id int64, subjects ...int64) models.SubstituteCandidate {
	return models.SubstituteCandidate{
		TeacherID:       id,
		Subjects:        subjects,
		Availability:    fullWeek(),
		AvailableFrom:   monday.AddDate(0, 0, -30),
		DistanceKm:      5,
		MaxTravelKm:     50,
		Rating:          4,
		ExperienceYears: 5,
	}
}

func absence(subjects ...int64) models.Absence {
	return models.Absence{
		ID: 1, TeacherID: 99, Type: models.AbsenceSickness, Status: models.AbsenceDeclared,
		From: monday, To: monday.AddDate(0, 0, 1),
		RequiredSubjects: subjects,
	}
}

func TestRankExcludesWithoutSubjectMatch(t *testing.T) {
	mathematics, history := int64(1), int64(2)

	ranked, err := Rank(absence(mathematics), []models.SubstituteCandidate{candidate(10, history)})
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestRankExcludesZeroAvailability(t *testing.T) {
	c := candidate(10, 1)
	c.Availability = models.WeeklyAvailability{}

	ranked, err := Rank(absence(1), []models.SubstituteCandidate{c})
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestRankExcludesOutsideAvailabilityPeriod(t *testing.T) {
	c := candidate(10, 1)
	c.AvailableFrom = monday.AddDate(0, 0, 30)

	ranked, err := Rank(absence(1), []models.SubstituteCandidate{c})
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestScoreFormulas(t *testing.T) {
	c := models.SubstituteCandidate{
		TeacherID:     10,
		Subjects:      []int64{1},
		Availability:  models.WeeklyAvailability{1: {{Day: 1, Start: 480, End: 1020}}},
		AvailableFrom: monday.AddDate(0, 0, -30),
		DistanceKm:    10, MaxTravelKm: 40,
		Rating: 4, ExperienceYears: 5,
	}
	// Two required subjects, one taught; two absence days, Monday covered.
	score := Score(absence(1, 2), c)

	assert.InDelta(t, 0.5, score.Competence, 1e-9)
	assert.InDelta(t, 0.5, score.Availability, 1e-9)
	assert.InDelta(t, 0.75, score.Geography, 1e-9)
	assert.InDelta(t, 0.65, score.Experience, 1e-9)
	assert.InDelta(t, 0.4*0.5+0.3*0.5+0.2*0.75+0.1*0.65, score.Total, 1e-9)
}

func TestRankHonoursIntraDayWindow(t *testing.T) {
	c := candidate(10, 1)
	c.Availability = models.WeeklyAvailability{1: {{Day: 1, Start: 480, End: 600}}}

	a := absence(1)
	a.To = a.From
	start, end := 540, 595
	a.StartMin, a.EndMin = &start, &end

	ranked, err := Rank(a, []models.SubstituteCandidate{c})
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.InDelta(t, 1.0, ranked[0].Availability, 1e-9)

	late := 650
	a.EndMin = &late
	ranked, err = Rank(a, []models.SubstituteCandidate{c})
	require.NoError(t, err)
	assert.Empty(t, ranked, "window extends past declared availability")
}

func TestRankCapsShortlistAtTen(t *testing.T) {
	pool := make([]models.SubstituteCandidate, 0, 14)
	for i := int64(1); i <= 14; i++ {
		c := candidate(i, 1)
		c.DistanceKm = float64(i)
		pool = append(pool, c)
	}

	ranked, err := Rank(absence(1), pool)
	require.NoError(t, err)
	require.Len(t, ranked, ShortlistSize)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Total, ranked[i].Total)
	}
	// Closest candidates score highest.
	assert.Equal(t, int64(1), ranked[0].TeacherID)
}

func TestRankBreaksTiesByExperienceThenID(t *testing.T) {
	seasoned := candidate(20, 1)
	seasoned.DistanceKm, seasoned.MaxTravelKm = 50, 50 // geography 0
	seasoned.ExperienceYears, seasoned.Rating = 10, 5  // experience 1

	fresh := candidate(10, 1)
	fresh.DistanceKm, fresh.MaxTravelKm = 25, 50 // geography 0.5
	fresh.ExperienceYears, fresh.Rating = 0, 0   // experience 0

	ranked, err := Rank(absence(1), []models.SubstituteCandidate{fresh, seasoned})
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.InDelta(t, ranked[0].Total, ranked[1].Total, 1e-9)
	assert.Equal(t, int64(20), ranked[0].TeacherID, "higher experience wins the tie")

	twinA, twinB := candidate(31, 1), candidate(30, 1)
	ranked, err = Rank(absence(1), []models.SubstituteCandidate{twinA, twinB})
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, int64(30), ranked[0].TeacherID, "equal scores fall back to id order")
}

func TestRankIgnoresAbsenceRisk(t *testing.T) {
	risk := 0.95
	risky := candidate(10, 1)
	risky.AbsenceRisk = &risk
	safe := candidate(11, 1)

	ranked, err := Rank(absence(1), []models.SubstituteCandidate{risky, safe})
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.InDelta(t, ranked[0].Total, ranked[1].Total, 1e-9)
}

func TestRankIsDeterministic(t *testing.T) {
	pool := []models.SubstituteCandidate{candidate(3, 1), candidate(1, 1), candidate(2, 1)}

	first, err := Rank(absence(1), pool)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Rank(absence(1), pool)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRankRejectsMalformedAbsence(t *testing.T) {
	a := absence(1)
	a.To = a.From.AddDate(0, 0, -2)

	_, err := Rank(a, nil)
	assert.Error(t, err)
}
