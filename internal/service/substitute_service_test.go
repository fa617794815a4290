package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtia/edtia-api/internal/dto"
	"github.com/edtia/edtia-api/internal/models"
	appErrors "github.com/edtia/edtia-api/pkg/errors"
)

type stubPoolReader struct {
	pool  []models.SubstituteCandidate
	calls int
	err   error
}

func (s *stubPoolReader) ListAvailable(ctx context.Context, from, to time.Time) ([]models.SubstituteCandidate, error) {
	s.calls++
	return s.pool, s.err
}

type memoryCache struct {
	entries map[string][]byte
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	c.sets++
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	delete(c.entries, pattern)
	return nil
}

func testMonday() time.Time {
	return time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)
}

func testCandidate(id int64, subjects ...int64) models.SubstituteCandidate {
	avail := make(models.WeeklyAvailability)
	for day := 1; day <= 5; day++ {
		avail[day] = []models.TimeSlot{{Day: day, Start: 480, End: 1020}}
	}
	return models.SubstituteCandidate{
		TeacherID:       id,
		Subjects:        subjects,
		Availability:    avail,
		AvailableFrom:   testMonday().AddDate(0, 0, -30),
		DistanceKm:      5,
		MaxTravelKm:     50,
		Rating:          4,
		ExperienceYears: 5,
	}
}

func testAbsence(id int64) models.Absence {
	return models.Absence{
		ID: id, TeacherID: 99, Type: models.AbsenceSickness, Status: models.AbsenceDeclared,
		From: testMonday(), To: testMonday(),
		RequiredSubjects: []int64{1},
	}
}

func TestSubstituteServiceRanksFromRepository(t *testing.T) {
	pool := &stubPoolReader{pool: []models.SubstituteCandidate{testCandidate(10, 1), testCandidate(11, 2)}}
	svc := NewSubstituteService(pool, nil, SubstituteServiceConfig{}, nil, nil, nil)

	resp, err := svc.Rank(context.Background(), dto.RankSubstitutesRequest{Absence: testAbsence(5)})
	require.NoError(t, err)
	require.Len(t, resp.Scores, 1, "candidate without the subject is excluded")
	assert.Equal(t, int64(10), resp.Scores[0].TeacherID)
	assert.False(t, resp.Cached)
	assert.Equal(t, 1, pool.calls)
}

func TestSubstituteServiceServesCachedShortlist(t *testing.T) {
	pool := &stubPoolReader{pool: []models.SubstituteCandidate{testCandidate(10, 1)}}
	cache := newMemoryCache()
	svc := NewSubstituteService(pool, cache, SubstituteServiceConfig{CacheEnabled: true}, nil, nil, nil)

	first, err := svc.Rank(context.Background(), dto.RankSubstitutesRequest{Absence: testAbsence(5)})
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.Rank(context.Background(), dto.RankSubstitutesRequest{Absence: testAbsence(5)})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Scores, second.Scores)
	assert.Equal(t, 1, pool.calls, "pool loaded once")
}

func TestSubstituteServiceRefreshBypassesCache(t *testing.T) {
	pool := &stubPoolReader{pool: []models.SubstituteCandidate{testCandidate(10, 1)}}
	cache := newMemoryCache()
	svc := NewSubstituteService(pool, cache, SubstituteServiceConfig{CacheEnabled: true}, nil, nil, nil)

	_, err := svc.Rank(context.Background(), dto.RankSubstitutesRequest{Absence: testAbsence(5)})
	require.NoError(t, err)

	resp, err := svc.Rank(context.Background(), dto.RankSubstitutesRequest{Absence: testAbsence(5), Refresh: true})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, 2, pool.calls)
}

func TestSubstituteServiceInlinePoolSkipsStorage(t *testing.T) {
	pool := &stubPoolReader{}
	svc := NewSubstituteService(pool, nil, SubstituteServiceConfig{}, nil, nil, nil)

	resp, err := svc.Rank(context.Background(), dto.RankSubstitutesRequest{
		Absence: testAbsence(5),
		Pool:    []models.SubstituteCandidate{testCandidate(10, 1)},
	})
	require.NoError(t, err)
	require.Len(t, resp.Scores, 1)
	assert.Zero(t, pool.calls)
}

func TestSubstituteServiceRejectsMalformedAbsence(t *testing.T) {
	svc := NewSubstituteService(&stubPoolReader{}, nil, SubstituteServiceConfig{}, nil, nil, nil)

	absence := testAbsence(5)
	absence.To = absence.From.AddDate(0, 0, -1)
	_, err := svc.Rank(context.Background(), dto.RankSubstitutesRequest{Absence: absence})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubstituteServiceInvalidate(t *testing.T) {
	pool := &stubPoolReader{pool: []models.SubstituteCandidate{testCandidate(10, 1)}}
	cache := newMemoryCache()
	svc := NewSubstituteService(pool, cache, SubstituteServiceConfig{CacheEnabled: true}, nil, nil, nil)

	_, err := svc.Rank(context.Background(), dto.RankSubstitutesRequest{Absence: testAbsence(5)})
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(context.Background(), 5))

	resp, err := svc.Rank(context.Background(), dto.RankSubstitutesRequest{Absence: testAbsence(5)})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, 2, pool.calls)
}
