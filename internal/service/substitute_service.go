package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edtia/edtia-api/internal/dto"
	"github.com/edtia/edtia-api/internal/models"
	"github.com/edtia/edtia-api/internal/substitute"
	appErrors "github.com/edtia/edtia-api/pkg/errors"
)

type substitutePoolReader interface {
	ListAvailable(ctx context.Context, from, to time.Time) ([]models.SubstituteCandidate, error)
}

type shortlistCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// SubstituteServiceConfig governs shortlist caching.
type SubstituteServiceConfig struct {
	ShortlistTTL time.Duration
	CacheEnabled bool
}

// SubstituteService ranks replacement candidates for absences and caches
// the resulting shortlist so repeated lookups for the same absence do not
// rescore the pool. Shortlists expire with the TTL, mirroring proposal
// expiry in the acceptance workflow.
type SubstituteService struct {
	pool      substitutePoolReader
	cache     shortlistCache
	cfg       SubstituteServiceConfig
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewSubstituteService wires the matcher dependencies.
func NewSubstituteService(pool substitutePoolReader, cache shortlistCache, cfg SubstituteServiceConfig, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *SubstituteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ShortlistTTL <= 0 {
		cfg.ShortlistTTL = 48 * time.Hour
	}
	return &SubstituteService{
		pool:      pool,
		cache:     cache,
		cfg:       cfg,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
	}
}

// Rank returns the shortlist for an absence. An inline pool bypasses both
// storage and the cache; otherwise the cached shortlist is served unless
// the caller asks for a refresh.
func (s *SubstituteService) Rank(ctx context.Context, req dto.RankSubstitutesRequest) (dto.SubstituteShortlistResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SubstituteShortlistResponse{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := req.Absence.Validate(); err != nil {
		return dto.SubstituteShortlistResponse{}, err
	}

	if len(req.Pool) > 0 {
		scores, err := substitute.Rank(req.Absence, req.Pool)
		if err != nil {
			return dto.SubstituteShortlistResponse{}, err
		}
		s.metrics.ObserveShortlist("inline")
		return dto.SubstituteShortlistResponse{AbsenceID: req.Absence.ID, Scores: scores}, nil
	}

	key := shortlistKey(req.Absence.ID)
	if s.cacheUsable(req) {
		start := time.Now()
		var cached []models.MatchScore
		err := s.cache.Get(ctx, key, &cached)
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		if err == nil {
			s.metrics.ObserveShortlist("cache")
			return dto.SubstituteShortlistResponse{AbsenceID: req.Absence.ID, Scores: cached, Cached: true}, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("shortlist cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	pool, err := s.pool.ListAvailable(ctx, req.Absence.From, req.Absence.To)
	if err != nil {
		return dto.SubstituteShortlistResponse{}, err
	}
	scores, err := substitute.Rank(req.Absence, pool)
	if err != nil {
		return dto.SubstituteShortlistResponse{}, err
	}

	if s.cfg.CacheEnabled && s.cache != nil && req.Absence.ID != 0 {
		if err := s.cache.Set(ctx, key, scores, s.cfg.ShortlistTTL); err != nil {
			s.logger.Warn("shortlist cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	s.metrics.ObserveShortlist("ranked")
	s.logger.Info("substitute shortlist ranked",
		zap.Int64("absenceId", req.Absence.ID),
		zap.Int("poolSize", len(pool)),
		zap.Int("shortlisted", len(scores)))
	return dto.SubstituteShortlistResponse{AbsenceID: req.Absence.ID, Scores: scores}, nil
}

// Invalidate drops the cached shortlist of one absence, used after the
// pool or the absence itself changes.
func (s *SubstituteService) Invalidate(ctx context.Context, absenceID int64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.DeleteByPattern(ctx, shortlistKey(absenceID))
}

func (s *SubstituteService) cacheUsable(req dto.RankSubstitutesRequest) bool {
	return s.cfg.CacheEnabled && s.cache != nil && !req.Refresh && req.Absence.ID != 0
}

func shortlistKey(absenceID int64) string {
	return fmt.Sprintf("substitute:shortlist:%d", absenceID)
}
