package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"dropout_risk_backend/internal/ml"
	"dropout_risk_backend/internal/ml/benchmark"
	"dropout_risk_backend/internal/ml/features"
	"dropout_risk_backend/internal/repository"
	"dropout_risk_backend/pkg/database"
	"dropout_risk_backend/pkg/logger"
	"dropout_risk_backend/pkg/tracing"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BenchmarkService serves course aggregates from Redis, then the
// course_stats_benchmarks table, and rebuilds them from student_features
// when neither has them.
type BenchmarkService struct {
	FeatureRepo   *repository.StudentFeatureRepository
	BenchmarkRepo *repository.BenchmarkRepository
	// Redis is optional; without it every read goes to the database.
	Redis *redis.Client
	TTL   time.Duration

	mu     sync.RWMutex
	cohort features.CohortMode
}

func NewBenchmarkService(
	featureRepo *repository.StudentFeatureRepository,
	benchmarkRepo *repository.BenchmarkRepository,
	rdb *redis.Client,
	ttl time.Duration,
	cohort features.CohortMode,
) *BenchmarkService {
	return &BenchmarkService{
		FeatureRepo:   featureRepo,
		BenchmarkRepo: benchmarkRepo,
		Redis:         rdb,
		TTL:           ttl,
		cohort:        cohort,
	}
}

// SetCohort switches the comparison group used by CompareStudent.
func (s *BenchmarkService) SetCohort(mode features.CohortMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cohort = mode
}

func (s *BenchmarkService) Cohort() features.CohortMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cohort
}

func benchmarkKey(courseID string) string {
	return database.RedisKey("benchmark", "course", courseID)
}

func (s *BenchmarkService) GetCourseBenchmark(ctx context.Context, courseID string) (*benchmark.CourseBenchmark, error) {
	ctx, span := tracing.Tracer.Start(ctx, "BenchmarkService.GetCourseBenchmark")
	defer span.End()
	span.SetAttributes(attribute.String("course_id", courseID))

	if b, ok := s.cached(ctx, courseID); ok {
		return b, nil
	}

	rec, err := s.BenchmarkRepo.FindByCourse(ctx, courseID)
	switch {
	case err == nil:
		b := benchmark.FromRecord(rec)
		s.cache(ctx, b)
		return &b, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.RefreshCourse(ctx, courseID)
	default:
		span.RecordError(err)
		return nil, err
	}
}

// RefreshCourse recomputes a course from its current snapshots and stores
// the result in the table and the cache.
func (s *BenchmarkService) RefreshCourse(ctx context.Context, courseID string) (*benchmark.CourseBenchmark, error) {
	records, err := s.FeatureRepo.FindByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("course %s: %w", courseID, ml.ErrDataUnavailable)
	}
	b := benchmark.Compute(records, courseID)
	b.ComputedAt = time.Now()
	if err := s.BenchmarkRepo.UpsertBenchmark(ctx, b.ToRecord()); err != nil {
		return nil, fmt.Errorf("save benchmark: %w", err)
	}
	s.cache(ctx, b)
	return &b, nil
}

// RefreshAll recomputes every course in one pass over the snapshots.
func (s *BenchmarkService) RefreshAll(ctx context.Context) (map[string]benchmark.CourseBenchmark, error) {
	ctx, span := tracing.Tracer.Start(ctx, "BenchmarkService.RefreshAll")
	defer span.End()

	records, err := s.FeatureRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ml.ErrDataUnavailable
	}
	all := benchmark.ComputeAll(records)
	now := time.Now()
	for id, b := range all {
		b.ComputedAt = now
		all[id] = b
		if err := s.BenchmarkRepo.UpsertBenchmark(ctx, b.ToRecord()); err != nil {
			return nil, fmt.Errorf("save benchmark %s: %w", id, err)
		}
		s.cache(ctx, b)
	}
	logger.Log.Info("课程基准已刷新", zap.Int("courses", len(all)), zap.Int("records", len(records)))
	return all, nil
}

// StudentComparison is a student's standing in their course.
type StudentComparison struct {
	UserID    uint                      `json:"userId"`
	CourseID  string                    `json:"courseId"`
	Cohort    string                    `json:"cohort"`
	Benchmark benchmark.CourseBenchmark `json:"benchmark"`
	benchmark.Comparative
}

// CompareStudent compares a student with the rest of the course, or with
// the whole course in include-self mode. A student alone in a course is
// compared with themselves.
func (s *BenchmarkService) CompareStudent(ctx context.Context, courseID string, userID uint) (*StudentComparison, error) {
	records, err := s.FeatureRepo.FindByCourseAndUser(ctx, courseID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("student %d in %s: %w", userID, courseID, ml.ErrDataUnavailable)
	}
	if err != nil {
		return nil, err
	}

	cohort := s.Cohort()
	self := &records[0]
	acc := benchmark.NewAccumulator(courseID)
	for i := range records {
		acc.Add(&records[i])
	}
	if cohort == features.ExcludeSelf && acc.Len() > 1 {
		acc.Remove(self)
	}
	b := acc.Benchmark()
	b.ComputedAt = time.Now()
	return &StudentComparison{
		UserID:      userID,
		CourseID:    courseID,
		Cohort:      cohort.String(),
		Benchmark:   b,
		Comparative: benchmark.Compare(benchmark.MetricsOf(self), b),
	}, nil
}

func (s *BenchmarkService) cached(ctx context.Context, courseID string) (*benchmark.CourseBenchmark, bool) {
	if s.Redis == nil {
		return nil, false
	}
	val, err := s.Redis.Get(ctx, benchmarkKey(courseID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.Warn("读取基准缓存失败", zap.String("course_id", courseID), zap.Error(err))
		}
		return nil, false
	}
	var b benchmark.CourseBenchmark
	if err := json.Unmarshal(val, &b); err != nil {
		return nil, false
	}
	return &b, true
}

func (s *BenchmarkService) cache(ctx context.Context, b benchmark.CourseBenchmark) {
	if s.Redis == nil {
		return
	}
	payload, err := json.Marshal(b)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, benchmarkKey(b.CourseID), payload, s.TTL).Err(); err != nil {
		logger.Log.Warn("写入基准缓存失败", zap.String("course_id", b.CourseID), zap.Error(err))
	}
}
