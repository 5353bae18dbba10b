package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
	"tutorhub_backend/internal/model"
	"tutorhub_backend/internal/repository"
	"tutorhub_backend/pkg/logger"
	"tutorhub_backend/pkg/monitoring"
	"tutorhub_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const decayLockKey = "tutorhub:decay:run"

// decayCASAttempts bounds retries when a record changes under a run.
const decayCASAttempts = 3

var ErrDecayRunning = errors.New("a decay run is already in progress")

type DecayReport struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Scanned    int64     `json:"scanned"`
	Decayed    int64     `json:"decayed"`
	Unchanged  int64     `json:"unchanged"`
	Conflicts  int64     `json:"conflicts"`
	Failed     int64     `json:"failed"`
	// Skipped is set when another run held the lock.
	Skipped bool `json:"skipped"`
}

type DecayService struct {
	Repo     *repository.MasteryRepository
	Lock     repository.RunLock
	Settings *DecaySettings

	running sync.Mutex
	lastRun atomic.Pointer[DecayReport]
}

func NewDecayService(repo *repository.MasteryRepository, lock repository.RunLock, settings *DecaySettings) *DecayService {
	if lock == nil {
		lock = repository.LocalRunLock{}
	}
	return &DecayService{Repo: repo, Lock: lock, Settings: settings}
}

// LastReport returns the report of the most recent finished run, or nil.
func (s *DecayService) LastReport() *DecayReport {
	return s.lastRun.Load()
}

// RunOnce decays every stale record as of now. Records are handled
// independently: a failing record is logged and counted, never fatal.
func (s *DecayService) RunOnce(ctx context.Context, now time.Time) (*DecayReport, error) {
	now = now.UTC()
	report := &DecayReport{StartedAt: time.Now().UTC()}

	if !s.running.TryLock() {
		return nil, ErrDecayRunning
	}
	defer s.running.Unlock()

	policy := s.Settings.Load()

	release, err := s.Lock.TryAcquire(ctx, decayLockKey, policy.LockTTL)
	if err != nil {
		return nil, err
	}
	if release == nil {
		logger.Log.Info("Decay run skipped, lock held by another instance")
		report.Skipped = true
		report.FinishedAt = time.Now().UTC()
		return report, nil
	}
	defer release()

	ctx, span := tracing.Start(ctx, "decay.run", attribute.String("decay.now", now.Format(time.RFC3339)))
	defer span.End()

	cutoff := now.Add(-policy.GraceWindow)
	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			return s.finish(report), err
		}

		batch, err := s.Repo.ListDecayCandidates(ctx, cutoff, policy.Floor, afterID, policy.BatchSize)
		if err != nil {
			return s.finish(report), err
		}
		if len(batch) == 0 {
			break
		}
		afterID = batch[len(batch)-1].ID

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(policy.Workers)
		for i := range batch {
			rec := batch[i]
			g.Go(func() error {
				s.decayRecord(gctx, report, policy, &rec, now)
				return nil
			})
		}
		_ = g.Wait()

		if len(batch) < policy.BatchSize {
			break
		}
	}

	s.finish(report)
	span.SetAttributes(
		attribute.Int64("decay.scanned", report.Scanned),
		attribute.Int64("decay.decayed", report.Decayed),
		attribute.Int64("decay.failed", report.Failed),
	)
	logger.Log.Info("Decay run finished",
		zap.Int64("scanned", report.Scanned),
		zap.Int64("decayed", report.Decayed),
		zap.Int64("unchanged", report.Unchanged),
		zap.Int64("conflicts", report.Conflicts),
		zap.Int64("failed", report.Failed),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

func (s *DecayService) finish(report *DecayReport) *DecayReport {
	report.FinishedAt = time.Now().UTC()
	monitoring.DecayRunDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	s.lastRun.Store(report)
	return report
}

func (s *DecayService) decayRecord(ctx context.Context, report *DecayReport, policy DecayPolicy, rec *model.MasteryRecord, now time.Time) {
	atomic.AddInt64(&report.Scanned, 1)

	for attempt := 0; attempt < decayCASAttempts; attempt++ {
		value, due := policy.Project(rec, now)
		if !due {
			atomic.AddInt64(&report.Unchanged, 1)
			monitoring.DecayRecords.WithLabelValues("unchanged").Inc()
			return
		}

		rec.MasteryLevel = value
		rec.LastDecayedAt = &now
		ok, err := s.Repo.CompareAndSwap(ctx, rec)
		if err != nil {
			s.recordFailure(report, rec, err)
			return
		}
		if ok {
			atomic.AddInt64(&report.Decayed, 1)
			monitoring.DecayRecords.WithLabelValues("decayed").Inc()
			return
		}

		// Someone wrote the row since it was read, most likely a fresh
		// assessment. Re-read and decide again from the new state.
		fresh, err := s.Repo.Find(ctx, rec.StudentID, rec.SkillID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				atomic.AddInt64(&report.Unchanged, 1)
				return
			}
			s.recordFailure(report, rec, err)
			return
		}
		rec = fresh
	}

	atomic.AddInt64(&report.Conflicts, 1)
	monitoring.DecayRecords.WithLabelValues("conflict").Inc()
	logger.Log.Warn("Decay gave up on contended mastery record",
		zap.Uint("student_id", rec.StudentID),
		zap.Uint("skill_id", rec.SkillID))
}

func (s *DecayService) recordFailure(report *DecayReport, rec *model.MasteryRecord, err error) {
	atomic.AddInt64(&report.Failed, 1)
	monitoring.DecayRecords.WithLabelValues("failed").Inc()
	logger.Log.Error("Decay failed for mastery record",
		zap.Uint("record_id", rec.ID),
		zap.Uint("student_id", rec.StudentID),
		zap.Uint("skill_id", rec.SkillID),
		zap.Error(err))
}
