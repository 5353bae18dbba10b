package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
	"tutorhub_backend/internal/model"
	"tutorhub_backend/internal/repository"
	"tutorhub_backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func testPolicy() DecayPolicy {
	return DecayPolicy{
		GraceWindow: 72 * time.Hour,
		HalfLife:    240 * time.Hour,
		Floor:       0,
		BatchSize:   2,
		Workers:     2,
		LockTTL:     time.Minute,
	}
}

func newDecayFixture(t *testing.T, policy DecayPolicy) (*gorm.DB, *DecayService, *repository.MasteryRepository) {
	db := testutil.NewDB(t)
	repo := repository.NewMasteryRepository(db)
	svc := NewDecayService(repo, repository.LocalRunLock{}, NewDecaySettings(policy))
	return db, svc, repo
}

func reload(t *testing.T, repo *repository.MasteryRepository, rec *model.MasteryRecord) *model.MasteryRecord {
	t.Helper()
	fresh, err := repo.Find(context.Background(), rec.StudentID, rec.SkillID)
	require.NoError(t, err)
	return fresh
}

func TestDecayLeavesRecordsInsideGraceWindow(t *testing.T) {
	db, svc, repo := newDecayFixture(t, testPolicy())
	student := testutil.CreateUser(t, db, model.Student, nil)
	skill := testutil.CreateSkill(t, db, "Fractions")
	rec := testutil.CreateMastery(t, db, student.ID, skill.ID, 0.8, t0)

	report, err := svc.RunOnce(context.Background(), t0.Add(71*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.Decayed)

	assert.Equal(t, 0.8, reload(t, repo, rec).MasteryLevel)
}

func TestDecayHalvesAfterOneHalfLife(t *testing.T) {
	db, svc, repo := newDecayFixture(t, testPolicy())
	student := testutil.CreateUser(t, db, model.Student, nil)
	skill := testutil.CreateSkill(t, db, "Fractions")
	rec := testutil.CreateMastery(t, db, student.ID, skill.ID, 0.8, t0)

	now := t0.Add(72*time.Hour + 240*time.Hour)
	report, err := svc.RunOnce(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Decayed)

	got := reload(t, repo, rec)
	assert.InDelta(t, 0.4, got.MasteryLevel, 1e-9)
	// the assessment time is not moved by decay
	require.NotNil(t, got.LastAssessed)
	assert.True(t, got.LastAssessed.Equal(t0))
	require.NotNil(t, got.LastDecayedAt)
	assert.True(t, got.LastDecayedAt.Equal(now))
}

func TestDecayIsIdempotentForTheSameInstant(t *testing.T) {
	db, svc, repo := newDecayFixture(t, testPolicy())
	student := testutil.CreateUser(t, db, model.Student, nil)
	skill := testutil.CreateSkill(t, db, "Fractions")
	rec := testutil.CreateMastery(t, db, student.ID, skill.ID, 0.9, t0)

	now := t0.Add(20 * 24 * time.Hour)
	_, err := svc.RunOnce(context.Background(), now)
	require.NoError(t, err)
	first := reload(t, repo, rec).MasteryLevel

	report, err := svc.RunOnce(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.Decayed)
	assert.Equal(t, int64(1), report.Unchanged)
	assert.Equal(t, first, reload(t, repo, rec).MasteryLevel)
}

func TestDecayInStepsMatchesSingleRun(t *testing.T) {
	policy := testPolicy()
	dbA, stepped, repoA := newDecayFixture(t, policy)
	dbB, single, repoB := newDecayFixture(t, policy)

	studentA := testutil.CreateUser(t, dbA, model.Student, nil)
	skillA := testutil.CreateSkill(t, dbA, "Fractions")
	recA := testutil.CreateMastery(t, dbA, studentA.ID, skillA.ID, 0.75, t0)

	studentB := testutil.CreateUser(t, dbB, model.Student, nil)
	skillB := testutil.CreateSkill(t, dbB, "Fractions")
	recB := testutil.CreateMastery(t, dbB, studentB.ID, skillB.ID, 0.75, t0)

	ctx := context.Background()
	for _, days := range []int{4, 9, 15, 30} {
		_, err := stepped.RunOnce(ctx, t0.Add(time.Duration(days)*24*time.Hour))
		require.NoError(t, err)
	}
	_, err := single.RunOnce(ctx, t0.Add(30*24*time.Hour))
	require.NoError(t, err)

	assert.InDelta(t, reload(t, repoB, recB).MasteryLevel, reload(t, repoA, recA).MasteryLevel, 1e-9)
}

func TestDecayNeverIncreasesAndStopsAtFloor(t *testing.T) {
	policy := testPolicy()
	policy.Floor = 0.2
	db, svc, repo := newDecayFixture(t, policy)
	student := testutil.CreateUser(t, db, model.Student, nil)
	skill := testutil.CreateSkill(t, db, "Fractions")
	rec := testutil.CreateMastery(t, db, student.ID, skill.ID, 0.9, t0)
	low := testutil.CreateMastery(t, db, student.ID, testutil.CreateSkill(t, db, "Decimals").ID, 0.1, t0)

	prev := 0.9
	for days := 5; days <= 400; days += 35 {
		_, err := svc.RunOnce(context.Background(), t0.Add(time.Duration(days)*24*time.Hour))
		require.NoError(t, err)
		cur := reload(t, repo, rec).MasteryLevel
		assert.LessOrEqual(t, cur, prev)
		assert.GreaterOrEqual(t, cur, 0.2)
		prev = cur
	}
	assert.InDelta(t, 0.2, prev, 0.01)

	// values already below the floor are not touched
	assert.Equal(t, 0.1, reload(t, repo, low).MasteryLevel)
}

func TestDecayPagesThroughAllRecords(t *testing.T) {
	db, svc, repo := newDecayFixture(t, testPolicy())
	skill := testutil.CreateSkill(t, db, "Fractions")

	var recs []*model.MasteryRecord
	for i := 0; i < 5; i++ {
		student := testutil.CreateUser(t, db, model.Student, nil)
		recs = append(recs, testutil.CreateMastery(t, db, student.ID, skill.ID, 0.6, t0))
	}

	report, err := svc.RunOnce(context.Background(), t0.Add(13*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(5), report.Scanned)
	assert.Equal(t, int64(5), report.Decayed)
	for _, r := range recs {
		assert.InDelta(t, 0.3, reload(t, repo, r).MasteryLevel, 1e-9)
	}
}

func TestDecayCountsFailuresAndContinues(t *testing.T) {
	db, svc, repo := newDecayFixture(t, testPolicy())
	skill := testutil.CreateSkill(t, db, "Fractions")

	var recs []*model.MasteryRecord
	for i := 0; i < 3; i++ {
		student := testutil.CreateUser(t, db, model.Student, nil)
		recs = append(recs, testutil.CreateMastery(t, db, student.ID, skill.ID, 0.6, t0))
	}

	var updates int32
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:fail_first", func(tx *gorm.DB) {
		if tx.Statement.Table == "student_skills" && atomic.AddInt32(&updates, 1) == 1 {
			tx.AddError(errors.New("disk on fire"))
		}
	}))

	report, err := svc.RunOnce(context.Background(), t0.Add(13*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.Scanned)
	assert.Equal(t, int64(1), report.Failed)
	assert.Equal(t, int64(2), report.Decayed)

	decayed := 0
	for _, r := range recs {
		if reload(t, repo, r).MasteryLevel < 0.6 {
			decayed++
		}
	}
	assert.Equal(t, 2, decayed)
	assert.Same(t, report, svc.LastReport())
}

func TestDecayYieldsToFreshAssessment(t *testing.T) {
	db, svc, repo := newDecayFixture(t, testPolicy())
	student := testutil.CreateUser(t, db, model.Student, nil)
	skill := testutil.CreateSkill(t, db, "Fractions")
	rec := testutil.CreateMastery(t, db, student.ID, skill.ID, 0.5, t0)

	stale := *rec
	now := t0.Add(30 * 24 * time.Hour)

	// the student is assessed after the decay run read the row
	mastery := NewMasteryService(repo, repository.NewSkillRepository(db), svc.Settings)
	applied, err := mastery.Upsert(context.Background(), student.ID, skill.ID, 0.95, now.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, applied)

	report := &DecayReport{}
	svc.decayRecord(context.Background(), report, testPolicy(), &stale, now)

	assert.Equal(t, int64(1), report.Unchanged)
	assert.Equal(t, int64(0), report.Decayed)
	assert.Equal(t, 0.95, reload(t, repo, rec).MasteryLevel)
}

type heldLock struct{}

func (heldLock) TryAcquire(context.Context, string, time.Duration) (func(), error) {
	return nil, nil
}

func TestDecaySkipsWhenAnotherInstanceHoldsTheLock(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewMasteryRepository(db)
	svc := NewDecayService(repo, heldLock{}, NewDecaySettings(testPolicy()))

	student := testutil.CreateUser(t, db, model.Student, nil)
	skill := testutil.CreateSkill(t, db, "Fractions")
	rec := testutil.CreateMastery(t, db, student.ID, skill.ID, 0.8, t0)

	report, err := svc.RunOnce(context.Background(), t0.Add(60*24*time.Hour))
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Equal(t, 0.8, reload(t, repo, rec).MasteryLevel)
}

func TestDecayRejectsOverlappingRunInProcess(t *testing.T) {
	_, svc, _ := newDecayFixture(t, testPolicy())

	svc.running.Lock()
	defer svc.running.Unlock()

	_, err := svc.RunOnce(context.Background(), t0)
	assert.ErrorIs(t, err, ErrDecayRunning)
}

func TestProjectIsPureAndClamped(t *testing.T) {
	p := testPolicy()
	assessed := t0
	rec := &model.MasteryRecord{MasteryLevel: 1.4, LastAssessed: &assessed}

	v, due := p.Project(rec, t0.Add(72*time.Hour+240*time.Hour))
	assert.True(t, due)
	assert.InDelta(t, 0.5, v, 1e-9)
	assert.Equal(t, 1.4, rec.MasteryLevel)

	_, due = p.Project(&model.MasteryRecord{MasteryLevel: 0.5}, t0)
	assert.False(t, due, "never assessed")
}
