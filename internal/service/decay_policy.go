package service

import (
	"math"
	"sync/atomic"
	"time"
	"tutorhub_backend/internal/config"
	"tutorhub_backend/internal/model"
)

// DecayPolicy describes how mastery fades once a skill goes unpractised.
type DecayPolicy struct {
	GraceWindow time.Duration
	HalfLife    time.Duration
	Floor       float64
	BatchSize   int
	Workers     int
	LockTTL     time.Duration
}

func DecayPolicyFromConfig(cfg config.DecayConfig) DecayPolicy {
	p := DecayPolicy{
		GraceWindow: cfg.GraceWindow,
		HalfLife:    cfg.HalfLife,
		Floor:       model.ClampMastery(cfg.Floor),
		BatchSize:   cfg.BatchSize,
		Workers:     cfg.Workers,
		LockTTL:     cfg.LockTTL,
	}
	if p.HalfLife <= 0 {
		p.HalfLife = 30 * 24 * time.Hour
	}
	if p.BatchSize <= 0 {
		p.BatchSize = 200
	}
	if p.Workers <= 0 {
		p.Workers = 1
	}
	if p.LockTTL <= 0 {
		p.LockTTL = 30 * time.Minute
	}
	return p
}

// decayStart is the instant from which decay has not yet been applied.
func (p DecayPolicy) decayStart(rec *model.MasteryRecord) (time.Time, bool) {
	if rec.LastAssessed == nil {
		return time.Time{}, false
	}
	start := rec.LastAssessed.Add(p.GraceWindow)
	if rec.LastDecayedAt != nil && rec.LastDecayedAt.After(start) {
		start = *rec.LastDecayedAt
	}
	return start, true
}

// Project returns the mastery rec would have at now. It reports false when
// no decay is due: never assessed, still inside the grace window, already
// decayed up to now, or at or below the floor.
//
// The curve is exponential toward the floor, so decaying to t1 and then to
// t2 gives the same value as decaying straight to t2.
func (p DecayPolicy) Project(rec *model.MasteryRecord, now time.Time) (float64, bool) {
	start, ok := p.decayStart(rec)
	if !ok || !now.After(start) {
		return rec.MasteryLevel, false
	}
	m := model.ClampMastery(rec.MasteryLevel)
	if m <= p.Floor {
		return m, false
	}

	elapsed := now.Sub(start)
	factor := math.Pow(0.5, float64(elapsed)/float64(p.HalfLife))
	next := p.Floor + (m-p.Floor)*factor
	next = math.Max(p.Floor, math.Min(m, next))
	return model.ClampMastery(next), true
}

// DecaySettings holds the live policy; the config watcher swaps it.
type DecaySettings struct {
	v atomic.Pointer[DecayPolicy]
}

func NewDecaySettings(p DecayPolicy) *DecaySettings {
	s := &DecaySettings{}
	s.Store(p)
	return s
}

func (s *DecaySettings) Load() DecayPolicy {
	return *s.v.Load()
}

func (s *DecaySettings) Store(p DecayPolicy) {
	s.v.Store(&p)
}
