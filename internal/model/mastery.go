package model

import (
	"math"
	"time"
)

// MasteryRecord is the estimate of how well a student knows one skill.
// Exactly one row exists per (student, skill) pair once the student has
// been assessed; rows are never deleted.
type MasteryRecord struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentID    uint       `gorm:"not null;uniqueIndex:idx_student_skill" json:"studentId"`
	SkillID      uint       `gorm:"not null;uniqueIndex:idx_student_skill;index" json:"skillId"`
	MasteryLevel float64    `gorm:"not null;default:0" json:"masteryLevel"`
	LastAssessed *time.Time `gorm:"index" json:"lastAssessed"`
	// LastDecayedAt is the point up to which decay has already been applied.
	LastDecayedAt *time.Time `json:"lastDecayedAt,omitempty"`
	// Revision is bumped on every write and used as a compare-and-swap token.
	Revision  int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (MasteryRecord) TableName() string {
	return "student_skills"
}

// ClampMastery bounds v to [0,1]. NaN is treated as 0.
func ClampMastery(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// MasteryObservation records that a completed content item has already
// produced its mastery update. The unique key makes the side effect
// happen at most once per item and terminal timestamp.
type MasteryObservation struct {
	ID          uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	ContentKind ContentKind `gorm:"size:20;not null;uniqueIndex:idx_observation_key" json:"contentKind"`
	ContentID   string      `gorm:"type:varchar(36);not null;uniqueIndex:idx_observation_key" json:"contentId"`
	ObservedAt  time.Time   `gorm:"not null;uniqueIndex:idx_observation_key" json:"observedAt"`
	StudentID   uint        `gorm:"index" json:"studentId"`
	SkillID     uint        `json:"skillId"`
	Mastery     float64     `json:"mastery"`
	CreatedAt   time.Time   `json:"createdAt"`
}

func (MasteryObservation) TableName() string {
	return "mastery_observations"
}
