// Package testutil builds throwaway databases and fixtures for tests.
package testutil

import (
	"fmt"
	"testing"
	"time"
	"tutorhub_backend/internal/config"
	"tutorhub_backend/internal/model"
	"tutorhub_backend/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory sqlite database private to t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		Path:   fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}, gormlogger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func CreateUser(t *testing.T, db *gorm.DB, role model.UserRole, parentID *uint) *model.User {
	t.Helper()
	u := &model.User{
		Name:     string(role) + "-" + uuid.NewString()[:8],
		Email:    uuid.NewString() + "@example.com",
		Role:     role,
		ParentID: parentID,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func CreateSkill(t *testing.T, db *gorm.DB, name string) *model.Skill {
	t.Helper()
	s := &model.Skill{Name: name}
	require.NoError(t, db.Create(s).Error)
	return s
}

// CreateMastery writes a record directly, bypassing last-write-wins.
func CreateMastery(t *testing.T, db *gorm.DB, studentID, skillID uint, level float64, assessed time.Time) *model.MasteryRecord {
	t.Helper()
	at := assessed.UTC()
	rec := &model.MasteryRecord{
		StudentID:     studentID,
		SkillID:       skillID,
		MasteryLevel:  level,
		LastAssessed:  &at,
		LastDecayedAt: &at,
		Revision:      1,
	}
	require.NoError(t, db.Create(rec).Error)
	return rec
}
