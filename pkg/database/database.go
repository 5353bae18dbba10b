package database

import (
	"fmt"
	"time"
	"tutorhub_backend/internal/config"
	"tutorhub_backend/internal/model"
	"tutorhub_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Models lists every table the engine owns, in migration order.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Skill{},
		&model.MasteryRecord{},
		&model.MasteryObservation{},
		&model.Document{},
		&model.Homework{},
		&model.Quiz{},
		&model.Lesson{},
	}
}

func dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=UTC",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		return postgres.Open(dsn), nil
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "tutorhub.db"
		}
		return sqlite.Open(path), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// Open connects without migrating. All timestamps are written in UTC.
func Open(cfg *config.DatabaseConfig, logLevel gormlogger.LogLevel) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite" {
		// sqlite serialises writers; a single connection avoids SQLITE_BUSY.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// SeedSkills inserts the starter skills that are missing.
func SeedSkills(db *gorm.DB, names []string) error {
	for _, name := range names {
		skill := model.Skill{Name: name}
		if err := db.Where(model.Skill{Name: name}).FirstOrCreate(&skill).Error; err != nil {
			return fmt.Errorf("seed skill %q: %w", name, err)
		}
	}
	return nil
}

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.Server.Mode == "debug" {
		level = gormlogger.Info
	}

	db, err := Open(&cfg.Database, level)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("Database connection established", zap.String("driver", cfg.Database.Driver))

	if err := Migrate(db); err != nil {
		return nil, err
	}
	logger.Log.Info("Database migration completed")

	if err := SeedSkills(db, cfg.Mastery.DefaultSkills); err != nil {
		return nil, err
	}

	return db, nil
}
