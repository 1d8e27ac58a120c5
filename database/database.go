package database

import (
	"fmt"
	"log"
	"os"

	courseModels "learnhub/models/course"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DbInstance struct holds the database connection instance
type DbInstance struct {
	Db *gorm.DB
}

// Database is the global database instance
var Database DbInstance

// ConnectDb establishes a connection to PostgreSQL
func ConnectDb() {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}

	sqlDB.SetMaxOpenConns(10)   // Maximum open connections
	sqlDB.SetMaxIdleConns(5)    // Maximum idle connections
	sqlDB.SetConnMaxLifetime(0) // No timeout

	if err := Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	Database = DbInstance{Db: db}
}

// ConnectSqlite opens a SQLite database at path (":memory:" for tests)
// and installs it as the global instance.
func ConnectSqlite(path string) error {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// a single connection keeps every query on the same in-memory database
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return err
	}
	Database = DbInstance{Db: db}
	return nil
}

// Migrate creates or updates the progression tables
func Migrate(db *gorm.DB) error {
	log.Println("Running Migrations...")

	err := db.AutoMigrate(
		&courseModels.Course{},
		&courseModels.Module{},
		&courseModels.Video{},
		&courseModels.Enrollment{},
		&courseModels.VideoCompletion{},
		&courseModels.VideoPosition{},
		&courseModels.ModuleUnlock{},
		&courseModels.Assessment{},
		&courseModels.AssessmentQuestion{},
		&courseModels.AssessmentAttempt{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	log.Println("Migrations completed successfully.")
	return nil
}
