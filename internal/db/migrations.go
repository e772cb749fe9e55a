package db

import "gorm.io/gorm"

// runMigrations performs database migrations
func runMigrations(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Submission{}, &AnalysisResult{}, &BrokenLink{})
}
