package service

import (
	"fmt"

	"github.com/sitelens/url-analyzer/internal/db"
	"gorm.io/gorm"
)

// CreateSubmission creates a new submission for a user. The (user, url) pair
// must be unique; callers check for duplicates first and the unique index
// backs that check up.
func CreateSubmission(dbConn *gorm.DB, userID uint, url string) (*db.Submission, error) {
	if url == "" {
		return nil, fmt.Errorf("url cannot be empty")
	}
	if userID == 0 {
		return nil, fmt.Errorf("user ID cannot be zero")
	}

	sub := db.Submission{
		UserID: userID,
		URL:    url,
		Status: db.StatusQueued,
	}

	err := dbConn.Create(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubmissionByIDAndUser retrieves a submission by ID for a specific user
func GetSubmissionByIDAndUser(dbConn *gorm.DB, id uint, userID uint) (*db.Submission, error) {
	var sub db.Submission
	err := dbConn.Where("id = ? AND user_id = ?", id, userID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubmissionByURL retrieves a submission by URL for a specific user
func GetSubmissionByURL(dbConn *gorm.DB, userID uint, url string) (*db.Submission, error) {
	var sub db.Submission
	err := dbConn.Where("user_id = ? AND url = ?", userID, url).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// LatestAnalysis retrieves the most recent analysis result for a submission,
// including its broken links. History accumulates across reanalyze cycles;
// only the newest run is returned here.
func LatestAnalysis(dbConn *gorm.DB, submissionID uint) (*db.AnalysisResult, error) {
	var result db.AnalysisResult
	err := dbConn.Preload("BrokenLinks").
		Where("submission_id = ?", submissionID).
		Order("id desc").
		First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// StatusCount holds one row of the count-by-status aggregate
type StatusCount struct {
	Status db.SubmissionStatus `json:"status"`
	Count  int64               `json:"count"`
}

// CountByStatus aggregates a user's submissions by status
func CountByStatus(dbConn *gorm.DB, userID uint) (total int64, byStatus map[db.SubmissionStatus]int64, err error) {
	var rows []StatusCount
	err = dbConn.Model(&db.Submission{}).
		Select("status, count(*) as count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return 0, nil, err
	}

	byStatus = make(map[db.SubmissionStatus]int64, len(rows))
	for _, row := range rows {
		byStatus[row.Status] = row.Count
		total += row.Count
	}
	return total, byStatus, nil
}

// RequeueSubmissions resets the given submissions to queued, scoped to the
// owning user. The transition is unconditional on prior state.
func RequeueSubmissions(dbConn *gorm.DB, userID uint, ids []uint) (int64, error) {
	result := dbConn.Model(&db.Submission{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Update("status", db.StatusQueued)
	return result.RowsAffected, result.Error
}

// DeleteSubmissions removes the given submissions owned by the user, along
// with their analysis results and broken-link rows.
func DeleteSubmissions(dbConn *gorm.DB, userID uint, ids []uint) (int64, error) {
	var affected int64
	err := dbConn.Transaction(func(tx *gorm.DB) error {
		var owned []uint
		if err := tx.Model(&db.Submission{}).
			Where("user_id = ? AND id IN ?", userID, ids).
			Pluck("id", &owned).Error; err != nil {
			return err
		}
		if len(owned) == 0 {
			return nil
		}

		var analysisIDs []uint
		if err := tx.Model(&db.AnalysisResult{}).
			Where("submission_id IN ?", owned).
			Pluck("id", &analysisIDs).Error; err != nil {
			return err
		}

		if len(analysisIDs) > 0 {
			if err := tx.Where("analysis_result_id IN ?", analysisIDs).
				Delete(&db.BrokenLink{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", analysisIDs).
				Delete(&db.AnalysisResult{}).Error; err != nil {
				return err
			}
		}

		result := tx.Where("id IN ?", owned).Delete(&db.Submission{})
		affected = result.RowsAffected
		return result.Error
	})
	return affected, err
}
