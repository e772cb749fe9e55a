package service

import (
	"context"

	"github.com/sitelens/url-analyzer/internal/analyzer"
	"github.com/sitelens/url-analyzer/internal/db"
	"github.com/sitelens/url-analyzer/internal/runner"
	"gorm.io/gorm"
)

// SubmissionStore is the gorm-backed persistence layer for detached runs.
// Every method scopes its session to the caller's context, so a run's data
// access lives and dies with the run rather than with the triggering request.
type SubmissionStore struct {
	db *gorm.DB
}

// NewSubmissionStore creates a SubmissionStore on the given connection
func NewSubmissionStore(dbConn *gorm.DB) *SubmissionStore {
	return &SubmissionStore{db: dbConn}
}

// GetSubmission retrieves a submission by ID
func (s *SubmissionStore) GetSubmission(ctx context.Context, id uint) (*db.Submission, error) {
	var sub db.Submission
	err := s.db.WithContext(ctx).First(&sub, id).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// MarkRunning compare-and-sets the submission to running unless it already is.
// It reports whether the transition happened.
func (s *SubmissionStore) MarkRunning(ctx context.Context, id uint) (bool, error) {
	result := s.db.WithContext(ctx).Model(&db.Submission{}).
		Where("id = ? AND status <> ?", id, db.StatusRunning).
		Update("status", db.StatusRunning)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetStatus updates the submission's status field
func (s *SubmissionStore) SetStatus(ctx context.Context, id uint, status db.SubmissionStatus) error {
	return s.db.WithContext(ctx).Model(&db.Submission{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// SaveResult writes the analysis result, its broken-link rows, and the done
// status in one transaction. A failure anywhere rolls everything back; if
// the submission is no longer running, nothing persists and the rollback is
// reported as runner.ErrSuperseded.
func (s *SubmissionStore) SaveResult(ctx context.Context, id uint, result *analyzer.Result) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := db.AnalysisResult{
			SubmissionID:           id,
			HTMLVersion:            result.HTMLVersion,
			Title:                  result.Title,
			H1Count:                result.HeadingCounts["h1"],
			H2Count:                result.HeadingCounts["h2"],
			H3Count:                result.HeadingCounts["h3"],
			H4Count:                result.HeadingCounts["h4"],
			H5Count:                result.HeadingCounts["h5"],
			H6Count:                result.HeadingCounts["h6"],
			InternalLinksCount:     result.InternalLinksCount,
			ExternalLinksCount:     result.ExternalLinksCount,
			InaccessibleLinksCount: len(result.BrokenLinks),
			HasLoginForm:           result.HasLoginForm,
			FetchError:             result.FetchError,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		if len(result.BrokenLinks) > 0 {
			rows := make([]db.BrokenLink, 0, len(result.BrokenLinks))
			for _, bl := range result.BrokenLinks {
				rows = append(rows, db.BrokenLink{
					AnalysisResultID: record.ID,
					LinkURL:          bl.URL,
					StatusCode:       bl.StatusCode,
				})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		// Compare-and-set: a stop that landed after the run's own cancel
		// check must win, so only a still-running submission reaches done.
		res := tx.Model(&db.Submission{}).
			Where("id = ? AND status = ?", id, db.StatusRunning).
			Update("status", db.StatusDone)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return runner.ErrSuperseded
		}
		return nil
	})
}
