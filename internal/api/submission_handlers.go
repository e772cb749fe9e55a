package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sitelens/url-analyzer/internal/db"
	"github.com/sitelens/url-analyzer/internal/middleware"
	"github.com/sitelens/url-analyzer/internal/runner"
	"github.com/sitelens/url-analyzer/internal/service"
)

// AddURLRequest represents the submission creation request
type AddURLRequest struct {
	URL string `json:"url" binding:"required,url"`
}

// BulkIDsRequest carries the target IDs of a bulk operation
type BulkIDsRequest struct {
	IDs []uint `json:"ids" binding:"required,min=1,max=100"`
}

// PaginatedResponse represents a paginated response
type PaginatedResponse struct {
	Data  interface{} `json:"data"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
	Total int64       `json:"total"`
	Pages int         `json:"pages"`
}

// StatsResponse is the count-by-status aggregate for one user
type StatsResponse struct {
	Total    int64                         `json:"total"`
	ByStatus map[db.SubmissionStatus]int64 `json:"by_status"`
}

// currentUser pulls the authenticated user from the gin context, aborting
// with 401 when the middleware did not set one.
func currentUser(c *gin.Context) (*middleware.UserContext, bool) {
	user, ok := middleware.GetUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, false
	}
	return user, true
}

// parseID reads the :id path parameter
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submission ID"})
		return 0, false
	}
	return uint(id), true
}

// AddURLHandler handles submission creation. The same URL may be submitted
// once per user; a duplicate is rejected with 409.
func AddURLHandler(dbConn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}

		var req AddURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Printf("Submission validation error: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid URL format",
				"details": err.Error(),
			})
			return
		}

		req.URL = strings.TrimSpace(req.URL)
		if req.URL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "URL cannot be empty"})
			return
		}

		existing, err := service.GetSubmissionByURL(dbConn, user.UserID, req.URL)
		if err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "URL already submitted", "id": existing.ID})
			return
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Database error checking existing submission: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		sub, err := service.CreateSubmission(dbConn, user.UserID, req.URL)
		if err != nil {
			log.Printf("Failed to create submission: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save URL"})
			return
		}

		log.Printf("Created submission %d (%s) for user %d", sub.ID, req.URL, user.UserID)
		c.JSON(http.StatusCreated, sub)
	}
}

// ListURLsHandler handles submission listing with pagination and search
func ListURLsHandler(dbConn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}

		page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
		if err != nil || page < 1 {
			page = 1
		}

		pageSize, err := strconv.Atoi(c.DefaultQuery("size", "10"))
		if err != nil || pageSize < 1 || pageSize > 100 {
			pageSize = 10
		}

		sort := c.DefaultQuery("sort", "created_at desc")
		allowedSorts := map[string]bool{
			"created_at desc": true,
			"created_at asc":  true,
			"updated_at desc": true,
			"updated_at asc":  true,
			"url asc":         true,
			"url desc":        true,
			"status asc":      true,
			"status desc":     true,
		}
		if !allowedSorts[sort] {
			sort = "created_at desc"
		}

		search := strings.TrimSpace(c.Query("q"))
		status := strings.TrimSpace(c.Query("status"))

		query := dbConn.Model(&db.Submission{}).Where("user_id = ?", user.UserID)

		if search != "" {
			query = query.Where("url LIKE ?", "%"+search+"%")
		}

		if status != "" {
			query = query.Where("status = ?", status)
		}

		var total int64
		if err := query.Count(&total).Error; err != nil {
			log.Printf("Failed to count submissions: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		offset := (page - 1) * pageSize
		pages := int((total + int64(pageSize) - 1) / int64(pageSize))

		var subs []db.Submission
		if err := query.Order(sort).Limit(pageSize).Offset(offset).Find(&subs).Error; err != nil {
			log.Printf("Failed to fetch submissions: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		c.JSON(http.StatusOK, PaginatedResponse{
			Data:  subs,
			Page:  page,
			Size:  pageSize,
			Total: total,
			Pages: pages,
		})
	}
}

// StatsHandler returns the caller's submission counts grouped by status
func StatsHandler(dbConn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}

		total, byStatus, err := service.CountByStatus(dbConn, user.UserID)
		if err != nil {
			log.Printf("Failed to aggregate submission stats: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		c.JSON(http.StatusOK, StatsResponse{Total: total, ByStatus: byStatus})
	}
}

// GetURLHandler handles retrieving a single submission with its status
func GetURLHandler(dbConn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := parseID(c)
		if !ok {
			return
		}

		sub, err := service.GetSubmissionByIDAndUser(dbConn, id, user.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Submission not found"})
				return
			}
			log.Printf("Failed to fetch submission %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		c.JSON(http.StatusOK, sub)
	}
}

// GetAnalysisHandler returns the most recent analysis result for a
// submission, or 404 when no run has completed yet.
func GetAnalysisHandler(dbConn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := parseID(c)
		if !ok {
			return
		}

		if _, err := service.GetSubmissionByIDAndUser(dbConn, id, user.UserID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Submission not found"})
				return
			}
			log.Printf("Failed to fetch submission %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		analysis, err := service.LatestAnalysis(dbConn, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
				return
			}
			log.Printf("Failed to fetch analysis for submission %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		c.JSON(http.StatusOK, analysis)
	}
}

// StartHandler transitions a submission to running and schedules one
// detached analysis run. A start while a run is active is rejected with 409.
func StartHandler(dbConn *gorm.DB, runnerService *runner.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := parseID(c)
		if !ok {
			return
		}

		if _, err := service.GetSubmissionByIDAndUser(dbConn, id, user.UserID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Submission not found"})
				return
			}
			log.Printf("Failed to fetch submission %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		if err := runnerService.StartRun(c.Request.Context(), id); err != nil {
			if errors.Is(err, runner.ErrRunActive) {
				c.JSON(http.StatusConflict, gin.H{"error": "Analysis is already running"})
				return
			}
			log.Printf("Failed to start run for submission %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start analysis"})
			return
		}

		sub, err := service.GetSubmissionByIDAndUser(dbConn, id, user.UserID)
		if err != nil {
			log.Printf("Failed to reload submission %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		c.JSON(http.StatusOK, sub)
	}
}

// StopHandler transitions a submission to stopped, cancelling its active run
func StopHandler(dbConn *gorm.DB, runnerService *runner.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := parseID(c)
		if !ok {
			return
		}

		if _, err := service.GetSubmissionByIDAndUser(dbConn, id, user.UserID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Submission not found"})
				return
			}
			log.Printf("Failed to fetch submission %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		if err := runnerService.StopRun(c.Request.Context(), id); err != nil {
			log.Printf("Failed to stop submission %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to stop analysis"})
			return
		}

		sub, err := service.GetSubmissionByIDAndUser(dbConn, id, user.UserID)
		if err != nil {
			log.Printf("Failed to reload submission %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		c.JSON(http.StatusOK, sub)
	}
}

// ReanalyzeHandler resets the given submissions to queued, unconditional on
// their prior state.
func ReanalyzeHandler(dbConn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}

		var req BulkIDsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Printf("Reanalyze validation error: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid bulk request",
				"details": err.Error(),
			})
			return
		}

		affected, err := service.RequeueSubmissions(dbConn, user.UserID, req.IDs)
		if err != nil {
			log.Printf("Bulk reanalyze failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to requeue submissions"})
			return
		}

		log.Printf("Requeued %d submissions for user %d", affected, user.UserID)
		c.JSON(http.StatusOK, gin.H{"success": true, "reanalyzed": affected})
	}
}

// DeleteHandler removes the given submissions owned by the caller
func DeleteHandler(dbConn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}

		var req BulkIDsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Printf("Delete validation error: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid bulk request",
				"details": err.Error(),
			})
			return
		}

		affected, err := service.DeleteSubmissions(dbConn, user.UserID, req.IDs)
		if err != nil {
			log.Printf("Bulk delete failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete submissions"})
			return
		}

		log.Printf("Deleted %d submissions for user %d", affected, user.UserID)
		c.JSON(http.StatusOK, gin.H{"success": true, "deleted": affected})
	}
}
