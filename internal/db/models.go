package db

import "time"

type SubmissionStatus string

const (
	StatusQueued  SubmissionStatus = "queued"
	StatusRunning SubmissionStatus = "running"
	StatusDone    SubmissionStatus = "done"
	StatusError   SubmissionStatus = "error"
	StatusStopped SubmissionStatus = "stopped"
)

// Submission represents one user's request to analyze a web page.
// The (user_id, url) pair is unique: a user may submit any URL only once.
type Submission struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"uniqueIndex:idx_user_url;not null" json:"user_id"`
	URL       string           `gorm:"uniqueIndex:idx_user_url;not null;size:768" json:"url"`
	Status    SubmissionStatus `gorm:"default:'queued';index" json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	User      User             `gorm:"foreignKey:UserID" json:"-"`
}

// AnalysisResult is the structural report produced by one completed run.
// Reanalyzing a submission appends a new row rather than mutating an old one.
type AnalysisResult struct {
	ID                     uint         `gorm:"primaryKey" json:"id"`
	SubmissionID           uint         `gorm:"index;not null" json:"submission_id"`
	HTMLVersion            string       `json:"html_version"` // literal doctype text, or "Unknown"
	Title                  string       `json:"title"`
	H1Count                int          `json:"h1_count"`
	H2Count                int          `json:"h2_count"`
	H3Count                int          `json:"h3_count"`
	H4Count                int          `json:"h4_count"`
	H5Count                int          `json:"h5_count"`
	H6Count                int          `json:"h6_count"`
	InternalLinksCount     int          `json:"internal_links_count"`
	ExternalLinksCount     int          `json:"external_links_count"`
	InaccessibleLinksCount int          `json:"inaccessible_links_count"`
	HasLoginForm           bool         `json:"has_login_form"`
	FetchError             string       `json:"fetch_error,omitempty"`
	CreatedAt              time.Time    `json:"created_at"`
	BrokenLinks            []BrokenLink `gorm:"foreignKey:AnalysisResultID" json:"broken_links,omitempty"`
}

// BrokenLink is one unreachable link discovered during a run. StatusCode is
// nil when the probe itself failed rather than returned an HTTP error.
type BrokenLink struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	AnalysisResultID uint   `gorm:"index;not null" json:"analysis_result_id"`
	LinkURL          string `gorm:"not null;size:2048" json:"link_url"`
	StatusCode       *int   `json:"status_code"`
}

// User represents an authenticated user
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null;size:100" json:"username"`
	Password  string    `gorm:"not null;size:255" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
