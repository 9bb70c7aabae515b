package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ========================================
// Projects and Search Console
// ========================================

// Project is a user's content project.
type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// GSCAccount links a project to a Google Search Console property.
type GSCAccount struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	SiteURL     string    `json:"site_url"`
	Credentials string    `json:"-"` // OAuth credential JSON, never serialized out
	CreatedAt   time.Time `json:"created_at"`
}

// GSCPerformance holds 30-day search performance metrics for one property.
// CTR is a percentage and Position an impression-weighted average, both
// rounded to two decimals.
type GSCPerformance struct {
	Clicks      int     `json:"clicks"`
	Impressions int     `json:"impressions"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

// ========================================
// Monitoring Stats
// ========================================

// MonitoringProjectStats is one row of the per-project monitoring rollup
// maintained by the reconciler. Blog1000/1500/2500 count posts by word
// count bucket.
type MonitoringProjectStats struct {
	ProjectID      string    `json:"project_id"`
	UserID         string    `json:"user_id"`
	Blog1000       int       `json:"blog_1000"`
	Blog1500       int       `json:"blog_1500"`
	Blog2500       int       `json:"blog_2500"`
	GSCConnected   int       `json:"gsc_connected"`
	CMSConnected   int       `json:"cms_connected"`
	GSCClicks      int       `json:"gsc_clicks"`
	GSCImpressions int       `json:"gsc_impressions"`
	GSCCTR         float64   `json:"gsc_ctr"`
	GSCPosition    float64   `json:"gsc_position"`
	ProjectName    string    `json:"project_name"`
	ProjectURL     string    `json:"project_url"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ========================================
// Content Documents (MongoDB)
// ========================================

// ContentDoc is a blog document from the content store. Word count fields
// are untyped because historical documents carry strings, floats, ints, or
// nothing at all.
type ContentDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	UserID     string             `bson:"user_id,omitempty"`
	ProjectID  string             `bson:"project_id,omitempty"`
	Title      string             `bson:"title,omitempty"`
	IsActive   *bool              `bson:"is_active,omitempty"`
	WordCount  any                `bson:"word_count,omitempty"`
	WordsCount any                `bson:"words_count,omitempty"`
	CreatedAt  time.Time          `bson:"created_at,omitempty"`
}

// WordCountValue returns the word count field, falling back to the legacy
// words_count field when the primary one is absent.
func (d *ContentDoc) WordCountValue() any {
	if d.WordCount != nil {
		return d.WordCount
	}
	return d.WordsCount
}
