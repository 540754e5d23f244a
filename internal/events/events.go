// Package events carries publish lifecycle notifications between the
// pipeline and interested listeners, with an optional NATS bridge for
// external consumers.
package events

import "time"

// ArticlePublished fires after a publish transaction commits and the
// artifact pipeline has run.
type ArticlePublished struct {
	Tenant        string    `json:"tenant"`
	ArticleNumber int64     `json:"article_number"`
	Version       int       `json:"version"`
	URLPath       string    `json:"url_path"`
	Published     time.Time `json:"published"`
	Timestamp     time.Time `json:"timestamp"`
}

// ArticleUnpublished fires after an article is taken down.
type ArticleUnpublished struct {
	Tenant        string    `json:"tenant"`
	ArticleNumber int64     `json:"article_number"`
	URLPath       string    `json:"url_path"`
	Timestamp     time.Time `json:"timestamp"`
}

// SiteRebuilt fires after a full-site rebuild completes.
type SiteRebuilt struct {
	Tenant    string        `json:"tenant"`
	Pages     int           `json:"pages"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration_ns"`
	Timestamp time.Time     `json:"timestamp"`
}

// LayoutSaved fires when an editor saves a layout; listeners invalidate
// cached chrome.
type LayoutSaved struct {
	Tenant    string    `json:"tenant"`
	Name      string    `json:"name"`
	IsDefault bool      `json:"is_default"`
	Timestamp time.Time `json:"timestamp"`
}

// ContactReceived fires when a contact form submission is stored.
type ContactReceived struct {
	Tenant    string    `json:"tenant"`
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
}
