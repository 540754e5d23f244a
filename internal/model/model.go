// Package model defines the core content entities shared across the editor,
// publisher, and publishing pipeline.
package model

import (
	"time"

	"github.com/skycms/skycms/internal/foundation"
)

// ContentFormat identifies how an article body is stored.
type ContentFormat string

const (
	// FormatMarkdown bodies are rendered through the markdown pipeline at publish time.
	FormatMarkdown ContentFormat = "markdown"
	// FormatHTML bodies are published as-is.
	FormatHTML ContentFormat = "html"
)

// Article is a versioned content record authored in the editor.
//
// An article is identified by Number; each save under that number creates a
// new Version. Published is a soft-state transition: a nil/None value means
// draft, a past value means live, a future value means scheduled.
type Article struct {
	ID            string                       `json:"id"`
	Number        int64                        `json:"number"`
	Version       int                          `json:"version"`
	Title         string                       `json:"title"`
	URLPath       string                       `json:"url_path"`
	Summary       string                       `json:"summary,omitempty"`
	Content       string                       `json:"content"`
	ContentFormat ContentFormat                `json:"content_format"`
	HeadScript    string                       `json:"head_script,omitempty"`
	FooterScript  string                       `json:"footer_script,omitempty"`
	BannerImage   string                       `json:"banner_image,omitempty"`
	AuthorName    string                       `json:"author_name,omitempty"`
	Published     foundation.Option[time.Time] `json:"published"`
	Expires       foundation.Option[time.Time] `json:"expires"`
	Fingerprint   string                       `json:"fingerprint,omitempty"`
	CreatedAt     time.Time                    `json:"created_at"`
	UpdatedAt     time.Time                    `json:"updated_at"`
}

// IsLive reports whether the article version is visible to the public at the
// given instant: published in the past (or now) and not expired.
func (a *Article) IsLive(now time.Time) bool {
	if a.Published.IsNone() || a.Published.Unwrap().After(now) {
		return false
	}
	if a.Expires.IsSome() && !a.Expires.Unwrap().After(now) {
		return false
	}
	return true
}

// IsScheduled reports whether the article is published with a timestamp still
// in the future.
func (a *Article) IsScheduled(now time.Time) bool {
	return a.Published.IsSome() && a.Published.Unwrap().After(now)
}

// articleValidators collects the per-field checks; the chain reports
// every failing field, not just the first.
var articleValidators = foundation.NewValidatorChain(
	func(a Article) foundation.ValidationResult {
		if a.Number <= 0 {
			return foundation.Invalid(foundation.NewValidationError("number", "positive", "article number must be positive"))
		}
		return foundation.Valid()
	},
	func(a Article) foundation.ValidationResult {
		if a.Version <= 0 {
			return foundation.Invalid(foundation.NewValidationError("version", "positive", "version must be positive"))
		}
		return foundation.Valid()
	},
	func(a Article) foundation.ValidationResult {
		if a.Title == "" {
			return foundation.Invalid(foundation.NewValidationError("title", "required", "title is required"))
		}
		return foundation.Valid()
	},
	func(a Article) foundation.ValidationResult {
		if a.URLPath == "" {
			return foundation.Invalid(foundation.NewValidationError("url_path", "required", "url path is required"))
		}
		return foundation.Valid()
	},
	func(a Article) foundation.ValidationResult {
		if a.ContentFormat != FormatMarkdown && a.ContentFormat != FormatHTML {
			return foundation.Invalid(foundation.NewValidationError("content_format", "invalid", "content format must be markdown or html"))
		}
		return foundation.Valid()
	},
	func(a Article) foundation.ValidationResult {
		if a.Expires.IsSome() && a.Published.IsSome() && !a.Expires.Unwrap().After(a.Published.Unwrap()) {
			return foundation.Invalid(foundation.NewValidationError("expires", "invalid", "expires must be after published"))
		}
		return foundation.Valid()
	},
)

// Validate checks required fields and basic shape.
func (a *Article) Validate() foundation.ValidationResult {
	return articleValidators.Validate(*a)
}

// PublishedPage is the materialized, currently-live representation of an
// article version. At most one row exists per article number.
type PublishedPage struct {
	ID            string                       `json:"id"`
	ArticleNumber int64                        `json:"article_number"`
	Version       int                          `json:"version"`
	Title         string                       `json:"title"`
	URLPath       string                       `json:"url_path"`
	Summary       string                       `json:"summary,omitempty"`
	Content       string                       `json:"content"`
	HeadScript    string                       `json:"head_script,omitempty"`
	FooterScript  string                       `json:"footer_script,omitempty"`
	BannerImage   string                       `json:"banner_image,omitempty"`
	AuthorName    string                       `json:"author_name,omitempty"`
	Published     time.Time                    `json:"published"`
	Expires       foundation.Option[time.Time] `json:"expires"`
	UpdatedAt     time.Time                    `json:"updated_at"`
}

// IsLive reports whether the page should still be served at the given instant.
func (p *PublishedPage) IsLive(now time.Time) bool {
	if p.Published.After(now) {
		return false
	}
	if p.Expires.IsSome() && !p.Expires.Unwrap().After(now) {
		return false
	}
	return true
}

// Layout carries the site chrome wrapped around every rendered page.
type Layout struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	IsDefault  bool      `json:"is_default"`
	Head       string    `json:"head,omitempty"`
	HeaderHTML string    `json:"header_html,omitempty"`
	FooterHTML string    `json:"footer_html,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks required layout fields.
func (l *Layout) Validate() foundation.ValidationResult {
	if l.Name == "" {
		return foundation.Invalid(foundation.NewValidationError("name", "required", "layout name is required"))
	}
	return foundation.Valid()
}

// TocEntry is one element of the site table-of-contents document.
type TocEntry struct {
	Title       string    `json:"title"`
	URLPath     string    `json:"url_path"`
	Summary     string    `json:"summary,omitempty"`
	BannerImage string    `json:"banner_image,omitempty"`
	AuthorName  string    `json:"author_name,omitempty"`
	Published   time.Time `json:"published"`
	Updated     time.Time `json:"updated"`
}

// ContactMessage is a submission captured by the contact form API.
type ContactMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body"`
	RemoteIP  string    `json:"remote_ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks required contact fields.
func (m *ContactMessage) Validate() foundation.ValidationResult {
	var errs []foundation.FieldError
	if m.Name == "" {
		errs = append(errs, foundation.NewValidationError("name", "required", "name is required"))
	}
	if m.Email == "" {
		errs = append(errs, foundation.NewValidationError("email", "required", "email is required"))
	}
	if m.Body == "" {
		errs = append(errs, foundation.NewValidationError("body", "required", "message body is required"))
	}
	if len(errs) > 0 {
		return foundation.Invalid(errs...)
	}
	return foundation.Valid()
}
