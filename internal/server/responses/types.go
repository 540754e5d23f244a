// Package responses defines API response types used by SkyCMS HTTP handlers.
package responses

import "time"

// HealthResponse represents the health check API response.
type HealthResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version"`
	Uptime     float64   `json:"uptime"`
	ActiveJobs int       `json:"active_jobs,omitempty"`
}

// StatusResponse represents the editor status endpoint response.
type StatusResponse struct {
	Status      string          `json:"status"`
	Version     string          `json:"version"`
	StartTime   time.Time       `json:"start_time"`
	Uptime      float64         `json:"uptime"`
	Tenants     []TenantSummary `json:"tenants"`
	QueueLength int             `json:"queue_length"`
	ActiveJobs  int             `json:"active_jobs"`
	Timestamp   time.Time       `json:"timestamp"`
}

// TenantSummary represents a sanitized view of one configured tenant.
type TenantSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Hostname     string `json:"hostname"`
	PublisherURL string `json:"publisher_url,omitempty"`
	PathPrefix   string `json:"path_prefix,omitempty"`
	CDNProvider  string `json:"cdn_provider,omitempty"`
}

// TriggerResponse represents the response for queued trigger operations.
type TriggerResponse struct {
	Status    string    `json:"status"`
	JobID     string    `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SubmitResponse represents an accepted contact form submission.
type SubmitResponse struct {
	Status    string    `json:"status"`
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
}
