// Package handlers contains HTTP handlers for the SkyCMS HTTP surfaces.
//
// This package provides handlers for:
//   - The editor API (article CRUD, versions, publish triggers, layouts, jobs)
//   - The publisher app (static artifact serving with dynamic fallback)
//   - The contact form API (embeddable script and submissions)
//   - Status and health endpoints (monitoring)
//
// All handlers follow a consistent pattern for error handling and response
// formatting, using the foundation/errors package for structured error
// handling and the server/responses package for standardized HTTP responses.
package handlers
