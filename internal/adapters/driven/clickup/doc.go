// Package clickup implements driven.TaskManager against the ClickUp REST API (v2).
//
// Authentication accepts both personal API tokens ("pk_...", sent verbatim in the
// Authorization header) and OAuth access tokens (sent as a bearer token through
// golang.org/x/oauth2).
//
// Every request passes through a RateLimiter that throttles proactively at the
// configured requests per minute and backs off when ClickUp answers 429.
// Responses are mapped onto the domain sentinel errors:
//
//   - network failures, timeouts and 5xx: domain.ErrRemoteUnavailable
//   - 401: domain.ErrAuthInvalid
//   - 404: domain.ErrNotFound
//   - 400 on a field value write: domain.ErrValueRejected
//   - "already exists" on field creation: domain.ErrFieldCreationConflict
//   - 429 after MaxRetries: domain.ErrRateLimited
package clickup
