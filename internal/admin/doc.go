// Package admin provides the view state of the administrative console.
//
// # Overview
//
// The admin package drives the user, resource and audit log screens of the
// edu-admin CLI. Every screen is a paginated list over an endpoint that
// returns a bare array; totals are estimated from page fullness.
//
// # Lists
//
//   - GET /admin/users?page&size&keyword - Users
//   - GET /admin/resources?page&size&keyword - Resources, including inactive
//   - GET /admin/logs?page&size - Audit log, newest first
//
// # Editors
//
// Users and resources are edited through dialogs holding a private copy of
// the record:
//
//   - UserEditor: points, level, is_active (PUT /admin/users/:id)
//   - ResourceEditor: title, description, grade, subject, is_active
//     (PUT /admin/resources/:id)
//
// The copy is validated locally, submitted, and on success the owning list
// is reloaded. Failures keep the dialog open with the server's message.
//
// # Deletion
//
// Resources may be deleted after an explicit confirmation:
//
//	err := console.DeleteResource(ctx, res, prompt.Stdio())
//	if errors.Is(err, prompt.ErrCancelled) {
//		// nothing was sent
//	}
//
// # Dashboard
//
// Dashboard loads the first page of every list and summarises the estimated
// totals together with the most recent audit records.
package admin
