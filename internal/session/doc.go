// ABOUTME: Package session tracks the authenticated identity of a console
// ABOUTME: It restores, establishes and tears down the persisted bearer token

// Package session owns the login lifecycle shared by the admin console and the
// portal. The bearer token is the only durable artifact; the current user is
// always re-fetched from the server.
package session
