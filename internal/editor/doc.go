// ABOUTME: Package editor implements the configuration editing dialogs
// ABOUTME: Typed editors for the semantic buckets plus a raw JSON editor for the rest

// Package editor models each configuration dialog as a small state machine
// (Closed, Open, Saving) over a private copy of its document. Cancel discards
// the copy; only Save commits, after which the config store is reloaded.
package editor
