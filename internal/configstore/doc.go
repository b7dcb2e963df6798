// ABOUTME: Package configstore fetches and classifies system configuration entries
// ABOUTME: Editors read buckets and typed documents from its cached classification

// Package configstore turns the flat list of configuration entries served by
// /admin/configs into semantic buckets. Classification runs once per fetch and
// the result is cached until the next LoadAll; editors look entries up here
// instead of rescanning raw lists.
package configstore
