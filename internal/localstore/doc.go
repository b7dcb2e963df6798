// Package localstore is the client's durable key/value storage.
//
// It plays the role browser localStorage plays for a web console: the only
// thing persisted is the session's bearer token, under a per-application key
// ("admin_token" for the console, "token" for the portal).
//
// SQLiteStore keeps the data in a single SQLite file using modernc.org/sqlite
// (pure Go, no cgo). MemoryStore is an in-memory implementation for tests.
package localstore
