// Package database is the persistent store for the archive indexer. It
// owns the SQLite schema (accounts, posts, media, tags, profile pictures,
// highlights and a caption FTS index) and exposes transaction-scoped
// write operations for the reconciler plus read queries for the API.
//
// Caption search uses an FTS5 virtual table, which mattn/go-sqlite3 only
// compiles in when built with -tags sqlite_fts5. A binary built without
// the tag still indexes and serves everything else; SearchPosts returns
// ErrSearchUnavailable and the search endpoint reports 501.
package database
