// Package scanner walks a content-export tree (one directory per account)
// and produces an in-memory snapshot of accounts, posts, media, profile
// pictures and highlights. Scanning is a pure read: nothing is persisted
// until the reconciler merges the snapshot into the store.
package scanner
