// Package storage persists the registered group set.
//
// Drivers:
//   - "file": a local JSON document {"groups": [...], "last_updated": "..."}
//   - "sqlite": a SQLite database file (modernc, pure Go)
//   - "s3": the same JSON document as an object in a bucket; selected
//     automatically when a bucket is configured
package storage
