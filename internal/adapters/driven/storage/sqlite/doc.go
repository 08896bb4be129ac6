// Package sqlite provides a SQLite-based implementation of the document and
// session store ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. One database holds:
//
//   - DocumentStore: documents with their section and chunk trees
//   - SessionStore: the active document pointer per named session
//
// # Schema
//
// The schema is managed through versioned migrations in the migrations/
// directory. Each migration is a pair of .up.sql and .down.sql files and is
// applied in its own transaction.
//
// Embeddings are stored as little-endian float32 blobs.
//
// # Data Location
//
// By default, the database is stored at ~/.querynest/data/querynest.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. Saving a document replaces its
// tree inside one transaction and reads run in their own transaction, so
// readers never observe a partly written tree.
package sqlite
