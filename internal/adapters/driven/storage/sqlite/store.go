package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/querynest/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
)

// DefaultSession names the session used by the CLI and MCP server.
const DefaultSession = "default"

// Store is a SQLite database holding documents, their section trees and
// session pointers.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.querynest/data/querynest.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".querynest", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "querynest.db")

	// Pragmas in the DSN apply to every pooled connection.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// SessionStore returns the SessionStore for a named session.
// An empty name uses DefaultSession.
func (s *Store) SessionStore(name string) driven.SessionStore {
	if name == "" {
		name = DefaultSession
	}
	return &sessionStore{store: s, name: name}
}

// migrate runs all pending up migrations, each in its own transaction.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_init.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) applyMigration(version int, content string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(content); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	return v, err
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument upserts the document row and replaces its section tree in
// one transaction.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}

	pages, err := json.Marshal(pageBoundaries(doc.PageBoundaries))
	if err != nil {
		return fmt.Errorf("marshalling page boundaries: %w", err)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, name, mime_type, text, page_boundaries, size_bytes,
			embedding_model, dimensions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			mime_type = excluded.mime_type,
			text = excluded.text,
			page_boundaries = excluded.page_boundaries,
			size_bytes = excluded.size_bytes,
			embedding_model = excluded.embedding_model,
			dimensions = excluded.dimensions,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Name, doc.MIMEType, doc.Text, string(pages), doc.SizeBytes,
		doc.EmbeddingModel, doc.Dimensions, doc.CreatedAt.UTC(), doc.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM sections WHERE document_id = ?", doc.ID); err != nil {
		return fmt.Errorf("clearing sections: %w", err)
	}

	secStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sections (document_id, idx, title, start_offset, end_offset, index_error)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer secStmt.Close()

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (document_id, section_idx, position, id, offset_bytes, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer chunkStmt.Close()

	for _, sec := range doc.Sections {
		if _, err := secStmt.ExecContext(ctx, doc.ID, sec.Index, sec.Title,
			sec.Start, sec.End, sec.IndexError); err != nil {
			return fmt.Errorf("saving section %d: %w", sec.Index, err)
		}
		for _, ch := range sec.Chunks {
			if _, err := chunkStmt.ExecContext(ctx, doc.ID, sec.Index, ch.Position, ch.ID,
				ch.Offset, ch.Text, float32SliceToBytes(ch.Embedding)); err != nil {
				return fmt.Errorf("saving chunk: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetDocument retrieves a document and its full tree. All reads share one
// transaction so a concurrent save is seen whole or not at all.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx, `
		SELECT id, name, mime_type, text, page_boundaries, size_bytes,
			embedding_model, dimensions, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row)
	if err != nil {
		return nil, err
	}

	sections, err := loadSections(ctx, tx, []string{id})
	if err != nil {
		return nil, err
	}
	doc.Sections = sections[id]

	if err := attachChunks(ctx, tx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns documents in upload order with their sections but
// without text or chunks.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, mime_type, '', '[]', size_bytes,
			embedding_model, dimensions, created_at, updated_at
		FROM documents
		ORDER BY created_at, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	var ids []string
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
		ids = append(ids, doc.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	sections, err := loadSections(ctx, s.store.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].Sections = sections[docs[i].ID]
		if docs[i].Sections == nil {
			docs[i].Sections = []domain.Section{}
		}
	}
	return docs, nil
}

// DeleteDocument removes a document; sections and chunks cascade.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// loadSections loads the sections of the given documents keyed by document ID.
func loadSections(ctx context.Context, q querier, ids []string) (map[string][]domain.Section, error) {
	out := make(map[string][]domain.Section, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `
		SELECT document_id, idx, title, start_offset, end_offset, index_error
		FROM sections WHERE document_id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)
		ORDER BY document_id, idx`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var docID string
		var sec domain.Section
		if err := rows.Scan(&docID, &sec.Index, &sec.Title, &sec.Start, &sec.End, &sec.IndexError); err != nil {
			return nil, fmt.Errorf("scanning section: %w", err)
		}
		out[docID] = append(out[docID], sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sections: %w", err)
	}
	return out, nil
}

// attachChunks loads chunks in section then position order.
func attachChunks(ctx context.Context, q querier, doc *domain.Document) error {
	rows, err := q.QueryContext(ctx, `
		SELECT section_idx, position, id, offset_bytes, text, embedding
		FROM chunks WHERE document_id = ?
		ORDER BY section_idx, position
	`, doc.ID)
	if err != nil {
		return fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	bySection := make(map[int]int, len(doc.Sections))
	for i, sec := range doc.Sections {
		bySection[sec.Index] = i
	}

	for rows.Next() {
		var sectionIdx int
		var ch domain.Chunk
		var blob []byte
		if err := rows.Scan(&sectionIdx, &ch.Position, &ch.ID, &ch.Offset, &ch.Text, &blob); err != nil {
			return fmt.Errorf("scanning chunk: %w", err)
		}
		ch.Embedding = bytesToFloat32Slice(blob)

		i, ok := bySection[sectionIdx]
		if !ok {
			return fmt.Errorf("chunk %s references missing section %d", ch.ID, sectionIdx)
		}
		doc.Sections[i].Chunks = append(doc.Sections[i].Chunks, ch)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating chunks: %w", err)
	}
	return nil
}

// ==================== Session Store ====================

// sessionStore implements driven.SessionStore for one named session.
type sessionStore struct {
	store *Store
	name  string
}

var _ driven.SessionStore = (*sessionStore)(nil)

// ActiveDocument returns the active document ID, or "" when unset.
func (s *sessionStore) ActiveDocument(ctx context.Context) (string, error) {
	var id string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT active_document_id FROM sessions WHERE name = ?", s.name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading session: %w", err)
	}
	return id, nil
}

// SetActiveDocument replaces the active document ID in a single write.
func (s *sessionStore) SetActiveDocument(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sessions (name, active_document_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			active_document_id = excluded.active_document_id,
			updated_at = excluded.updated_at
	`, s.name, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument scans a document row from *sql.Row or *sql.Rows.
func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var pagesJSON string

	if err := row.Scan(&doc.ID, &doc.Name, &doc.MIMEType, &doc.Text, &pagesJSON, &doc.SizeBytes,
		&doc.EmbeddingModel, &doc.Dimensions, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	var pages []int
	if err := json.Unmarshal([]byte(pagesJSON), &pages); err != nil {
		return nil, fmt.Errorf("unmarshalling page boundaries: %w", err)
	}
	if len(pages) > 0 {
		doc.PageBoundaries = pages
	}
	return &doc, nil
}

func pageBoundaries(p []int) []int {
	if p == nil {
		return []int{}
	}
	return p
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
