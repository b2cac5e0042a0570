package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/recordgate/core/resolver"
	"github.com/artpar/recordgate/core/schema"
)

// Document is a stored schema document.
type Document struct {
	Module    string
	Format    schema.Format
	Body      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentStore keeps schema documents keyed by full module name.
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new SQLite document store.
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Put inserts or replaces the document for a module. The body is parsed
// first; a document that does not parse is rejected with a
// *schema.SchemaError and nothing is written.
func (s *DocumentStore) Put(ctx context.Context, module string, format schema.Format, body []byte) error {
	if !resolver.ValidModuleName(module) {
		return fmt.Errorf("put document %q: %w", module, resolver.ErrInvalidName)
	}
	if _, err := schema.ParseSource(Origin(module), format, body); err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schema_documents (module, format, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(module) DO UPDATE SET
			format = excluded.format,
			body = excluded.body,
			updated_at = excluded.updated_at
	`, module, string(format), body, now, now)
	if err != nil {
		return fmt.Errorf("put document %q: %w", module, err)
	}
	return nil
}

// Get retrieves the document for a module.
func (s *DocumentStore) Get(ctx context.Context, module string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT module, format, body, created_at, updated_at
		FROM schema_documents
		WHERE module = ?
	`, module)
	return scanDocument(row)
}

// Delete removes the document for a module. Modules already materialized
// from it stay registered.
func (s *DocumentStore) Delete(ctx context.Context, module string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM schema_documents WHERE module = ?
	`, module)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all documents ordered by module name, without bodies.
func (s *DocumentStore) List(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT module, format, created_at, updated_at
		FROM schema_documents
		ORDER BY module
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var format string
		if err := rows.Scan(&d.Module, &format, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.Format = schema.Format(format)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Locate implements resolver.Locator.
func (s *DocumentStore) Locate(ctx context.Context, module string) (resolver.Source, bool, error) {
	doc, err := s.Get(ctx, module)
	if errors.Is(err, ErrNotFound) {
		return resolver.Source{}, false, nil
	}
	if err != nil {
		return resolver.Source{}, false, fmt.Errorf("locate %q: %w", module, err)
	}
	return resolver.Source{
		Module: module,
		Origin: Origin(module),
		Format: doc.Format,
		Data:   doc.Body,
	}, true, nil
}

// Origin names a stored document in error messages and module sources.
func Origin(module string) string {
	return "sqlite:" + module
}

func scanDocument(row *sql.Row) (Document, error) {
	var d Document
	var format string
	err := row.Scan(&d.Module, &format, &d.Body, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	d.Format = schema.Format(format)
	return d, nil
}

// Ensure interface compliance.
var _ resolver.Locator = (*DocumentStore)(nil)
