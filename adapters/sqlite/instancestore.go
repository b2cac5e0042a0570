package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Instance is a stored record instance.
type Instance struct {
	ID        string
	Module    string
	Record    string
	Fields    map[string]any
	CreatedAt time.Time
}

// InstanceStore keeps record instances accepted by the HTTP API.
type InstanceStore struct {
	db *DB
}

// NewInstanceStore creates a new SQLite instance store.
func NewInstanceStore(db *DB) *InstanceStore {
	return &InstanceStore{db: db}
}

// Create stores a new instance.
func (s *InstanceStore) Create(ctx context.Context, inst Instance) error {
	fields, err := json.Marshal(inst.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO record_instances (id, module, record, fields, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, inst.ID, inst.Module, inst.Record, string(fields), inst.CreatedAt)
	return err
}

// Get retrieves an instance by ID.
func (s *InstanceStore) Get(ctx context.Context, id string) (Instance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, module, record, fields, created_at
		FROM record_instances
		WHERE id = ?
	`, id)

	inst, err := scanInstance(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Instance{}, ErrNotFound
	}
	return inst, err
}

// Count returns how many instances of one record type are stored.
func (s *InstanceStore) Count(ctx context.Context, module, record string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM record_instances WHERE module = ? AND record = ?
	`, module, record).Scan(&n)
	return n, err
}

// List returns a page of instances of one record type, oldest first.
func (s *InstanceStore) List(ctx context.Context, module, record string, offset, limit int) ([]Instance, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, module, record, fields, created_at
		FROM record_instances
		WHERE module = ? AND record = ?
		ORDER BY created_at, id
		LIMIT ? OFFSET ?
	`, module, record, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Instance
	for rows.Next() {
		inst, err := scanInstance(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func scanInstance(scan func(dest ...any) error) (Instance, error) {
	var inst Instance
	var fields string
	if err := scan(&inst.ID, &inst.Module, &inst.Record, &fields, &inst.CreatedAt); err != nil {
		return Instance{}, err
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(fields)))
	dec.UseNumber()
	if err := dec.Decode(&inst.Fields); err != nil {
		return Instance{}, fmt.Errorf("decode fields of %s: %w", inst.ID, err)
	}
	return inst, nil
}
