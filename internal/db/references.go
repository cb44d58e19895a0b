package db

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/spectrum.report/internal/spectro"
	"github.com/banshee-data/spectrum.report/internal/spectro/l4reference"
)

// ReferenceInfo describes a stored reference spectrum without its table.
type ReferenceInfo struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Source  string    `json:"source"` // "import", "tungsten" or "capture"
	Rows    int       `json:"rows"`
	MinNM   float64   `json:"min_nm"`
	MaxNM   float64   `json:"max_nm"`
	Created time.Time `json:"created"`
}

// SaveReference stores ref and returns its new ID.
func (db *DB) SaveReference(ctx context.Context, ref *spectro.ReferenceSpectrum, source string) (*ReferenceInfo, error) {
	var buf bytes.Buffer
	if err := l4reference.WriteReferenceCSV(&buf, ref); err != nil {
		return nil, err
	}
	lo, hi := ref.Range()
	info := &ReferenceInfo{
		ID:      uuid.NewString(),
		Name:    ref.Name,
		Source:  source,
		Rows:    ref.Len(),
		MinNM:   lo,
		MaxNM:   hi,
		Created: time.Now().UTC().Truncate(time.Second),
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO reference_spectra (reference_id, name, source, row_count, min_nm, max_nm, table_csv, created_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		info.ID, info.Name, info.Source, info.Rows, info.MinNM, info.MaxNM, buf.String(), info.Created.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert reference %q: %w", ref.Name, err)
	}
	return info, nil
}

// GetReference loads a stored reference spectrum.
func (db *DB) GetReference(ctx context.Context, id string) (*spectro.ReferenceSpectrum, error) {
	var name, table string
	err := db.QueryRowContext(ctx,
		`SELECT name, table_csv FROM reference_spectra WHERE reference_id = ?`, id).Scan(&name, &table)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l4reference.ReadReferenceCSV(strings.NewReader(table), name)
}

// ListReferences returns stored references, newest first.
func (db *DB) ListReferences(ctx context.Context) ([]ReferenceInfo, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT reference_id, name, source, row_count, min_nm, max_nm, created_unix
		FROM reference_spectra ORDER BY created_unix DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := []ReferenceInfo{}
	for rows.Next() {
		var r ReferenceInfo
		var created int64
		if err := rows.Scan(&r.ID, &r.Name, &r.Source, &r.Rows, &r.MinNM, &r.MaxNM, &created); err != nil {
			return nil, err
		}
		r.Created = time.Unix(created, 0).UTC()
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// DeleteReference removes a stored reference.
func (db *DB) DeleteReference(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM reference_spectra WHERE reference_id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
