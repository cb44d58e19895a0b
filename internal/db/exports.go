package db

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/spectrum.report/internal/spectro"
	"github.com/banshee-data/spectrum.report/internal/spectro/l4reference"
)

// Export is a saved snapshot of a published spectrum.
type Export struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Mode     string            `json:"mode"`
	FrameSeq uint64            `json:"frame_seq"`
	Bins     int               `json:"bins"`
	Captured time.Time         `json:"captured"`
	Created  time.Time         `json:"created"`
	Peaks    []spectro.Feature `json:"peaks"`
	Dips     []spectro.Feature `json:"dips"`
	// CSV is the spectrum table; only populated by GetExport.
	CSV string `json:"-"`
}

// SaveExport stores s with its features.
func (db *DB) SaveExport(ctx context.Context, name string, s *spectro.Spectrum, peaks, dips []spectro.Feature) (*Export, error) {
	var buf bytes.Buffer
	if err := l4reference.WriteSpectrumCSV(&buf, s); err != nil {
		return nil, err
	}
	if peaks == nil {
		peaks = []spectro.Feature{}
	}
	if dips == nil {
		dips = []spectro.Feature{}
	}
	peaksJSON, err := json.Marshal(peaks)
	if err != nil {
		return nil, err
	}
	dipsJSON, err := json.Marshal(dips)
	if err != nil {
		return nil, err
	}
	e := &Export{
		ID:       uuid.NewString(),
		Name:     name,
		Mode:     s.Mode.String(),
		FrameSeq: s.Seq,
		Bins:     s.Len(),
		Captured: s.Start.UTC(),
		Created:  time.Now().UTC().Truncate(time.Second),
		Peaks:    peaks,
		Dips:     dips,
		CSV:      buf.String(),
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO spectrum_exports (export_id, name, mode, frame_seq, bins, captured_unix_nanos,
			spectrum_csv, peaks_json, dips_json, created_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Mode, int64(e.FrameSeq), e.Bins, s.Start.UnixNano(),
		e.CSV, string(peaksJSON), string(dipsJSON), e.Created.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert export %q: %w", name, err)
	}
	return e, nil
}

const exportColumns = `export_id, name, mode, frame_seq, bins, captured_unix_nanos, peaks_json, dips_json, created_unix`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExport(row rowScanner, extra ...interface{}) (*Export, error) {
	var e Export
	var seq, captured, created int64
	var peaks, dips string
	dest := append([]interface{}{&e.ID, &e.Name, &e.Mode, &seq, &e.Bins, &captured, &peaks, &dips, &created}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	e.FrameSeq = uint64(seq)
	e.Captured = time.Unix(0, captured).UTC()
	e.Created = time.Unix(created, 0).UTC()
	if err := json.Unmarshal([]byte(peaks), &e.Peaks); err != nil {
		return nil, fmt.Errorf("export %s peaks: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(dips), &e.Dips); err != nil {
		return nil, fmt.Errorf("export %s dips: %w", e.ID, err)
	}
	return &e, nil
}

// GetExport loads an export including its CSV table.
func (db *DB) GetExport(ctx context.Context, id string) (*Export, error) {
	var table string
	row := db.QueryRowContext(ctx,
		`SELECT `+exportColumns+`, spectrum_csv FROM spectrum_exports WHERE export_id = ?`, id)
	e, err := scanExport(row, &table)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.CSV = table
	return e, nil
}

// ListExports returns up to limit exports, newest first. limit <= 0 means
// no limit.
func (db *DB) ListExports(ctx context.Context, limit int) ([]Export, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+exportColumns+` FROM spectrum_exports ORDER BY created_unix DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exports := []Export{}
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		exports = append(exports, *e)
	}
	return exports, rows.Err()
}

// DeleteExport removes a saved export.
func (db *DB) DeleteExport(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM spectrum_exports WHERE export_id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
