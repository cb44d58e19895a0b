package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/spectrum.report/internal/spectro/l4reference"
)

// CalibrationRun records one computation of calibration factors.
type CalibrationRun struct {
	ID             string               `json:"id"`
	ReferenceName  string               `json:"reference_name"`
	Scale          float64              `json:"scale"`
	Bins           int                  `json:"bins"`
	UnreliableBins int                  `json:"unreliable_bins"`
	Created        time.Time            `json:"created"`
	Factors        *l4reference.Factors `json:"factors,omitempty"`
}

// RecordCalibration stores f.
func (db *DB) RecordCalibration(ctx context.Context, f *l4reference.Factors) (*CalibrationRun, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	run := &CalibrationRun{
		ID:             uuid.NewString(),
		ReferenceName:  f.Reference,
		Scale:          f.Scale,
		Bins:           len(f.Values),
		UnreliableBins: f.UnreliableCount(),
		Created:        time.Now().UTC().Truncate(time.Second),
		Factors:        f,
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO calibration_runs (calibration_id, reference_name, scale, bins, unreliable_bins, factors_json, created_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ReferenceName, run.Scale, run.Bins, run.UnreliableBins, string(data), run.Created.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert calibration run: %w", err)
	}
	return run, nil
}

// ListCalibrations returns recorded runs, newest first, without factors.
func (db *DB) ListCalibrations(ctx context.Context, limit int) ([]CalibrationRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT calibration_id, reference_name, scale, bins, unreliable_bins, created_unix
		FROM calibration_runs ORDER BY created_unix DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []CalibrationRun{}
	for rows.Next() {
		var r CalibrationRun
		var created int64
		if err := rows.Scan(&r.ID, &r.ReferenceName, &r.Scale, &r.Bins, &r.UnreliableBins, &created); err != nil {
			return nil, err
		}
		r.Created = time.Unix(created, 0).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
