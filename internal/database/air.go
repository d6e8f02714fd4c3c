package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ghouse/pkg/types"
)

// SaveAirMetric records one air-quality sample.
func (m *Manager) SaveAirMetric(ctx context.Context, p *types.AirMetricsPayload) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO air_metrics (temperature, humidity, co2, pressure)
			VALUES (?, ?, ?, ?)
		`, p.Temperature, p.Humidity, p.CO2, p.Pressure)
		if err != nil {
			return fmt.Errorf("failed to insert air metric: %w", err)
		}
		return nil
	})
}

// LatestAirMetric returns the most recent sample or ErrNotFound.
func (m *Manager) LatestAirMetric(ctx context.Context) (*types.AirMetric, error) {
	return scanAirMetric(m.db.QueryRowContext(ctx, `
		SELECT id, temperature, humidity, co2, pressure, recorded_at
		FROM air_metrics ORDER BY recorded_at DESC, id DESC LIMIT 1
	`))
}

// ListAirMetrics returns samples recorded after the given time, newest first.
func (m *Manager) ListAirMetrics(ctx context.Context, since time.Time, limit int) ([]*types.AirMetric, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, temperature, humidity, co2, pressure, recorded_at
		FROM air_metrics
		WHERE recorded_at >= ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query air metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var metrics []*types.AirMetric
	for rows.Next() {
		metric, err := scanAirMetric(rows)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, metric)
	}
	return metrics, rows.Err()
}

// ListAirThresholds returns all configured thresholds.
func (m *Manager) ListAirThresholds(ctx context.Context) ([]*types.AirThreshold, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, metric_name, min_value, max_value, COALESCE(unit, ''), updated_at
		FROM air_thresholds ORDER BY metric_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query air thresholds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var thresholds []*types.AirThreshold
	for rows.Next() {
		var t types.AirThreshold
		err := rows.Scan(&t.ID, &t.MetricName, &t.MinValue, &t.MaxValue, &t.Unit, &t.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan threshold: %w", err)
		}
		thresholds = append(thresholds, &t)
	}
	return thresholds, rows.Err()
}

// UpdateAirThreshold changes the bounds for one metric or returns ErrNotFound.
func (m *Manager) UpdateAirThreshold(ctx context.Context, metricName string, minValue, maxValue float64) error {
	return m.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			UPDATE air_thresholds
			SET min_value = ?, max_value = ?, updated_at = CURRENT_TIMESTAMP
			WHERE metric_name = ?
		`, minValue, maxValue, metricName)
		if err != nil {
			return fmt.Errorf("failed to update threshold: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func scanAirMetric(row rowScanner) (*types.AirMetric, error) {
	var metric types.AirMetric
	err := row.Scan(
		&metric.ID,
		&metric.Temperature,
		&metric.Humidity,
		&metric.CO2,
		&metric.Pressure,
		&metric.RecordedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan air metric: %w", err)
	}
	return &metric, nil
}
