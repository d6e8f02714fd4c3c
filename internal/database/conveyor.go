package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ghouse/pkg/types"
)

// GetConveyorState returns the singleton conveyor row.
func (m *Manager) GetConveyorState(ctx context.Context) (*types.ConveyorState, error) {
	var state types.ConveyorState
	err := m.db.QueryRowContext(ctx, `
		SELECT id, is_running, speed, interval_seconds, total_transported,
		       work_time_seconds, efficiency, updated_at
		FROM conveyor_status WHERE id = 1
	`).Scan(
		&state.ID,
		&state.IsRunning,
		&state.Speed,
		&state.IntervalSeconds,
		&state.TotalTransported,
		&state.WorkTimeSeconds,
		&state.Efficiency,
		&state.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan conveyor state: %w", err)
	}
	return &state, nil
}

// ApplyConveyorStatus folds a device report into the singleton state row and
// into today's statistics.
func (m *Manager) ApplyConveyorStatus(ctx context.Context, p *types.ConveyorStatusPayload) error {
	return m.executeWrite(func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx, `
			UPDATE conveyor_status SET
				is_running        = COALESCE(?, is_running),
				speed             = COALESCE(?, speed),
				total_transported = total_transported + COALESCE(?, 0),
				updated_at        = CURRENT_TIMESTAMP
			WHERE id = 1
		`, p.IsRunning, p.Speed, p.ItemsTransported)
		if err != nil {
			return fmt.Errorf("failed to update conveyor status: %w", err)
		}

		if p.ItemsTransported != nil && *p.ItemsTransported > 0 {
			today := time.Now().UTC().Format("2006-01-02")
			_, err = tx.ExecContext(ctx, `
				INSERT INTO conveyor_statistics (date, items_transported)
				VALUES (?, ?)
				ON CONFLICT(date) DO UPDATE SET
					items_transported = items_transported + excluded.items_transported
			`, today, *p.ItemsTransported)
			if err != nil {
				return fmt.Errorf("failed to update conveyor statistics: %w", err)
			}
		}

		return tx.Commit()
	})
}

// SetConveyorRunning flips the running flag, typically after a command is
// sent to the line.
func (m *Manager) SetConveyorRunning(ctx context.Context, running bool) (*types.ConveyorState, error) {
	err := m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			UPDATE conveyor_status SET is_running = ?, updated_at = CURRENT_TIMESTAMP WHERE id = 1
		`, running)
		if err != nil {
			return fmt.Errorf("failed to set conveyor running: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m.GetConveyorState(ctx)
}

// UpdateConveyorSettings changes line speed and transport interval.
func (m *Manager) UpdateConveyorSettings(ctx context.Context, speed float64, intervalSeconds int64) (*types.ConveyorState, error) {
	err := m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			UPDATE conveyor_status
			SET speed = ?, interval_seconds = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = 1
		`, speed, intervalSeconds)
		if err != nil {
			return fmt.Errorf("failed to update conveyor settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m.GetConveyorState(ctx)
}

// ListConveyorStatistics returns daily aggregates, newest first.
func (m *Manager) ListConveyorStatistics(ctx context.Context, days int) ([]*types.ConveyorStatistic, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, date, items_transported, work_time_seconds, avg_speed, avg_efficiency
		FROM conveyor_statistics ORDER BY date DESC LIMIT ?
	`, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query conveyor statistics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []*types.ConveyorStatistic
	for rows.Next() {
		var s types.ConveyorStatistic
		err := rows.Scan(&s.ID, &s.Date, &s.ItemsTransported, &s.WorkTimeSeconds, &s.AvgSpeed, &s.AvgEfficiency)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conveyor statistic: %w", err)
		}
		stats = append(stats, &s)
	}
	return stats, rows.Err()
}
