package database

import (
	"context"
	"database/sql"
	"fmt"

	"ghouse/pkg/types"
)

// ListGreenhouseSettings returns all greenhouse system settings.
func (m *Manager) ListGreenhouseSettings(ctx context.Context) ([]*types.GreenhouseSetting, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, system_type, current_value, target_value, min_value, max_value, is_auto, updated_at
		FROM greenhouse_settings ORDER BY system_type
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query greenhouse settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var settings []*types.GreenhouseSetting
	for rows.Next() {
		s, err := scanGreenhouseSetting(rows)
		if err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// GetGreenhouseSetting returns the setting for one system type.
func (m *Manager) GetGreenhouseSetting(ctx context.Context, systemType string) (*types.GreenhouseSetting, error) {
	return scanGreenhouseSetting(m.db.QueryRowContext(ctx, `
		SELECT id, system_type, current_value, target_value, min_value, max_value, is_auto, updated_at
		FROM greenhouse_settings WHERE system_type = ?
	`, systemType))
}

// UpdateGreenhouseSetting changes a system's target value and mode, and
// records the change in the history table within the same transaction.
func (m *Manager) UpdateGreenhouseSetting(ctx context.Context, systemType string, targetValue float64, isAuto bool, changedBy *int64) (*types.GreenhouseSetting, error) {
	err := m.executeWrite(func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var previous float64
		err = tx.QueryRowContext(ctx,
			"SELECT target_value FROM greenhouse_settings WHERE system_type = ?", systemType,
		).Scan(&previous)
		if err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return fmt.Errorf("failed to read current setting: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE greenhouse_settings
			SET target_value = ?, is_auto = ?, updated_at = CURRENT_TIMESTAMP
			WHERE system_type = ?
		`, targetValue, isAuto, systemType)
		if err != nil {
			return fmt.Errorf("failed to update setting: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO greenhouse_history (system_type, previous_value, new_value, changed_by)
			VALUES (?, ?, ?, ?)
		`, systemType, previous, targetValue, changedBy)
		if err != nil {
			return fmt.Errorf("failed to record history: %w", err)
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return m.GetGreenhouseSetting(ctx, systemType)
}

// ApplyGreenhouseStatus records a device-reported reading for one system.
// Unknown systems are ignored; devices can report ahead of provisioning.
func (m *Manager) ApplyGreenhouseStatus(ctx context.Context, p *types.GreenhouseStatusPayload) error {
	if p.Value == nil || !types.IsValidSystemType(p.System) {
		return nil
	}
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			UPDATE greenhouse_settings
			SET current_value = ?, updated_at = CURRENT_TIMESTAMP
			WHERE system_type = ?
		`, *p.Value, p.System)
		if err != nil {
			return fmt.Errorf("failed to apply greenhouse status: %w", err)
		}
		return nil
	})
}

// ListGreenhouseHistory returns the most recent setting changes, optionally
// filtered by system type.
func (m *Manager) ListGreenhouseHistory(ctx context.Context, systemType string, limit int) ([]*types.GreenhouseHistory, error) {
	query := `
		SELECT id, system_type, previous_value, new_value, changed_by, created_at
		FROM greenhouse_history
	`
	args := []interface{}{}
	if systemType != "" {
		query += " WHERE system_type = ?"
		args = append(args, systemType)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query greenhouse history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var history []*types.GreenhouseHistory
	for rows.Next() {
		var h types.GreenhouseHistory
		var changedBy sql.NullInt64
		err := rows.Scan(&h.ID, &h.SystemType, &h.PreviousValue, &h.NewValue, &changedBy, &h.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if changedBy.Valid {
			h.ChangedBy = &changedBy.Int64
		}
		history = append(history, &h)
	}
	return history, rows.Err()
}

func scanGreenhouseSetting(row rowScanner) (*types.GreenhouseSetting, error) {
	var s types.GreenhouseSetting
	err := row.Scan(
		&s.ID,
		&s.SystemType,
		&s.CurrentValue,
		&s.TargetValue,
		&s.MinValue,
		&s.MaxValue,
		&s.IsAuto,
		&s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan greenhouse setting: %w", err)
	}
	return &s, nil
}
