package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ghouse/pkg/types"
)

// ListDrones returns the whole fleet.
func (m *Manager) ListDrones(ctx context.Context) ([]*types.Drone, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(serial_number, ''), COALESCE(model, ''), status,
		       battery_level, gps_lat, gps_lng, altitude, speed, last_telemetry_at, created_at
		FROM drones ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query drones: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var drones []*types.Drone
	for rows.Next() {
		drone, err := scanDrone(rows)
		if err != nil {
			return nil, err
		}
		drones = append(drones, drone)
	}
	return drones, rows.Err()
}

// GetDrone returns one fleet member or ErrNotFound.
func (m *Manager) GetDrone(ctx context.Context, id int64) (*types.Drone, error) {
	return scanDrone(m.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(serial_number, ''), COALESCE(model, ''), status,
		       battery_level, gps_lat, gps_lng, altitude, speed, last_telemetry_at, created_at
		FROM drones WHERE id = ?
	`, id))
}

// ApplyDroneTelemetry upserts the last reported state for a drone. A drone
// reporting before being provisioned gets a placeholder row so its telemetry
// is not lost.
func (m *Manager) ApplyDroneTelemetry(ctx context.Context, p *types.DroneTelemetryPayload) error {
	if p.DroneID == 0 {
		return nil
	}
	var lat, lng *float64
	if p.GPS != nil {
		lat, lng = &p.GPS.Lat, &p.GPS.Lng
	}
	status := p.Status
	if status == "" {
		status = types.DroneStatusActive
	}
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO drones (id, name, status, battery_level, gps_lat, gps_lng, altitude, speed, last_telemetry_at)
			VALUES (?, ?, ?, COALESCE(?, 100), ?, ?, COALESCE(?, 0), COALESCE(?, 0), ?)
			ON CONFLICT(id) DO UPDATE SET
				status            = excluded.status,
				battery_level     = COALESCE(?, battery_level),
				gps_lat           = COALESCE(?, gps_lat),
				gps_lng           = COALESCE(?, gps_lng),
				altitude          = COALESCE(?, altitude),
				speed             = COALESCE(?, speed),
				last_telemetry_at = excluded.last_telemetry_at
		`,
			p.DroneID, fmt.Sprintf("Drone %d", p.DroneID), status,
			p.Battery, lat, lng, p.Altitude, p.Speed, time.Now().UTC(),
			p.Battery, lat, lng, p.Altitude, p.Speed,
		)
		if err != nil {
			return fmt.Errorf("failed to apply drone telemetry: %w", err)
		}
		return nil
	})
}

// CreateDroneMission records a new mission for a drone.
func (m *Manager) CreateDroneMission(ctx context.Context, droneID int64, missionType string) (*types.DroneMission, error) {
	var id int64
	err := m.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			INSERT INTO drone_missions (drone_id, mission_type, status, started_at)
			VALUES (?, ?, 'in_progress', ?)
		`, droneID, missionType, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to insert mission: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return m.getDroneMission(ctx, id)
}

// CompleteDroneMission marks a mission finished with the given status.
func (m *Manager) CompleteDroneMission(ctx context.Context, missionID int64, status string) error {
	return m.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			UPDATE drone_missions SET status = ?, completed_at = ? WHERE id = ?
		`, status, time.Now().UTC(), missionID)
		if err != nil {
			return fmt.Errorf("failed to complete mission: %w", err)
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

// ListDroneMissions returns missions for one drone, newest first.
func (m *Manager) ListDroneMissions(ctx context.Context, droneID int64, limit int) ([]*types.DroneMission, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, drone_id, mission_type, status, started_at, completed_at, created_at
		FROM drone_missions WHERE drone_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, droneID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query missions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var missions []*types.DroneMission
	for rows.Next() {
		mission, err := scanDroneMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, mission)
	}
	return missions, rows.Err()
}

func (m *Manager) getDroneMission(ctx context.Context, id int64) (*types.DroneMission, error) {
	return scanDroneMission(m.db.QueryRowContext(ctx, `
		SELECT id, drone_id, mission_type, status, started_at, completed_at, created_at
		FROM drone_missions WHERE id = ?
	`, id))
}

func scanDrone(row rowScanner) (*types.Drone, error) {
	var drone types.Drone
	var lastTelemetry sql.NullTime
	err := row.Scan(
		&drone.ID,
		&drone.Name,
		&drone.SerialNumber,
		&drone.Model,
		&drone.Status,
		&drone.BatteryLevel,
		&drone.GPSLat,
		&drone.GPSLng,
		&drone.Altitude,
		&drone.Speed,
		&lastTelemetry,
		&drone.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan drone: %w", err)
	}
	if lastTelemetry.Valid {
		drone.LastTelemetryAt = &lastTelemetry.Time
	}
	return &drone, nil
}

func scanDroneMission(row rowScanner) (*types.DroneMission, error) {
	var mission types.DroneMission
	var started, completed sql.NullTime
	err := row.Scan(
		&mission.ID,
		&mission.DroneID,
		&mission.MissionType,
		&mission.Status,
		&started,
		&completed,
		&mission.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan mission: %w", err)
	}
	if started.Valid {
		mission.StartedAt = &started.Time
	}
	if completed.Valid {
		mission.CompletedAt = &completed.Time
	}
	return &mission, nil
}
