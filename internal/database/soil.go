package database

import (
	"context"
	"database/sql"
	"fmt"

	"ghouse/pkg/types"
)

// ListSoilZones returns all monitored zones.
func (m *Manager) ListSoilZones(ctx context.Context) ([]*types.SoilZone, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, area_sqm FROM soil_zones ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query soil zones: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var zones []*types.SoilZone
	for rows.Next() {
		var zone types.SoilZone
		if err := rows.Scan(&zone.ID, &zone.Name, &zone.AreaSqm); err != nil {
			return nil, fmt.Errorf("failed to scan soil zone: %w", err)
		}
		zones = append(zones, &zone)
	}
	return zones, rows.Err()
}

// SaveSoilAnalysis records one analyzer report.
func (m *Manager) SaveSoilAnalysis(ctx context.Context, p *types.SoilAnalysisPayload) error {
	if p.ZoneID == "" {
		return nil
	}
	status := p.Status
	if status == "" {
		status = types.SoilStatusOptimal
	}
	var npkN, npkP, npkK *float64
	if p.NPK != nil {
		npkN = nullableNPK(p.NPK, "n")
		npkP = nullableNPK(p.NPK, "p")
		npkK = nullableNPK(p.NPK, "k")
	}
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO soil_analyses (zone_id, moisture, ph, npk_n, npk_p, npk_k, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, p.ZoneID, p.Moisture, p.PH, npkN, npkP, npkK, status)
		if err != nil {
			return fmt.Errorf("failed to insert soil analysis: %w", err)
		}
		return nil
	})
}

// LatestSoilAnalyses returns the most recent analysis per zone.
func (m *Manager) LatestSoilAnalyses(ctx context.Context) ([]*types.SoilAnalysis, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT a.id, a.zone_id, a.moisture, a.ph, a.npk_n, a.npk_p, a.npk_k, a.status, a.analyzed_at
		FROM soil_analyses a
		JOIN (
			SELECT zone_id, MAX(id) AS max_id FROM soil_analyses GROUP BY zone_id
		) latest ON a.id = latest.max_id
		ORDER BY a.zone_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest soil analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectSoilAnalyses(rows)
}

// ListSoilAnalyses returns the history for one zone, newest first.
func (m *Manager) ListSoilAnalyses(ctx context.Context, zoneID string, limit int) ([]*types.SoilAnalysis, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, zone_id, moisture, ph, npk_n, npk_p, npk_k, status, analyzed_at
		FROM soil_analyses WHERE zone_id = ?
		ORDER BY analyzed_at DESC, id DESC LIMIT ?
	`, zoneID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query soil analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectSoilAnalyses(rows)
}

func collectSoilAnalyses(rows *sql.Rows) ([]*types.SoilAnalysis, error) {
	var analyses []*types.SoilAnalysis
	for rows.Next() {
		var a types.SoilAnalysis
		err := rows.Scan(&a.ID, &a.ZoneID, &a.Moisture, &a.PH, &a.NPKN, &a.NPKP, &a.NPKK, &a.Status, &a.AnalyzedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan soil analysis: %w", err)
		}
		analyses = append(analyses, &a)
	}
	return analyses, rows.Err()
}

func nullableNPK(npk map[string]float64, key string) *float64 {
	if value, ok := npk[key]; ok {
		return &value
	}
	return nil
}
