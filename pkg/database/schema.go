package database

// Schema DDL, applied through the migration runner in version order.
// Migrations are compiled in so a deployment is a single binary plus its
// database file.

const schemaV1 = `
CREATE TABLE users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'operator' CHECK (role IN ('admin', 'operator', 'viewer')),
	is_active     INTEGER NOT NULL DEFAULT 1,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE greenhouse_settings (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	system_type   TEXT NOT NULL UNIQUE CHECK (system_type IN ('watering', 'lighting', 'ventilation')),
	current_value REAL NOT NULL DEFAULT 0,
	target_value  REAL NOT NULL DEFAULT 0,
	min_value     REAL NOT NULL DEFAULT 0,
	max_value     REAL NOT NULL DEFAULT 100,
	is_auto       INTEGER NOT NULL DEFAULT 1,
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE greenhouse_history (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	system_type    TEXT NOT NULL,
	previous_value REAL NOT NULL,
	new_value      REAL NOT NULL,
	changed_by     INTEGER REFERENCES users(id),
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_greenhouse_history_system ON greenhouse_history(system_type, created_at);

CREATE TABLE air_metrics (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	temperature REAL,
	humidity    REAL,
	co2         REAL,
	pressure    REAL,
	recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_air_metrics_recorded_at ON air_metrics(recorded_at);

CREATE TABLE air_thresholds (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	metric_name TEXT NOT NULL UNIQUE,
	min_value   REAL NOT NULL,
	max_value   REAL NOT NULL,
	unit        TEXT,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE drones (
	id                INTEGER PRIMARY KEY,
	name              TEXT NOT NULL,
	serial_number     TEXT UNIQUE,
	model             TEXT,
	status            TEXT NOT NULL DEFAULT 'offline' CHECK (status IN ('active', 'charging', 'returning', 'offline')),
	battery_level     REAL NOT NULL DEFAULT 100,
	gps_lat           REAL,
	gps_lng           REAL,
	altitude          REAL NOT NULL DEFAULT 0,
	speed             REAL NOT NULL DEFAULT 0,
	last_telemetry_at DATETIME,
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE drone_missions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	drone_id     INTEGER NOT NULL REFERENCES drones(id),
	mission_type TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'in_progress', 'completed', 'aborted')),
	started_at   DATETIME,
	completed_at DATETIME,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_drone_missions_drone ON drone_missions(drone_id, created_at);

CREATE TABLE conveyor_status (
	id                INTEGER PRIMARY KEY CHECK (id = 1),
	is_running        INTEGER NOT NULL DEFAULT 0,
	speed             REAL NOT NULL DEFAULT 0,
	interval_seconds  INTEGER NOT NULL DEFAULT 60,
	total_transported INTEGER NOT NULL DEFAULT 0,
	work_time_seconds INTEGER NOT NULL DEFAULT 0,
	efficiency        REAL NOT NULL DEFAULT 0,
	updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE conveyor_statistics (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	date              TEXT NOT NULL UNIQUE,
	items_transported INTEGER NOT NULL DEFAULT 0,
	work_time_seconds INTEGER NOT NULL DEFAULT 0,
	avg_speed         REAL NOT NULL DEFAULT 0,
	avg_efficiency    REAL NOT NULL DEFAULT 0
);

CREATE TABLE soil_zones (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	name     TEXT NOT NULL UNIQUE,
	area_sqm REAL NOT NULL DEFAULT 0
);

CREATE TABLE soil_analyses (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	zone_id     TEXT NOT NULL,
	moisture    REAL,
	ph          REAL,
	npk_n       REAL,
	npk_p       REAL,
	npk_k       REAL,
	status      TEXT NOT NULL DEFAULT 'optimal' CHECK (status IN ('optimal', 'warning', 'critical')),
	analyzed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_soil_analyses_zone_time ON soil_analyses(zone_id, analyzed_at);

CREATE TABLE notifications (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL REFERENCES users(id),
	type       TEXT NOT NULL CHECK (type IN ('info', 'warning', 'error', 'success')),
	title      TEXT NOT NULL,
	message    TEXT NOT NULL,
	is_read    INTEGER NOT NULL DEFAULT 0,
	source     TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_notifications_user_read ON notifications(user_id, is_read, created_at);

CREATE TABLE notification_settings (
	user_id          INTEGER PRIMARY KEY REFERENCES users(id),
	telegram_enabled INTEGER NOT NULL DEFAULT 0,
	telegram_chat_id TEXT,
	notify_critical  INTEGER NOT NULL DEFAULT 1,
	notify_warning   INTEGER NOT NULL DEFAULT 1,
	notify_info      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE telegram_logs (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id TEXT NOT NULL,
	message TEXT NOT NULL,
	status  TEXT NOT NULL,
	error   TEXT,
	sent_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// schemaV2 seeds the rows the dashboard expects on a fresh install: one
// setting per greenhouse system, default air thresholds, the singleton
// conveyor row, and three soil zones.
const schemaV2 = `
INSERT INTO greenhouse_settings (system_type, current_value, target_value, min_value, max_value, is_auto) VALUES
	('watering', 45, 50, 0, 100, 1),
	('lighting', 70, 75, 0, 100, 1),
	('ventilation', 30, 40, 0, 100, 1);

INSERT INTO air_thresholds (metric_name, min_value, max_value, unit) VALUES
	('temperature', 18, 28, 'C'),
	('humidity', 40, 70, '%'),
	('co2', 300, 800, 'ppm'),
	('pressure', 980, 1040, 'hPa');

INSERT INTO conveyor_status (id, is_running, speed, interval_seconds) VALUES (1, 0, 0, 60);

INSERT INTO soil_zones (name, area_sqm) VALUES
	('zone-a', 120),
	('zone-b', 95),
	('zone-c', 150);
`
