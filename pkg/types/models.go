package types

import (
	"time"
)

// User roles.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// User is an operator account for the dashboard.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Greenhouse system types.
const (
	SystemWatering    = "watering"
	SystemLighting    = "lighting"
	SystemVentilation = "ventilation"
)

// GreenhouseSetting is the current and target state of one greenhouse system.
type GreenhouseSetting struct {
	ID           int64     `json:"id"`
	SystemType   string    `json:"system_type"`
	CurrentValue float64   `json:"current_value"`
	TargetValue  float64   `json:"target_value"`
	MinValue     float64   `json:"min_value"`
	MaxValue     float64   `json:"max_value"`
	IsAuto       bool      `json:"is_auto"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GreenhouseHistory records one setting change for audit.
type GreenhouseHistory struct {
	ID            int64     `json:"id"`
	SystemType    string    `json:"system_type"`
	PreviousValue float64   `json:"previous_value"`
	NewValue      float64   `json:"new_value"`
	ChangedBy     *int64    `json:"changed_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// AirMetric is one recorded air-quality sample.
type AirMetric struct {
	ID          int64     `json:"id"`
	Temperature *float64  `json:"temperature"`
	Humidity    *float64  `json:"humidity"`
	CO2         *float64  `json:"co2"`
	Pressure    *float64  `json:"pressure"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// AirThreshold bounds one air metric; readings outside produce alerts.
type AirThreshold struct {
	ID         int64     `json:"id"`
	MetricName string    `json:"metric_name"`
	MinValue   float64   `json:"min_value"`
	MaxValue   float64   `json:"max_value"`
	Unit       string    `json:"unit,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AirAlert describes one out-of-range air metric.
type AirAlert struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Drone statuses.
const (
	DroneStatusActive    = "active"
	DroneStatusCharging  = "charging"
	DroneStatusReturning = "returning"
	DroneStatusOffline   = "offline"
)

// Drone is one fleet member with its last reported telemetry.
type Drone struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	SerialNumber    string     `json:"serial_number,omitempty"`
	Model           string     `json:"model,omitempty"`
	Status          string     `json:"status"`
	BatteryLevel    float64    `json:"battery_level"`
	GPSLat          *float64   `json:"gps_lat,omitempty"`
	GPSLng          *float64   `json:"gps_lng,omitempty"`
	Altitude        float64    `json:"altitude"`
	Speed           float64    `json:"speed"`
	LastTelemetryAt *time.Time `json:"last_telemetry_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// DroneMission is one assignment for a drone.
type DroneMission struct {
	ID          int64      `json:"id"`
	DroneID     int64      `json:"drone_id"`
	MissionType string     `json:"mission_type"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ConveyorState is the single-row current state of the conveyor line.
type ConveyorState struct {
	ID               int64     `json:"id"`
	IsRunning        bool      `json:"is_running"`
	Speed            float64   `json:"speed"`
	IntervalSeconds  int64     `json:"interval_seconds"`
	TotalTransported int64     `json:"total_transported"`
	WorkTimeSeconds  int64     `json:"work_time_seconds"`
	Efficiency       float64   `json:"efficiency"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ConveyorStatistic aggregates one day of conveyor operation.
type ConveyorStatistic struct {
	ID               int64   `json:"id"`
	Date             string  `json:"date"`
	ItemsTransported int64   `json:"items_transported"`
	WorkTimeSeconds  int64   `json:"work_time_seconds"`
	AvgSpeed         float64 `json:"avg_speed"`
	AvgEfficiency    float64 `json:"avg_efficiency"`
}

// SoilZone is a monitored plot of soil.
type SoilZone struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	AreaSqm float64 `json:"area_sqm"`
}

// Soil analysis statuses.
const (
	SoilStatusOptimal  = "optimal"
	SoilStatusWarning  = "warning"
	SoilStatusCritical = "critical"
)

// SoilAnalysis is one recorded soil sample for a zone.
type SoilAnalysis struct {
	ID         int64     `json:"id"`
	ZoneID     string    `json:"zone_id"`
	Moisture   *float64  `json:"moisture"`
	PH         *float64  `json:"ph"`
	NPKN       *float64  `json:"npk_n"`
	NPKP       *float64  `json:"npk_p"`
	NPKK       *float64  `json:"npk_k"`
	Status     string    `json:"status"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// Notification severities.
const (
	NotificationInfo    = "info"
	NotificationWarning = "warning"
	NotificationError   = "error"
	NotificationSuccess = "success"
)

// Notification is one user-directed message, persisted and pushed live.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TelegramLog is one recorded Bot API delivery attempt.
type TelegramLog struct {
	ID      int64     `json:"id"`
	ChatID  string    `json:"chat_id"`
	Message string    `json:"message"`
	Status  string    `json:"status"`
	Error   string    `json:"error,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// NotificationSettings controls per-user delivery preferences.
type NotificationSettings struct {
	UserID          int64  `json:"user_id"`
	TelegramEnabled bool   `json:"telegram_enabled"`
	TelegramChatID  string `json:"telegram_chat_id,omitempty"`
	NotifyCritical  bool   `json:"notify_critical"`
	NotifyWarning   bool   `json:"notify_warning"`
	NotifyInfo      bool   `json:"notify_info"`
}
