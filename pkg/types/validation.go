package types

import (
	"regexp"
)

var channelRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidChannel checks if a channel name meets format requirements.
// Channels are client-supplied; the bound prevents unbounded index keys.
func IsValidChannel(channel string) bool {
	if len(channel) < 1 || len(channel) > 50 {
		return false
	}
	return channelRegex.MatchString(channel)
}

// IsValidSystemType checks if a greenhouse system type is known.
func IsValidSystemType(systemType string) bool {
	switch systemType {
	case SystemWatering, SystemLighting, SystemVentilation:
		return true
	default:
		return false
	}
}

// IsValidRole checks if a user role is known.
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleOperator, RoleViewer:
		return true
	default:
		return false
	}
}

// IsValidNotificationType checks if a notification severity is known.
func IsValidNotificationType(kind string) bool {
	switch kind {
	case NotificationInfo, NotificationWarning, NotificationError, NotificationSuccess:
		return true
	default:
		return false
	}
}

// CheckAirThresholds compares a sample against configured thresholds and
// returns one alert per out-of-range metric. Metrics the sample omitted are
// skipped.
func CheckAirThresholds(metric *AirMetric, thresholds []*AirThreshold) []AirAlert {
	values := map[string]*float64{
		"temperature": metric.Temperature,
		"humidity":    metric.Humidity,
		"co2":         metric.CO2,
		"pressure":    metric.Pressure,
	}

	var alerts []AirAlert
	for _, t := range thresholds {
		value, ok := values[t.MetricName]
		if !ok || value == nil {
			continue
		}
		if *value < t.MinValue || *value > t.MaxValue {
			alerts = append(alerts, AirAlert{
				Metric: t.MetricName,
				Value:  *value,
				Min:    t.MinValue,
				Max:    t.MaxValue,
			})
		}
	}
	return alerts
}
