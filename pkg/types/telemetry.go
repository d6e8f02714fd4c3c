package types

import (
	"encoding/json"
)

// DeviceCategory identifies which device family produced a telemetry payload.
type DeviceCategory string

const (
	CategoryGreenhouse   DeviceCategory = "greenhouse"
	CategoryAir          DeviceCategory = "air"
	CategoryDrones       DeviceCategory = "drones"
	CategoryConveyor     DeviceCategory = "conveyor"
	CategorySoil         DeviceCategory = "soil"
	CategoryUnrecognized DeviceCategory = "unrecognized"
)

// GreenhouseStatusPayload is the normalized greenhouse status subset.
type GreenhouseStatusPayload struct {
	System string   `json:"system"`
	Value  *float64 `json:"value"`
	Status string   `json:"status"`
}

// AirMetricsPayload is the normalized air metrics subset.
type AirMetricsPayload struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	CO2         *float64 `json:"co2"`
	Pressure    *float64 `json:"pressure"`
}

// GPSPosition is a lat/lng pair reported by drone telemetry.
type GPSPosition struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DroneTelemetryPayload is the normalized drone telemetry subset.
type DroneTelemetryPayload struct {
	DroneID  int64        `json:"drone_id"`
	Battery  *float64     `json:"battery"`
	GPS      *GPSPosition `json:"gps"`
	Altitude *float64     `json:"altitude"`
	Speed    *float64     `json:"speed"`
	Status   string       `json:"status"`
}

// ConveyorStatusPayload is the normalized conveyor status subset.
type ConveyorStatusPayload struct {
	IsRunning        *bool    `json:"is_running"`
	Speed            *float64 `json:"speed"`
	ItemsTransported *int64   `json:"items_transported"`
}

// SoilAnalysisPayload is the normalized soil analysis subset.
type SoilAnalysisPayload struct {
	ZoneID   string             `json:"zone_id"`
	Moisture *float64           `json:"moisture"`
	PH       *float64           `json:"ph"`
	NPK      map[string]float64 `json:"npk"`
	Status   string             `json:"status"`
}

// TelemetryEvent is a tagged union over the known device categories. Exactly
// one of the payload fields matching Category is set; Unrecognized events
// carry none of them.
type TelemetryEvent struct {
	Category   DeviceCategory
	Topic      string
	Greenhouse *GreenhouseStatusPayload
	Air        *AirMetricsPayload
	Drone      *DroneTelemetryPayload
	Conveyor   *ConveyorStatusPayload
	Soil       *SoilAnalysisPayload
}

// WirePayload returns the category-specific payload for fan-out delivery.
// Decoding into the typed structs drops any extra upstream fields; fields the
// device omitted marshal as null.
func (e *TelemetryEvent) WirePayload() interface{} {
	switch e.Category {
	case CategoryGreenhouse:
		return e.Greenhouse
	case CategoryAir:
		return e.Air
	case CategoryDrones:
		return e.Drone
	case CategoryConveyor:
		return e.Conveyor
	case CategorySoil:
		return e.Soil
	default:
		return nil
	}
}

// DecodeTelemetry decodes a raw device payload into the normalized event for
// the given category. An error means the payload was not valid JSON for the
// category; callers drop such payloads.
func DecodeTelemetry(category DeviceCategory, topic string, payload []byte) (*TelemetryEvent, error) {
	event := &TelemetryEvent{Category: category, Topic: topic}

	var err error
	switch category {
	case CategoryGreenhouse:
		event.Greenhouse = &GreenhouseStatusPayload{}
		err = json.Unmarshal(payload, event.Greenhouse)
	case CategoryAir:
		event.Air = &AirMetricsPayload{}
		err = json.Unmarshal(payload, event.Air)
	case CategoryDrones:
		event.Drone = &DroneTelemetryPayload{}
		err = json.Unmarshal(payload, event.Drone)
	case CategoryConveyor:
		event.Conveyor = &ConveyorStatusPayload{}
		err = json.Unmarshal(payload, event.Conveyor)
	case CategorySoil:
		event.Soil = &SoilAnalysisPayload{}
		err = json.Unmarshal(payload, event.Soil)
	default:
		return nil, ErrUnrecognizedCategory
	}
	if err != nil {
		return nil, err
	}

	return event, nil
}
