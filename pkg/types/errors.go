package types

import "errors"

var (
	ErrUnrecognizedCategory = errors.New("unrecognized device category")
	ErrInvalidChannelName   = errors.New("channel name must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidSystemType    = errors.New("system type must be one of watering, lighting, ventilation")
	ErrInvalidNotification  = errors.New("notification type must be one of info, warning, error, success")
)
