package bridge

import "errors"

var (
	ErrNotConnected  = errors.New("bridge is not connected")
	ErrConnectFailed = errors.New("failed to connect to broker")
)
