package database

import "errors"

var (
	ErrNotFound      = errors.New("record not found")
	ErrManagerClosed = errors.New("database manager is closed")
	ErrWriteTimeout  = errors.New("write operation timed out")
)
