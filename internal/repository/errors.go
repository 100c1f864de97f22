package repository

import (
	"errors"
)

var (
	ErrConfigurationNotFound   = errors.New("sync configuration not found")
	ErrRunNotFound             = errors.New("sync run not found")
	ErrRunAlreadyCompleted     = errors.New("sync run already completed")
	ErrConflictNotFound        = errors.New("sync conflict not found")
	ErrConflictAlreadyResolved = errors.New("sync conflict already resolved")
	ErrDatabaseUnavailable     = errors.New("database is unavailable")
	ErrInvalidQueryParameters  = errors.New("invalid query parameters provided for sync operation")
	ErrUnsupportedEntityType   = errors.New("unsupported entity type")
)
