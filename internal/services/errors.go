package services

import "errors"

// ErrRunsUnavailable is returned when no run statistics store is configured
var ErrRunsUnavailable = errors.New("run statistics store is not configured")
