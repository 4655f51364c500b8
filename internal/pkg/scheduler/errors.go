package scheduler

import "errors"

var (
	ErrInvalidSchedule         = errors.New("invalid schedule")
	ErrEntryAlreadyExists      = errors.New("entry already exists")
	ErrEntryNotFound           = errors.New("entry not found")
	ErrSchedulerAlreadyStarted = errors.New("scheduler already started")
)
