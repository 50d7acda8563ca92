package core

import "errors"

var (
	ErrDBConn = errors.New("db connection failure")

	ErrFieldIsEmpty      = errors.New("field is empty")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidID         = errors.New("invalid id")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrOrderNotFound     = errors.New("order not found")
	ErrStoreNotFound     = errors.New("store not found")
	ErrStoreExists       = errors.New("store with this name already exists")
	ErrAlreadyAssigned   = errors.New("order is already assigned")
	ErrInvalidTransition = errors.New("status transition is not allowed")
	ErrOrderNotInStore   = errors.New("order is not assigned to this store")
	ErrAutoAssignRunning = errors.New("auto-assignment is already running")
)
