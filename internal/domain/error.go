package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound              = errors.New("entity not found")
	ErrAlreadyExists         = errors.New("entity already exists")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrInvalidState          = errors.New("entity is in the wrong state for this transition")
	ErrInvalidCurrency       = errors.New("unknown currency")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrLimitExceeded         = errors.New("limit exceeded")
	ErrChannelsNotConfigured = errors.New("region has no configured publishing channels")
	ErrServiceNotFound       = errors.New("paid service not found")
	ErrServiceInactive       = errors.New("paid service is inactive")
	ErrNotRefundable         = errors.New("transaction is not refundable")
	ErrLockBusy              = errors.New("lock is held by another worker")

	// Infrastructure errors
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
