package model

import (
	"time"

	"github.com/google/uuid"
)

// ServicePurchase is the activation record of a paid service. Created by the
// ledger on a successful charge, deactivated by a refund.
type ServicePurchase struct {
	ID            uuid.UUID
	UserID        int64
	AdID          *uuid.UUID
	ServiceCode   string
	Quantity      int
	ExpiresAt     *time.Time
	IsActive      bool
	TransactionID string
	CreatedAt     time.Time
}
