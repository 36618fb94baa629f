package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeEntryStatus is the approval state of logged time.
type TimeEntryStatus string

const (
	TimeEntrySubmitted TimeEntryStatus = "SUBMITTED"
	TimeEntryApproved  TimeEntryStatus = "APPROVED"
	TimeEntryRejected  TimeEntryStatus = "REJECTED"
)

// TimeEntry is work logged against a customer, optionally drawn from a retainer.
type TimeEntry struct {
	ID          string
	CustomerID  string
	RetainerID  string
	WorkDate    time.Time
	Hours       decimal.Decimal
	Description string
	Status      TimeEntryStatus
	ActorID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
