package token

import (
	"time"

	"github.com/google/uuid"
)

// Priority orders tokens within a slot. The ranks form a strict total
// order; see Rank.
type Priority string

const (
	PriorityEmergency Priority = "EMERGENCY"
	PriorityPaid      Priority = "PAID"
	PriorityFollowUp  Priority = "FOLLOW_UP"
)

// Source records how the allocation request reached the system.
type Source string

const (
	SourceOnline Source = "ONLINE"
	SourceWalkIn Source = "WALK_IN"
	SourceStaff  Source = "STAFF"
	SourceApp    Source = "APP"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
	StatusNoShow    Status = "NO_SHOW"
	StatusDisplaced Status = "DISPLACED"
	StatusCompleted Status = "COMPLETED"
)

type SlotStatus string

const (
	SlotScheduled SlotStatus = "SCHEDULED"
	SlotCompleted SlotStatus = "COMPLETED"
)

type Doctor struct {
	ID             uuid.UUID
	Name           string
	Specialization *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot is one doctor's bounded service window. Capacity is fixed at
// creation and never changed by the allocation core.
type Slot struct {
	ID           uuid.UUID
	DoctorID     uuid.UUID
	StartTime    time.Time
	EndTime      time.Time
	Capacity     int
	Status       SlotStatus
	DelayMinutes int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Token is one patient's claim on a slot. SequenceNumber is unique within
// the slot, assigned once at creation, and never renumbered; it encodes
// arrival order for tie-breaking within a priority class.
type Token struct {
	ID             uuid.UUID
	SlotID         uuid.UUID
	DoctorID       uuid.UUID
	PatientID      uuid.UUID
	Priority       Priority
	Source         Source
	SequenceNumber int
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AuditRecord is an append-only log entry for an allocation decision.
// Rows are never updated or deleted.
type AuditRecord struct {
	ID               int64
	TokenID          uuid.UUID
	Action           string
	DisplacedTokenID *uuid.UUID
	CreatedAt        time.Time
}
