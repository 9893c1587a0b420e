package token

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound = errors.New("doctor not found")
	ErrSlotNotFound   = errors.New("slot not found")
	ErrTokenNotFound  = errors.New("token not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	CreateDoctor(ctx context.Context, name string, specialization *string) (*Doctor, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)

	CreateSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time, capacity int) (*Slot, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	UpdateSlotStatus(ctx context.Context, id uuid.UUID, status SlotStatus) (*Slot, error)
	UpdateSlotDelay(ctx context.Context, id uuid.UUID, delayMinutes int) (*Slot, error)

	// ListActiveTokens returns a slot's ACTIVE tokens in no particular
	// order; callers sort as needed.
	ListActiveTokens(ctx context.Context, slotID uuid.UUID) ([]Token, error)
	GetTokenByID(ctx context.Context, id uuid.UUID) (*Token, error)
	CreateToken(ctx context.Context, t Token) (*Token, error)
	UpdateTokenStatus(ctx context.Context, id uuid.UUID, status Status) (*Token, error)
	// CompleteActiveTokens moves every ACTIVE token of the slot to
	// COMPLETED and reports how many were touched.
	CompleteActiveTokens(ctx context.Context, slotID uuid.UUID) (int, error)

	// Audit trail, append-only.
	InsertAudit(ctx context.Context, rec AuditRecord) error

	// InTx runs fn against a repository bound to a single transaction;
	// fn's writes commit together or not at all.
	InTx(ctx context.Context, fn func(Repository) error) error
}
