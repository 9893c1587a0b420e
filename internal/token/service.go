package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medgrid/opd-token-queue/internal/metrics"
	redisclient "github.com/medgrid/opd-token-queue/internal/redis"
)

const (
	AuditTokenAllocated = "TOKEN_ALLOCATED"
)

var (
	ErrSlotUnavailable = errors.New("slot unavailable")
	ErrSlotFull        = errors.New("slot full, token rejected")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	log    zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		log:    log,
	}
}

// CreateDoctor registers a doctor. The allocation core never mutates
// doctor records after this.
func (s *Service) CreateDoctor(ctx context.Context, name string, specialization *string) (*Doctor, error) {
	d, err := s.repo.CreateDoctor(ctx, name, specialization)
	if err != nil {
		return nil, fmt.Errorf("create doctor: %w", err)
	}
	return d, nil
}

// CreateSlot opens a doctor's service window. Capacity is fixed here for
// the slot's lifetime.
func (s *Service) CreateSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time, capacity int) (*Slot, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	slot, err := s.repo.CreateSlot(ctx, doctorID, start, end, capacity)
	if err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}

	s.log.Info().Stringer("slot_id", slot.ID).Stringer("doctor_id", doctorID).Int("capacity", capacity).Msg("slot created")
	return slot, nil
}

type AllocateParams struct {
	SlotID    uuid.UUID
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Priority  Priority
	Source    Source
}

// Allocate admits a patient into a slot, displacing the lowest ranked
// active token when the slot is full and the arrival outranks it.
//
// The whole admission unit runs under the slot's lock and inside one
// storage transaction: the availability check, the ledger decision, the
// victim's status change, the sequence assignment, the token insert, and
// the audit append become visible together or not at all. Concurrent
// attempts on the same slot linearize behind the lock; attempts on other
// slots are unaffected.
func (s *Service) Allocate(ctx context.Context, p AllocateParams) (*Token, error) {
	var (
		created   *Token
		displaced *uuid.UUID
	)

	err := s.locker.WithSlotLock(ctx, p.SlotID, func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(tx Repository) error {
			slot, err := tx.GetSlotByID(lockCtx, p.SlotID)
			if err != nil {
				if errors.Is(err, ErrSlotNotFound) {
					return ErrSlotUnavailable
				}
				return fmt.Errorf("load slot: %w", err)
			}
			if slot.Status != SlotScheduled {
				return ErrSlotUnavailable
			}

			active, err := tx.ListActiveTokens(lockCtx, p.SlotID)
			if err != nil {
				return fmt.Errorf("list active tokens: %w", err)
			}

			decision := Decide(active, slot.Capacity, p.Priority)
			if decision.Outcome == Reject {
				return ErrSlotFull
			}

			if decision.Outcome == AdmitWithDisplacement {
				victim := decision.Victim
				if _, err := tx.UpdateTokenStatus(lockCtx, victim.ID, StatusDisplaced); err != nil {
					return fmt.Errorf("displace token %s: %w", victim.ID, err)
				}
				id := victim.ID
				displaced = &id
			}

			t, err := tx.CreateToken(lockCtx, Token{
				SlotID:         p.SlotID,
				DoctorID:       p.DoctorID,
				PatientID:      p.PatientID,
				Priority:       p.Priority,
				Source:         p.Source,
				SequenceNumber: NextSequence(active),
				Status:         StatusActive,
			})
			if err != nil {
				return fmt.Errorf("create token: %w", err)
			}

			if err := tx.InsertAudit(lockCtx, AuditRecord{
				TokenID:          t.ID,
				Action:           AuditTokenAllocated,
				DisplacedTokenID: displaced,
			}); err != nil {
				return err
			}

			created = t
			return nil
		})
	})

	if err != nil {
		switch {
		case errors.Is(err, ErrSlotUnavailable):
			metrics.AllocationsTotal.WithLabelValues("rejected_unavailable").Inc()
		case errors.Is(err, ErrSlotFull):
			metrics.AllocationsTotal.WithLabelValues("rejected_full").Inc()
		default:
			metrics.AllocationsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	ev := s.log.Info().
		Stringer("slot_id", p.SlotID).
		Stringer("token_id", created.ID).
		Str("priority", string(p.Priority)).
		Int("sequence", created.SequenceNumber)

	if displaced != nil {
		ev = ev.Stringer("displaced_token_id", *displaced)
		metrics.DisplacementsTotal.Inc()
	}

	ev.Msg("token allocated")
	metrics.AllocationsTotal.WithLabelValues("admitted").Inc()

	return created, nil
}

// Cancel sets a token's status to CANCELLED. It does not renumber or
// promote the remaining tokens and does not check the prior status.
func (s *Service) Cancel(ctx context.Context, tokenID uuid.UUID) (*Token, error) {
	t, err := s.repo.UpdateTokenStatus(ctx, tokenID, StatusCancelled)
	if err != nil {
		return nil, err
	}

	metrics.LifecycleTransitionsTotal.WithLabelValues(string(StatusCancelled)).Inc()
	s.log.Info().Stringer("token_id", tokenID).Msg("token cancelled")
	return t, nil
}

// MarkNoShow sets a token's status to NO_SHOW with the same
// non-renumbering contract as Cancel.
func (s *Service) MarkNoShow(ctx context.Context, tokenID uuid.UUID) (*Token, error) {
	t, err := s.repo.UpdateTokenStatus(ctx, tokenID, StatusNoShow)
	if err != nil {
		return nil, err
	}

	metrics.LifecycleTransitionsTotal.WithLabelValues(string(StatusNoShow)).Inc()
	s.log.Info().Stringer("token_id", tokenID).Msg("token marked no-show")
	return t, nil
}

// ReleaseCapacity returns the slot's remaining ACTIVE tokens in serving
// order after capacity has been freed. Displaced tokens are never
// auto-promoted into the freed space: redistribution requires an explicit
// new Allocate call by staff. That is a fairness rule, not an omission.
func (s *Service) ReleaseCapacity(ctx context.Context, slotID uuid.UUID) ([]Token, error) {
	return s.Queue(ctx, slotID)
}

// Queue returns the slot's ACTIVE tokens ordered by priority descending,
// then sequence ascending. Read-only.
func (s *Service) Queue(ctx context.Context, slotID uuid.UUID) ([]Token, error) {
	active, err := s.repo.ListActiveTokens(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("list active tokens: %w", err)
	}
	return ServingOrder(active), nil
}

// MarkDelayed records a running delay on the slot. Token order is not
// affected.
func (s *Service) MarkDelayed(ctx context.Context, slotID uuid.UUID, delayMinutes int) (*Slot, error) {
	slot, err := s.repo.UpdateSlotDelay(ctx, slotID, delayMinutes)
	if err != nil {
		return nil, err
	}

	s.log.Info().Stringer("slot_id", slotID).Int("delay_minutes", delayMinutes).Msg("slot delayed")
	return slot, nil
}

// CompleteSlot closes out a slot: every ACTIVE token moves to COMPLETED,
// then the slot itself. Calling it on an already completed slot finds no
// active tokens and is harmless.
func (s *Service) CompleteSlot(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	var slot *Slot

	err := s.repo.InTx(ctx, func(tx Repository) error {
		n, err := tx.CompleteActiveTokens(ctx, slotID)
		if err != nil {
			return fmt.Errorf("complete active tokens: %w", err)
		}

		slot, err = tx.UpdateSlotStatus(ctx, slotID, SlotCompleted)
		if err != nil {
			return err
		}

		s.log.Info().Stringer("slot_id", slotID).Int("tokens_completed", n).Msg("slot completed")
		return nil
	})
	if err != nil {
		return nil, err
	}

	return slot, nil
}
