package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the same
// statements run pooled or inside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	db   querier
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: pool, pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialization *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialization,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialization = specialization
	return &d, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.StartTime,
		&s.EndTime,
		&s.Capacity,
		&s.Status,
		&s.DelayMinutes,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanToken(row pgx.Row) (*Token, error) {
	var t Token

	err := row.Scan(
		&t.ID,
		&t.SlotID,
		&t.DoctorID,
		&t.PatientID,
		&t.Priority,
		&t.Source,
		&t.SequenceNumber,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	return &t, nil
}

const tokenColumns = `id, slot_id, doctor_id, patient_id, priority, source, sequence_number, status, created_at, updated_at`

const slotColumns = `id, doctor_id, start_time, end_time, capacity, status, delay_minutes, created_at, updated_at`

// Interface methods

func (r *PgRepository) CreateDoctor(ctx context.Context, name string, specialization *string) (*Doctor, error) {
	id := uuid.New()

	row := r.db.QueryRow(ctx, `
		INSERT INTO doctors (id, name, specialization, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING id, name, specialization, created_at, updated_at
	`, id, name, specialization)

	return scanDoctor(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, specialization, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) CreateSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time, capacity int) (*Slot, error) {
	id := uuid.New()

	row := r.db.QueryRow(ctx, `
		INSERT INTO slots (id, doctor_id, start_time, end_time, capacity, status, delay_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'SCHEDULED', 0, now(), now())
		RETURNING `+slotColumns+`
	`, id, doctorID, start, end, capacity)

	return scanSlot(row)
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) UpdateSlotStatus(ctx context.Context, id uuid.UUID, status SlotStatus) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE slots
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns+`
	`, id, status)

	return scanSlot(row)
}

func (r *PgRepository) UpdateSlotDelay(ctx context.Context, id uuid.UUID, delayMinutes int) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE slots
		SET delay_minutes = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns+`
	`, id, delayMinutes)

	return scanSlot(row)
}

func (r *PgRepository) ListActiveTokens(ctx context.Context, slotID uuid.UUID) ([]Token, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE slot_id = $1 AND status = 'ACTIVE'
	`, slotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetTokenByID(ctx context.Context, id uuid.UUID) (*Token, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE id = $1
	`, id)
	return scanToken(row)
}

func (r *PgRepository) CreateToken(ctx context.Context, t Token) (*Token, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO tokens (id, slot_id, doctor_id, patient_id, priority, source, sequence_number, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+tokenColumns+`
	`, t.ID, t.SlotID, t.DoctorID, t.PatientID, t.Priority, t.Source, t.SequenceNumber, t.Status)

	return scanToken(row)
}

func (r *PgRepository) UpdateTokenStatus(ctx context.Context, id uuid.UUID, status Status) (*Token, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE tokens
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+tokenColumns+`
	`, id, status)

	return scanToken(row)
}

func (r *PgRepository) CompleteActiveTokens(ctx context.Context, slotID uuid.UUID) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE tokens
		SET status = 'COMPLETED',
		    updated_at = now()
		WHERE slot_id = $1 AND status = 'ACTIVE'
	`, slotID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *PgRepository) InsertAudit(ctx context.Context, rec AuditRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_logs (token_id, action, displaced_token_id, created_at)
		VALUES ($1, $2, $3, now())
	`, rec.TokenID, rec.Action, rec.DisplacedTokenID)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}

	return nil
}

// InTx runs fn against a repository bound to one pgx transaction. Nested
// calls reuse the surrounding transaction.
func (r *PgRepository) InTx(ctx context.Context, fn func(Repository) error) error {
	if r.pool == nil {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PgRepository{db: tx}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
