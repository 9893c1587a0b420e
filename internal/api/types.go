package api

import (
	"time"

	"github.com/google/uuid"
)

type CreateDoctorRequest struct {
	Name           string  `json:"name"`
	Specialization *string `json:"specialization,omitempty"`
}

type CreateSlotRequest struct {
	DoctorID  string    `json:"doctor_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Capacity  int       `json:"capacity"`
}

type AllocateTokenRequest struct {
	SlotID    string `json:"slot_id"`
	DoctorID  string `json:"doctor_id"`
	PatientID string `json:"patient_id"`
	Priority  string `json:"priority"`
	Source    string `json:"source"`
}

type DelaySlotRequest struct {
	DelayMinutes int `json:"delay_minutes"`
}

type DoctorResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Specialization *string   `json:"specialization,omitempty"`
}

type SlotResponse struct {
	ID           uuid.UUID `json:"id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Capacity     int       `json:"capacity"`
	Status       string    `json:"status"`
	DelayMinutes int       `json:"delay_minutes"`
}

type TokenResponse struct {
	ID             uuid.UUID `json:"id"`
	SlotID         uuid.UUID `json:"slot_id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	Priority       string    `json:"priority"`
	Source         string    `json:"source"`
	SequenceNumber int       `json:"sequence_number"`
	Status         string    `json:"status"`
}

type QueueResponse struct {
	SlotID uuid.UUID       `json:"slot_id"`
	Tokens []TokenResponse `json:"tokens"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
