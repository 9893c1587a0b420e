package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	redisclient "github.com/medgrid/opd-token-queue/internal/redis"
	"github.com/medgrid/opd-token-queue/internal/token"
)

var validPriorities = map[string]token.Priority{
	"EMERGENCY": token.PriorityEmergency,
	"PAID":      token.PriorityPaid,
	"FOLLOW_UP": token.PriorityFollowUp,
}

var validSources = map[string]token.Source{
	"ONLINE":  token.SourceOnline,
	"WALK_IN": token.SourceWalkIn,
	"STAFF":   token.SourceStaff,
	"APP":     token.SourceApp,
}

func createDoctorHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDoctorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if len(req.Name) < 2 {
			writeError(w, http.StatusBadRequest, "invalid_name", "name must be at least 2 characters")
			return
		}

		d, err := svc.CreateDoctor(r.Context(), req.Name, req.Specialization)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, DoctorResponse{ID: d.ID, Name: d.Name, Specialization: d.Specialization})
	}
}

func createSlotHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		if req.Capacity <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_capacity", "capacity must be a positive integer")
			return
		}
		if !req.EndTime.After(req.StartTime) {
			writeError(w, http.StatusBadRequest, "invalid_time_range", "end_time must be after start_time")
			return
		}

		slot, err := svc.CreateSlot(r.Context(), doctorID, req.StartTime, req.EndTime, req.Capacity)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, slotResponse(slot))
	}
}

func allocateTokenHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AllocateTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		priority, ok := validPriorities[req.Priority]
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_priority", "priority must be one of EMERGENCY, PAID, FOLLOW_UP")
			return
		}
		source, ok := validSources[req.Source]
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_source", "source must be one of ONLINE, WALK_IN, STAFF, APP")
			return
		}

		t, err := svc.Allocate(r.Context(), token.AllocateParams{
			SlotID:    slotID,
			DoctorID:  doctorID,
			PatientID: patientID,
			Priority:  priority,
			Source:    source,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, tokenResponse(t))
	}
}

func cancelTokenHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_token_id", "id must be a valid UUID")
		if !ok {
			return
		}

		t, err := svc.Cancel(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, tokenResponse(t))
	}
}

func noShowTokenHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_token_id", "id must be a valid UUID")
		if !ok {
			return
		}

		t, err := svc.MarkNoShow(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, tokenResponse(t))
	}
}

func queueHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := parseIDParam(w, r, "invalid_slot_id", "id must be a valid UUID")
		if !ok {
			return
		}

		tokens, err := svc.Queue(r.Context(), slotID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, queueResponse(slotID, tokens))
	}
}

func capacityReleaseHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := parseIDParam(w, r, "invalid_slot_id", "id must be a valid UUID")
		if !ok {
			return
		}

		tokens, err := svc.ReleaseCapacity(r.Context(), slotID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, queueResponse(slotID, tokens))
	}
}

func completeSlotHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := parseIDParam(w, r, "invalid_slot_id", "id must be a valid UUID")
		if !ok {
			return
		}

		slot, err := svc.CompleteSlot(r.Context(), slotID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, slotResponse(slot))
	}
}

func delaySlotHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := parseIDParam(w, r, "invalid_slot_id", "id must be a valid UUID")
		if !ok {
			return
		}

		var req DelaySlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.DelayMinutes < 0 {
			writeError(w, http.StatusBadRequest, "invalid_delay", "delay_minutes must be >= 0")
			return
		}

		slot, err := svc.MarkDelayed(r.Context(), slotID, req.DelayMinutes)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, slotResponse(slot))
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request, code, details string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, details)
		return uuid.Nil, false
	}
	return id, true
}

func queueResponse(slotID uuid.UUID, tokens []token.Token) QueueResponse {
	resp := QueueResponse{SlotID: slotID, Tokens: make([]TokenResponse, 0, len(tokens))}
	for i := range tokens {
		resp.Tokens = append(resp.Tokens, tokenResponse(&tokens[i]))
	}
	return resp
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, token.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, token.ErrSlotFull):
		writeError(w, http.StatusConflict, "slot_full", err.Error())
	case errors.Is(err, token.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, token.ErrTokenNotFound):
		writeError(w, http.StatusNotFound, "token_not_found", err.Error())
	case errors.Is(err, token.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_allocated", "slot is currently being allocated, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
