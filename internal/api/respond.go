package api

import (
	"encoding/json"
	"net/http"

	"github.com/medgrid/opd-token-queue/internal/token"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func tokenResponse(t *token.Token) TokenResponse {
	return TokenResponse{
		ID:             t.ID,
		SlotID:         t.SlotID,
		DoctorID:       t.DoctorID,
		PatientID:      t.PatientID,
		Priority:       string(t.Priority),
		Source:         string(t.Source),
		SequenceNumber: t.SequenceNumber,
		Status:         string(t.Status),
	}
}

func slotResponse(s *token.Slot) SlotResponse {
	return SlotResponse{
		ID:           s.ID,
		DoctorID:     s.DoctorID,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		Capacity:     s.Capacity,
		Status:       string(s.Status),
		DelayMinutes: s.DelayMinutes,
	}
}
