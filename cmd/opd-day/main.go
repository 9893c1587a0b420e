// Command opd-day runs a scripted outpatient day against a running
// api-server: doctors and slots are created, follow-up and paid tokens
// fill a slot, an emergency arrival displaces the newest low-priority
// token, a cancellation and a no-show free capacity, and the final queues
// are printed. It exists as an end-to-end exercise of the allocation
// rules, not as a load test.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

type client struct {
	baseURL string
	http    *http.Client
}

type doctorResp struct {
	ID uuid.UUID `json:"id"`
}

type slotResp struct {
	ID       uuid.UUID `json:"id"`
	DoctorID uuid.UUID `json:"doctor_id"`
	Status   string    `json:"status"`
}

type tokenResp struct {
	ID             uuid.UUID `json:"id"`
	SlotID         uuid.UUID `json:"slot_id"`
	Priority       string    `json:"priority"`
	SequenceNumber int       `json:"sequence_number"`
	Status         string    `json:"status"`
}

type queueResp struct {
	SlotID uuid.UUID   `json:"slot_id"`
	Tokens []tokenResp `json:"tokens"`
}

type errorResp struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func main() {
	log.SetFlags(log.LstdFlags)
	baseURL := os.Getenv("SIM_API_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	c := &client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}

	log.Printf("running OPD day against %s", baseURL)

	doctors := make([]doctorResp, 0, 3)
	for _, spec := range []struct{ name, specialization string }{
		{"Dr. Asha Rao", "General Medicine"},
		{"Dr. Binu Thomas", "Orthopedics"},
		{"Dr. Carla Menon", "Pediatrics"},
	} {
		var d doctorResp
		c.post("/doctors", map[string]any{
			"name":           spec.name,
			"specialization": spec.specialization,
		}, &d)
		doctors = append(doctors, d)
	}
	log.Printf("created %d doctors", len(doctors))

	start := time.Now().Add(time.Hour).Truncate(time.Minute)
	slots := make([]slotResp, 0, len(doctors))
	for _, d := range doctors {
		var s slotResp
		c.post("/slots", map[string]any{
			"doctor_id":  d.ID.String(),
			"start_time": start.Format(time.RFC3339),
			"end_time":   start.Add(time.Hour).Format(time.RFC3339),
			"capacity":   3,
		}, &s)
		slots = append(slots, s)
	}
	log.Printf("created %d slots (capacity 3 each)", len(slots))

	slot := slots[0]
	patients := make([]uuid.UUID, 10)
	for i := range patients {
		patients[i] = uuid.New()
	}

	// Fill the first slot: two follow-ups and a paid booking.
	var tokens []tokenResp
	for i, spec := range []struct {
		priority, source string
	}{
		{"FOLLOW_UP", "WALK_IN"},
		{"FOLLOW_UP", "WALK_IN"},
		{"PAID", "ONLINE"},
	} {
		t := c.allocate(slot, patients[i], spec.priority, spec.source)
		tokens = append(tokens, t)
		log.Printf("allocated seq=%d priority=%s", t.SequenceNumber, t.Priority)
	}

	// Emergency walks in: slot is full, the newest FOLLOW_UP must go.
	emergency := c.allocate(slot, patients[3], "EMERGENCY", "STAFF")
	log.Printf("emergency admitted seq=%d, displacement occurred", emergency.SequenceNumber)

	// A paid arrival against the now EMERGENCY+PAID+FOLLOW_UP queue: the
	// remaining FOLLOW_UP is displaced.
	paid := c.allocate(slot, patients[4], "PAID", "APP")
	log.Printf("paid admitted seq=%d", paid.SequenceNumber)

	// One more paid arrival has nothing left to displace and is refused.
	if _, err := c.tryAllocate(slot, patients[5], "PAID", "APP"); err != nil {
		log.Printf("expected rejection: %v", err)
	} else {
		log.Fatal("allocation unexpectedly succeeded on a full slot")
	}

	queue := c.queue(slot.ID)
	log.Printf("queue after displacements:")
	printQueue(queue)

	// Front desk cancels one booking and marks another a no-show.
	c.post(fmt.Sprintf("/tokens/%s/cancel", tokens[2].ID), nil, nil)
	log.Printf("token seq=%d cancelled", tokens[2].SequenceNumber)

	c.post(fmt.Sprintf("/tokens/%s/no-show", emergency.ID), nil, nil)
	log.Printf("token seq=%d marked no-show", emergency.SequenceNumber)

	// Freed capacity is not auto-filled; staff must allocate explicitly.
	var release queueResp
	c.get(fmt.Sprintf("/slots/%s/capacity-release", slot.ID), &release)
	log.Printf("capacity released, %d tokens still active (no auto-promotion)", len(release.Tokens))

	// Running late.
	var delayed slotResp
	c.post(fmt.Sprintf("/slots/%s/delay", slot.ID), map[string]any{"delay_minutes": 15}, &delayed)
	log.Printf("slot delayed by 15 minutes")

	// End of session.
	var completed slotResp
	c.post(fmt.Sprintf("/slots/%s/complete", slot.ID), nil, &completed)
	log.Printf("slot completed, status=%s", completed.Status)

	final := c.queue(slot.ID)
	log.Printf("final active queue (should be empty):")
	printQueue(final)

	log.Println("OPD day simulation complete")
}

func (c *client) allocate(slot slotResp, patient uuid.UUID, priority, source string) tokenResp {
	t, err := c.tryAllocate(slot, patient, priority, source)
	if err != nil {
		log.Fatalf("allocate %s: %v", priority, err)
	}
	return t
}

func (c *client) tryAllocate(slot slotResp, patient uuid.UUID, priority, source string) (tokenResp, error) {
	var t tokenResp
	err := c.do(http.MethodPost, "/tokens", map[string]any{
		"slot_id":    slot.ID.String(),
		"doctor_id":  slot.DoctorID.String(),
		"patient_id": patient.String(),
		"priority":   priority,
		"source":     source,
	}, &t)
	return t, err
}

func (c *client) queue(slotID uuid.UUID) queueResp {
	var q queueResp
	c.get(fmt.Sprintf("/slots/%s/queue", slotID), &q)
	return q
}

func (c *client) post(path string, body, out any) {
	if err := c.do(http.MethodPost, path, body, out); err != nil {
		log.Fatalf("POST %s: %v", path, err)
	}
}

func (c *client) get(path string, out any) {
	if err := c.do(http.MethodGet, path, nil, out); err != nil {
		log.Fatalf("GET %s: %v", path, err)
	}
}

func (c *client) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e errorResp
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
			return fmt.Errorf("%s (%d): %s", e.Error, resp.StatusCode, e.Details)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func printQueue(q queueResp) {
	if len(q.Tokens) == 0 {
		log.Println("  (empty)")
		return
	}
	for _, t := range q.Tokens {
		log.Printf("  seq=%d priority=%s status=%s", t.SequenceNumber, t.Priority, t.Status)
	}
}
