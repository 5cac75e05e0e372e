package scheduling

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/frontdesk/internal/domain/patient"
)

type Status string

const (
	StatusWaiting   Status = "Waiting"
	StatusConfirmed Status = "Confirmed"
	StatusCancelled Status = "Cancelled"
)

// Statuses in queue order.
var Statuses = []Status{StatusWaiting, StatusConfirmed, StatusCancelled}

// ParseStatus matches s case-insensitively against the known statuses.
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	for _, st := range Statuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// rank orders Waiting before Confirmed before Cancelled.
func (s Status) rank() int {
	for i, st := range Statuses {
		if s == st {
			return i
		}
	}
	return len(Statuses)
}

// ListLimit caps how many appointments a single read returns.
const ListLimit = 1000

type Appointment struct {
	ID         uuid.UUID `db:"id" json:"id"`
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	StartsAt   time.Time `db:"starts_at" json:"starts_at"`
	DoctorName string    `db:"doctor_name" json:"doctor_name"`
	Department string    `db:"department" json:"department"`
	Status     Status    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`

	Patient *PatientSummary `json:"patient,omitempty"`
}

// PatientSummary is the patient data shown on an appointment row.
type PatientSummary struct {
	PatientCode string `json:"patient_code"`
	FullName    string `json:"full_name"`
	Age         *int   `json:"age,omitempty"`
	Sex         string `json:"sex"`
}

func summarize(p *patient.Patient) *PatientSummary {
	return &PatientSummary{PatientCode: p.PatientCode, FullName: p.FullName, Age: p.Age, Sex: p.Sex}
}

// BookingRequest is the booking form: the patient selector plus the slot.
// Date is YYYY-MM-DD and Time is HH:MM, both in the clinic time zone.
type BookingRequest struct {
	patient.Selector
	Date       string `json:"date"`
	Time       string `json:"time"`
	DoctorName string `json:"doctor_name"`
	Department string `json:"department"`
	Status     string `json:"status"`
}
