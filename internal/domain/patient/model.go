package patient

import (
	"time"

	"github.com/google/uuid"
)

// Sex values accepted by the registry.
const (
	SexMale   = "M"
	SexFemale = "F"
)

// Patient is a registry row. Rows are never deleted.
type Patient struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientCode string     `db:"patient_code" json:"patient_code"`
	FullName    string     `db:"full_name" json:"full_name"`
	Sex         string     `db:"sex" json:"sex"`
	Age         *int       `db:"age" json:"age,omitempty"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Option is the slim projection used by the booking picker.
type Option struct {
	ID          uuid.UUID `json:"id"`
	PatientCode string    `json:"patient_code"`
	FullName    string    `json:"full_name"`
}

// NewPatient is the unvalidated form input for a patient that may not exist
// yet. Age and DateOfBirth arrive as text and are optional.
type NewPatient struct {
	PatientCode string `json:"patient_code"`
	FullName    string `json:"full_name"`
	Sex         string `json:"sex"`
	Age         string `json:"age"`
	DateOfBirth string `json:"date_of_birth"`
}

// Selector picks the patient for a booking: either an existing id or a new
// patient's details, never both.
type Selector struct {
	PatientID  string      `json:"patient_id,omitempty"`
	NewPatient *NewPatient `json:"new_patient,omitempty"`
}

// Query bounds.
const (
	SearchLimit  = 100
	OptionsLimit = 500
)
