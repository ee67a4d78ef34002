package models

import "time"

// Consultation documents one encounter in SOAP form. Updates merge field by
// field: an empty section on the update leaves the stored section untouched.
type Consultation struct {
	ConsultationID string     `json:"consultation_id"`
	PatientID      string     `json:"patient_id"`
	EntryID        string     `json:"entry_id,omitempty"`
	Professional   string     `json:"professional"`
	Subjective     string     `json:"subjective,omitempty"`
	Objective      string     `json:"objective,omitempty"`
	Assessment     string     `json:"assessment,omitempty"`
	Plan           string     `json:"plan,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	FinalizedAt    *time.Time `json:"finalized_at,omitempty"`
}

type VitalSigns struct {
	VitalID          string    `json:"vital_id"`
	PatientID        string    `json:"patient_id"`
	ConsultationID   string    `json:"consultation_id,omitempty"`
	SystolicBP       int       `json:"systolic_bp,omitempty"`
	DiastolicBP      int       `json:"diastolic_bp,omitempty"`
	HeartRate        int       `json:"heart_rate,omitempty"`
	RespiratoryRate  int       `json:"respiratory_rate,omitempty"`
	TemperatureC     float64   `json:"temperature_c,omitempty"`
	OxygenSaturation int       `json:"oxygen_saturation,omitempty"`
	RecordedAt       time.Time `json:"recorded_at"`
	RecordedBy       string    `json:"recorded_by,omitempty"`
}

type Measurement struct {
	MeasurementID string    `json:"measurement_id"`
	PatientID     string    `json:"patient_id"`
	WeightKg      float64   `json:"weight_kg,omitempty"`
	HeightCm      float64   `json:"height_cm,omitempty"`
	HeadCircumCm  float64   `json:"head_circum_cm,omitempty"`
	GlycemiaMgDl  int       `json:"glycemia_mg_dl,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
	RecordedBy    string    `json:"recorded_by,omitempty"`
}

type Medication struct {
	MedicationID string     `json:"medication_id"`
	PatientID    string     `json:"patient_id"`
	Name         string     `json:"name"`
	Dose         string     `json:"dose,omitempty"`
	Frequency    string     `json:"frequency,omitempty"`
	Route        string     `json:"route,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	PrescribedBy string     `json:"prescribed_by,omitempty"`
	Active       bool       `json:"active"`
}

type Allergy struct {
	AllergyID   string    `json:"allergy_id"`
	PatientID   string    `json:"patient_id"`
	Substance   string    `json:"substance"`
	Category    string    `json:"category,omitempty"`
	Criticality string    `json:"criticality,omitempty"`
	Reaction    string    `json:"reaction,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
	RecordedBy  string    `json:"recorded_by,omitempty"`
}
