package store

import (
	"context"
	"encoding/json"
	"time"

	"clinicq/ehr-service/internal/models"
)

// EntryRepository persists queue entries for a service period. The queue
// service owns the in-memory day collection and calls the repository before
// mutating it, so a failed write leaves the collection unchanged.
type EntryRepository interface {
	LoadDay(ctx context.Context, day time.Time) ([]models.QueueEntry, error)
	InsertEntry(ctx context.Context, entry models.QueueEntry) (models.QueueEntry, error)
	UpdateEntry(ctx context.Context, entry models.QueueEntry) error
	UpdateEntries(ctx context.Context, entries []models.QueueEntry) error
	DeleteEntry(ctx context.Context, entryID string) error
}

type PatientStore interface {
	CreatePatient(ctx context.Context, patient models.Patient) (models.Patient, error)
	UpdatePatient(ctx context.Context, patient models.Patient) (models.Patient, error)
	GetPatient(ctx context.Context, patientID string) (models.Patient, error)
	ListPatients(ctx context.Context, search string, limit int) ([]models.Patient, error)
}

type ClinicalStore interface {
	CreateConsultation(ctx context.Context, consultation models.Consultation) (models.Consultation, error)
	// MergeConsultation overwrites only the SOAP sections the update carries;
	// empty sections on the update keep their stored value.
	MergeConsultation(ctx context.Context, consultation models.Consultation) (models.Consultation, error)
	FinalizeConsultation(ctx context.Context, consultationID string, at time.Time) (models.Consultation, error)
	ListConsultations(ctx context.Context, patientID string) ([]models.Consultation, error)

	RecordVitals(ctx context.Context, vitals models.VitalSigns) (models.VitalSigns, error)
	ListVitals(ctx context.Context, patientID string) ([]models.VitalSigns, error)

	RecordMeasurement(ctx context.Context, measurement models.Measurement) (models.Measurement, error)
	ListMeasurements(ctx context.Context, patientID string) ([]models.Measurement, error)

	AddMedication(ctx context.Context, medication models.Medication) (models.Medication, error)
	StopMedication(ctx context.Context, medicationID string, at time.Time) (models.Medication, error)
	ListMedications(ctx context.Context, patientID string, activeOnly bool) ([]models.Medication, error)

	AddAllergy(ctx context.Context, allergy models.Allergy) (models.Allergy, error)
	ListAllergies(ctx context.Context, patientID string) ([]models.Allergy, error)
}

type AuthStore interface {
	Login(ctx context.Context, username, password string, expiresAt time.Time) (models.Session, error)
	GetSession(ctx context.Context, sessionID string) (models.Session, error)
	GetProfessional(ctx context.Context, professionalID string) (models.Professional, error)
}

type ReportStore interface {
	DailySummary(ctx context.Context, day time.Time) (DailySummary, error)
}

type DailySummary struct {
	Day             string  `json:"day"`
	Admitted        int     `json:"admitted"`
	Completed       int     `json:"completed"`
	Cancelled       int     `json:"cancelled"`
	NoShow          int     `json:"no_show"`
	AvgWaitSeconds  float64 `json:"avg_wait_seconds"`
	TriagedHighRisk int     `json:"triaged_high_risk"`
}

type QueueEvent struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type EventStore interface {
	InsertEvent(ctx context.Context, event QueueEvent) error
	ListEvents(ctx context.Context, after time.Time, limit int) ([]QueueEvent, error)
}
