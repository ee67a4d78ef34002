package models

import (
	"errors"
	"time"
)

// QueueEntry is one service request on the daily queue. A patient can hold
// several concurrent entries (e.g. a consultation and a vaccination), so the
// entry, not the patient, is the unit of ordering and status.
type QueueEntry struct {
	EntryID       string     `json:"entry_id"`
	Seq           int64      `json:"seq"`
	PatientID     string     `json:"patient_id"`
	PatientName   string     `json:"patient_name"`
	PatientCPF    string     `json:"patient_cpf,omitempty"`
	PatientCNS    string     `json:"patient_cns,omitempty"`
	PatientBirth  string     `json:"patient_birth,omitempty"`
	ArrivedAt     time.Time  `json:"arrived_at"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
	Kind          string     `json:"kind"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority"`
	ListeningDone bool       `json:"listening_done"`
	Risk          string     `json:"risk,omitempty"`
	ServiceType   string     `json:"service_type"`
	Team          string     `json:"team,omitempty"`
	Professional  string     `json:"professional,omitempty"`
	Position      int        `json:"position"`
	CreatedBy     string     `json:"created_by,omitempty"`
}

const (
	KindSpontaneous = "spontaneous"
	KindScheduled   = "scheduled"
)

const (
	StatusWaiting          = "waiting"
	StatusInProgress       = "in_progress"
	StatusCompleted        = "completed"
	StatusCancelled        = "cancelled"
	StatusNoShow           = "no_show"
	StatusInitialListening = "initial_listening"
)

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

var (
	ErrScheduledTimeRequired  = errors.New("scheduled entry requires scheduled_at")
	ErrScheduledTimeForbidden = errors.New("spontaneous entry must not carry scheduled_at")
	ErrRiskWithoutListening   = errors.New("risk requires completed initial listening")
	ErrUnknownKind            = errors.New("unknown appointment kind")
	ErrUnknownStatus          = errors.New("unknown status")
	ErrUnknownPriority        = errors.New("unknown priority")
	ErrUnknownRisk            = errors.New("unknown risk")
)

// Validate checks the field invariants: scheduled_at presence is determined
// by kind, and risk may only be set once initial listening finished.
func (e QueueEntry) Validate() error {
	switch e.Kind {
	case KindScheduled:
		if e.ScheduledAt == nil || e.ScheduledAt.IsZero() {
			return ErrScheduledTimeRequired
		}
	case KindSpontaneous:
		if e.ScheduledAt != nil {
			return ErrScheduledTimeForbidden
		}
	default:
		return ErrUnknownKind
	}

	switch e.Status {
	case StatusWaiting, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow, StatusInitialListening:
	default:
		return ErrUnknownStatus
	}

	switch e.Priority {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
	default:
		return ErrUnknownPriority
	}

	switch e.Risk {
	case "", RiskLow, RiskMedium, RiskHigh:
	default:
		return ErrUnknownRisk
	}
	if e.Risk != "" && !e.ListeningDone {
		return ErrRiskWithoutListening
	}

	return nil
}

// EffectiveTime is the timestamp the default ordering ranks by: the booked
// slot for scheduled entries, the arrival time for walk-ins.
func (e QueueEntry) EffectiveTime() time.Time {
	if e.Kind == KindScheduled && e.ScheduledAt != nil && !e.ScheduledAt.IsZero() {
		return *e.ScheduledAt
	}
	return e.ArrivedAt
}

// Unfinished reports whether the entry is still actionable on the queue.
func (e QueueEntry) Unfinished() bool {
	return e.Status != StatusCompleted && e.Status != StatusCancelled
}

func PriorityRank(priority string) int {
	switch priority {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 0
	default:
		return -1
	}
}

func RiskRank(risk string) int {
	switch risk {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	default:
		return 0
	}
}
