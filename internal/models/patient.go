package models

import "time"

type Patient struct {
	PatientID string    `json:"patient_id"`
	Name      string    `json:"name"`
	CPF       string    `json:"cpf,omitempty"`
	CNS       string    `json:"cns,omitempty"`
	BirthDate string    `json:"birth_date,omitempty"`
	Sex       string    `json:"sex,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Professional struct {
	ProfessionalID string `json:"professional_id"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	Team           string `json:"team,omitempty"`
	Active         bool   `json:"active"`
}

type Session struct {
	SessionID      string    `json:"session_id"`
	ProfessionalID string    `json:"professional_id"`
	Role           string    `json:"role"`
	ExpiresAt      time.Time `json:"expires_at"`
}
