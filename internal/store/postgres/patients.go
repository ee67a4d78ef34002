package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"clinicq/ehr-service/internal/models"
	"clinicq/ehr-service/internal/store"
)

func (s *Store) CreatePatient(ctx context.Context, patient models.Patient) (models.Patient, error) {
	patient.PatientID = uuid.NewString()
	now := time.Now().UTC()
	patient.CreatedAt = now
	patient.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO patients (patient_id, name, cpf, cns, birth_date, sex, phone, address, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, patient.PatientID, patient.Name, nullIfEmpty(patient.CPF), nullIfEmpty(patient.CNS),
		nullIfEmpty(patient.BirthDate), nullIfEmpty(patient.Sex), nullIfEmpty(patient.Phone),
		nullIfEmpty(patient.Address), patient.CreatedAt, patient.UpdatedAt)
	if err != nil {
		return models.Patient{}, err
	}
	return patient, nil
}

func (s *Store) UpdatePatient(ctx context.Context, patient models.Patient) (models.Patient, error) {
	patient.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE patients
		SET name = $2, cpf = $3, cns = $4, birth_date = $5, sex = $6, phone = $7, address = $8, updated_at = $9
		WHERE patient_id = $1
	`, patient.PatientID, patient.Name, nullIfEmpty(patient.CPF), nullIfEmpty(patient.CNS),
		nullIfEmpty(patient.BirthDate), nullIfEmpty(patient.Sex), nullIfEmpty(patient.Phone),
		nullIfEmpty(patient.Address), patient.UpdatedAt)
	if err != nil {
		return models.Patient{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.Patient{}, store.ErrPatientNotFound
	}
	return s.GetPatient(ctx, patient.PatientID)
}

func (s *Store) GetPatient(ctx context.Context, patientID string) (models.Patient, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT patient_id, name, cpf, cns, birth_date, sex, phone, address, created_at, updated_at
		FROM patients
		WHERE patient_id = $1
	`, patientID)
	patient, err := scanPatientRow(row)
	if err != nil {
		if isNoRows(err) {
			return models.Patient{}, store.ErrPatientNotFound
		}
		return models.Patient{}, err
	}
	return patient, nil
}

func (s *Store) ListPatients(ctx context.Context, search string, limit int) ([]models.Patient, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT patient_id, name, cpf, cns, birth_date, sex, phone, address, created_at, updated_at
		FROM patients
	`
	args := []interface{}{}
	if search != "" {
		query += " WHERE name ILIKE '%' || $1 || '%' OR cpf LIKE '%' || $1 || '%' OR cns LIKE '%' || $1 || '%'"
		args = append(args, search)
		query += " ORDER BY name ASC LIMIT $2"
		args = append(args, limit)
	} else {
		query += " ORDER BY name ASC LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []models.Patient
	for rows.Next() {
		patient, err := scanPatientRow(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, patient)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return patients, nil
}

func scanPatientRow(row pgx.Row) (models.Patient, error) {
	var patient models.Patient
	var cpfNull, cnsNull, birthNull, sexNull, phoneNull, addressNull sql.NullString
	if err := row.Scan(&patient.PatientID, &patient.Name, &cpfNull, &cnsNull, &birthNull,
		&sexNull, &phoneNull, &addressNull, &patient.CreatedAt, &patient.UpdatedAt); err != nil {
		return models.Patient{}, err
	}
	patient.CPF = cpfNull.String
	patient.CNS = cnsNull.String
	patient.BirthDate = birthNull.String
	patient.Sex = sexNull.String
	patient.Phone = phoneNull.String
	patient.Address = addressNull.String
	return patient, nil
}
