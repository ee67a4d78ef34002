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

func (s *Store) CreateConsultation(ctx context.Context, consultation models.Consultation) (models.Consultation, error) {
	consultation.ConsultationID = uuid.NewString()
	now := time.Now().UTC()
	consultation.CreatedAt = now
	consultation.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO consultations (
			consultation_id, patient_id, entry_id, professional,
			subjective, objective, assessment, plan, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, consultation.ConsultationID, consultation.PatientID, nullIfEmpty(consultation.EntryID),
		consultation.Professional, nullIfEmpty(consultation.Subjective), nullIfEmpty(consultation.Objective),
		nullIfEmpty(consultation.Assessment), nullIfEmpty(consultation.Plan),
		consultation.CreatedAt, consultation.UpdatedAt)
	if err != nil {
		return models.Consultation{}, err
	}
	return consultation, nil
}

// MergeConsultation updates only the SOAP sections the caller filled in.
// Empty sections keep their stored value, so partial saves from different
// moments of the encounter do not wipe each other out.
func (s *Store) MergeConsultation(ctx context.Context, consultation models.Consultation) (models.Consultation, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE consultations
		SET subjective = COALESCE(NULLIF($2, ''), subjective),
			objective  = COALESCE(NULLIF($3, ''), objective),
			assessment = COALESCE(NULLIF($4, ''), assessment),
			plan       = COALESCE(NULLIF($5, ''), plan),
			updated_at = $6
		WHERE consultation_id = $1 AND finalized_at IS NULL
		RETURNING consultation_id, patient_id, entry_id, professional,
			subjective, objective, assessment, plan, created_at, updated_at, finalized_at
	`, consultation.ConsultationID, consultation.Subjective, consultation.Objective,
		consultation.Assessment, consultation.Plan, time.Now().UTC())

	merged, err := scanConsultationRow(row)
	if err != nil {
		if isNoRows(err) {
			return models.Consultation{}, store.ErrRecordNotFound
		}
		return models.Consultation{}, err
	}
	return merged, nil
}

func (s *Store) FinalizeConsultation(ctx context.Context, consultationID string, at time.Time) (models.Consultation, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE consultations
		SET finalized_at = $2, updated_at = $2
		WHERE consultation_id = $1 AND finalized_at IS NULL
		RETURNING consultation_id, patient_id, entry_id, professional,
			subjective, objective, assessment, plan, created_at, updated_at, finalized_at
	`, consultationID, at)

	finalized, err := scanConsultationRow(row)
	if err != nil {
		if isNoRows(err) {
			return models.Consultation{}, store.ErrRecordNotFound
		}
		return models.Consultation{}, err
	}
	return finalized, nil
}

func (s *Store) ListConsultations(ctx context.Context, patientID string) ([]models.Consultation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT consultation_id, patient_id, entry_id, professional,
			subjective, objective, assessment, plan, created_at, updated_at, finalized_at
		FROM consultations
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var consultations []models.Consultation
	for rows.Next() {
		consultation, err := scanConsultationRow(rows)
		if err != nil {
			return nil, err
		}
		consultations = append(consultations, consultation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return consultations, nil
}

func scanConsultationRow(row pgx.Row) (models.Consultation, error) {
	var consultation models.Consultation
	var entryNull, subjNull, objNull, assessNull, planNull sql.NullString
	var finalizedNull sql.NullTime
	if err := row.Scan(&consultation.ConsultationID, &consultation.PatientID, &entryNull,
		&consultation.Professional, &subjNull, &objNull, &assessNull, &planNull,
		&consultation.CreatedAt, &consultation.UpdatedAt, &finalizedNull); err != nil {
		return models.Consultation{}, err
	}
	consultation.EntryID = entryNull.String
	consultation.Subjective = subjNull.String
	consultation.Objective = objNull.String
	consultation.Assessment = assessNull.String
	consultation.Plan = planNull.String
	consultation.FinalizedAt = nullTimePtr(finalizedNull)
	return consultation, nil
}

func (s *Store) RecordVitals(ctx context.Context, vitals models.VitalSigns) (models.VitalSigns, error) {
	vitals.VitalID = uuid.NewString()
	if vitals.RecordedAt.IsZero() {
		vitals.RecordedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO vital_signs (
			vital_id, patient_id, consultation_id, systolic_bp, diastolic_bp,
			heart_rate, respiratory_rate, temperature_c, oxygen_saturation, recorded_at, recorded_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, vitals.VitalID, vitals.PatientID, nullIfEmpty(vitals.ConsultationID),
		vitals.SystolicBP, vitals.DiastolicBP, vitals.HeartRate, vitals.RespiratoryRate,
		vitals.TemperatureC, vitals.OxygenSaturation, vitals.RecordedAt, nullIfEmpty(vitals.RecordedBy))
	if err != nil {
		return models.VitalSigns{}, err
	}
	return vitals, nil
}

func (s *Store) ListVitals(ctx context.Context, patientID string) ([]models.VitalSigns, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT vital_id, patient_id, consultation_id, systolic_bp, diastolic_bp,
			heart_rate, respiratory_rate, temperature_c, oxygen_saturation, recorded_at, recorded_by
		FROM vital_signs
		WHERE patient_id = $1
		ORDER BY recorded_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.VitalSigns
	for rows.Next() {
		var vitals models.VitalSigns
		var consultationNull, recordedByNull sql.NullString
		if err := rows.Scan(&vitals.VitalID, &vitals.PatientID, &consultationNull,
			&vitals.SystolicBP, &vitals.DiastolicBP, &vitals.HeartRate, &vitals.RespiratoryRate,
			&vitals.TemperatureC, &vitals.OxygenSaturation, &vitals.RecordedAt, &recordedByNull); err != nil {
			return nil, err
		}
		vitals.ConsultationID = consultationNull.String
		vitals.RecordedBy = recordedByNull.String
		out = append(out, vitals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) RecordMeasurement(ctx context.Context, measurement models.Measurement) (models.Measurement, error) {
	measurement.MeasurementID = uuid.NewString()
	if measurement.RecordedAt.IsZero() {
		measurement.RecordedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO measurements (
			measurement_id, patient_id, weight_kg, height_cm, head_circum_cm,
			glycemia_mg_dl, recorded_at, recorded_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, measurement.MeasurementID, measurement.PatientID, measurement.WeightKg,
		measurement.HeightCm, measurement.HeadCircumCm, measurement.GlycemiaMgDl,
		measurement.RecordedAt, nullIfEmpty(measurement.RecordedBy))
	if err != nil {
		return models.Measurement{}, err
	}
	return measurement, nil
}

func (s *Store) ListMeasurements(ctx context.Context, patientID string) ([]models.Measurement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT measurement_id, patient_id, weight_kg, height_cm, head_circum_cm,
			glycemia_mg_dl, recorded_at, recorded_by
		FROM measurements
		WHERE patient_id = $1
		ORDER BY recorded_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Measurement
	for rows.Next() {
		var measurement models.Measurement
		var recordedByNull sql.NullString
		if err := rows.Scan(&measurement.MeasurementID, &measurement.PatientID,
			&measurement.WeightKg, &measurement.HeightCm, &measurement.HeadCircumCm,
			&measurement.GlycemiaMgDl, &measurement.RecordedAt, &recordedByNull); err != nil {
			return nil, err
		}
		measurement.RecordedBy = recordedByNull.String
		out = append(out, measurement)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) AddMedication(ctx context.Context, medication models.Medication) (models.Medication, error) {
	medication.MedicationID = uuid.NewString()
	if medication.StartedAt.IsZero() {
		medication.StartedAt = time.Now().UTC()
	}
	medication.Active = true
	_, err := s.pool.Exec(ctx, `
		INSERT INTO medications (
			medication_id, patient_id, name, dose, frequency, route,
			started_at, prescribed_by, active
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,TRUE)
	`, medication.MedicationID, medication.PatientID, medication.Name,
		nullIfEmpty(medication.Dose), nullIfEmpty(medication.Frequency), nullIfEmpty(medication.Route),
		medication.StartedAt, nullIfEmpty(medication.PrescribedBy))
	if err != nil {
		return models.Medication{}, err
	}
	return medication, nil
}

func (s *Store) StopMedication(ctx context.Context, medicationID string, at time.Time) (models.Medication, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE medications
		SET active = FALSE, ended_at = $2
		WHERE medication_id = $1 AND active = TRUE
		RETURNING medication_id, patient_id, name, dose, frequency, route,
			started_at, ended_at, prescribed_by, active
	`, medicationID, at)

	medication, err := scanMedicationRow(row)
	if err != nil {
		if isNoRows(err) {
			return models.Medication{}, store.ErrRecordNotFound
		}
		return models.Medication{}, err
	}
	return medication, nil
}

func (s *Store) ListMedications(ctx context.Context, patientID string, activeOnly bool) ([]models.Medication, error) {
	query := `
		SELECT medication_id, patient_id, name, dose, frequency, route,
			started_at, ended_at, prescribed_by, active
		FROM medications
		WHERE patient_id = $1
	`
	if activeOnly {
		query += " AND active = TRUE"
	}
	query += " ORDER BY started_at DESC"

	rows, err := s.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Medication
	for rows.Next() {
		medication, err := scanMedicationRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, medication)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanMedicationRow(row pgx.Row) (models.Medication, error) {
	var medication models.Medication
	var doseNull, freqNull, routeNull, prescriberNull sql.NullString
	var endedNull sql.NullTime
	if err := row.Scan(&medication.MedicationID, &medication.PatientID, &medication.Name,
		&doseNull, &freqNull, &routeNull, &medication.StartedAt, &endedNull,
		&prescriberNull, &medication.Active); err != nil {
		return models.Medication{}, err
	}
	medication.Dose = doseNull.String
	medication.Frequency = freqNull.String
	medication.Route = routeNull.String
	medication.PrescribedBy = prescriberNull.String
	medication.EndedAt = nullTimePtr(endedNull)
	return medication, nil
}

func (s *Store) AddAllergy(ctx context.Context, allergy models.Allergy) (models.Allergy, error) {
	allergy.AllergyID = uuid.NewString()
	if allergy.RecordedAt.IsZero() {
		allergy.RecordedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO allergies (
			allergy_id, patient_id, substance, category, criticality, reaction, recorded_at, recorded_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, allergy.AllergyID, allergy.PatientID, allergy.Substance,
		nullIfEmpty(allergy.Category), nullIfEmpty(allergy.Criticality), nullIfEmpty(allergy.Reaction),
		allergy.RecordedAt, nullIfEmpty(allergy.RecordedBy))
	if err != nil {
		return models.Allergy{}, err
	}
	return allergy, nil
}

func (s *Store) ListAllergies(ctx context.Context, patientID string) ([]models.Allergy, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT allergy_id, patient_id, substance, category, criticality, reaction, recorded_at, recorded_by
		FROM allergies
		WHERE patient_id = $1
		ORDER BY recorded_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Allergy
	for rows.Next() {
		var allergy models.Allergy
		var categoryNull, critNull, reactionNull, recordedByNull sql.NullString
		if err := rows.Scan(&allergy.AllergyID, &allergy.PatientID, &allergy.Substance,
			&categoryNull, &critNull, &reactionNull, &allergy.RecordedAt, &recordedByNull); err != nil {
			return nil, err
		}
		allergy.Category = categoryNull.String
		allergy.Criticality = critNull.String
		allergy.Reaction = reactionNull.String
		allergy.RecordedBy = recordedByNull.String
		out = append(out, allergy)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
