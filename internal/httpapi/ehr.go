package httpapi

import (
	"net/http"
	"strings"
	"time"

	"clinicq/ehr-service/internal/models"
)

func (h *Handler) handlePatients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		search := strings.TrimSpace(r.URL.Query().Get("search"))
		patients, err := h.patients.ListPatients(r.Context(), search, h.listLimit)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, patients)
	case http.MethodPost:
		var patient models.Patient
		if !decodeJSON(w, r, &patient) {
			return
		}
		patient.Name = strings.TrimSpace(patient.Name)
		if patient.Name == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
			return
		}
		created, err := h.patients.CreatePatient(r.Context(), patient)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handlePatient(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/patients/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1:
		h.handlePatientByID(w, r, parts[0])
	case len(parts) == 2:
		h.handlePatientResource(w, r, parts[0], parts[1])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handlePatientByID(w http.ResponseWriter, r *http.Request, patientID string) {
	switch r.Method {
	case http.MethodGet:
		patient, err := h.patients.GetPatient(r.Context(), patientID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, patient)
	case http.MethodPut:
		var patient models.Patient
		if !decodeJSON(w, r, &patient) {
			return
		}
		patient.PatientID = patientID
		patient.Name = strings.TrimSpace(patient.Name)
		if patient.Name == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
			return
		}
		updated, err := h.patients.UpdatePatient(r.Context(), patient)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handlePatientResource(w http.ResponseWriter, r *http.Request, patientID, resource string) {
	switch resource {
	case "consultations":
		h.handleConsultations(w, r, patientID)
	case "vitals":
		h.handleVitals(w, r, patientID)
	case "measurements":
		h.handleMeasurements(w, r, patientID)
	case "medications":
		h.handleMedications(w, r, patientID)
	case "allergies":
		h.handleAllergies(w, r, patientID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleConsultations(w http.ResponseWriter, r *http.Request, patientID string) {
	switch r.Method {
	case http.MethodGet:
		consultations, err := h.clinical.ListConsultations(r.Context(), patientID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, consultations)
	case http.MethodPost:
		var consultation models.Consultation
		if !decodeJSON(w, r, &consultation) {
			return
		}
		consultation.PatientID = patientID
		if consultation.Professional == "" {
			consultation.Professional = professionalFromContext(r.Context())
		}
		created, err := h.clinical.CreateConsultation(r.Context(), consultation)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleConsultation serves /api/consultations/{id} updates and the
// finalize action. Merges touch only the SOAP sections the payload carries.
func (h *Handler) handleConsultation(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/consultations/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var consultation models.Consultation
		if !decodeJSON(w, r, &consultation) {
			return
		}
		consultation.ConsultationID = parts[0]
		updated, err := h.clinical.MergeConsultation(r.Context(), consultation)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case len(parts) == 3 && parts[1] == "actions" && parts[2] == "finalize":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		finalized, err := h.clinical.FinalizeConsultation(r.Context(), parts[0], time.Now().UTC())
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, finalized)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleVitals(w http.ResponseWriter, r *http.Request, patientID string) {
	switch r.Method {
	case http.MethodGet:
		vitals, err := h.clinical.ListVitals(r.Context(), patientID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, vitals)
	case http.MethodPost:
		var vitals models.VitalSigns
		if !decodeJSON(w, r, &vitals) {
			return
		}
		vitals.PatientID = patientID
		if vitals.RecordedBy == "" {
			vitals.RecordedBy = professionalFromContext(r.Context())
		}
		created, err := h.clinical.RecordVitals(r.Context(), vitals)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleMeasurements(w http.ResponseWriter, r *http.Request, patientID string) {
	switch r.Method {
	case http.MethodGet:
		measurements, err := h.clinical.ListMeasurements(r.Context(), patientID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, measurements)
	case http.MethodPost:
		var measurement models.Measurement
		if !decodeJSON(w, r, &measurement) {
			return
		}
		measurement.PatientID = patientID
		if measurement.RecordedBy == "" {
			measurement.RecordedBy = professionalFromContext(r.Context())
		}
		created, err := h.clinical.RecordMeasurement(r.Context(), measurement)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleMedications(w http.ResponseWriter, r *http.Request, patientID string) {
	switch r.Method {
	case http.MethodGet:
		activeOnly := r.URL.Query().Get("active") == "true"
		medications, err := h.clinical.ListMedications(r.Context(), patientID, activeOnly)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, medications)
	case http.MethodPost:
		var medication models.Medication
		if !decodeJSON(w, r, &medication) {
			return
		}
		medication.PatientID = patientID
		medication.Name = strings.TrimSpace(medication.Name)
		if medication.Name == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
			return
		}
		if medication.PrescribedBy == "" {
			medication.PrescribedBy = professionalFromContext(r.Context())
		}
		created, err := h.clinical.AddMedication(r.Context(), medication)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleMedicationAction(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/medications/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[1] != "actions" || parts[2] != "stop" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	stopped, err := h.clinical.StopMedication(r.Context(), parts[0], time.Now().UTC())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, stopped)
}

func (h *Handler) handleAllergies(w http.ResponseWriter, r *http.Request, patientID string) {
	switch r.Method {
	case http.MethodGet:
		allergies, err := h.clinical.ListAllergies(r.Context(), patientID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, allergies)
	case http.MethodPost:
		var allergy models.Allergy
		if !decodeJSON(w, r, &allergy) {
			return
		}
		allergy.PatientID = patientID
		allergy.Substance = strings.TrimSpace(allergy.Substance)
		if allergy.Substance == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "substance is required")
			return
		}
		if allergy.RecordedBy == "" {
			allergy.RecordedBy = professionalFromContext(r.Context())
		}
		created, err := h.clinical.AddAllergy(r.Context(), allergy)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
