package httpapi

import (
	"encoding/json"
	"errors"
	"expvar"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clinicq/ehr-service/internal/models"
	"clinicq/ehr-service/internal/queue"
	"clinicq/ehr-service/internal/store"
)

type Handler struct {
	queue    *queue.Service
	patients store.PatientStore
	clinical store.ClinicalStore
	auth     store.AuthStore
	reports  store.ReportStore
	events   store.EventStore

	sessionTTL time.Duration
	listLimit  int
}

type Options struct {
	Queue      *queue.Service
	Patients   store.PatientStore
	Clinical   store.ClinicalStore
	Auth       store.AuthStore
	Reports    store.ReportStore
	Events     store.EventStore
	SessionTTL time.Duration
	ListLimit  int
}

func NewHandler(options Options) *Handler {
	ttl := options.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	limit := options.ListLimit
	if limit <= 0 {
		limit = 50
	}
	return &Handler{
		queue:      options.Queue,
		patients:   options.Patients,
		clinical:   options.Clinical,
		auth:       options.Auth,
		reports:    options.Reports,
		events:     options.Events,
		sessionTTL: ttl,
		listLimit:  limit,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/login", h.handleLogin)
	mux.HandleFunc("/api/queue", h.handleQueue)
	mux.HandleFunc("/api/queue/actions/call-next", h.handleCallNext)
	mux.HandleFunc("/api/queue/stats", h.handleQueueStats)
	mux.HandleFunc("/api/queue/events", h.handleQueueEvents)
	mux.HandleFunc("/api/queue/", h.handleQueueEntry)
	mux.HandleFunc("/api/patients", h.handlePatients)
	mux.HandleFunc("/api/patients/", h.handlePatient)
	mux.HandleFunc("/api/consultations/", h.handleConsultation)
	mux.HandleFunc("/api/medications/", h.handleMedicationAction)
	mux.HandleFunc("/api/reports/daily", h.handleDailyReport)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	session, err := h.auth.Login(r.Context(), req.Username, req.Password, time.Now().UTC().Add(h.sessionTTL))
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type admitRequest struct {
	PatientID    string `json:"patient_id"`
	Kind         string `json:"kind"`
	ScheduledAt  string `json:"scheduled_at"`
	Priority     string `json:"priority"`
	ServiceType  string `json:"service_type"`
	Team         string `json:"team"`
	Professional string `json:"professional"`
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleQueueList(w, r)
	case http.MethodPost:
		h.handleAdmit(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleQueueList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	criteria := queue.Criteria{
		Search:         strings.TrimSpace(query.Get("search")),
		Team:           strings.TrimSpace(query.Get("team")),
		Professional:   strings.TrimSpace(query.Get("professional")),
		OnlyUnfinished: query.Get("only_unfinished") == "true",
		MineOnly:       query.Get("mine") == "true",
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		criteria.Statuses = splitCSV(raw)
	}
	if raw := strings.TrimSpace(query.Get("service_type")); raw != "" {
		criteria.ServiceTypes = splitCSV(raw)
	}

	sortMode := strings.TrimSpace(query.Get("sort"))
	switch sortMode {
	case "", queue.SortDefault, queue.SortPriority, queue.SortName:
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "sort must be default, priority, or name")
		return
	}

	requester := professionalFromContext(r.Context())
	entries := h.queue.List(criteria, sortMode, requester)
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleAdmit(w http.ResponseWriter, r *http.Request) {
	var req admitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.Kind = strings.TrimSpace(req.Kind)
	if req.PatientID == "" || req.Kind == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "patient_id and kind are required")
		return
	}

	var scheduledAt *time.Time
	if raw := strings.TrimSpace(req.ScheduledAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "scheduled_at must be RFC3339 timestamp")
			return
		}
		scheduledAt = &parsed
	}

	patient, err := h.patients.GetPatient(r.Context(), req.PatientID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	entry, err := h.queue.Admit(r.Context(), queue.AdmitInput{
		PatientID:    patient.PatientID,
		PatientName:  patient.Name,
		PatientCPF:   patient.CPF,
		PatientCNS:   patient.CNS,
		PatientBirth: patient.BirthDate,
		Kind:         req.Kind,
		ScheduledAt:  scheduledAt,
		Priority:     strings.TrimSpace(req.Priority),
		ServiceType:  strings.TrimSpace(req.ServiceType),
		Team:         strings.TrimSpace(req.Team),
		Professional: strings.TrimSpace(req.Professional),
		CreatedBy:    professionalFromContext(r.Context()),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleCallNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	entry, err := h.queue.CallNext(r.Context(), professionalFromContext(r.Context()))
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.queue.Stats())
}

func (h *Handler) handleQueueEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var after time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("after")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "after must be RFC3339 timestamp")
			return
		}
		after = parsed
	}
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.events.ListEvents(r.Context(), after, limit)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleQueueEntry(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1:
		entryID := parts[0]
		switch r.Method {
		case http.MethodGet:
			h.handleGetEntry(w, r, entryID)
		case http.MethodDelete:
			h.handleRemoveEntry(w, r, entryID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case len(parts) == 3 && parts[1] == "actions":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleEntryAction(w, r, parts[0], parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetEntry(w http.ResponseWriter, r *http.Request, entryID string) {
	entry, err := h.queue.Get(entryID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleRemoveEntry(w http.ResponseWriter, r *http.Request, entryID string) {
	if err := h.queue.Remove(r.Context(), entryID, professionalFromContext(r.Context())); err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type triageRequest struct {
	Risk string `json:"risk"`
}

func (h *Handler) handleEntryAction(w http.ResponseWriter, r *http.Request, entryID, action string) {
	var entry models.QueueEntry
	var err error
	switch action {
	case "finalize":
		entry, err = h.queue.Finalize(r.Context(), entryID)
	case "cancel":
		entry, err = h.queue.Cancel(r.Context(), entryID)
	case "no-show":
		entry, err = h.queue.MarkNoShow(r.Context(), entryID)
	case "return":
		entry, err = h.queue.MarkReturned(r.Context(), entryID)
	case "start-listening":
		entry, err = h.queue.StartListening(r.Context(), entryID)
	case "finish-listening":
		var req triageRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		entry, err = h.queue.FinishListening(r.Context(), entryID, strings.TrimSpace(req.Risk))
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	day := time.Now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("day")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "day must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	summary, err := h.reports.DailySummary(r.Context(), day)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrEntryNotFound):
		return http.StatusNotFound, "entry_not_found", "queue entry not found"
	case errors.Is(err, store.ErrPatientNotFound):
		return http.StatusNotFound, "patient_not_found", "patient not found"
	case errors.Is(err, store.ErrRecordNotFound):
		return http.StatusNotFound, "record_not_found", "record not found"
	case errors.Is(err, store.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition", "entry status does not allow this action"
	case errors.Is(err, store.ErrEmptyQueue):
		return http.StatusConflict, "queue_empty", "no waiting entries"
	case errors.Is(err, store.ErrInvalidEntry):
		return http.StatusBadRequest, "invalid_entry", "entry data violates an invariant"
	case errors.Is(err, store.ErrAccessDenied):
		return http.StatusForbidden, "access_denied", "access denied"
	case errors.Is(err, store.ErrLoginFailed):
		return http.StatusUnauthorized, "login_failed", "invalid credentials"
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusUnauthorized, "unauthorized", "invalid session"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
