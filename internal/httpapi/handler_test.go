package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clinicq/ehr-service/internal/authz"
	"clinicq/ehr-service/internal/models"
	"clinicq/ehr-service/internal/queue"
	"clinicq/ehr-service/internal/store"
)

type fakeRepo struct{}

func (fakeRepo) LoadDay(ctx context.Context, day time.Time) ([]models.QueueEntry, error) {
	return nil, nil
}
func (fakeRepo) InsertEntry(ctx context.Context, entry models.QueueEntry) (models.QueueEntry, error) {
	return entry, nil
}
func (fakeRepo) UpdateEntry(ctx context.Context, entry models.QueueEntry) error { return nil }
func (fakeRepo) UpdateEntries(ctx context.Context, entries []models.QueueEntry) error {
	return nil
}
func (fakeRepo) DeleteEntry(ctx context.Context, entryID string) error { return nil }

type fakeAuthStore struct {
	loginFn      func(ctx context.Context, username, password string, expiresAt time.Time) (models.Session, error)
	getSessionFn func(ctx context.Context, sessionID string) (models.Session, error)
}

func (s *fakeAuthStore) Login(ctx context.Context, username, password string, expiresAt time.Time) (models.Session, error) {
	if s.loginFn == nil {
		return models.Session{}, store.ErrLoginFailed
	}
	return s.loginFn(ctx, username, password, expiresAt)
}

func (s *fakeAuthStore) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	if s.getSessionFn == nil {
		return models.Session{}, store.ErrSessionNotFound
	}
	return s.getSessionFn(ctx, sessionID)
}

func (s *fakeAuthStore) GetProfessional(ctx context.Context, professionalID string) (models.Professional, error) {
	return models.Professional{ProfessionalID: professionalID}, nil
}

type fakePatientStore struct {
	getFn  func(ctx context.Context, patientID string) (models.Patient, error)
	listFn func(ctx context.Context, search string, limit int) ([]models.Patient, error)
}

func (s *fakePatientStore) CreatePatient(ctx context.Context, patient models.Patient) (models.Patient, error) {
	patient.PatientID = "patient-created"
	return patient, nil
}

func (s *fakePatientStore) UpdatePatient(ctx context.Context, patient models.Patient) (models.Patient, error) {
	return patient, nil
}

func (s *fakePatientStore) GetPatient(ctx context.Context, patientID string) (models.Patient, error) {
	if s.getFn == nil {
		return models.Patient{}, store.ErrPatientNotFound
	}
	return s.getFn(ctx, patientID)
}

func (s *fakePatientStore) ListPatients(ctx context.Context, search string, limit int) ([]models.Patient, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, search, limit)
}

type fakeClinicalStore struct {
	mergeFn func(ctx context.Context, consultation models.Consultation) (models.Consultation, error)
}

func (s *fakeClinicalStore) CreateConsultation(ctx context.Context, c models.Consultation) (models.Consultation, error) {
	c.ConsultationID = "consultation-created"
	return c, nil
}

func (s *fakeClinicalStore) MergeConsultation(ctx context.Context, c models.Consultation) (models.Consultation, error) {
	if s.mergeFn == nil {
		return c, nil
	}
	return s.mergeFn(ctx, c)
}

func (s *fakeClinicalStore) FinalizeConsultation(ctx context.Context, consultationID string, at time.Time) (models.Consultation, error) {
	finalized := at
	return models.Consultation{ConsultationID: consultationID, FinalizedAt: &finalized}, nil
}

func (s *fakeClinicalStore) ListConsultations(ctx context.Context, patientID string) ([]models.Consultation, error) {
	return nil, nil
}

func (s *fakeClinicalStore) RecordVitals(ctx context.Context, v models.VitalSigns) (models.VitalSigns, error) {
	return v, nil
}

func (s *fakeClinicalStore) ListVitals(ctx context.Context, patientID string) ([]models.VitalSigns, error) {
	return nil, nil
}

func (s *fakeClinicalStore) RecordMeasurement(ctx context.Context, m models.Measurement) (models.Measurement, error) {
	return m, nil
}

func (s *fakeClinicalStore) ListMeasurements(ctx context.Context, patientID string) ([]models.Measurement, error) {
	return nil, nil
}

func (s *fakeClinicalStore) AddMedication(ctx context.Context, m models.Medication) (models.Medication, error) {
	return m, nil
}

func (s *fakeClinicalStore) StopMedication(ctx context.Context, medicationID string, at time.Time) (models.Medication, error) {
	ended := at
	return models.Medication{MedicationID: medicationID, EndedAt: &ended}, nil
}

func (s *fakeClinicalStore) ListMedications(ctx context.Context, patientID string, activeOnly bool) ([]models.Medication, error) {
	return nil, nil
}

func (s *fakeClinicalStore) AddAllergy(ctx context.Context, a models.Allergy) (models.Allergy, error) {
	return a, nil
}

func (s *fakeClinicalStore) ListAllergies(ctx context.Context, patientID string) ([]models.Allergy, error) {
	return nil, nil
}

type fakeReportStore struct {
	summaryFn func(ctx context.Context, day time.Time) (store.DailySummary, error)
}

func (s *fakeReportStore) DailySummary(ctx context.Context, day time.Time) (store.DailySummary, error) {
	if s.summaryFn == nil {
		return store.DailySummary{}, nil
	}
	return s.summaryFn(ctx, day)
}

type fakeEventStore struct{}

func (fakeEventStore) InsertEvent(ctx context.Context, event store.QueueEvent) error { return nil }
func (fakeEventStore) ListEvents(ctx context.Context, after time.Time, limit int) ([]store.QueueEvent, error) {
	return nil, nil
}

type testEnv struct {
	handler *Handler
	queue   *queue.Service
	auth    *fakeAuthStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	svc := queue.NewService(queue.Options{
		Repository: fakeRepo{},
		Authorizer: authz.New(),
	})
	auth := &fakeAuthStore{}
	patients := &fakePatientStore{
		getFn: func(ctx context.Context, patientID string) (models.Patient, error) {
			if patientID != "patient-1" {
				return models.Patient{}, store.ErrPatientNotFound
			}
			return models.Patient{PatientID: "patient-1", Name: "Maria da Silva", CPF: "123.456.789-09"}, nil
		},
	}
	handler := NewHandler(Options{
		Queue:    svc,
		Patients: patients,
		Clinical: &fakeClinicalStore{},
		Auth:     auth,
		Reports:  &fakeReportStore{},
		Events:   fakeEventStore{},
	})
	return &testEnv{handler: handler, queue: svc, auth: auth}
}

func doJSON(t *testing.T, h http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	h.ServeHTTP(recorder, req)
	return recorder
}

func errorCode(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp.Error.Code
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t)
	routes := env.handler.Routes()

	recorder := doJSON(t, routes, http.MethodPost, "/api/login", loginRequest{Username: "", Password: ""})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("empty credentials: got status %d, want 400", recorder.Code)
	}

	recorder = doJSON(t, routes, http.MethodPost, "/api/login", loginRequest{Username: "enfermeira", Password: "wrong"})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("bad credentials: got status %d, want 401", recorder.Code)
	}
	if code := errorCode(t, recorder); code != "login_failed" {
		t.Fatalf("got error code %q, want login_failed", code)
	}
}

func TestLoginReturnsSession(t *testing.T) {
	env := newTestEnv(t)
	env.auth.loginFn = func(ctx context.Context, username, password string, expiresAt time.Time) (models.Session, error) {
		return models.Session{SessionID: "session-1", ProfessionalID: "prof-1", ExpiresAt: expiresAt}, nil
	}

	recorder := doJSON(t, env.handler.Routes(), http.MethodPost, "/api/login", loginRequest{Username: "enfermeira", Password: "secret"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", recorder.Code)
	}
	var session models.Session
	if err := json.Unmarshal(recorder.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.SessionID != "session-1" || session.ProfessionalID != "prof-1" {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)
	env.auth.getSessionFn = func(ctx context.Context, sessionID string) (models.Session, error) {
		if sessionID != "session-1" {
			return models.Session{}, store.ErrSessionNotFound
		}
		return models.Session{SessionID: sessionID, ProfessionalID: "prof-1"}, nil
	}
	protected := AuthMiddleware(env.auth, env.handler.Routes())

	req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	recorder := httptest.NewRecorder()
	protected.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("missing session: got status %d, want 401", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	req.Header.Set("Authorization", "Bearer session-1")
	recorder = httptest.NewRecorder()
	protected.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("valid session: got status %d, want 200", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder = httptest.NewRecorder()
	protected.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("healthz should be public, got status %d", recorder.Code)
	}
}

func TestAdmitUnknownPatient(t *testing.T) {
	env := newTestEnv(t)
	recorder := doJSON(t, env.handler.Routes(), http.MethodPost, "/api/queue", admitRequest{PatientID: "patient-9", Kind: models.KindSpontaneous})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", recorder.Code)
	}
	if code := errorCode(t, recorder); code != "patient_not_found" {
		t.Fatalf("got error code %q, want patient_not_found", code)
	}
}

func TestAdmitCreatesWaitingEntry(t *testing.T) {
	env := newTestEnv(t)
	recorder := doJSON(t, env.handler.Routes(), http.MethodPost, "/api/queue", admitRequest{PatientID: "patient-1", Kind: models.KindSpontaneous})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("got status %d, want 201: %s", recorder.Code, recorder.Body.String())
	}
	var entry models.QueueEntry
	if err := json.Unmarshal(recorder.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry.Status != models.StatusWaiting {
		t.Fatalf("got status %q, want waiting", entry.Status)
	}
	if entry.PatientName != "Maria da Silva" {
		t.Fatalf("patient snapshot not copied onto entry: %+v", entry)
	}
}

func TestAdmitScheduledRequiresSlot(t *testing.T) {
	env := newTestEnv(t)
	recorder := doJSON(t, env.handler.Routes(), http.MethodPost, "/api/queue", admitRequest{PatientID: "patient-1", Kind: models.KindScheduled})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", recorder.Code)
	}
	if code := errorCode(t, recorder); code != "invalid_entry" {
		t.Fatalf("got error code %q, want invalid_entry", code)
	}
}

func TestCallNextEmptyQueue(t *testing.T) {
	env := newTestEnv(t)
	recorder := doJSON(t, env.handler.Routes(), http.MethodPost, "/api/queue/actions/call-next", nil)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("got status %d, want 409", recorder.Code)
	}
	if code := errorCode(t, recorder); code != "queue_empty" {
		t.Fatalf("got error code %q, want queue_empty", code)
	}
}

func TestEntryActionIllegalTransition(t *testing.T) {
	env := newTestEnv(t)
	entry, err := env.queue.Admit(context.Background(), queue.AdmitInput{PatientID: "patient-1", PatientName: "Maria da Silva", Kind: models.KindSpontaneous})
	if err != nil {
		t.Fatalf("admit: %v", err)
	}

	recorder := doJSON(t, env.handler.Routes(), http.MethodPost, "/api/queue/"+entry.EntryID+"/actions/finalize", nil)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("got status %d, want 409", recorder.Code)
	}
	if code := errorCode(t, recorder); code != "illegal_transition" {
		t.Fatalf("got error code %q, want illegal_transition", code)
	}
}

func TestListeningFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	routes := env.handler.Routes()
	entry, err := env.queue.Admit(context.Background(), queue.AdmitInput{PatientID: "patient-1", PatientName: "Maria da Silva", Kind: models.KindSpontaneous})
	if err != nil {
		t.Fatalf("admit: %v", err)
	}

	recorder := doJSON(t, routes, http.MethodPost, "/api/queue/"+entry.EntryID+"/actions/start-listening", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("start-listening: got status %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = doJSON(t, routes, http.MethodPost, "/api/queue/"+entry.EntryID+"/actions/finish-listening", triageRequest{Risk: models.RiskHigh})
	if recorder.Code != http.StatusOK {
		t.Fatalf("finish-listening: got status %d: %s", recorder.Code, recorder.Body.String())
	}
	var triaged models.QueueEntry
	if err := json.Unmarshal(recorder.Body.Bytes(), &triaged); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if !triaged.ListeningDone || triaged.Risk != models.RiskHigh {
		t.Fatalf("triage not recorded: %+v", triaged)
	}
	if triaged.Status != models.StatusWaiting {
		t.Fatalf("got status %q, want waiting after listening", triaged.Status)
	}
}

func TestRemoveRequiresCreator(t *testing.T) {
	env := newTestEnv(t)
	env.auth.getSessionFn = func(ctx context.Context, sessionID string) (models.Session, error) {
		switch sessionID {
		case "session-creator":
			return models.Session{SessionID: sessionID, ProfessionalID: "prof-1"}, nil
		case "session-other":
			return models.Session{SessionID: sessionID, ProfessionalID: "prof-2"}, nil
		}
		return models.Session{}, store.ErrSessionNotFound
	}
	protected := AuthMiddleware(env.auth, env.handler.Routes())

	entry, err := env.queue.Admit(context.Background(), queue.AdmitInput{PatientID: "patient-1", PatientName: "Maria da Silva", Kind: models.KindSpontaneous, CreatedBy: "prof-1"})
	if err != nil {
		t.Fatalf("admit: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/queue/"+entry.EntryID, nil)
	req.Header.Set("Authorization", "Bearer session-other")
	recorder := httptest.NewRecorder()
	protected.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("non-creator delete: got status %d, want 403", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/queue/"+entry.EntryID, nil)
	req.Header.Set("Authorization", "Bearer session-creator")
	recorder = httptest.NewRecorder()
	protected.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("creator delete: got status %d, want 204", recorder.Code)
	}
}

func TestQueueListFilters(t *testing.T) {
	env := newTestEnv(t)
	routes := env.handler.Routes()
	ctx := context.Background()
	first, err := env.queue.Admit(ctx, queue.AdmitInput{PatientID: "patient-1", PatientName: "Maria da Silva", Kind: models.KindSpontaneous})
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if _, err := env.queue.Admit(ctx, queue.AdmitInput{PatientID: "patient-1", PatientName: "Maria da Silva", Kind: models.KindSpontaneous}); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if _, err := env.queue.CallNext(ctx, "prof-1"); err != nil {
		t.Fatalf("call next: %v", err)
	}
	if _, err := env.queue.Finalize(ctx, first.EntryID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	recorder := doJSON(t, routes, http.MethodGet, "/api/queue", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", recorder.Code)
	}
	var entries []models.QueueEntry
	if err := json.Unmarshal(recorder.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != models.StatusWaiting {
		t.Fatalf("default list should hold only waiting entries: %+v", entries)
	}

	recorder = doJSON(t, routes, http.MethodGet, "/api/queue?status=completed", nil)
	if err := json.Unmarshal(recorder.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 1 || entries[0].EntryID != first.EntryID {
		t.Fatalf("status filter should surface the finalized entry: %+v", entries)
	}

	recorder = doJSON(t, routes, http.MethodGet, "/api/queue?sort=alphabetic", nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("bad sort mode: got status %d, want 400", recorder.Code)
	}
}

func TestQueueListEmptyBody(t *testing.T) {
	env := newTestEnv(t)

	recorder := doJSON(t, env.handler.Routes(), http.MethodGet, "/api/queue", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", recorder.Code)
	}
	if body := strings.TrimSpace(recorder.Body.String()); body != "[]" {
		t.Fatalf("empty listing must serialize as [], got %q", body)
	}

	recorder = doJSON(t, env.handler.Routes(), http.MethodGet, "/api/queue?search=ninguem", nil)
	if body := strings.TrimSpace(recorder.Body.String()); body != "[]" {
		t.Fatalf("empty search result must serialize as [], got %q", body)
	}
}

func TestConsultationMerge(t *testing.T) {
	env := newTestEnv(t)
	recorder := doJSON(t, env.handler.Routes(), http.MethodPut, "/api/consultations/consultation-1", models.Consultation{Subjective: "dor de cabeça"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", recorder.Code, recorder.Body.String())
	}
	var merged models.Consultation
	if err := json.Unmarshal(recorder.Body.Bytes(), &merged); err != nil {
		t.Fatalf("decode consultation: %v", err)
	}
	if merged.ConsultationID != "consultation-1" || merged.Subjective != "dor de cabeça" {
		t.Fatalf("unexpected merge result %+v", merged)
	}
}

func TestDailyReport(t *testing.T) {
	env := newTestEnv(t)
	reports := &fakeReportStore{
		summaryFn: func(ctx context.Context, day time.Time) (store.DailySummary, error) {
			return store.DailySummary{Day: day.Format("2006-01-02"), Admitted: 7, Completed: 5}, nil
		},
	}
	env.handler.reports = reports

	recorder := doJSON(t, env.handler.Routes(), http.MethodGet, "/api/reports/daily?day=2026-08-31", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", recorder.Code)
	}
	var summary store.DailySummary
	if err := json.Unmarshal(recorder.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Day != "2026-08-31" || summary.Admitted != 7 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	recorder = doJSON(t, env.handler.Routes(), http.MethodGet, "/api/reports/daily?day=31/08/2026", nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("bad day format: got status %d, want 400", recorder.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{IPPerMinute: 1, IPBurst: 1, UserPerMinute: 1000, UserBurst: 1000})
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("first request: got status %d, want 200", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got status %d, want 429", recorder.Code)
	}

	other := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, other)
	if recorder.Code != http.StatusOK {
		t.Fatalf("other client: got status %d, want 200", recorder.Code)
	}
}
