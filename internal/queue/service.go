package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinicq/ehr-service/internal/models"
	"clinicq/ehr-service/internal/store"
)

// Authorizer answers the two access questions the queue needs: whether a
// requester may delete an entry (creator-only policy) and whether an entry
// is assigned to a requester (mine-only filter).
type Authorizer interface {
	CanDelete(ctx context.Context, requesterID string, entry models.QueueEntry) (bool, error)
	AssignedTo(requesterID string, entry models.QueueEntry) bool
}

// Notifier receives change events after a mutation commits.
type Notifier interface {
	Publish(eventType string, entry models.QueueEntry)
}

// Event types handed to the Notifier.
const (
	EventAdmitted  = "entry.admitted"
	EventCalled    = "entry.called"
	EventFinalized = "entry.finalized"
	EventCancelled = "entry.cancelled"
	EventNoShow    = "entry.no_show"
	EventReturned  = "entry.returned"
	EventListening = "entry.listening"
	EventTriaged   = "entry.triaged"
	EventRemoved   = "entry.removed"
)

// Service holds the authoritative queue for one service period. Mutations
// are serialized behind the write lock and hit the repository before the
// in-memory collection, so a failed write leaves the day unchanged. Reads
// take the read lock and work on copies.
type Service struct {
	mu      sync.RWMutex
	entries map[string]models.QueueEntry
	nextSeq int64

	repo   store.EntryRepository
	auth   Authorizer
	notify Notifier
	now    func() time.Time
}

type Options struct {
	Repository store.EntryRepository
	Authorizer Authorizer
	Notifier   Notifier
	Now        func() time.Time
}

func NewService(options Options) *Service {
	now := options.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		entries: make(map[string]models.QueueEntry),
		nextSeq: 1,
		repo:    options.Repository,
		auth:    options.Authorizer,
		notify:  options.Notifier,
		now:     now,
	}
}

// Load replaces the in-memory collection with the stored entries for day.
func (s *Service) Load(ctx context.Context, day time.Time) error {
	entries, err := s.repo.LoadDay(ctx, day)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]models.QueueEntry, len(entries))
	s.nextSeq = 1
	for _, entry := range entries {
		s.entries[entry.EntryID] = entry
		if entry.Seq >= s.nextSeq {
			s.nextSeq = entry.Seq + 1
		}
	}
	return nil
}

// List returns a filtered, sorted snapshot. When criteria.MineOnly is set
// and no predicate was injected, the authorizer's assignment rule is used
// for the given requester.
func (s *Service) List(criteria Criteria, sortMode, requesterID string) []models.QueueEntry {
	if criteria.MineOnly && criteria.Mine == nil && s.auth != nil {
		criteria.Mine = func(entry models.QueueEntry) bool {
			return s.auth.AssignedTo(requesterID, entry)
		}
	}
	return SortEntries(Filter(s.snapshot(), criteria), sortMode)
}

func (s *Service) snapshot() []models.QueueEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.QueueEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry)
	}
	return out
}

func (s *Service) Get(entryID string) (models.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return models.QueueEntry{}, store.ErrEntryNotFound
	}
	return entry, nil
}

// AdmitInput carries intake data for a new entry.
type AdmitInput struct {
	PatientID    string
	PatientName  string
	PatientCPF   string
	PatientCNS   string
	PatientBirth string
	Kind         string
	ScheduledAt  *time.Time
	Priority     string
	ServiceType  string
	Team         string
	Professional string
	CreatedBy    string
}

// Admit creates a waiting entry stamped with the current time and places it
// at the back of the queue positions.
func (s *Service) Admit(ctx context.Context, input AdmitInput) (models.QueueEntry, error) {
	priority := input.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := models.QueueEntry{
		EntryID:      uuid.NewString(),
		Seq:          s.nextSeq,
		PatientID:    input.PatientID,
		PatientName:  input.PatientName,
		PatientCPF:   input.PatientCPF,
		PatientCNS:   input.PatientCNS,
		PatientBirth: input.PatientBirth,
		ArrivedAt:    s.now(),
		ScheduledAt:  input.ScheduledAt,
		Kind:         input.Kind,
		Status:       models.StatusWaiting,
		Priority:     priority,
		ServiceType:  input.ServiceType,
		Team:         input.Team,
		Professional: input.Professional,
		Position:     s.maxPositionLocked() + 1,
		CreatedBy:    input.CreatedBy,
	}
	if err := entry.Validate(); err != nil {
		return models.QueueEntry{}, fmt.Errorf("%w: %w", store.ErrInvalidEntry, err)
	}

	stored, err := s.repo.InsertEntry(ctx, entry)
	if err != nil {
		return models.QueueEntry{}, err
	}
	s.entries[stored.EntryID] = stored
	s.nextSeq++
	s.publish(EventAdmitted, stored)
	return stored, nil
}

// CallNext moves the top waiting entry to in_progress and assigns it to
// professional. Any entry still in_progress is demoted to completed first,
// keeping the single active slot invariant. Both updates are persisted
// together before the collection changes.
func (s *Service) CallNext(ctx context.Context, professional string) (models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.pickNextLocked()
	if !ok {
		return models.QueueEntry{}, store.ErrEmptyQueue
	}

	var updates []models.QueueEntry
	var demoted *models.QueueEntry
	for _, entry := range s.entries {
		if entry.Status == models.StatusInProgress {
			entry.Status = models.StatusCompleted
			demoted = &entry
			updates = append(updates, entry)
			break
		}
	}

	next.Status = models.StatusInProgress
	if professional != "" {
		next.Professional = professional
	}
	updates = append(updates, next)

	if err := s.repo.UpdateEntries(ctx, updates); err != nil {
		return models.QueueEntry{}, err
	}
	if demoted != nil {
		s.entries[demoted.EntryID] = *demoted
		s.publish(EventFinalized, *demoted)
	}
	s.entries[next.EntryID] = next
	s.publish(EventCalled, next)
	return next, nil
}

// pickNextLocked ranks waiting entries by priority first, then by the
// default arrival ordering.
func (s *Service) pickNextLocked() (models.QueueEntry, bool) {
	var best models.QueueEntry
	found := false
	for _, entry := range s.entries {
		if entry.Status != models.StatusWaiting {
			continue
		}
		if !found {
			best = entry
			found = true
			continue
		}
		bp := models.PriorityRank(best.Priority)
		ep := models.PriorityRank(entry.Priority)
		if ep > bp || (ep == bp && lessDefault(entry, best)) {
			best = entry
		}
	}
	return best, found
}

func (s *Service) Finalize(ctx context.Context, entryID string) (models.QueueEntry, error) {
	return s.transition(ctx, entryID, ActionFinalize, EventFinalized, func(entry *models.QueueEntry) {
		entry.Status = models.StatusCompleted
	})
}

func (s *Service) Cancel(ctx context.Context, entryID string) (models.QueueEntry, error) {
	return s.transition(ctx, entryID, ActionCancel, EventCancelled, func(entry *models.QueueEntry) {
		entry.Status = models.StatusCancelled
	})
}

// MarkNoShow flags exactly the targeted entry. Other entries of the same
// patient keep their status.
func (s *Service) MarkNoShow(ctx context.Context, entryID string) (models.QueueEntry, error) {
	return s.transition(ctx, entryID, ActionNoShow, EventNoShow, func(entry *models.QueueEntry) {
		entry.Status = models.StatusNoShow
	})
}

func (s *Service) StartListening(ctx context.Context, entryID string) (models.QueueEntry, error) {
	return s.transition(ctx, entryID, ActionStartListening, EventListening, func(entry *models.QueueEntry) {
		entry.Status = models.StatusInitialListening
	})
}

// FinishListening records the triage outcome and returns the entry to the
// waiting pool, where the recorded risk participates in the ordering
// tie-break.
func (s *Service) FinishListening(ctx context.Context, entryID, risk string) (models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Existence and transition errors take precedence over the risk value.
	current, ok := s.entries[entryID]
	if !ok {
		return models.QueueEntry{}, store.ErrEntryNotFound
	}
	if !ValidTransition(ActionFinishListening, current.Status) {
		return models.QueueEntry{}, store.ErrIllegalTransition
	}
	switch risk {
	case models.RiskLow, models.RiskMedium, models.RiskHigh:
	default:
		return models.QueueEntry{}, fmt.Errorf("%w: %w", store.ErrInvalidEntry, models.ErrUnknownRisk)
	}
	return s.transitionLocked(ctx, entryID, ActionFinishListening, EventTriaged, func(entry *models.QueueEntry) {
		entry.Status = models.StatusWaiting
		entry.ListeningDone = true
		entry.Risk = risk
	})
}

// MarkReturned re-admits a no-show at the back of the current waiting set.
// Effective time fields stay untouched, so the default ordering still ranks
// the entry by its original slot; only the position hint is refreshed.
func (s *Service) MarkReturned(ctx context.Context, entryID string) (models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maxPos := 0
	for _, entry := range s.entries {
		if entry.Status == models.StatusWaiting && entry.Position > maxPos {
			maxPos = entry.Position
		}
	}
	return s.transitionLocked(ctx, entryID, ActionReturn, EventReturned, func(entry *models.QueueEntry) {
		entry.Status = models.StatusWaiting
		entry.Position = maxPos + 1
	})
}

func (s *Service) transition(ctx context.Context, entryID, action, eventType string, apply func(*models.QueueEntry)) (models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(ctx, entryID, action, eventType, apply)
}

func (s *Service) transitionLocked(ctx context.Context, entryID, action, eventType string, apply func(*models.QueueEntry)) (models.QueueEntry, error) {
	entry, ok := s.entries[entryID]
	if !ok {
		return models.QueueEntry{}, store.ErrEntryNotFound
	}
	if !ValidTransition(action, entry.Status) {
		return models.QueueEntry{}, store.ErrIllegalTransition
	}

	apply(&entry)
	if err := s.repo.UpdateEntry(ctx, entry); err != nil {
		return models.QueueEntry{}, err
	}
	s.entries[entry.EntryID] = entry
	s.publish(eventType, entry)
	return entry, nil
}

// Remove deletes an entry. The authorizer enforces the creator-only delete
// policy before anything is touched.
func (s *Service) Remove(ctx context.Context, entryID, requesterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryID]
	if !ok {
		return store.ErrEntryNotFound
	}
	allowed, err := s.auth.CanDelete(ctx, requesterID, entry)
	if err != nil {
		return err
	}
	if !allowed {
		return store.ErrAccessDenied
	}
	if err := s.repo.DeleteEntry(ctx, entryID); err != nil {
		return err
	}
	delete(s.entries, entryID)
	s.publish(EventRemoved, entry)
	return nil
}

// Stats counts entries per status for the loaded day.
func (s *Service) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := make(map[string]int)
	for _, entry := range s.entries {
		stats[entry.Status]++
	}
	return stats
}

func (s *Service) maxPositionLocked() int {
	max := 0
	for _, entry := range s.entries {
		if entry.Position > max {
			max = entry.Position
		}
	}
	return max
}

func (s *Service) publish(eventType string, entry models.QueueEntry) {
	if s.notify != nil {
		s.notify.Publish(eventType, entry)
	}
}
