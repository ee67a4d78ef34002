package queue

import (
	"sync"
	"testing"
	"time"

	"clinicq/ehr-service/internal/models"
)

func entryAt(id string, seq int64, kind string, arrived time.Time, scheduled *time.Time) models.QueueEntry {
	return models.QueueEntry{
		EntryID:     id,
		Seq:         seq,
		PatientName: id,
		ArrivedAt:   arrived,
		ScheduledAt: scheduled,
		Kind:        kind,
		Status:      models.StatusWaiting,
		Priority:    models.PriorityNormal,
	}
}

func ids(entries []models.QueueEntry) []string {
	out := make([]string, len(entries))
	for i, entry := range entries {
		out[i] = entry.EntryID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOrderEffectiveTimeGovernsOverPriority(t *testing.T) {
	nine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	eightThirty := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

	scheduled := entryAt("a", 1, models.KindScheduled, time.Date(2026, 3, 2, 8, 45, 0, 0, time.UTC), &nine)
	scheduled.Priority = models.PriorityUrgent
	walkIn := entryAt("b", 2, models.KindSpontaneous, eightThirty, nil)

	got := ids(Order([]models.QueueEntry{scheduled, walkIn}))
	if !equalIDs(got, []string{"b", "a"}) {
		t.Fatalf("expected time to govern regardless of priority, got %v", got)
	}
}

func TestOrderEqualTimeRiskDescending(t *testing.T) {
	nine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	low := entryAt("low", 1, models.KindSpontaneous, nine, nil)
	low.ListeningDone = true
	low.Risk = models.RiskLow
	high := entryAt("high", 2, models.KindSpontaneous, nine, nil)
	high.ListeningDone = true
	high.Risk = models.RiskHigh

	got := ids(Order([]models.QueueEntry{low, high}))
	if !equalIDs(got, []string{"high", "low"}) {
		t.Fatalf("expected [high low], got %v", got)
	}
}

func TestOrderRiskIgnoredWithoutListening(t *testing.T) {
	nine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	first := entryAt("first", 1, models.KindSpontaneous, nine, nil)
	second := entryAt("second", 2, models.KindSpontaneous, nine, nil)
	second.ListeningDone = true
	second.Risk = models.RiskHigh

	// Only one side is triaged, so the sequence tie-break decides.
	got := ids(Order([]models.QueueEntry{second, first}))
	if !equalIDs(got, []string{"first", "second"}) {
		t.Fatalf("expected sequence tie-break, got %v", got)
	}
}

func TestOrderScheduledFallsBackToArrival(t *testing.T) {
	entry := entryAt("a", 1, models.KindScheduled, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), nil)
	other := entryAt("b", 2, models.KindSpontaneous, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), nil)

	got := ids(Order([]models.QueueEntry{entry, other}))
	if !equalIDs(got, []string{"b", "a"}) {
		t.Fatalf("expected arrival fallback for scheduled entry without slot, got %v", got)
	}
}

func TestOrderDeterministicAcrossPermutations(t *testing.T) {
	nine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	set := []models.QueueEntry{
		entryAt("a", 3, models.KindSpontaneous, nine, nil),
		entryAt("b", 1, models.KindSpontaneous, nine.Add(-time.Minute), nil),
		entryAt("c", 2, models.KindSpontaneous, nine, nil),
		entryAt("d", 4, models.KindSpontaneous, nine.Add(time.Minute), nil),
	}

	want := ids(Order(set))
	permutations := [][]int{
		{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1},
	}
	for _, perm := range permutations {
		shuffled := make([]models.QueueEntry, len(set))
		for i, idx := range perm {
			shuffled[i] = set[idx]
		}
		if got := ids(Order(shuffled)); !equalIDs(got, want) {
			t.Fatalf("permutation %v produced %v, want %v", perm, got, want)
		}
	}
}

func TestOrderIdempotent(t *testing.T) {
	nine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	set := []models.QueueEntry{
		entryAt("a", 2, models.KindSpontaneous, nine, nil),
		entryAt("b", 1, models.KindSpontaneous, nine, nil),
	}
	once := Order(set)
	twice := Order(once)
	if !equalIDs(ids(once), ids(twice)) {
		t.Fatalf("order not idempotent: %v vs %v", ids(once), ids(twice))
	}
}

func TestSortEntriesPriorityMode(t *testing.T) {
	nine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	normal := entryAt("normal", 1, models.KindSpontaneous, nine, nil)
	normal.Position = 1
	urgent := entryAt("urgent", 2, models.KindSpontaneous, nine.Add(time.Hour), nil)
	urgent.Priority = models.PriorityUrgent
	urgent.Position = 5
	high := entryAt("high-a", 3, models.KindSpontaneous, nine, nil)
	high.Priority = models.PriorityHigh
	high.Position = 4
	highEarly := entryAt("high-b", 4, models.KindSpontaneous, nine, nil)
	highEarly.Priority = models.PriorityHigh
	highEarly.Position = 2

	got := ids(SortEntries([]models.QueueEntry{normal, urgent, high, highEarly}, SortPriority))
	if !equalIDs(got, []string{"urgent", "high-b", "high-a", "normal"}) {
		t.Fatalf("unexpected priority order: %v", got)
	}
}

func TestSortEntriesNameMode(t *testing.T) {
	nine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ana := entryAt("1", 1, models.KindSpontaneous, nine, nil)
	ana.PatientName = "Ângela Souza"
	bruno := entryAt("2", 2, models.KindSpontaneous, nine, nil)
	bruno.PatientName = "Bruno Lima"
	alberto := entryAt("3", 3, models.KindSpontaneous, nine, nil)
	alberto.PatientName = "alberto costa"

	got := SortEntries([]models.QueueEntry{bruno, ana, alberto}, SortName)
	if got[0].PatientName != "alberto costa" || got[2].PatientName != "Bruno Lima" {
		t.Fatalf("unexpected name order: %v", ids(got))
	}
}

func TestSortEntriesNameModeConcurrent(t *testing.T) {
	nine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	names := []string{"Ângela Souza", "Bruno Lima", "alberto costa", "José Pereira", "Conceição Alves"}
	set := make([]models.QueueEntry, len(names))
	for i, name := range names {
		set[i] = entryAt(name, int64(i+1), models.KindSpontaneous, nine, nil)
		set[i].PatientName = name
	}
	want := ids(SortEntries(set, SortName))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if got := ids(SortEntries(set, SortName)); !equalIDs(got, want) {
					t.Errorf("concurrent name sort produced %v, want %v", got, want)
					return
				}
			}
		}()
	}
	wg.Wait()
}
