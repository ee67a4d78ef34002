package queue

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"clinicq/ehr-service/internal/models"
)

// Criteria narrows the queue listing. Fields compose conjunctively, with one
// exception: a non-empty Search suppresses the implicit waiting-only
// narrowing and the OnlyUnfinished filter so matches in any status surface.
// An explicit Statuses list still applies during search.
type Criteria struct {
	Search         string
	Statuses       []string
	ServiceTypes   []string
	Team           string
	Professional   string
	OnlyUnfinished bool
	MineOnly       bool
	// Mine decides whether an entry belongs to the requesting professional.
	// Injected by the caller; assignment rules are not a queue concern.
	Mine func(models.QueueEntry) bool
}

// Filter applies criteria without reordering. Callers pass the result
// through SortEntries before handing it to a consumer.
func Filter(entries []models.QueueEntry, criteria Criteria) []models.QueueEntry {
	search := foldSearchTerm(criteria.Search)
	searching := search != ""

	// Non-nil even when nothing matches, so an empty listing serializes
	// as [] rather than null.
	out := make([]models.QueueEntry, 0, len(entries))
	for _, entry := range entries {
		if !defaultNarrowing(entry, criteria, searching) {
			continue
		}
		if !explicitCriteria(entry, criteria) {
			continue
		}
		if searching && !matchesSearch(entry, search) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// defaultNarrowing is the implicit stage: waiting-only when the caller gave
// no status list, plus the only-unfinished toggle. Both stand down while a
// search is active.
func defaultNarrowing(entry models.QueueEntry, criteria Criteria, searching bool) bool {
	if searching {
		return true
	}
	if len(criteria.Statuses) == 0 && entry.Status != models.StatusWaiting {
		return false
	}
	if criteria.OnlyUnfinished && !entry.Unfinished() {
		return false
	}
	return true
}

// explicitCriteria is the stage the caller asked for by name; it applies
// whether or not a search term is present.
func explicitCriteria(entry models.QueueEntry, criteria Criteria) bool {
	if len(criteria.Statuses) > 0 && !containsString(criteria.Statuses, entry.Status) {
		return false
	}
	if len(criteria.ServiceTypes) > 0 && !matchesAnySubstring(entry.ServiceType, criteria.ServiceTypes) {
		return false
	}
	if criteria.Team != "" && !strings.Contains(strings.ToLower(entry.Team), strings.ToLower(criteria.Team)) {
		return false
	}
	if criteria.Professional != "" && !strings.Contains(strings.ToLower(entry.Professional), strings.ToLower(criteria.Professional)) {
		return false
	}
	if criteria.MineOnly {
		if criteria.Mine == nil || !criteria.Mine(entry) {
			return false
		}
	}
	return true
}

func matchesSearch(entry models.QueueEntry, folded string) bool {
	name := foldSearchTerm(entry.PatientName)
	if strings.Contains(name, folded) {
		return true
	}
	if matchesNamePrefixes(name, folded) {
		return true
	}
	if matchesDocument(entry.PatientCPF, folded) {
		return true
	}
	if len(folded) > 2 {
		if entry.PatientCNS != "" && strings.Contains(entry.PatientCNS, folded) {
			return true
		}
		if entry.PatientBirth != "" && strings.Contains(entry.PatientBirth, folded) {
			return true
		}
	}
	return false
}

// matchesNamePrefixes accepts the entry when every search token is a prefix
// of some token of the patient name ("mar sil" finds "Maria da Silva").
func matchesNamePrefixes(foldedName, foldedTerm string) bool {
	terms := strings.Fields(foldedTerm)
	if len(terms) == 0 {
		return false
	}
	words := strings.Fields(foldedName)
	for _, term := range terms {
		found := false
		for _, word := range words {
			if strings.HasPrefix(word, term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// matchesDocument compares CPF digits-only first so formatted input
// ("123.456.789-00") still matches, with a raw substring fallback.
func matchesDocument(cpf, folded string) bool {
	if cpf == "" {
		return false
	}
	termDigits := digitsOnly(folded)
	if termDigits != "" && strings.Contains(digitsOnly(cpf), termDigits) {
		return true
	}
	return strings.Contains(strings.ToLower(cpf), folded)
}

var markStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldSearchTerm lowercases and strips combining marks so "josé" and "Jose"
// compare equal.
func foldSearchTerm(value string) string {
	stripped, _, err := transform.String(markStripper, value)
	if err != nil {
		stripped = value
	}
	return strings.ToLower(strings.TrimSpace(stripped))
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func containsString(values []string, value string) bool {
	for _, item := range values {
		if item == value {
			return true
		}
	}
	return false
}

func matchesAnySubstring(value string, candidates []string) bool {
	lower := strings.ToLower(value)
	for _, candidate := range candidates {
		if strings.Contains(lower, strings.ToLower(candidate)) {
			return true
		}
	}
	return false
}
