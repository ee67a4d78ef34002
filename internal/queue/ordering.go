package queue

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"clinicq/ehr-service/internal/models"
)

// Sort modes accepted by List.
const (
	SortDefault  = "default"
	SortPriority = "priority"
	SortName     = "name"
)

// Order sorts entries by the default policy: effective time ascending, then
// triage risk descending when both sides finished initial listening with a
// risk recorded, then creation sequence ascending. The sequence tie-break
// makes the order total, so the result is independent of input order and
// re-sorting sorted output is a no-op.
func Order(entries []models.QueueEntry) []models.QueueEntry {
	out := make([]models.QueueEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return lessDefault(out[i], out[j])
	})
	return out
}

func lessDefault(a, b models.QueueEntry) bool {
	at := a.EffectiveTime()
	bt := b.EffectiveTime()
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	if bothTriaged(a, b) {
		ar := models.RiskRank(a.Risk)
		br := models.RiskRank(b.Risk)
		if ar != br {
			return ar > br
		}
	}
	return a.Seq < b.Seq
}

func bothTriaged(a, b models.QueueEntry) bool {
	return a.ListeningDone && a.Risk != "" && b.ListeningDone && b.Risk != ""
}

// orderByPriority ranks urgent ahead of high, normal and low; ties fall back
// to the display position. Used by the alternate priority sort mode and by
// call-next selection.
func orderByPriority(entries []models.QueueEntry) []models.QueueEntry {
	out := make([]models.QueueEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return lessPriority(out[i], out[j])
	})
	return out
}

func lessPriority(a, b models.QueueEntry) bool {
	ap := models.PriorityRank(a.Priority)
	bp := models.PriorityRank(b.Priority)
	if ap != bp {
		return ap > bp
	}
	return a.Position < b.Position
}

func orderByName(entries []models.QueueEntry) []models.QueueEntry {
	// collate.Collator mutates internal state on compare, so concurrent
	// listings must not share one. Each sort gets its own.
	collator := collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
	out := make([]models.QueueEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		if cmp := collator.CompareString(out[i].PatientName, out[j].PatientName); cmp != 0 {
			return cmp < 0
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// SortEntries applies the comparator selected by mode. Unknown modes fall
// back to the default ordering.
func SortEntries(entries []models.QueueEntry, mode string) []models.QueueEntry {
	switch mode {
	case SortPriority:
		return orderByPriority(entries)
	case SortName:
		return orderByName(entries)
	default:
		return Order(entries)
	}
}
