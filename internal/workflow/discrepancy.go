package workflow

import "fmt"

// DiscrepancyLedger is the append-only log of quantified differences between
// reproduced and published values. Entries are immutable once written; ids
// are sequential ("D1", "D2", ...) and never reused.
type DiscrepancyLedger struct {
	Entries []Discrepancy `json:"entries,omitempty"`
}

// Append assigns the next sequential id and appends the entry. The entry's
// ID field is ignored on input; the assigned id is returned.
func (l *DiscrepancyLedger) Append(e Discrepancy) string {
	e.ID = fmt.Sprintf("D%d", len(l.Entries)+1)
	l.Entries = append(l.Entries, e)
	return e.ID
}

// ByStage returns the entries linked to one stage, in append order.
func (l *DiscrepancyLedger) ByStage(stageID string) []Discrepancy {
	var out []Discrepancy
	for _, e := range l.Entries {
		if e.StageID == stageID {
			out = append(out, e)
		}
	}
	return out
}

// Blocking returns every blocking entry, in append order.
func (l *DiscrepancyLedger) Blocking() []Discrepancy {
	var out []Discrepancy
	for _, e := range l.Entries {
		if e.Blocking {
			out = append(out, e)
		}
	}
	return out
}

// Get returns the entry with the given id, or false.
func (l *DiscrepancyLedger) Get(id string) (Discrepancy, bool) {
	for _, e := range l.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return Discrepancy{}, false
}

// Len returns the number of entries ever appended.
func (l *DiscrepancyLedger) Len() int { return len(l.Entries) }

func (l DiscrepancyLedger) clone() DiscrepancyLedger {
	return DiscrepancyLedger{Entries: append([]Discrepancy(nil), l.Entries...)}
}
