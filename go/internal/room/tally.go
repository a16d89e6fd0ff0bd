package room

// Tally maps optionID -> number of participants currently choosing it.
// Options nobody chose are absent.
type Tally map[string]int

// Results maps questionID -> Tally. Questions without votes are absent.
type Results map[string]Tally

// Tally counts the current choices for one question
func (l *Ledger) Tally(questionID string) Tally {
	choices := l.votes[questionID]
	t := make(Tally, len(choices))
	for _, optionID := range choices {
		t[optionID]++
	}
	return t
}

// TallyAll counts every question that has at least one vote
func (l *Ledger) TallyAll() Results {
	r := make(Results, len(l.votes))
	for questionID, choices := range l.votes {
		if len(choices) == 0 {
			continue
		}
		r[questionID] = l.Tally(questionID)
	}
	return r
}
