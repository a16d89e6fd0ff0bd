package room

// Votes maps questionID -> participantID -> optionID. It is the persisted room record.
type Votes map[string]map[string]string

// Clone returns a deep copy
func (v Votes) Clone() Votes {
	out := make(Votes, len(v))
	for questionID, choices := range v {
		copied := make(map[string]string, len(choices))
		for participantID, optionID := range choices {
			copied[participantID] = optionID
		}
		out[questionID] = copied
	}
	return out
}

// Ledger records each participant's current choice per question.
// A later vote by the same participant on the same question replaces the earlier one.
// Question and option IDs are recorded as given, without checking the catalog.
//
// Ledger is not safe for concurrent use; the Coordinator serializes access.
type Ledger struct {
	votes Votes
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{votes: make(Votes)}
}

// RecordVote sets or overwrites the participant's choice for a question
func (l *Ledger) RecordVote(questionID, participantID, optionID string) {
	choices, ok := l.votes[questionID]
	if !ok {
		choices = make(map[string]string)
		l.votes[questionID] = choices
	}
	choices[participantID] = optionID
}

// ClearAll discards every vote for every question
func (l *Ledger) ClearAll() {
	l.votes = make(Votes)
}

// VotesFor returns a copy of the participant -> option mapping for a question.
// Unknown questions yield an empty map.
func (l *Ledger) VotesFor(questionID string) map[string]string {
	choices := l.votes[questionID]
	out := make(map[string]string, len(choices))
	for participantID, optionID := range choices {
		out[participantID] = optionID
	}
	return out
}

// Snapshot returns a deep copy of all votes
func (l *Ledger) Snapshot() Votes {
	return l.votes.Clone()
}

// Replace swaps the ledger contents for a copy of votes. Used when hydrating from storage.
func (l *Ledger) Replace(votes Votes) {
	l.votes = votes.Clone()
}
