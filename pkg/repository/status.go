package repository

// DocumentStatus is the document lifecycle state persisted in the relational
// store. The stage handlers only ever move it forward; FAILED is absorbing.
type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "UPLOADED"
	StatusParsing    DocumentStatus = "PARSING"
	StatusReady      DocumentStatus = "READY"
	StatusKBBuilding DocumentStatus = "KB_BUILDING"
	StatusCompleted  DocumentStatus = "COMPLETED"
	StatusFailed     DocumentStatus = "FAILED"
)

// statusRank orders the forward progression. FAILED is outside the ordering
// and handled explicitly.
var statusRank = map[DocumentStatus]int{
	StatusUploaded:   0,
	StatusParsing:    1,
	StatusReady:      2,
	StatusKBBuilding: 3,
	StatusCompleted:  4,
}

// IsTerminal reports whether no further transitions may leave s.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal forward
// transition. FAILED is reachable from any non-terminal state and absorbing;
// a redelivered message re-entering an earlier stage is not a legal
// transition and must be skipped by the caller.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	if s == StatusFailed {
		return false
	}
	if next == StatusFailed {
		return !s.IsTerminal()
	}
	cur, ok := statusRank[s]
	if !ok {
		return false
	}
	n, ok := statusRank[next]
	if !ok {
		return false
	}
	return n >= cur
}
