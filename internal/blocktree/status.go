package blocktree

import "strings"

// Status records how far an entry has been validated and what is stored for it.
type Status uint32

const (
	// StatusHeaderValid is set once the header passed all header checks.
	StatusHeaderValid Status = 1 << iota
	// StatusHaveData means the full block is stored.
	StatusHaveData
	// StatusHaveUndo means undo data for the block is stored.
	StatusHaveUndo
	// StatusValidTransactions means the context-free block checks passed.
	StatusValidTransactions
	// StatusValidScripts means the block was connected, so every input and
	// script of it was verified against the UTXO set.
	StatusValidScripts
	// StatusFailedValid marks the entry itself as invalid.
	StatusFailedValid
	// StatusFailedChild marks an entry that descends from an invalid one.
	StatusFailedChild

	StatusFailedMask = StatusFailedValid | StatusFailedChild
)

var statusNames = []struct {
	s    Status
	name string
}{
	{StatusHeaderValid, "header"},
	{StatusHaveData, "data"},
	{StatusHaveUndo, "undo"},
	{StatusValidTransactions, "transactions"},
	{StatusValidScripts, "scripts"},
	{StatusFailedValid, "failed"},
	{StatusFailedChild, "failed-child"},
}

// Has reports whether every bit of f is set.
func (s Status) Has(f Status) bool {
	return s&f == f
}

// Failed reports whether the entry or an ancestor is invalid.
func (s Status) Failed() bool {
	return s&StatusFailedMask != 0
}

// FullyValidated reports whether the block was connected successfully.
func (s Status) FullyValidated() bool {
	return s.Has(StatusValidScripts) && !s.Failed()
}

func (s Status) String() string {
	if s == 0 {
		return "unknown"
	}
	var parts []string
	for _, n := range statusNames {
		if s.Has(n.s) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
