// Package transfer defines the bridge transfer domain model.
package transfer

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the current state of a bridge transfer.
type Status string

const (
	// StatusPending means the transfer record exists but no chain state has changed yet.
	StatusPending Status = "pending"
	// StatusLocked means value is escrowed on the source chain.
	StatusLocked Status = "locked"
	// StatusMinting means an actor has claimed the transfer and is submitting the
	// destination-side transaction. Internal marker; reported as Locked.
	StatusMinting Status = "minting"
	// StatusMinted means value has been created/released on the destination chain.
	StatusMinted Status = "minted"
	// StatusFailed is terminal; the error message records what went wrong.
	StatusFailed Status = "failed"
)

// statusRank orders the forward progression of the state machine.
var statusRank = map[Status]int{
	StatusPending: 0,
	StatusLocked:  1,
	StatusMinting: 2,
	StatusMinted:  3,
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// transition. Failed is reachable from any non-terminal state, and no state
// may regress.
func (s Status) CanTransitionTo(next Status) bool {
	if s == StatusFailed || s == StatusMinted {
		return false
	}
	if next == StatusFailed {
		return true
	}
	fromRank, ok := statusRank[s]
	if !ok {
		return false
	}
	toRank, ok := statusRank[next]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// Reportable maps the stored status onto the externally visible status set.
func (s Status) Reportable() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusLocked, StatusMinting:
		return "Locked"
	case StatusMinted:
		return "Minted"
	default:
		return "Failed"
	}
}

// Transfer is a single cross-chain bridge operation. The store is the sole
// source of truth for a transfer; in-memory copies are never authoritative
// across calls.
type Transfer struct {
	ID           string
	UserID       string
	Token        string
	FromChain    string
	ToChain      string
	Amount       decimal.Decimal
	LockID       string
	SourceTxHash string
	DestTxHash   string
	Status       Status
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// New creates a pending transfer with a fixed amount.
func New(id, userID, token, fromChain, toChain string, amount decimal.Decimal) *Transfer {
	return &Transfer{
		ID:        id,
		UserID:    userID,
		Token:     token,
		FromChain: fromChain,
		ToChain:   toChain,
		Amount:    amount,
		Status:    StatusPending,
	}
}
