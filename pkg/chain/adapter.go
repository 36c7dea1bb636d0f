// Package chain defines the capability every supported blockchain exposes to
// the bridge coordinator and relayer. Concrete adapters hide signing, RPC and
// contract-call details behind this interface.
package chain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Transaction status strings reported by GetTxStatus.
const (
	TxStatusPending = "pending"
	TxStatusSuccess = "success"
	TxStatusFailed  = "failed"
)

// TxStatus is the observed state of a chain transaction at query time.
// It is transient and never persisted.
type TxStatus struct {
	TxHash        string
	Status        string
	Confirmations uint64
}

// Confirmed reports whether the transaction succeeded and has reached the
// given confirmation depth.
func (s *TxStatus) Confirmed(threshold uint64) bool {
	return s.Status == TxStatusSuccess && s.Confirmations >= threshold
}

// Adapter is the uniform capability a chain implements. Adapters are
// stateless with respect to transfers and safe to invoke concurrently for
// different transfers. Errors returned from Lock and MintOrRelease carry an
// apperrors category so callers can tell configuration problems from
// transient RPC failures from genuine transaction failures.
type Adapter interface {
	// Name returns the stable chain identifier used as a registry key.
	Name() string

	// SupportsToken reports whether the chain can carry the given token.
	SupportsToken(token string) bool

	// Lock escrows or burns the user's tokens on this chain, authorizing an
	// equivalent mint on destChain. Returns the source transaction hash.
	Lock(ctx context.Context, user, token string, amount decimal.Decimal, destChain string) (string, error)

	// MintOrRelease creates or unlocks value on this chain for a lock that
	// happened on sourceChain. lockID may be empty when no lock identifier
	// was captured; adapters must be safe to retry with the same lockID
	// without double-minting.
	MintOrRelease(ctx context.Context, user, token string, amount decimal.Decimal, sourceChain, sourceTxHash, lockID string) (string, error)

	// GetTxStatus returns the observed status and confirmation depth of a
	// transaction on this chain. It never mutates chain state.
	GetTxStatus(ctx context.Context, txHash string) (*TxStatus, error)

	// ExtractLockID correlates a lock transaction to its canonical lock
	// identifier. Returns "" when none is found; best effort.
	ExtractLockID(ctx context.Context, txHash string) (string, error)
}

// Registry maps chain names to their adapters. It is built once at startup
// and passed by reference to the service and relayer.
type Registry map[string]Adapter

// Get returns the adapter for a chain name.
func (r Registry) Get(name string) (Adapter, bool) {
	adapter, ok := r[name]
	return adapter, ok
}

// Names returns the configured chain names.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	return names
}
