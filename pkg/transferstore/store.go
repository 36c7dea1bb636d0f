package transferstore

import (
	"context"
	"errors"

	"github.com/chainflux/tokenbridge/pkg/transfer"
)

// ErrTransferNotFound is returned when a transfer lookup finds no matching record.
var ErrTransferNotFound = errors.New("transfer not found")

// ErrLockIDImmutable is returned when a caller attempts to overwrite a lock id
// that was already written.
var ErrLockIDImmutable = errors.New("lock id is already set")

// ErrNoSourceTx is returned when a destination tx hash write would precede the
// source tx hash, violating the causal ordering of the state machine.
var ErrNoSourceTx = errors.New("source tx hash is not set")

// ErrInvalidTransition is returned when a status update would move the state
// machine backwards.
var ErrInvalidTransition = errors.New("illegal status transition")

// Store is the persistence contract for the bridge transfer lifecycle. Every
// mutation is atomic and durable before the call returns; reads reflect the
// most recent committed write.
type Store interface {
	// CreateTransfer persists a new transfer record.
	CreateTransfer(ctx context.Context, t *transfer.Transfer) error

	// GetTransfer fetches a transfer by id, or ErrTransferNotFound.
	GetTransfer(ctx context.Context, id string) (*transfer.Transfer, error)

	// SetSourceTxHash records the source-chain transaction handle.
	SetSourceTxHash(ctx context.Context, id, txHash string) error

	// SetDestTxHash records the destination-chain transaction handle. Fails
	// with ErrNoSourceTx when the source tx hash has not been recorded yet.
	SetDestTxHash(ctx context.Context, id, txHash string) error

	// SetLockID records the lock identifier; write-once.
	SetLockID(ctx context.Context, id, lockID string) error

	// UpdateStatus moves the transfer forward in the state machine, optionally
	// recording an error message. Regressions fail with ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id string, status transfer.Status, errMsg string) error

	// ClaimForMint atomically moves a locked, unminted transfer into the
	// minting state. Returns false when another actor holds the claim or the
	// transfer is no longer eligible.
	ClaimForMint(ctx context.Context, id string) (bool, error)

	// ListMintable returns transfers locked on the given source chain with no
	// destination transaction yet, oldest first.
	ListMintable(ctx context.Context, sourceChain string) ([]*transfer.Transfer, error)
}
