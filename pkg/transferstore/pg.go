package transferstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/chainflux/tokenbridge/pkg/transfer"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the transfer store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) CreateTransfer(ctx context.Context, t *transfer.Transfer) error {
	dao := toTransferDao(t)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}

	return nil
}

func (s *pgStore) GetTransfer(ctx context.Context, id string) (*transfer.Transfer, error) {
	dao := new(TransferDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}

	return toTransfer(dao)
}

func (s *pgStore) SetSourceTxHash(ctx context.Context, id, txHash string) error {
	res, err := s.db.NewUpdate().
		Model((*TransferDao)(nil)).
		Set("src_tx_hash = ?", txHash).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set source tx hash: %w", err)
	}
	return s.requireRow(ctx, res, id, nil)
}

func (s *pgStore) SetDestTxHash(ctx context.Context, id, txHash string) error {
	// Conditional on the source hash being present: a destination hash must
	// never exist without its lock.
	res, err := s.db.NewUpdate().
		Model((*TransferDao)(nil)).
		Set("dst_tx_hash = ?", txHash).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Where("src_tx_hash IS NOT NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set destination tx hash: %w", err)
	}
	return s.requireRow(ctx, res, id, ErrNoSourceTx)
}

func (s *pgStore) SetLockID(ctx context.Context, id, lockID string) error {
	res, err := s.db.NewUpdate().
		Model((*TransferDao)(nil)).
		Set("lock_id = ?", lockID).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Where("lock_id IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set lock id: %w", err)
	}
	return s.requireRow(ctx, res, id, ErrLockIDImmutable)
}

func (s *pgStore) UpdateStatus(ctx context.Context, id string, status transfer.Status, errMsg string) error {
	q := s.db.NewUpdate().
		Model((*TransferDao)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Where("status IN (?)", bun.In(allowedPrior(status)))

	if errMsg != "" {
		q = q.Set("error_msg = ?", errMsg)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return s.requireRow(ctx, res, id, ErrInvalidTransition)
}

func (s *pgStore) ClaimForMint(ctx context.Context, id string) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*TransferDao)(nil)).
		Set("status = ?", string(transfer.StatusMinting)).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Where("status = ?", string(transfer.StatusLocked)).
		Where("dst_tx_hash IS NULL").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to claim transfer for mint: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return rows > 0, nil
}

func (s *pgStore) ListMintable(ctx context.Context, sourceChain string) ([]*transfer.Transfer, error) {
	var daos []TransferDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("from_chain = ?", sourceChain).
		Where("status = ?", string(transfer.StatusLocked)).
		Where("dst_tx_hash IS NULL").
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list mintable transfers: %w", err)
	}

	transfers := make([]*transfer.Transfer, 0, len(daos))
	for i := range daos {
		t, err := toTransfer(&daos[i])
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, nil
}

// allowedPrior returns the statuses from which a transition to next is legal.
func allowedPrior(next transfer.Status) []string {
	var prior []string
	for _, s := range []transfer.Status{
		transfer.StatusPending,
		transfer.StatusLocked,
		transfer.StatusMinting,
		transfer.StatusMinted,
	} {
		if s.CanTransitionTo(next) {
			prior = append(prior, string(s))
		}
	}
	return prior
}

// requireRow distinguishes "no such transfer" from a conditional update whose
// guard did not match.
func (s *pgStore) requireRow(ctx context.Context, res sql.Result, id string, guardErr error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows > 0 {
		return nil
	}

	exists, err := s.db.NewSelect().
		Model((*TransferDao)(nil)).
		Where("id = ?", id).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check transfer existence: %w", err)
	}
	if !exists {
		return ErrTransferNotFound
	}
	if guardErr != nil {
		return guardErr
	}
	return nil
}
