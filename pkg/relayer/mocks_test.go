package relayer

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/chainflux/tokenbridge/pkg/chain"
	"github.com/chainflux/tokenbridge/pkg/transfer"
	"github.com/chainflux/tokenbridge/pkg/transferstore"
)

// MockAdapter is a mock implementation of chain.Adapter
type MockAdapter struct {
	ChainName         string
	LockFunc          func(ctx context.Context, user, token string, amount decimal.Decimal, destChain string) (string, error)
	MintOrReleaseFunc func(ctx context.Context, user, token string, amount decimal.Decimal, sourceChain, sourceTxHash, lockID string) (string, error)
	GetTxStatusFunc   func(ctx context.Context, txHash string) (*chain.TxStatus, error)
	ExtractLockIDFunc func(ctx context.Context, txHash string) (string, error)
}

func (m *MockAdapter) Name() string { return m.ChainName }

func (m *MockAdapter) SupportsToken(string) bool { return true }

func (m *MockAdapter) Lock(ctx context.Context, user, token string, amount decimal.Decimal, destChain string) (string, error) {
	if m.LockFunc != nil {
		return m.LockFunc(ctx, user, token, amount, destChain)
	}
	return "0xlock", nil
}

func (m *MockAdapter) MintOrRelease(
	ctx context.Context,
	user, token string,
	amount decimal.Decimal,
	sourceChain, sourceTxHash, lockID string) (string, error) {
	if m.MintOrReleaseFunc != nil {
		return m.MintOrReleaseFunc(ctx, user, token, amount, sourceChain, sourceTxHash, lockID)
	}
	return "0xmint", nil
}

func (m *MockAdapter) GetTxStatus(ctx context.Context, txHash string) (*chain.TxStatus, error) {
	if m.GetTxStatusFunc != nil {
		return m.GetTxStatusFunc(ctx, txHash)
	}
	return &chain.TxStatus{TxHash: txHash, Status: chain.TxStatusSuccess, Confirmations: 64}, nil
}

func (m *MockAdapter) ExtractLockID(ctx context.Context, txHash string) (string, error) {
	if m.ExtractLockIDFunc != nil {
		return m.ExtractLockIDFunc(ctx, txHash)
	}
	return "", nil
}

// memStore is an in-memory transferstore.Store with the same guard semantics
// as the Postgres implementation.
type memStore struct {
	mu        sync.Mutex
	transfers map[string]*transfer.Transfer
}

func newMemStore() *memStore {
	return &memStore{transfers: make(map[string]*transfer.Transfer)}
}

// seedLocked inserts a transfer already in the locked state with its source
// tx hash recorded, the shape the relayer sweeps for.
func (s *memStore) seedLocked(t *transfer.Transfer, srcTxHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	cp.Status = transfer.StatusLocked
	cp.SourceTxHash = srcTxHash
	s.transfers[t.ID] = &cp
}

func (s *memStore) CreateTransfer(_ context.Context, t *transfer.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.transfers[t.ID] = &cp
	return nil
}

func (s *memStore) GetTransfer(_ context.Context, id string) (*transfer.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	if !ok {
		return nil, transferstore.ErrTransferNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) SetSourceTxHash(_ context.Context, id, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	if !ok {
		return transferstore.ErrTransferNotFound
	}
	t.SourceTxHash = txHash
	return nil
}

func (s *memStore) SetDestTxHash(_ context.Context, id, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	if !ok {
		return transferstore.ErrTransferNotFound
	}
	if t.SourceTxHash == "" {
		return transferstore.ErrNoSourceTx
	}
	t.DestTxHash = txHash
	return nil
}

func (s *memStore) SetLockID(_ context.Context, id, lockID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	if !ok {
		return transferstore.ErrTransferNotFound
	}
	if t.LockID != "" {
		return transferstore.ErrLockIDImmutable
	}
	t.LockID = lockID
	return nil
}

func (s *memStore) UpdateStatus(_ context.Context, id string, status transfer.Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	if !ok {
		return transferstore.ErrTransferNotFound
	}
	if !t.Status.CanTransitionTo(status) {
		return transferstore.ErrInvalidTransition
	}
	t.Status = status
	t.ErrorMessage = errMsg
	return nil
}

func (s *memStore) ClaimForMint(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	if !ok {
		return false, transferstore.ErrTransferNotFound
	}
	if t.Status != transfer.StatusLocked || t.DestTxHash != "" {
		return false, nil
	}
	t.Status = transfer.StatusMinting
	return true, nil
}

func (s *memStore) ListMintable(_ context.Context, sourceChain string) ([]*transfer.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*transfer.Transfer
	for _, t := range s.transfers {
		if t.FromChain == sourceChain && t.Status == transfer.StatusLocked && t.DestTxHash == "" {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}
