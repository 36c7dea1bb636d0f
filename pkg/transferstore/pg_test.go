package transferstore

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/chainflux/tokenbridge/pkg/pgutil"
	mghelper "github.com/chainflux/tokenbridge/pkg/pgutil/migrations"
	"github.com/chainflux/tokenbridge/pkg/transfer"
)

func setupStore(t *testing.T) (context.Context, *pgStore) {
	t.Helper()
	requireDockerAccess(t)

	ctx := context.Background()
	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	if err := mghelper.CreateSchema(ctx, db, &TransferDao{}); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return ctx, NewStore(db)
}

func requireDockerAccess(t *testing.T) {
	t.Helper()

	candidates := []string{
		"/var/run/docker.sock",
		filepath.Join(os.Getenv("HOME"), ".docker/run/docker.sock"),
	}

	for _, sock := range candidates {
		if sock == "" {
			continue
		}
		if _, err := os.Stat(sock); err != nil {
			continue
		}
		conn, err := (&net.Dialer{}).DialContext(context.Background(), "unix", sock)
		if err == nil {
			_ = conn.Close()
			return
		}
	}

	t.Skip("docker daemon socket is not accessible; skipping testcontainer-backed transferstore tests")
}

func newTestTransfer(id string) *transfer.Transfer {
	return transfer.New(id, "user-1", "USDC", "ethereum", "solana", decimal.RequireFromString("123.45"))
}

func TestTransferPGStore_CreateAndGet(t *testing.T) {
	ctx, s := setupStore(t)

	created := newTestTransfer("t-1")
	if err := s.CreateTransfer(ctx, created); err != nil {
		t.Fatalf("CreateTransfer() failed: %v", err)
	}

	got, err := s.GetTransfer(ctx, "t-1")
	if err != nil {
		t.Fatalf("GetTransfer() failed: %v", err)
	}
	if got.Status != transfer.StatusPending {
		t.Errorf("expected status pending, got %s", got.Status)
	}
	if got.UserID != "user-1" || got.Token != "USDC" {
		t.Errorf("unexpected transfer row: %+v", got)
	}
	if !got.Amount.Equal(decimal.RequireFromString("123.45")) {
		t.Errorf("amount mismatch: got %s", got.Amount)
	}
	if got.SourceTxHash != "" || got.DestTxHash != "" || got.LockID != "" {
		t.Errorf("new transfer must have no tx hashes or lock id: %+v", got)
	}

	if _, err := s.GetTransfer(ctx, "missing"); !errors.Is(err, ErrTransferNotFound) {
		t.Errorf("expected ErrTransferNotFound, got %v", err)
	}
}

func TestTransferPGStore_DestHashRequiresSourceHash(t *testing.T) {
	ctx, s := setupStore(t)

	if err := s.CreateTransfer(ctx, newTestTransfer("t-1")); err != nil {
		t.Fatalf("CreateTransfer() failed: %v", err)
	}

	if err := s.SetDestTxHash(ctx, "t-1", "0xdst"); !errors.Is(err, ErrNoSourceTx) {
		t.Fatalf("expected ErrNoSourceTx, got %v", err)
	}

	if err := s.SetSourceTxHash(ctx, "t-1", "0xsrc"); err != nil {
		t.Fatalf("SetSourceTxHash() failed: %v", err)
	}
	if err := s.SetDestTxHash(ctx, "t-1", "0xdst"); err != nil {
		t.Fatalf("SetDestTxHash() after source failed: %v", err)
	}

	got, err := s.GetTransfer(ctx, "t-1")
	if err != nil {
		t.Fatalf("GetTransfer() failed: %v", err)
	}
	if got.SourceTxHash != "0xsrc" || got.DestTxHash != "0xdst" {
		t.Errorf("unexpected hashes: %+v", got)
	}

	if err := s.SetDestTxHash(ctx, "missing", "0xdst"); !errors.Is(err, ErrTransferNotFound) {
		t.Errorf("expected ErrTransferNotFound, got %v", err)
	}
}

func TestTransferPGStore_LockIDWriteOnce(t *testing.T) {
	ctx, s := setupStore(t)

	if err := s.CreateTransfer(ctx, newTestTransfer("t-1")); err != nil {
		t.Fatalf("CreateTransfer() failed: %v", err)
	}

	if err := s.SetLockID(ctx, "t-1", "lock-1"); err != nil {
		t.Fatalf("SetLockID() failed: %v", err)
	}
	if err := s.SetLockID(ctx, "t-1", "lock-2"); !errors.Is(err, ErrLockIDImmutable) {
		t.Fatalf("expected ErrLockIDImmutable, got %v", err)
	}

	got, err := s.GetTransfer(ctx, "t-1")
	if err != nil {
		t.Fatalf("GetTransfer() failed: %v", err)
	}
	if got.LockID != "lock-1" {
		t.Errorf("lock id was overwritten: %s", got.LockID)
	}
}

func TestTransferPGStore_StatusTransitions(t *testing.T) {
	ctx, s := setupStore(t)

	if err := s.CreateTransfer(ctx, newTestTransfer("t-1")); err != nil {
		t.Fatalf("CreateTransfer() failed: %v", err)
	}

	if err := s.UpdateStatus(ctx, "t-1", transfer.StatusLocked, ""); err != nil {
		t.Fatalf("pending -> locked failed: %v", err)
	}
	if err := s.UpdateStatus(ctx, "t-1", transfer.StatusPending, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on regression, got %v", err)
	}
	if err := s.UpdateStatus(ctx, "t-1", transfer.StatusMinted, ""); err != nil {
		t.Fatalf("locked -> minted failed: %v", err)
	}
	if err := s.UpdateStatus(ctx, "t-1", transfer.StatusFailed, "late failure"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("minted is terminal, got %v", err)
	}

	// Failure path records the error message.
	if err := s.CreateTransfer(ctx, newTestTransfer("t-2")); err != nil {
		t.Fatalf("CreateTransfer() failed: %v", err)
	}
	if err := s.UpdateStatus(ctx, "t-2", transfer.StatusFailed, "lock reverted"); err != nil {
		t.Fatalf("pending -> failed failed: %v", err)
	}
	got, err := s.GetTransfer(ctx, "t-2")
	if err != nil {
		t.Fatalf("GetTransfer() failed: %v", err)
	}
	if got.ErrorMessage != "lock reverted" {
		t.Errorf("expected error message to be recorded, got %q", got.ErrorMessage)
	}
}

func TestTransferPGStore_ClaimForMint(t *testing.T) {
	ctx, s := setupStore(t)

	if err := s.CreateTransfer(ctx, newTestTransfer("t-1")); err != nil {
		t.Fatalf("CreateTransfer() failed: %v", err)
	}

	// Pending transfers are not claimable.
	claimed, err := s.ClaimForMint(ctx, "t-1")
	if err != nil {
		t.Fatalf("ClaimForMint() failed: %v", err)
	}
	if claimed {
		t.Fatal("claimed a transfer that was never locked")
	}

	if err := s.SetSourceTxHash(ctx, "t-1", "0xsrc"); err != nil {
		t.Fatalf("SetSourceTxHash() failed: %v", err)
	}
	if err := s.UpdateStatus(ctx, "t-1", transfer.StatusLocked, ""); err != nil {
		t.Fatalf("UpdateStatus() failed: %v", err)
	}

	claimed, err = s.ClaimForMint(ctx, "t-1")
	if err != nil {
		t.Fatalf("ClaimForMint() failed: %v", err)
	}
	if !claimed {
		t.Fatal("expected to claim a locked transfer")
	}

	// The second claim must lose.
	claimed, err = s.ClaimForMint(ctx, "t-1")
	if err != nil {
		t.Fatalf("ClaimForMint() failed: %v", err)
	}
	if claimed {
		t.Fatal("claimed a transfer that is already being minted")
	}

	got, err := s.GetTransfer(ctx, "t-1")
	if err != nil {
		t.Fatalf("GetTransfer() failed: %v", err)
	}
	if got.Status != transfer.StatusMinting {
		t.Errorf("expected status minting, got %s", got.Status)
	}
}

func TestTransferPGStore_ListMintable(t *testing.T) {
	ctx, s := setupStore(t)

	// locked on ethereum: eligible
	eligible := newTestTransfer("t-1")
	if err := s.CreateTransfer(ctx, eligible); err != nil {
		t.Fatalf("CreateTransfer() failed: %v", err)
	}
	if err := s.SetSourceTxHash(ctx, "t-1", "0xsrc1"); err != nil {
		t.Fatalf("SetSourceTxHash() failed: %v", err)
	}
	if err := s.UpdateStatus(ctx, "t-1", transfer.StatusLocked, ""); err != nil {
		t.Fatalf("UpdateStatus() failed: %v", err)
	}

	// still pending: not eligible
	if err := s.CreateTransfer(ctx, newTestTransfer("t-2")); err != nil {
		t.Fatalf("CreateTransfer() failed: %v", err)
	}

	// locked on a different chain: not eligible for ethereum
	other := transfer.New("t-3", "user-2", "USDC", "solana", "ethereum", decimal.RequireFromString("7"))
	if err := s.CreateTransfer(ctx, other); err != nil {
		t.Fatalf("CreateTransfer() failed: %v", err)
	}
	if err := s.SetSourceTxHash(ctx, "t-3", "0xsrc3"); err != nil {
		t.Fatalf("SetSourceTxHash() failed: %v", err)
	}
	if err := s.UpdateStatus(ctx, "t-3", transfer.StatusLocked, ""); err != nil {
		t.Fatalf("UpdateStatus() failed: %v", err)
	}

	// locked but already minted on the destination: not eligible
	done := newTestTransfer("t-4")
	if err := s.CreateTransfer(ctx, done); err != nil {
		t.Fatalf("CreateTransfer() failed: %v", err)
	}
	if err := s.SetSourceTxHash(ctx, "t-4", "0xsrc4"); err != nil {
		t.Fatalf("SetSourceTxHash() failed: %v", err)
	}
	if err := s.UpdateStatus(ctx, "t-4", transfer.StatusLocked, ""); err != nil {
		t.Fatalf("UpdateStatus() failed: %v", err)
	}
	if err := s.SetDestTxHash(ctx, "t-4", "0xdst4"); err != nil {
		t.Fatalf("SetDestTxHash() failed: %v", err)
	}

	mintable, err := s.ListMintable(ctx, "ethereum")
	if err != nil {
		t.Fatalf("ListMintable() failed: %v", err)
	}
	if len(mintable) != 1 {
		t.Fatalf("expected 1 mintable transfer, got %d", len(mintable))
	}
	if mintable[0].ID != "t-1" {
		t.Errorf("expected t-1, got %s", mintable[0].ID)
	}
}
