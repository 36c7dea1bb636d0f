// Package bridge implements the coordinator that drives a transfer from a
// user request through lock and mint across two chain adapters.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainflux/tokenbridge/internal/metrics"
	apperrors "github.com/chainflux/tokenbridge/pkg/app/errors"
	"github.com/chainflux/tokenbridge/pkg/chain"
	"github.com/chainflux/tokenbridge/pkg/transfer"
	"github.com/chainflux/tokenbridge/pkg/transferstore"
)

// Request describes a user-initiated bridge transfer.
type Request struct {
	UserID    string `validate:"required"`
	Token     string `validate:"required"`
	FromChain string `validate:"required"`
	ToChain   string `validate:"required,nefield=FromChain"`
	Amount    decimal.Decimal
}

// Status is the externally reportable view of a transfer.
type Status struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	FromChain string          `json:"from_chain"`
	ToChain   string          `json:"to_chain"`
	Amount    decimal.Decimal `json:"amount"`
}

// Service defines the coordinator operations consumed by the API layer.
type Service interface {
	// BridgeTokens drives a transfer end-to-end and returns its id. The id is
	// also returned alongside an error once a record exists, so callers can
	// inspect a failed transfer.
	BridgeTokens(ctx context.Context, req *Request) (string, error)

	// GetBridgeStatus reports the current state of a transfer.
	GetBridgeStatus(ctx context.Context, id string) (*Status, error)
}

type bridgeService struct {
	adapters chain.Registry
	store    transferstore.Store
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates the coordinator. The adapter registry is built once at
// startup and shared with the relayer.
func NewService(adapters chain.Registry, store transferstore.Store, logger *zap.Logger) Service {
	return &bridgeService{
		adapters: adapters,
		store:    store,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *bridgeService) BridgeTokens(ctx context.Context, req *Request) (string, error) {
	started := time.Now()

	// Everything here must fail before any store write happens.
	if err := s.validate.Struct(req); err != nil {
		return "", apperrors.BadRequestError(err, "invalid bridge request")
	}
	if !req.Amount.IsPositive() {
		return "", apperrors.BadRequestError(nil, "amount must be positive")
	}

	source, ok := s.adapters.Get(req.FromChain)
	if !ok {
		return "", apperrors.NotSupportedError(nil,
			fmt.Sprintf("unsupported source chain %q", req.FromChain))
	}
	destination, ok := s.adapters.Get(req.ToChain)
	if !ok {
		return "", apperrors.NotSupportedError(nil,
			fmt.Sprintf("unsupported destination chain %q", req.ToChain))
	}
	if !source.SupportsToken(req.Token) || !destination.SupportsToken(req.Token) {
		return "", apperrors.NotSupportedError(nil,
			fmt.Sprintf("token %q is not supported on both chains", req.Token))
	}

	t := transfer.New(uuid.NewString(), req.UserID, req.Token, req.FromChain, req.ToChain, req.Amount)
	if err := s.store.CreateTransfer(ctx, t); err != nil {
		return "", apperrors.GeneralError(fmt.Errorf("failed to persist transfer: %w", err))
	}

	s.logger.Info("Bridge transfer accepted",
		zap.String("id", t.ID),
		zap.String("user_id", req.UserID),
		zap.String("from_chain", req.FromChain),
		zap.String("to_chain", req.ToChain),
		zap.String("amount", req.Amount.String()))

	srcTxHash, err := source.Lock(ctx, req.UserID, req.Token, req.Amount, req.ToChain)
	if err != nil {
		s.recordFailure(ctx, t.ID, req.FromChain, req.ToChain, err)
		return t.ID, err
	}

	if err := s.store.SetSourceTxHash(ctx, t.ID, srcTxHash); err != nil {
		s.recordFailure(ctx, t.ID, req.FromChain, req.ToChain, err)
		return t.ID, apperrors.GeneralError(fmt.Errorf("failed to persist source tx hash: %w", err))
	}
	if err := s.store.UpdateStatus(ctx, t.ID, transfer.StatusLocked, ""); err != nil {
		s.recordFailure(ctx, t.ID, req.FromChain, req.ToChain, err)
		return t.ID, apperrors.GeneralError(fmt.Errorf("failed to mark transfer locked: %w", err))
	}

	// Best-effort capture of the lock id; minting proceeds without one.
	lockID, err := source.ExtractLockID(ctx, srcTxHash)
	if err != nil {
		s.logger.Warn("Failed to extract lock id",
			zap.String("id", t.ID),
			zap.String("src_tx_hash", srcTxHash),
			zap.Error(err))
	} else if lockID != "" {
		if err := s.store.SetLockID(ctx, t.ID, lockID); err != nil {
			s.logger.Warn("Failed to persist lock id",
				zap.String("id", t.ID),
				zap.Error(err))
			lockID = ""
		}
	}

	claimed, err := s.store.ClaimForMint(ctx, t.ID)
	if err != nil {
		s.recordFailure(ctx, t.ID, req.FromChain, req.ToChain, err)
		return t.ID, apperrors.GeneralError(fmt.Errorf("failed to claim transfer for mint: %w", err))
	}
	if !claimed {
		// Another actor already owns the mint; the transfer will complete
		// through that path.
		s.logger.Info("Transfer already claimed for minting", zap.String("id", t.ID))
		return t.ID, nil
	}

	dstTxHash, err := destination.MintOrRelease(ctx, req.UserID, req.Token, req.Amount, req.FromChain, srcTxHash, lockID)
	if err != nil {
		// Value is escrowed on the source chain but not released on the
		// destination. The relayer retries this stage; failed records with a
		// source tx hash are its input.
		s.recordFailure(ctx, t.ID, req.FromChain, req.ToChain, err)
		return t.ID, err
	}

	if err := s.store.SetDestTxHash(ctx, t.ID, dstTxHash); err != nil {
		s.recordFailure(ctx, t.ID, req.FromChain, req.ToChain, err)
		return t.ID, apperrors.GeneralError(fmt.Errorf("failed to persist destination tx hash: %w", err))
	}
	if err := s.store.UpdateStatus(ctx, t.ID, transfer.StatusMinted, ""); err != nil {
		s.recordFailure(ctx, t.ID, req.FromChain, req.ToChain, err)
		return t.ID, apperrors.GeneralError(fmt.Errorf("failed to mark transfer minted: %w", err))
	}

	metrics.TransfersTotal.WithLabelValues(req.FromChain, req.ToChain, string(transfer.StatusMinted)).Inc()
	metrics.TransferDuration.WithLabelValues(req.FromChain, req.ToChain).Observe(time.Since(started).Seconds())

	s.logger.Info("Bridge transfer completed",
		zap.String("id", t.ID),
		zap.String("src_tx_hash", srcTxHash),
		zap.String("dst_tx_hash", dstTxHash))
	return t.ID, nil
}

func (s *bridgeService) GetBridgeStatus(ctx context.Context, id string) (*Status, error) {
	t, err := s.store.GetTransfer(ctx, id)
	if err != nil {
		if errors.Is(err, transferstore.ErrTransferNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "transfer not found")
		}
		return nil, apperrors.GeneralError(fmt.Errorf("failed to load transfer: %w", err))
	}

	return &Status{
		ID:        t.ID,
		Status:    t.Status.Reportable(),
		FromChain: t.FromChain,
		ToChain:   t.ToChain,
		Amount:    t.Amount,
	}, nil
}

// recordFailure marks the transfer failed before the error is surfaced, so
// state is never silently lost even when the in-flight caller gets an error.
func (s *bridgeService) recordFailure(ctx context.Context, id, fromChain, toChain string, cause error) {
	metrics.TransfersTotal.WithLabelValues(fromChain, toChain, string(transfer.StatusFailed)).Inc()
	metrics.ErrorsTotal.WithLabelValues("coordinator", categoryLabel(cause)).Inc()

	if err := s.store.UpdateStatus(ctx, id, transfer.StatusFailed, cause.Error()); err != nil {
		s.logger.Error("Failed to record transfer failure",
			zap.String("id", id),
			zap.NamedError("cause", cause),
			zap.Error(err))
	}
}

func categoryLabel(err error) string {
	var svcErr *apperrors.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Category.String()
	}
	return apperrors.CategoryGeneralError.String()
}
