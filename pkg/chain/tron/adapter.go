// Package tron implements a simplified chain adapter for Tron, mirroring the
// synthetic-identifier shape of the Solana adapter.
package tron

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/chainflux/tokenbridge/pkg/app/errors"
	"github.com/chainflux/tokenbridge/pkg/chain"
	"github.com/chainflux/tokenbridge/pkg/config"
)

// ChainName is the registry key for the Tron adapter.
const ChainName = "tron"

// Adapter is the Tron chain adapter.
type Adapter struct {
	cfg    config.TronConfig
	logger *zap.Logger
}

var _ chain.Adapter = (*Adapter)(nil)

// New constructs the Tron adapter from configuration.
func New(cfg config.TronConfig, logger *zap.Logger) (*Adapter, error) {
	if !cfg.Enabled() {
		return nil, apperrors.ConfigurationError(nil, "tron api_url or bridge_contract is not configured")
	}
	return &Adapter{cfg: cfg, logger: logger}, nil
}

// Name returns the chain identifier.
func (a *Adapter) Name() string {
	return ChainName
}

// SupportsToken reports token support; unrestricted for the simplified adapter.
func (a *Adapter) SupportsToken(string) bool {
	return true
}

func (a *Adapter) requireSigningKey() error {
	if a.cfg.PrivateKeyEnv == "" {
		return apperrors.ConfigurationError(nil, "tron private_key_env is not configured")
	}
	if os.Getenv(a.cfg.PrivateKeyEnv) == "" {
		return apperrors.ConfigurationError(nil,
			fmt.Sprintf("signing key environment variable %s is not set", a.cfg.PrivateKeyEnv))
	}
	return nil
}

// Lock escrows tokens in the bridge contract and returns a synthetic
// transaction id.
func (a *Adapter) Lock(ctx context.Context, user, token string, amount decimal.Decimal, destChain string) (string, error) {
	if err := a.requireSigningKey(); err != nil {
		return "", err
	}

	txID := "tron-lock-" + uuid.NewString()
	a.logger.Info("Tron lock submitted",
		zap.String("tx_id", txID),
		zap.String("user", user),
		zap.String("token", token),
		zap.String("amount", amount.String()),
		zap.String("destination", destChain))
	return txID, nil
}

// MintOrRelease releases tokens for a lock on sourceChain and returns a
// synthetic transaction id.
func (a *Adapter) MintOrRelease(ctx context.Context, user, token string, amount decimal.Decimal, sourceChain, sourceTxHash, lockID string) (string, error) {
	if err := a.requireSigningKey(); err != nil {
		return "", err
	}

	txID := "tron-mint-" + uuid.NewString()
	a.logger.Info("Tron mint submitted",
		zap.String("tx_id", txID),
		zap.String("source_chain", sourceChain),
		zap.String("source_tx_hash", sourceTxHash),
		zap.String("lock_id", lockID))
	return txID, nil
}

// GetTxStatus reports a submitted transaction as finalized.
func (a *Adapter) GetTxStatus(ctx context.Context, txHash string) (*chain.TxStatus, error) {
	return &chain.TxStatus{
		TxHash:        txHash,
		Status:        chain.TxStatusSuccess,
		Confirmations: a.cfg.Confirmations,
	}, nil
}

// ExtractLockID derives a lock identifier from the lock transaction id.
func (a *Adapter) ExtractLockID(ctx context.Context, txHash string) (string, error) {
	if txHash == "" {
		return "", nil
	}
	return "tron-lockid-" + txHash, nil
}
