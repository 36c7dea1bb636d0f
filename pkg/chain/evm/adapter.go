// Package evm implements the chain adapter for EVM-compatible networks.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainflux/tokenbridge/internal/metrics"
	apperrors "github.com/chainflux/tokenbridge/pkg/app/errors"
	"github.com/chainflux/tokenbridge/pkg/chain"
	"github.com/chainflux/tokenbridge/pkg/config"
)

// Adapter talks to one EVM-compatible network through its JSON-RPC endpoint
// and the bridge contract deployed there.
type Adapter struct {
	cfg        config.EVMChainConfig
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	bridge     *BridgeContract
	logger     *zap.Logger
}

var _ chain.Adapter = (*Adapter)(nil)

// New constructs an EVM adapter from a network configuration record. The
// signing key is read from the environment variable named by
// cfg.PrivateKeyEnv; it is never stored in the configuration itself.
func New(cfg config.EVMChainConfig, logger *zap.Logger) (*Adapter, error) {
	if !cfg.Enabled() {
		return nil, apperrors.ConfigurationError(nil,
			fmt.Sprintf("chain %q is missing rpc_url or bridge_contract", cfg.Name))
	}
	if cfg.PrivateKeyEnv == "" {
		return nil, apperrors.ConfigurationError(nil,
			fmt.Sprintf("chain %q has no private_key_env configured", cfg.Name))
	}

	rawKey := os.Getenv(cfg.PrivateKeyEnv)
	if rawKey == "" {
		return nil, apperrors.ConfigurationError(nil,
			fmt.Sprintf("signing key environment variable %s is not set", cfg.PrivateKeyEnv))
	}
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(rawKey, "0x"))
	if err != nil {
		return nil, apperrors.SigningError(err, "failed to parse signing key")
	}

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, apperrors.DependencyFailureError(err,
			fmt.Sprintf("failed to connect to %s RPC", cfg.Name))
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)
	bridge := NewBridgeContract(common.HexToAddress(cfg.BridgeContract), client)

	logger.Info("Connected to EVM network",
		zap.String("chain", cfg.Name),
		zap.String("rpc_url", cfg.RPCURL),
		zap.String("bridge_contract", bridge.Address().Hex()),
		zap.String("signer", address.Hex()))

	return &Adapter{
		cfg:        cfg,
		client:     client,
		privateKey: privateKey,
		address:    address,
		bridge:     bridge,
		logger:     logger,
	}, nil
}

// Close releases the underlying RPC connection.
func (a *Adapter) Close() {
	a.client.Close()
}

// Name returns the configured chain name.
func (a *Adapter) Name() string {
	return a.cfg.Name
}

// SupportsToken reports whether the configured bridge carries the token.
// An unset token_symbol means the bridge accepts any symbol.
func (a *Adapter) SupportsToken(token string) bool {
	return a.cfg.TokenSymbol == "" || strings.EqualFold(a.cfg.TokenSymbol, token)
}

// Lock escrows tokens in the bridge contract. It ensures the bridge has a
// sufficient ERC-20 allowance before submitting the lock transaction.
func (a *Adapter) Lock(ctx context.Context, user, token string, amount decimal.Decimal, destChain string) (string, error) {
	if !a.SupportsToken(token) {
		metrics.AdapterCallsTotal.WithLabelValues(a.cfg.Name, "lock", "error").Inc()
		return "", apperrors.NotSupportedError(nil,
			fmt.Sprintf("token %q is not supported on chain %q", token, a.cfg.Name))
	}
	if a.cfg.TokenContract == "" {
		metrics.AdapterCallsTotal.WithLabelValues(a.cfg.Name, "lock", "error").Inc()
		return "", apperrors.ConfigurationError(nil,
			fmt.Sprintf("chain %q has no token_contract configured", a.cfg.Name))
	}

	tokenAddress := common.HexToAddress(a.cfg.TokenContract)
	erc20 := NewERC20(tokenAddress, a.client)

	scaled, err := a.scaleAmount(ctx, erc20, amount)
	if err != nil {
		metrics.AdapterCallsTotal.WithLabelValues(a.cfg.Name, "lock", "error").Inc()
		return "", err
	}

	opts, err := a.transactor(ctx)
	if err != nil {
		metrics.AdapterCallsTotal.WithLabelValues(a.cfg.Name, "lock", "error").Inc()
		return "", err
	}

	allowance, err := erc20.Allowance(&bind.CallOpts{Context: ctx}, a.address, a.bridge.Address())
	if err != nil {
		metrics.AdapterCallsTotal.WithLabelValues(a.cfg.Name, "lock", "error").Inc()
		return "", apperrors.DependencyFailureError(err, "failed to query token allowance")
	}
	if allowance.Cmp(scaled) < 0 {
		approveTx, err := erc20.Approve(opts, a.bridge.Address(), scaled)
		if err != nil {
			metrics.AdapterCallsTotal.WithLabelValues(a.cfg.Name, "lock", "error").Inc()
			return "", a.classify(err, "approve transaction failed")
		}
		a.logger.Debug("Submitted approve transaction",
			zap.String("chain", a.cfg.Name),
			zap.String("tx_hash", approveTx.Hash().Hex()))
		opts.Nonce = new(big.Int).Add(opts.Nonce, big.NewInt(1))
	}

	tx, err := a.bridge.LockTokens(opts, tokenAddress, scaled, destChain, user)
	if err != nil {
		metrics.AdapterCallsTotal.WithLabelValues(a.cfg.Name, "lock", "error").Inc()
		return "", a.classify(err, "lock transaction failed")
	}

	metrics.AdapterCallsTotal.WithLabelValues(a.cfg.Name, "lock", "ok").Inc()
	a.logger.Info("Lock submitted",
		zap.String("chain", a.cfg.Name),
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("amount", amount.String()),
		zap.String("destination", destChain))
	return tx.Hash().Hex(), nil
}

// MintOrRelease mints or releases tokens for a lock on sourceChain. When no
// lock id was captured a deterministic one is derived from the source
// transaction, so retries always present the same identifier to the contract.
func (a *Adapter) MintOrRelease(ctx context.Context, user, token string, amount decimal.Decimal, sourceChain, sourceTxHash, lockID string) (string, error) {
	if !a.SupportsToken(token) {
		metrics.AdapterCallsTotal.WithLabelValues(a.cfg.Name, "mint", "error").Inc()
		return "", apperrors.NotSupportedError(nil,
			fmt.Sprintf("token %q is not supported on chain %q", token, a.cfg.Name))
	}
	if a.cfg.TokenContract == "" {
		metrics.AdapterCallsTotal.WithLabelValues(a.cfg.Name, "mint", "error").Inc()
		return "", apperrors.ConfigurationError(nil,
			fmt.Sprintf("chain %q has no token_contract configured", a.cfg.Name))
	}

	tokenAddress := common.HexToAddress(a.cfg.TokenContract)
	erc20 := NewERC20(tokenAddress, a.client)

	scaled, err := a.scaleAmount(ctx, erc20, amount)
	if err != nil {
		metrics.AdapterCallsTotal.WithLabelValues(a.cfg.Name, "mint", "error").Inc()
		return "", err
	}

	opts, err := a.transactor(ctx)
	if err != nil {
		metrics.AdapterCallsTotal.WithLabelValues(a.cfg.Name, "mint", "error").Inc()
		return "", err
	}

	var lockKey [32]byte
	if lockID != "" {
		lockKey = common.HexToHash(lockID)
	} else {
		lockKey = crypto.Keccak256Hash([]byte(sourceChain + ":" + sourceTxHash))
	}

	tx, err := a.bridge.MintTokens(opts, tokenAddress, user, scaled, sourceChain, sourceTxHash, lockKey)
	if err != nil {
		metrics.AdapterCallsTotal.WithLabelValues(a.cfg.Name, "mint", "error").Inc()
		return "", a.classify(err, "mint transaction failed")
	}

	metrics.AdapterCallsTotal.WithLabelValues(a.cfg.Name, "mint", "ok").Inc()
	a.logger.Info("Mint submitted",
		zap.String("chain", a.cfg.Name),
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("source_chain", sourceChain),
		zap.String("source_tx_hash", sourceTxHash))
	return tx.Hash().Hex(), nil
}

// GetTxStatus reports the observed state of a transaction and how many blocks
// have confirmed it.
func (a *Adapter) GetTxStatus(ctx context.Context, txHash string) (*chain.TxStatus, error) {
	hash := common.HexToHash(txHash)

	receipt, err := a.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return &chain.TxStatus{TxHash: txHash, Status: chain.TxStatusPending}, nil
		}
		return nil, apperrors.DependencyFailureError(err, "failed to query transaction receipt")
	}

	head, err := a.client.BlockNumber(ctx)
	if err != nil {
		return nil, apperrors.DependencyFailureError(err, "failed to query chain head")
	}

	status := chain.TxStatusFailed
	if receipt.Status == 1 {
		status = chain.TxStatusSuccess
	}

	var confirmations uint64
	if block := receipt.BlockNumber.Uint64(); head >= block {
		confirmations = head - block + 1
	}

	return &chain.TxStatus{
		TxHash:        txHash,
		Status:        status,
		Confirmations: confirmations,
	}, nil
}

// ExtractLockID scans the lock transaction's logs for the TokensLocked event
// emitted by the bridge contract.
func (a *Adapter) ExtractLockID(ctx context.Context, txHash string) (string, error) {
	receipt, err := a.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return "", nil
		}
		return "", apperrors.DependencyFailureError(err, "failed to query transaction receipt")
	}

	for _, log := range receipt.Logs {
		if lockID := a.bridge.ParseLockID(*log); lockID != "" {
			return lockID, nil
		}
	}
	return "", nil
}

// scaleAmount converts a chain-agnostic decimal amount to the token's
// smallest on-chain unit.
func (a *Adapter) scaleAmount(ctx context.Context, erc20 *ERC20, amount decimal.Decimal) (*big.Int, error) {
	decimals, err := erc20.Decimals(&bind.CallOpts{Context: ctx})
	if err != nil {
		return nil, apperrors.DependencyFailureError(err, "failed to query token decimals")
	}
	return toBaseUnits(amount, decimals), nil
}

func toBaseUnits(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).BigInt()
}

// transactor builds signed transaction options with the next pending nonce.
func (a *Adapter) transactor(ctx context.Context) (*bind.TransactOpts, error) {
	chainID := big.NewInt(a.cfg.ChainID)
	if a.cfg.ChainID == 0 {
		id, err := a.client.ChainID(ctx)
		if err != nil {
			return nil, apperrors.DependencyFailureError(err, "failed to query chain id")
		}
		chainID = id
	}

	opts, err := bind.NewKeyedTransactorWithChainID(a.privateKey, chainID)
	if err != nil {
		return nil, apperrors.SigningError(err, "failed to create transactor")
	}

	nonce, err := a.client.PendingNonceAt(ctx, a.address)
	if err != nil {
		return nil, apperrors.DependencyFailureError(err, "failed to query account nonce")
	}
	opts.Nonce = new(big.Int).SetUint64(nonce)
	opts.GasLimit = a.cfg.GasLimit
	opts.Context = ctx
	return opts, nil
}

// classify maps a raw submission error onto the adapter error taxonomy.
func (a *Adapter) classify(err error, message string) error {
	if strings.Contains(err.Error(), "execution reverted") {
		return apperrors.TransactionFailedError(err, message)
	}
	return apperrors.DependencyFailureError(err, message)
}
