// Package relayer drives locked-but-unminted transfers to completion. It is
// the recovery path for coordinator restarts and destination-side failures
// that happen after the synchronous path gave up.
package relayer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chainflux/tokenbridge/internal/metrics"
	"github.com/chainflux/tokenbridge/pkg/chain"
	"github.com/chainflux/tokenbridge/pkg/transfer"
	"github.com/chainflux/tokenbridge/pkg/transferstore"
)

// Relayer periodically sweeps the store for transfers stuck in the locked
// state and completes the destination-side mint once the source transaction
// has reached its chain's configured confirmation depth.
type Relayer struct {
	adapters   chain.Registry
	store      transferstore.Store
	thresholds map[string]uint64
	interval   time.Duration
	logger     *zap.Logger
}

// New creates a relayer. thresholds maps a chain name to its confirmation
// depth requirement; chains without an entry require a single confirmation.
func New(adapters chain.Registry, store transferstore.Store, thresholds map[string]uint64, interval time.Duration, logger *zap.Logger) *Relayer {
	return &Relayer{
		adapters:   adapters,
		store:      store,
		thresholds: thresholds,
		interval:   interval,
		logger:     logger,
	}
}

// Run executes reconciliation sweeps until the context is cancelled. The
// sweep interval is the only throttle; transfers within one sweep are
// processed sequentially.
func (r *Relayer) Run(ctx context.Context) {
	r.logger.Info("Relayer started", zap.Duration("sweep_interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Relayer stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single reconciliation pass over all configured chains.
// Failures are recorded on the affected transfer and never propagate; each
// error is scoped to one transfer.
func (r *Relayer) RunOnce(ctx context.Context) {
	metrics.RelayerSweepsTotal.Inc()

	for name := range r.adapters {
		candidates, err := r.store.ListMintable(ctx, name)
		if err != nil {
			r.logger.Error("Failed to list mintable transfers",
				zap.String("chain", name),
				zap.Error(err))
			metrics.ErrorsTotal.WithLabelValues("relayer", "store").Inc()
			continue
		}

		metrics.LockedTransfers.WithLabelValues(name).Set(float64(len(candidates)))
		if len(candidates) == 0 {
			continue
		}

		r.logger.Info("Reconciliation sweep",
			zap.String("chain", name),
			zap.Int("candidates", len(candidates)))

		for _, t := range candidates {
			if ctx.Err() != nil {
				return
			}
			r.processTransfer(ctx, t)
		}
	}
}

func (r *Relayer) processTransfer(ctx context.Context, t *transfer.Transfer) {
	source, ok := r.adapters.Get(t.FromChain)
	if !ok {
		r.logger.Warn("Source chain no longer configured", zap.String("id", t.ID), zap.String("chain", t.FromChain))
		return
	}

	status, err := source.GetTxStatus(ctx, t.SourceTxHash)
	if err != nil {
		// Transient by assumption; the next sweep retries.
		r.logger.Warn("Failed to query source tx status",
			zap.String("id", t.ID),
			zap.String("src_tx_hash", t.SourceTxHash),
			zap.Error(err))
		metrics.ErrorsTotal.WithLabelValues("relayer", "tx_status").Inc()
		return
	}

	if !status.Confirmed(r.threshold(t.FromChain)) {
		r.logger.Debug("Source tx not yet final",
			zap.String("id", t.ID),
			zap.String("status", status.Status),
			zap.Uint64("confirmations", status.Confirmations),
			zap.Uint64("required", r.threshold(t.FromChain)))
		return
	}

	destination, ok := r.adapters.Get(t.ToChain)
	if !ok {
		r.markFailed(ctx, t, "destination chain is no longer configured")
		return
	}

	claimed, err := r.store.ClaimForMint(ctx, t.ID)
	if err != nil {
		r.logger.Error("Failed to claim transfer", zap.String("id", t.ID), zap.Error(err))
		metrics.ErrorsTotal.WithLabelValues("relayer", "store").Inc()
		return
	}
	if !claimed {
		// The coordinator or a concurrent sweep owns this transfer.
		return
	}

	dstTxHash, err := destination.MintOrRelease(ctx, t.UserID, t.Token, t.Amount, t.FromChain, t.SourceTxHash, t.LockID)
	if err != nil {
		r.markFailed(ctx, t, err.Error())
		return
	}

	if err := r.store.SetDestTxHash(ctx, t.ID, dstTxHash); err != nil {
		r.logger.Error("Failed to persist destination tx hash",
			zap.String("id", t.ID),
			zap.String("dst_tx_hash", dstTxHash),
			zap.Error(err))
		metrics.ErrorsTotal.WithLabelValues("relayer", "store").Inc()
		return
	}
	if err := r.store.UpdateStatus(ctx, t.ID, transfer.StatusMinted, ""); err != nil {
		r.logger.Error("Failed to mark transfer minted", zap.String("id", t.ID), zap.Error(err))
		metrics.ErrorsTotal.WithLabelValues("relayer", "store").Inc()
		return
	}

	metrics.RelayerCompletionsTotal.WithLabelValues(t.FromChain, t.ToChain).Inc()
	r.logger.Info("Transfer completed by relayer",
		zap.String("id", t.ID),
		zap.String("dst_tx_hash", dstTxHash))
}

func (r *Relayer) markFailed(ctx context.Context, t *transfer.Transfer, reason string) {
	metrics.ErrorsTotal.WithLabelValues("relayer", "mint").Inc()
	if err := r.store.UpdateStatus(ctx, t.ID, transfer.StatusFailed, reason); err != nil {
		r.logger.Error("Failed to record transfer failure",
			zap.String("id", t.ID),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

func (r *Relayer) threshold(chainName string) uint64 {
	if v, ok := r.thresholds[chainName]; ok && v > 0 {
		return v
	}
	return 1
}
