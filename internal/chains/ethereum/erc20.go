// internal/chains/ethereum/erc20.go
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/ombima56/TranspaCharity/internal/domain"
)

// ReceiptReader is implemented by providers that can report mined receipts.
// When available the gateway waits for the approval to be mined before it
// submits the donation.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Donate makes a USDC donation in two phases: approve the donation contract
// to pull amount from the donor, then call donateUsdc. The donation is never
// submitted when the approval fails.
//
// If the approval succeeds and the donation fails the allowance is left in
// place; the returned *domain.TxError has AllowanceGranted set and a retry
// can reuse it.
func (g *Gateway) Donate(ctx context.Context, charityID uint64, amount *big.Int) (common.Hash, error) {
	if err := validAmount(amount); err != nil {
		return common.Hash{}, err
	}
	from, err := g.sender()
	if err != nil {
		return common.Hash{}, err
	}

	g.logger.Info("Sending USDC donation",
		zap.String("from", from.Hex()),
		zap.Uint64("charity_id", charityID),
		zap.String("amount", amount.String()),
		zap.String("token", g.network.USDC.Hex()))

	// Phase 1: approve
	approveHash, err := g.approve(ctx, from, g.network.DonationContract, amount)
	if err != nil {
		g.metrics.ObserveDonation("USDC", err)
		g.logger.Error("USDC approval failed",
			zap.Uint64("charity_id", charityID),
			zap.Error(err))
		return common.Hash{}, &domain.TxError{Phase: domain.PhaseApproval, Err: err}
	}

	// Phase 2: donate
	data, err := g.donationABI.Pack("donateUsdc", new(big.Int).SetUint64(charityID), amount)
	if err != nil {
		return common.Hash{}, &domain.TxError{
			Phase:            domain.PhaseDonate,
			AllowanceGranted: true,
			Err:              fmt.Errorf("failed to pack donateUsdc: %w", err),
		}
	}

	txHash, err := g.send(ctx, from, g.network.DonationContract, nil, data, "donateUsdc")
	g.metrics.ObserveDonation("USDC", err)
	if err != nil {
		g.logger.Warn("USDC donation failed after approval, allowance left in place",
			zap.String("approve_tx", approveHash.Hex()),
			zap.Uint64("charity_id", charityID),
			zap.Error(err))
		return common.Hash{}, &domain.TxError{Phase: domain.PhaseDonate, AllowanceGranted: true, Err: err}
	}

	g.logger.Info("USDC donation sent",
		zap.String("approve_tx", approveHash.Hex()),
		zap.String("tx_hash", txHash.Hex()),
		zap.Uint64("charity_id", charityID))

	return txHash, nil
}

// approve grants spender an allowance of amount and, when the provider can
// report receipts, waits for it to be mined successfully.
func (g *Gateway) approve(ctx context.Context, owner, spender common.Address, amount *big.Int) (common.Hash, error) {
	data, err := g.tokenABI.Pack("approve", spender, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack approve: %w", err)
	}

	hash, err := g.send(ctx, owner, g.network.USDC, nil, data, "approve")
	if err != nil {
		return common.Hash{}, err
	}

	if err := g.waitMined(ctx, hash); err != nil {
		return hash, err
	}
	return hash, nil
}

// Allowance returns how much spender may still pull from owner.
func (g *Gateway) Allowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	var allowance *big.Int
	if err := g.call(ctx, g.network.USDC, g.tokenABI, "allowance", &allowance, owner, g.network.DonationContract); err != nil {
		return nil, fmt.Errorf("failed to get allowance: %w", err)
	}
	return orZero(allowance), nil
}

// TokenDecimals reads decimals() from the token contract.
func (g *Gateway) TokenDecimals(ctx context.Context) (int32, error) {
	var decimals uint8
	if err := g.call(ctx, g.network.USDC, g.tokenABI, "decimals", &decimals); err != nil {
		return 0, fmt.Errorf("failed to get token decimals: %w", err)
	}
	return int32(decimals), nil
}

// waitMined polls for the receipt of hash. Providers without receipt support
// are trusted to order the follow-up transaction after this one.
func (g *Gateway) waitMined(ctx context.Context, hash common.Hash) error {
	reader, ok := g.provider.(ReceiptReader)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(g.opts.ReceiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := reader.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("%w: transaction %s reverted", domain.ErrTransactionFailed, hash.Hex())
			}
			return nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			return fmt.Errorf("%w: failed to get receipt: %v", domain.ErrTransactionFailed, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting for %s: %v", domain.ErrTransactionFailed, hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
