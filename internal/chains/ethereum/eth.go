// internal/chains/ethereum/eth.go
package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ombima56/TranspaCharity/internal/domain"
)

// DonateNative sends amountWei to the payable donateEth entrypoint.
func (g *Gateway) DonateNative(ctx context.Context, charityID uint64, amountWei *big.Int) (common.Hash, error) {
	if err := validAmount(amountWei); err != nil {
		return common.Hash{}, err
	}
	from, err := g.sender()
	if err != nil {
		return common.Hash{}, err
	}

	g.logger.Info("Sending ETH donation",
		zap.String("from", from.Hex()),
		zap.Uint64("charity_id", charityID),
		zap.String("amount_wei", amountWei.String()))

	data, err := g.donationABI.Pack("donateEth", new(big.Int).SetUint64(charityID))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack donateEth: %w", err)
	}

	txHash, err := g.send(ctx, from, g.network.DonationContract, amountWei, data, "donateEth")
	g.metrics.ObserveDonation("ETH", err)
	if err != nil {
		g.logger.Error("Failed to make ETH donation", zap.Error(err))
		return common.Hash{}, &domain.TxError{Phase: domain.PhaseDonate, Err: err}
	}

	g.logger.Info("ETH donation sent",
		zap.String("tx_hash", txHash.Hex()),
		zap.Uint64("charity_id", charityID))

	return txHash, nil
}
