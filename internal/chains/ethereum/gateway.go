// internal/chains/ethereum/gateway.go
package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ombima56/TranspaCharity/internal/domain"
	"github.com/ombima56/TranspaCharity/internal/metrics"
)

// AccountSource supplies the account that signs donation writes.
type AccountSource interface {
	State() domain.WalletState
}

// Options tunes write confirmation.
type Options struct {
	// ReceiptPollInterval is how often a pending approval is checked when the
	// provider can report receipts.
	ReceiptPollInterval time.Duration
	// ReceiptTimeout bounds the wait for an approval to be mined.
	ReceiptTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReceiptPollInterval <= 0 {
		o.ReceiptPollInterval = 2 * time.Second
	}
	if o.ReceiptTimeout <= 0 {
		o.ReceiptTimeout = 3 * time.Minute
	}
	return o
}

// Gateway binds the donation contract and its token for one chain.
type Gateway struct {
	provider    domain.Provider
	network     domain.Network
	accounts    AccountSource
	donationABI abi.ABI
	tokenABI    abi.ABI
	opts        Options
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// NewGateway creates contract bindings for network.
func NewGateway(
	provider domain.Provider,
	network domain.Network,
	accounts AccountSource,
	opts Options,
	logger *zap.Logger,
	m *metrics.Metrics,
) (*Gateway, error) {
	if provider == nil {
		return nil, domain.ErrProviderUnavailable
	}
	donation, err := DonationABI()
	if err != nil {
		return nil, err
	}
	token, err := TokenABI()
	if err != nil {
		return nil, err
	}

	logger.Info("Donation contract bound",
		zap.Int64("chain_id", network.ChainID),
		zap.String("network", network.Name),
		zap.String("donation_contract", network.DonationContract.Hex()),
		zap.String("usdc", network.USDC.Hex()))

	return &Gateway{
		provider:    provider,
		network:     network,
		accounts:    accounts,
		donationABI: donation,
		tokenABI:    token,
		opts:        opts.withDefaults(),
		logger:      logger,
		metrics:     m,
	}, nil
}

// Network returns the chain the gateway is bound to.
func (g *Gateway) Network() domain.Network {
	return g.network
}

// CharityCount returns the number of registered charities.
func (g *Gateway) CharityCount(ctx context.Context) (uint64, error) {
	count, err := g.readUint(ctx, "charityCount")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrContractUnreachable, err)
	}
	return count, nil
}

// Charity reads charity id. Ids outside [0, count) fail on the contract side.
func (g *Gateway) Charity(ctx context.Context, id uint64) (*domain.Charity, error) {
	var out struct {
		Name               string
		Description        string
		WalletAddress      common.Address
		IsVerified         bool
		TotalUsdcDonations *big.Int
		TotalEthDonations  *big.Int
	}
	if err := g.call(ctx, g.network.DonationContract, g.donationABI, "getCharity", &out, new(big.Int).SetUint64(id)); err != nil {
		return nil, fmt.Errorf("failed to get charity %d: %w", id, err)
	}

	return &domain.Charity{
		ID:                 id,
		Name:               out.Name,
		Description:        out.Description,
		WalletAddress:      out.WalletAddress,
		IsVerified:         out.IsVerified,
		TotalUSDCDonations: orZero(out.TotalUsdcDonations),
		TotalETHDonations:  orZero(out.TotalEthDonations),
	}, nil
}

// Charities reads every charity in index order. The first failure aborts the
// listing.
func (g *Gateway) Charities(ctx context.Context) ([]domain.Charity, error) {
	count, err := g.CharityCount(ctx)
	if err != nil {
		return nil, err
	}

	charities := make([]domain.Charity, 0, count)
	for i := uint64(0); i < count; i++ {
		charity, err := g.Charity(ctx, i)
		if err != nil {
			g.logger.Error("Failed to get charities", zap.Uint64("charity_id", i), zap.Error(err))
			return nil, err
		}
		charities = append(charities, *charity)
	}
	return charities, nil
}

// DonationCount calls the optional getDonationCount accessor. Older
// deployments do not have it.
func (g *Gateway) DonationCount(ctx context.Context) (uint64, error) {
	count, err := g.readUint(ctx, "getDonationCount")
	if err != nil {
		return 0, fmt.Errorf("failed to get donation count: %w", err)
	}
	return count, nil
}

// Donation reads donation record id.
func (g *Gateway) Donation(ctx context.Context, id uint64) (*domain.DonationRecord, error) {
	var out struct {
		Donor     common.Address
		CharityId *big.Int
		Amount    *big.Int
		Timestamp *big.Int
		IsEth     bool
	}
	if err := g.call(ctx, g.network.DonationContract, g.donationABI, "getDonation", &out, new(big.Int).SetUint64(id)); err != nil {
		return nil, fmt.Errorf("failed to get donation %d: %w", id, err)
	}

	return &domain.DonationRecord{
		ID:        id,
		Donor:     out.Donor,
		CharityID: orZero(out.CharityId).Uint64(),
		Amount:    orZero(out.Amount),
		Timestamp: orZero(out.Timestamp).Int64(),
		IsETH:     out.IsEth,
	}, nil
}

// readUint calls a no-argument uint256 view on the donation contract.
func (g *Gateway) readUint(ctx context.Context, method string) (uint64, error) {
	var value *big.Int
	if err := g.call(ctx, g.network.DonationContract, g.donationABI, method, &value); err != nil {
		return 0, err
	}
	if value == nil {
		return 0, nil
	}
	if !value.IsUint64() {
		return 0, fmt.Errorf("%s returned out of range value %s", method, value.String())
	}
	return value.Uint64(), nil
}

// call packs method, runs it through the provider and unpacks into out.
func (g *Gateway) call(ctx context.Context, contract common.Address, parsed abi.ABI, method string, out interface{}, args ...interface{}) (err error) {
	started := time.Now()
	defer func() { g.metrics.ObserveCall(method, started, err) }()

	data, err := parsed.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", method, err)
	}

	to := contract
	result, err := g.provider.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data})
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}

	// An empty result means there is no code at the address or the method
	// does not exist on this deployment.
	if len(result) == 0 {
		return fmt.Errorf("empty result from %s at %s", method, contract.Hex())
	}

	if err := parsed.UnpackIntoInterface(out, method, result); err != nil {
		return fmt.Errorf("failed to unpack %s: %w", method, err)
	}

	g.logger.Debug("Contract call completed",
		zap.String("method", method),
		zap.String("contract", contract.Hex()))
	return nil
}

// sender returns the connected account or ErrNotInitialized.
func (g *Gateway) sender() (common.Address, error) {
	if g.accounts == nil {
		return common.Address{}, domain.ErrNotInitialized
	}
	state := g.accounts.State()
	if !state.IsConnected || state.Account == nil {
		return common.Address{}, domain.ErrNotInitialized
	}
	return *state.Account, nil
}

// send submits a state-changing call through the provider.
func (g *Gateway) send(ctx context.Context, from, to common.Address, value *big.Int, data []byte, method string) (hash common.Hash, err error) {
	started := time.Now()
	defer func() { g.metrics.ObserveCall(method, started, err) }()

	msg := ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  data,
	}
	hash, err = g.provider.SendTransaction(ctx, msg)
	if err != nil {
		return common.Hash{}, domain.ClassifyProviderError(err, domain.ErrTransactionFailed)
	}
	return hash, nil
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidAmount)
	}
	// uint256 arguments wider than 256 bits would be truncated when packed.
	if amount.BitLen() > 256 {
		return fmt.Errorf("%w: amount exceeds uint256", domain.ErrInvalidAmount)
	}
	return nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

