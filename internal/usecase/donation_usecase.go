// internal/usecase/donation_usecase.go
package usecase

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ombima56/TranspaCharity/internal/amount"
	"github.com/ombima56/TranspaCharity/internal/broadcast"
	"github.com/ombima56/TranspaCharity/internal/chains/ethereum"
	"github.com/ombima56/TranspaCharity/internal/domain"
	"github.com/ombima56/TranspaCharity/internal/history"
	"github.com/ombima56/TranspaCharity/internal/wallet"
)

const etherDecimals = 18

// DonationResult describes a submitted donation.
type DonationResult struct {
	TxHash    common.Hash    `json:"txHash"`
	Donor     common.Address `json:"donor"`
	CharityID uint64         `json:"charityId"`
	Asset     string         `json:"asset"`
	Amount    string         `json:"amount"` // base units
}

type DonationUsecase struct {
	session *wallet.Session
	reader  *history.Reader
	logger  *zap.Logger

	mu          sync.Mutex
	reloadHooks []func(chainID int64)
}

func NewDonationUsecase(session *wallet.Session, reader *history.Reader, logger *zap.Logger) *DonationUsecase {
	return &DonationUsecase{
		session: session,
		reader:  reader,
		logger:  logger,
	}
}

// Initialize prepares the wallet session.
func (uc *DonationUsecase) Initialize(ctx context.Context) (domain.WalletState, error) {
	err := uc.session.Initialize(ctx)
	return uc.session.State(), err
}

// ConnectWallet prompts the wallet for account access.
func (uc *DonationUsecase) ConnectWallet(ctx context.Context) (domain.WalletState, error) {
	err := uc.session.Connect(ctx)
	return uc.session.State(), err
}

// DisconnectWallet forgets the connected account locally.
func (uc *DonationUsecase) DisconnectWallet() domain.WalletState {
	uc.session.Disconnect()
	return uc.session.State()
}

func (uc *DonationUsecase) GetState() domain.WalletState {
	return uc.session.State()
}

func (uc *DonationUsecase) Status() domain.SessionStatus {
	return uc.session.Status()
}

func (uc *DonationUsecase) Subscribe(fn broadcast.Listener) broadcast.Unsubscribe {
	return uc.session.Subscribe(fn)
}

// OnReload registers fn to run after the wallet switched chains.
func (uc *DonationUsecase) OnReload(fn func(chainID int64)) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.reloadHooks = append(uc.reloadHooks, fn)
}

// Reload re-initializes the session from scratch after a chain switch and
// tells registered hooks about it.
func (uc *DonationUsecase) Reload(chainID int64) {
	uc.logger.Info("Reloading after chain change", zap.Int64("chain_id", chainID))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := uc.session.Initialize(ctx); err != nil {
		uc.logger.Error("Failed to re-initialize wallet", zap.Error(err))
	}

	uc.mu.Lock()
	hooks := make([]func(int64), len(uc.reloadHooks))
	copy(hooks, uc.reloadHooks)
	uc.mu.Unlock()
	for _, hook := range hooks {
		hook(chainID)
	}
}

// Network returns the deployment the session is bound to.
func (uc *DonationUsecase) Network() (domain.Network, error) {
	gw, err := uc.session.Gateway()
	if err != nil {
		return domain.Network{}, err
	}
	return gw.Network(), nil
}

// GetCharities lists all registered charities.
func (uc *DonationUsecase) GetCharities(ctx context.Context) ([]domain.Charity, error) {
	gw, err := uc.session.Gateway()
	if err != nil {
		return nil, err
	}
	return gw.Charities(ctx)
}

// GetDonations returns readable donation history. It never fails; without
// bindings the history is empty.
func (uc *DonationUsecase) GetDonations(ctx context.Context) []domain.DonationRecord {
	// The gateway is captured once so a chain switch mid-scan does not mix
	// records from two deployments.
	gw, err := uc.session.Gateway()
	if err != nil {
		uc.logger.Warn("Donation history requested before initialization", zap.Error(err))
		return []domain.DonationRecord{}
	}
	return uc.reader.Donations(ctx, gw)
}

// DonateUSDC donates amount base units of USDC to charityID.
func (uc *DonationUsecase) DonateUSDC(ctx context.Context, charityID uint64, units *big.Int) (*DonationResult, error) {
	gw, err := uc.gatewayFor(ctx, charityID)
	if err != nil {
		return nil, err
	}

	hash, err := gw.Donate(ctx, charityID, units)
	if err != nil {
		return nil, err
	}
	return uc.result(hash, charityID, "USDC", units), nil
}

// DonateUSDCAmount donates a decimal USDC amount such as "12.50".
func (uc *DonationUsecase) DonateUSDCAmount(ctx context.Context, charityID uint64, value string) (*DonationResult, error) {
	gw, err := uc.session.Gateway()
	if err != nil {
		return nil, err
	}

	decimals := gw.Network().USDCDecimals
	if decimals <= 0 {
		if decimals, err = gw.TokenDecimals(ctx); err != nil {
			return nil, err
		}
	}

	units, err := amount.ToSmallestUnit(value, decimals)
	if err != nil {
		return nil, err
	}
	return uc.DonateUSDC(ctx, charityID, units)
}

// DonateETH sends wei to charityID.
func (uc *DonationUsecase) DonateETH(ctx context.Context, charityID uint64, wei *big.Int) (*DonationResult, error) {
	gw, err := uc.gatewayFor(ctx, charityID)
	if err != nil {
		return nil, err
	}

	hash, err := gw.DonateNative(ctx, charityID, wei)
	if err != nil {
		return nil, err
	}
	return uc.result(hash, charityID, "ETH", wei), nil
}

// DonateETHAmount donates a decimal ether amount such as "0.05".
func (uc *DonationUsecase) DonateETHAmount(ctx context.Context, charityID uint64, value string) (*DonationResult, error) {
	wei, err := amount.ToSmallestUnit(value, etherDecimals)
	if err != nil {
		return nil, err
	}
	return uc.DonateETH(ctx, charityID, wei)
}

// Allowance returns the USDC the donation contract may still pull from the
// connected account.
func (uc *DonationUsecase) Allowance(ctx context.Context) (*big.Int, error) {
	gw, err := uc.session.Gateway()
	if err != nil {
		return nil, err
	}
	state := uc.session.State()
	if !state.IsConnected || state.Account == nil {
		return nil, domain.ErrNotInitialized
	}
	return gw.Allowance(ctx, *state.Account)
}

// gatewayFor returns the bindings after checking charityID exists.
func (uc *DonationUsecase) gatewayFor(ctx context.Context, charityID uint64) (*ethereum.Gateway, error) {
	gw, err := uc.session.Gateway()
	if err != nil {
		return nil, err
	}
	count, err := gw.CharityCount(ctx)
	if err != nil {
		return nil, err
	}
	if charityID >= count {
		return nil, fmt.Errorf("%w: %d (have %d)", domain.ErrInvalidCharity, charityID, count)
	}
	return gw, nil
}

func (uc *DonationUsecase) result(hash common.Hash, charityID uint64, asset string, units *big.Int) *DonationResult {
	res := &DonationResult{
		TxHash:    hash,
		CharityID: charityID,
		Asset:     asset,
		Amount:    units.String(),
	}
	if acc := uc.session.State().Account; acc != nil {
		res.Donor = *acc
	}
	return res
}
