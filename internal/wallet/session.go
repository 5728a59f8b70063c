// internal/wallet/session.go
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ombima56/TranspaCharity/internal/broadcast"
	"github.com/ombima56/TranspaCharity/internal/chains"
	"github.com/ombima56/TranspaCharity/internal/chains/ethereum"
	"github.com/ombima56/TranspaCharity/internal/domain"
	"github.com/ombima56/TranspaCharity/internal/metrics"
)

// Messages stored in WalletState.Error.
const (
	msgProviderUnavailable = "provider unavailable"
	msgInitFailed          = "failed to initialize wallet"
	msgConnectFailed       = "failed to connect wallet"
	msgUserRejected        = "user rejected the request"
)

var errConnect = errors.New("failed to connect wallet")

// ReloadFunc is called after the provider switched chains. Contract bindings
// are chain specific, so the host is expected to re-initialize the session
// from scratch rather than patch the old bindings.
type ReloadFunc func(chainID int64)

// Options configures a Session.
type Options struct {
	Gateway ethereum.Options
	// Reload overrides the default chain-change policy, which re-runs
	// Initialize on the session itself.
	Reload ReloadFunc
	// EventTimeout bounds provider calls made while handling events.
	EventTimeout time.Duration
}

// Session owns the wallet connection lifecycle and the current WalletState.
type Session struct {
	provider    domain.Provider
	registry    *chains.Registry
	broadcaster *broadcast.Broadcaster
	opts        Options
	logger      *zap.Logger
	metrics     *metrics.Metrics

	mu          sync.Mutex
	initialized bool
	connecting  bool
	gateway     *ethereum.Gateway
	listener    *Listener

	initMu  sync.Mutex
	connect singleflight.Group
}

// NewSession creates an uninitialized session. provider may be nil when no
// wallet is available.
func NewSession(
	provider domain.Provider,
	registry *chains.Registry,
	broadcaster *broadcast.Broadcaster,
	opts Options,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Session {
	if opts.EventTimeout <= 0 {
		opts.EventTimeout = 10 * time.Second
	}
	return &Session{
		provider:    provider,
		registry:    registry,
		broadcaster: broadcaster,
		opts:        opts,
		logger:      logger,
		metrics:     m,
	}
}

// State returns the current wallet snapshot.
func (s *Session) State() domain.WalletState {
	return s.broadcaster.State()
}

// Subscribe registers fn for state snapshots; fn is called once immediately.
func (s *Session) Subscribe(fn broadcast.Listener) broadcast.Unsubscribe {
	return s.broadcaster.Subscribe(fn)
}

// Status returns the lifecycle phase.
func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	initialized, connecting := s.initialized, s.connecting
	s.mu.Unlock()

	switch {
	case !initialized:
		return domain.StatusUninitialized
	case connecting:
		return domain.StatusConnecting
	case s.State().IsConnected:
		return domain.StatusConnected
	default:
		return domain.StatusDisconnected
	}
}

// Gateway returns the contract bindings of the current chain.
func (s *Session) Gateway() (*ethereum.Gateway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gateway == nil {
		return nil, domain.ErrNotInitialized
	}
	return s.gateway, nil
}

// Initialize binds the contracts for the provider's chain, starts listening
// for provider events and picks up an already authorised account. On failure
// the session is left disconnected with the error message set.
func (s *Session) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.provider == nil {
		s.logger.Warn("No wallet provider available")
		s.publish(domain.DisconnectedState().WithError(msgProviderUnavailable))
		return domain.ErrProviderUnavailable
	}

	// 1. Resolve chain and bind contracts
	chainID, err := s.provider.ChainID(ctx)
	if err != nil {
		s.logger.Error("Failed to initialize wallet", zap.Error(err))
		s.publish(domain.DisconnectedState().WithError(msgInitFailed))
		return fmt.Errorf("failed to get chain ID: %w", err)
	}

	gateway, err := s.bind(chainID)
	if err != nil {
		s.logger.Error("Failed to initialize wallet", zap.Error(err))
		s.publish(domain.DisconnectedState().WithError(msgInitFailed))
		return err
	}

	// 2. Listen for provider events
	s.mu.Lock()
	s.gateway = gateway
	s.initialized = true
	if s.listener == nil {
		s.listener = NewListener(s.provider, s, s.logger)
		s.listener.Start()
	}
	s.mu.Unlock()

	// 3. Passive check for an authorised account
	accounts, err := s.provider.Accounts(ctx)
	if err != nil {
		s.logger.Warn("Could not check for authorised accounts", zap.Error(err))
		return nil
	}
	if len(accounts) > 0 {
		s.logger.Info("Wallet already connected",
			zap.String("account", accounts[0].Hex()),
			zap.Int64("chain_id", chainID))
		s.publish(domain.ConnectedState(accounts[0], chainID))
	}

	return nil
}

// bind builds contract bindings for chainID, falling back to the default
// network when the chain has no known deployment.
func (s *Session) bind(chainID int64) (*ethereum.Gateway, error) {
	network, found, err := s.registry.Resolve(chainID)
	if err != nil {
		return nil, err
	}
	if !found {
		s.logger.Warn("No donation deployment for provider chain, using default network",
			zap.Int64("provider_chain_id", chainID),
			zap.Int64("default_chain_id", network.ChainID))
	}
	return ethereum.NewGateway(s.provider, network, s, s.opts.Gateway, s.logger, s.metrics)
}

// Connect asks the provider for account access. Concurrent callers share one
// request; a connected session returns immediately.
func (s *Session) Connect(ctx context.Context) error {
	if s.State().IsConnected {
		return nil
	}
	_, err, _ := s.connect.Do("connect", func() (interface{}, error) {
		return nil, s.doConnect(ctx)
	})
	return err
}

func (s *Session) doConnect(ctx context.Context) error {
	if !s.isInitialized() {
		if err := s.Initialize(ctx); err != nil {
			return err
		}
	}
	if s.State().IsConnected {
		return nil
	}

	s.setConnecting(true)
	accounts, err := s.provider.RequestAccounts(ctx)
	if err == nil && len(accounts) == 0 {
		err = domain.ErrNoAccounts
	}
	if err != nil {
		return s.connectFailed(err)
	}

	chainID, err := s.provider.ChainID(ctx)
	if err != nil {
		return s.connectFailed(err)
	}
	s.setConnecting(false)

	s.logger.Info("Wallet connected",
		zap.String("account", accounts[0].Hex()),
		zap.Int64("chain_id", chainID))
	s.publish(domain.ConnectedState(accounts[0], chainID))
	return nil
}

func (s *Session) connectFailed(err error) error {
	s.setConnecting(false)
	err = domain.ClassifyProviderError(err, errConnect)
	if errors.Is(err, domain.ErrUserRejected) {
		s.logger.Info("Wallet connection rejected by user")
		s.publish(domain.DisconnectedState().WithError(msgUserRejected))
		return err
	}
	s.logger.Error("Failed to connect wallet", zap.Error(err))
	s.publish(domain.DisconnectedState().WithError(msgConnectFailed))
	return err
}

// Disconnect resets the state regardless of what it was.
func (s *Session) Disconnect() {
	s.logger.Info("Wallet disconnected")
	s.publish(domain.DisconnectedState())
}

// Close stops listening for provider events.
func (s *Session) Close() {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()
	if listener != nil {
		listener.Stop()
	}
}

// AccountsChanged handles the provider's account list changing.
func (s *Session) AccountsChanged(accounts []common.Address) {
	if len(accounts) == 0 {
		s.logger.Info("Provider reported no accounts, disconnecting")
		s.publish(domain.DisconnectedState())
		return
	}

	current := s.State()
	var chainID int64
	if current.ChainID != nil {
		chainID = *current.ChainID
	} else if s.provider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.EventTimeout)
		id, err := s.provider.ChainID(ctx)
		cancel()
		if err != nil {
			s.logger.Warn("Could not read chain ID after account change", zap.Error(err))
		}
		chainID = id
	}

	s.logger.Info("Wallet account changed", zap.String("account", accounts[0].Hex()))
	s.publish(domain.ConnectedState(accounts[0], chainID))
}

// ChainChanged records the new chain, drops the contract bindings and
// triggers a full re-initialization.
func (s *Session) ChainChanged(chainID int64) {
	s.logger.Info("Wallet chain changed, contract bindings invalidated", zap.Int64("chain_id", chainID))
	s.broadcaster.Update(func(st domain.WalletState) domain.WalletState {
		return st.WithChainID(chainID)
	})

	s.mu.Lock()
	s.gateway = nil
	s.mu.Unlock()

	if s.opts.Reload != nil {
		s.opts.Reload(chainID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.EventTimeout)
	defer cancel()
	if err := s.Initialize(ctx); err != nil {
		s.logger.Error("Failed to re-initialize after chain change", zap.Error(err))
	}
}

// ProviderDisconnected handles the provider dropping the connection.
func (s *Session) ProviderDisconnected(err error) {
	s.logger.Warn("Wallet provider disconnected", zap.Error(err))
	s.publish(domain.DisconnectedState())
}

func (s *Session) publish(state domain.WalletState) {
	s.broadcaster.Publish(state)
	s.metrics.ObserveWalletState(state.IsConnected)
}

func (s *Session) isInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Session) setConnecting(v bool) {
	s.mu.Lock()
	s.connecting = v
	s.mu.Unlock()
}
