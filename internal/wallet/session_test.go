package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ombima56/TranspaCharity/internal/broadcast"
	"github.com/ombima56/TranspaCharity/internal/chains"
	"github.com/ombima56/TranspaCharity/internal/domain"
	"github.com/ombima56/TranspaCharity/internal/testutil"
)

const sepolia = int64(11155111)

func newTestSession(t *testing.T, provider domain.Provider, opts Options) *Session {
	t.Helper()
	registry := chains.NewRegistry()
	registry.Register(testutil.Network())
	mainnet := testutil.Network()
	mainnet.ChainID = 1
	mainnet.Name = ""
	registry.Register(mainnet)

	s := NewSession(provider, registry, broadcast.New(domain.DisconnectedState()), opts, zap.NewNop(), nil)
	t.Cleanup(s.Close)
	return s
}

func newProvider(accounts ...common.Address) *testutil.FakeProvider {
	return testutil.NewFakeProvider(testutil.NewFakeChain(nil, nil), sepolia, accounts...)
}

func TestInitializeWithoutProvider(t *testing.T) {
	s := newTestSession(t, nil, Options{})

	err := s.Initialize(context.Background())
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)

	state := s.State()
	assert.False(t, state.IsConnected)
	assert.Equal(t, "provider unavailable", state.Error)
	assert.Equal(t, domain.StatusUninitialized, s.Status())

	_, err = s.Gateway()
	assert.ErrorIs(t, err, domain.ErrNotInitialized)

	err = s.Connect(context.Background())
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestInitializePicksUpAuthorisedAccount(t *testing.T) {
	p := newProvider(testutil.Donor)
	p.Authorise(testutil.Donor)
	s := newTestSession(t, p, Options{})

	require.NoError(t, s.Initialize(context.Background()))

	state := s.State()
	require.True(t, state.IsConnected)
	assert.Equal(t, testutil.Donor, *state.Account)
	assert.Equal(t, sepolia, *state.ChainID)
	assert.Empty(t, state.Error)
	assert.Equal(t, domain.StatusConnected, s.Status())
	assert.Zero(t, p.RequestCount(), "passive check must not prompt the user")

	gw, err := s.Gateway()
	require.NoError(t, err)
	assert.Equal(t, sepolia, gw.Network().ChainID)
}

func TestInitializeWithoutAuthorisedAccount(t *testing.T) {
	s := newTestSession(t, newProvider(testutil.Donor), Options{})

	require.NoError(t, s.Initialize(context.Background()))

	assert.Equal(t, domain.DisconnectedState(), s.State())
	assert.Equal(t, domain.StatusDisconnected, s.Status())
}

func TestInitializeToleratesAccountCheckFailure(t *testing.T) {
	p := newProvider(testutil.Donor)
	p.FailAccounts(errors.New("locked"))
	s := newTestSession(t, p, Options{})

	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, domain.StatusDisconnected, s.Status())

	_, err := s.Gateway()
	assert.NoError(t, err)
}

func TestInitializeChainFailure(t *testing.T) {
	p := newProvider()
	p.FailChainID(errors.New("network down"))
	s := newTestSession(t, p, Options{})

	err := s.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, "failed to initialize wallet", s.State().Error)
	assert.Equal(t, domain.StatusUninitialized, s.Status())
}

func TestReinitializeFailureDisconnects(t *testing.T) {
	p := newProvider(testutil.Donor)
	s := newTestSession(t, p, Options{})
	require.NoError(t, s.Connect(context.Background()))

	p.FailChainID(errors.New("network down"))
	p.Emit(domain.ProviderEvent{Kind: domain.EventChainChanged, ChainID: 1})

	require.Eventually(t, func() bool {
		return s.State().Error != ""
	}, time.Second, 5*time.Millisecond)

	state := s.State()
	assert.Equal(t, "failed to initialize wallet", state.Error)
	assert.False(t, state.IsConnected)
	assert.True(t, state.Valid())
}

func TestInitializeUnknownChainUsesDefaultNetwork(t *testing.T) {
	p := testutil.NewFakeProvider(testutil.NewFakeChain(nil, nil), 31337)
	s := newTestSession(t, p, Options{})

	require.NoError(t, s.Initialize(context.Background()))

	gw, err := s.Gateway()
	require.NoError(t, err)
	assert.Equal(t, sepolia, gw.Network().ChainID)
}

func TestConnectAccepted(t *testing.T) {
	p := newProvider(testutil.Donor)
	s := newTestSession(t, p, Options{})

	require.NoError(t, s.Connect(context.Background()))

	state := s.State()
	require.True(t, state.IsConnected)
	assert.Equal(t, testutil.Donor, *state.Account)
	assert.Equal(t, sepolia, *state.ChainID)
	assert.Equal(t, 1, p.RequestCount())

	// already connected: no second prompt
	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, 1, p.RequestCount())
}

func TestConnectRejected(t *testing.T) {
	p := newProvider(testutil.Donor)
	p.FailRequests(testutil.UserRejected())
	s := newTestSession(t, p, Options{})

	err := s.Connect(context.Background())
	require.ErrorIs(t, err, domain.ErrUserRejected)

	state := s.State()
	assert.False(t, state.IsConnected)
	assert.Nil(t, state.Account)
	assert.Nil(t, state.ChainID)
	assert.Equal(t, "user rejected the request", state.Error)
	assert.True(t, state.Valid())
}

func TestConnectProviderFailure(t *testing.T) {
	p := newProvider(testutil.Donor)
	p.FailRequests(errors.New("wallet locked"))
	s := newTestSession(t, p, Options{})

	err := s.Connect(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUserRejected)
	assert.Contains(t, err.Error(), "wallet locked")
	assert.Equal(t, "failed to connect wallet", s.State().Error)
}

func TestConnectNoAccounts(t *testing.T) {
	s := newTestSession(t, newProvider(), Options{})

	err := s.Connect(context.Background())
	require.ErrorIs(t, err, domain.ErrNoAccounts)
	assert.False(t, s.State().IsConnected)
}

func TestConcurrentConnectSharesOneRequest(t *testing.T) {
	p := newProvider(testutil.Donor)
	s := newTestSession(t, p, Options{})
	require.NoError(t, s.Initialize(context.Background()))

	release := p.HoldRequests()
	defer release()

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Connect(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool {
		return s.Status() == domain.StatusConnecting
	}, time.Second, 5*time.Millisecond)

	release()
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, p.RequestCount())
	assert.True(t, s.State().IsConnected)
}

func TestDisconnectAlwaysResets(t *testing.T) {
	s := newTestSession(t, newProvider(testutil.Donor), Options{})
	require.NoError(t, s.Connect(context.Background()))

	s.Disconnect()
	assert.Equal(t, domain.DisconnectedState(), s.State())

	s.Disconnect()
	assert.Equal(t, domain.DisconnectedState(), s.State())
}

func TestAccountsChangedEmptyDisconnects(t *testing.T) {
	p := newProvider(testutil.Donor)
	s := newTestSession(t, p, Options{})
	require.NoError(t, s.Connect(context.Background()))

	assert.Equal(t, 1, p.Emit(domain.ProviderEvent{Kind: domain.EventAccountsChanged}))

	require.Eventually(t, func() bool {
		return !s.State().IsConnected
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.DisconnectedState(), s.State())
}

func TestAccountsChangedSwitchesAccount(t *testing.T) {
	p := newProvider(testutil.Donor)
	s := newTestSession(t, p, Options{})
	require.NoError(t, s.Connect(context.Background()))

	p.Emit(domain.ProviderEvent{
		Kind:     domain.EventAccountsChanged,
		Accounts: []common.Address{testutil.OtherDonor, testutil.Donor},
	})

	require.Eventually(t, func() bool {
		st := s.State()
		return st.Account != nil && *st.Account == testutil.OtherDonor
	}, time.Second, 5*time.Millisecond)
	state := s.State()
	assert.True(t, state.IsConnected)
	assert.Equal(t, sepolia, *state.ChainID)
}

func TestChainChangedInvokesReload(t *testing.T) {
	reloaded := make(chan int64, 1)
	p := newProvider(testutil.Donor)
	s := newTestSession(t, p, Options{Reload: func(chainID int64) { reloaded <- chainID }})
	require.NoError(t, s.Connect(context.Background()))

	p.SetChainID(1)
	p.Emit(domain.ProviderEvent{Kind: domain.EventChainChanged, ChainID: 1})

	select {
	case id := <-reloaded:
		assert.Equal(t, int64(1), id)
	case <-time.After(time.Second):
		t.Fatal("reload was not triggered")
	}

	state := s.State()
	require.NotNil(t, state.ChainID)
	assert.Equal(t, int64(1), *state.ChainID)

	_, err := s.Gateway()
	assert.ErrorIs(t, err, domain.ErrNotInitialized, "bindings of the old chain must be dropped")
}

func TestChainChangedReinitializesByDefault(t *testing.T) {
	p := newProvider(testutil.Donor)
	s := newTestSession(t, p, Options{})
	require.NoError(t, s.Connect(context.Background()))

	p.SetChainID(1)
	p.Emit(domain.ProviderEvent{Kind: domain.EventChainChanged, ChainID: 1})

	require.Eventually(t, func() bool {
		gw, err := s.Gateway()
		return err == nil && gw.Network().ChainID == 1
	}, time.Second, 5*time.Millisecond)
}

func TestProviderDisconnectEvent(t *testing.T) {
	p := newProvider(testutil.Donor)
	s := newTestSession(t, p, Options{})
	require.NoError(t, s.Connect(context.Background()))

	p.Emit(domain.ProviderEvent{Kind: domain.EventDisconnect, Err: errors.New("closed")})

	require.Eventually(t, func() bool {
		return !s.State().IsConnected
	}, time.Second, 5*time.Millisecond)
}

func TestPublishedStatesAreValid(t *testing.T) {
	var (
		mu     sync.Mutex
		states []domain.WalletState
	)
	p := newProvider(testutil.Donor)
	s := newTestSession(t, p, Options{Reload: func(int64) {}})
	unsubscribe := s.Subscribe(func(st domain.WalletState) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})
	defer unsubscribe()

	require.NoError(t, s.Connect(context.Background()))
	p.Emit(domain.ProviderEvent{Kind: domain.EventChainChanged, ChainID: 5})
	p.Emit(domain.ProviderEvent{Kind: domain.EventAccountsChanged, Accounts: []common.Address{testutil.OtherDonor}})
	p.Emit(domain.ProviderEvent{Kind: domain.EventAccountsChanged})

	require.Eventually(t, func() bool {
		return !s.State().IsConnected
	}, time.Second, 5*time.Millisecond)
	s.Disconnect()
	p.Emit(domain.ProviderEvent{Kind: domain.EventChainChanged, ChainID: 137})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 7
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, st := range states {
		assert.True(t, st.Valid(), "state %d violates the connection invariant: %+v", i, st)
	}
	assert.Nil(t, states[len(states)-1].ChainID, "chain change while disconnected keeps chain unset")
}
