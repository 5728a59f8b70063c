package ethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ombima56/TranspaCharity/internal/domain"
)

type codedError struct {
	code int
	msg  string
}

func (e *codedError) Error() string  { return e.msg }
func (e *codedError) ErrorCode() int { return e.code }

// walletAPI is the eth namespace of a signer endpoint.
type walletAPI struct {
	mu          sync.Mutex
	accounts    []common.Address
	chainID     int64
	rejectNext  bool
	failPolls   bool
	chainCalls  int
	lastCallArg map[string]interface{}
	lastSent    map[string]interface{}
}

func (api *walletAPI) Accounts() ([]common.Address, error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.failPolls {
		return nil, errors.New("node syncing")
	}
	return api.accounts, nil
}

func (api *walletAPI) ChainId() (*hexutil.Big, error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.chainCalls++
	return (*hexutil.Big)(big.NewInt(api.chainID)), nil
}

func (api *walletAPI) Call(args map[string]interface{}, block string) (hexutil.Bytes, error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.lastCallArg = args
	return hexutil.Bytes{0x01, 0x02}, nil
}

func (api *walletAPI) SendTransaction(args map[string]interface{}) (common.Hash, error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.rejectNext {
		api.rejectNext = false
		return common.Hash{}, &codedError{code: 4001, msg: "User rejected the request."}
	}
	api.lastSent = args
	return common.HexToHash("0xabc"), nil
}

func (api *walletAPI) GetTransactionReceipt(hash common.Hash) (map[string]interface{}, error) {
	// always pending
	return nil, nil
}

func (api *walletAPI) set(fn func(api *walletAPI)) {
	api.mu.Lock()
	defer api.mu.Unlock()
	fn(api)
}

func (api *walletAPI) calls() int {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.chainCalls
}

// requestingAPI adds eth_requestAccounts.
type requestingAPI struct {
	*walletAPI
	granted []common.Address
}

func (api *requestingAPI) RequestAccounts() ([]common.Address, error) {
	return api.granted, nil
}

func newTestProvider(t *testing.T, service interface{}, poll time.Duration) *RPCProvider {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", service))
	p := newRPCProvider(rpc.DialInProc(server), poll, zap.NewNop())
	t.Cleanup(func() {
		p.Close()
		server.Stop()
	})
	return p
}

var (
	accountA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	accountB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func TestRPCProviderReads(t *testing.T) {
	api := &walletAPI{accounts: []common.Address{accountA}, chainID: 11155111}
	p := newTestProvider(t, api, 0)
	ctx := context.Background()

	accounts, err := p.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{accountA}, accounts)

	chainID, err := p.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(11155111), chainID)

	to := accountB
	out, err := p.CallContract(ctx, ethereum.CallMsg{To: &to, Data: []byte{0xde, 0xad}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, out)
	assert.Equal(t, "0xdead", api.lastCallArg["data"])

	_, err = p.TransactionReceipt(ctx, common.HexToHash("0x01"))
	assert.ErrorIs(t, err, ethereum.NotFound)
}

func TestRPCProviderRequestAccounts(t *testing.T) {
	api := &requestingAPI{walletAPI: &walletAPI{chainID: 1}, granted: []common.Address{accountB}}
	p := newTestProvider(t, api, 0)

	accounts, err := p.RequestAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{accountB}, accounts)
}

func TestRPCProviderRequestAccountsFallback(t *testing.T) {
	api := &walletAPI{accounts: []common.Address{accountA}, chainID: 1}
	p := newTestProvider(t, api, 0)

	accounts, err := p.RequestAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{accountA}, accounts)
}

func TestRPCProviderSendTransaction(t *testing.T) {
	api := &walletAPI{chainID: 1}
	p := newTestProvider(t, api, 0)

	to := accountB
	hash, err := p.SendTransaction(context.Background(), ethereum.CallMsg{
		From:  accountA,
		To:    &to,
		Value: big.NewInt(1000),
		Data:  []byte{0x01},
	})
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0xabc"), hash)
	assert.Equal(t, "0x3e8", api.lastSent["value"])

	api.set(func(api *walletAPI) { api.rejectNext = true })
	_, err = p.SendTransaction(context.Background(), ethereum.CallMsg{From: accountA, To: &to})
	require.Error(t, err)
	assert.ErrorIs(t, domain.ClassifyProviderError(err, domain.ErrTransactionFailed), domain.ErrUserRejected)
}

func receive(t *testing.T, ch <-chan domain.ProviderEvent, kind domain.EventKind) domain.ProviderEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s event", kind)
		}
	}
}

func TestWatcherEmitsChanges(t *testing.T) {
	api := &walletAPI{accounts: []common.Address{accountA}, chainID: 11155111}
	p := newTestProvider(t, api, 10*time.Millisecond)

	events := make(chan domain.ProviderEvent, 16)
	sub := p.SubscribeEvents(events)
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.StartWatcher(ctx)

	// second poll means the baseline is recorded
	require.Eventually(t, func() bool { return api.calls() >= 2 }, time.Second, 5*time.Millisecond)

	api.set(func(api *walletAPI) { api.chainID = 1 })
	ev := receive(t, events, domain.EventChainChanged)
	assert.Equal(t, int64(1), ev.ChainID)

	api.set(func(api *walletAPI) { api.accounts = []common.Address{accountB} })
	ev = receive(t, events, domain.EventAccountsChanged)
	assert.Equal(t, []common.Address{accountB}, ev.Accounts)

	api.set(func(api *walletAPI) { api.failPolls = true })
	ev = receive(t, events, domain.EventDisconnect)
	assert.Error(t, ev.Err)

	api.set(func(api *walletAPI) { api.failPolls = false })
	ev = receive(t, events, domain.EventAccountsChanged)
	assert.Equal(t, []common.Address{accountB}, ev.Accounts)
}
