// internal/chains/ethereum/rpc_provider.go
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/ombima56/TranspaCharity/internal/domain"
)

// methodNotFoundCode is the JSON-RPC code for an unsupported method.
const methodNotFoundCode = -32601

// RPCProvider is a wallet provider backed by a JSON-RPC endpoint that manages
// its own accounts (a signer such as Clef, or a dev node with unlocked
// accounts). Keys never leave the endpoint.
type RPCProvider struct {
	client *rpc.Client
	logger *zap.Logger
	feed   event.FeedOf[domain.ProviderEvent]

	pollInterval time.Duration
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewRPCProvider dials rpcURL.
func NewRPCProvider(ctx context.Context, rpcURL string, pollInterval time.Duration, logger *zap.Logger) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to wallet provider: %w", err)
	}
	return newRPCProvider(client, pollInterval, logger), nil
}

func newRPCProvider(client *rpc.Client, pollInterval time.Duration, logger *zap.Logger) *RPCProvider {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &RPCProvider{
		client:       client,
		logger:       logger,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
	}
}

// Accounts returns eth_accounts.
func (p *RPCProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}
	return accounts, nil
}

// RequestAccounts calls eth_requestAccounts, falling back to eth_accounts on
// endpoints that do not implement the EIP-1102 method.
func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	err := p.client.CallContext(ctx, &accounts, "eth_requestAccounts")
	if err == nil {
		return accounts, nil
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == methodNotFoundCode {
		p.logger.Debug("eth_requestAccounts not supported, using eth_accounts")
		return p.Accounts(ctx)
	}
	return nil, err
}

// ChainID returns eth_chainId.
func (p *RPCProvider) ChainID(ctx context.Context) (int64, error) {
	var id hexutil.Big
	if err := p.client.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return 0, fmt.Errorf("failed to get chain ID: %w", err)
	}
	return (*big.Int)(&id).Int64(), nil
}

// CallContract runs eth_call against the latest block.
func (p *RPCProvider) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	var result hexutil.Bytes
	if err := p.client.CallContext(ctx, &result, "eth_call", toCallArg(msg), "latest"); err != nil {
		return nil, err
	}
	return result, nil
}

// SendTransaction hands msg to eth_sendTransaction; the endpoint signs it.
func (p *RPCProvider) SendTransaction(ctx context.Context, msg ethereum.CallMsg) (common.Hash, error) {
	var hash common.Hash
	if err := p.client.CallContext(ctx, &hash, "eth_sendTransaction", toCallArg(msg)); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// TransactionReceipt returns the receipt of hash or ethereum.NotFound while
// it is pending.
func (p *RPCProvider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	if err := p.client.CallContext(ctx, &receipt, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// SubscribeEvents registers ch for provider events.
func (p *RPCProvider) SubscribeEvents(ch chan<- domain.ProviderEvent) event.Subscription {
	return p.feed.Subscribe(ch)
}

// Close stops the watcher and the RPC client.
func (p *RPCProvider) Close() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
	p.client.Close()
}

func toCallArg(msg ethereum.CallMsg) interface{} {
	arg := map[string]interface{}{
		"to": msg.To,
	}
	if msg.From != (common.Address{}) {
		arg["from"] = msg.From
	}
	if len(msg.Data) > 0 {
		arg["data"] = hexutil.Bytes(msg.Data)
		arg["input"] = hexutil.Bytes(msg.Data)
	}
	if msg.Value != nil {
		arg["value"] = (*hexutil.Big)(msg.Value)
	}
	if msg.Gas != 0 {
		arg["gas"] = hexutil.Uint64(msg.Gas)
	}
	return arg
}
