// Package testutil provides an in-memory donation contract and wallet
// provider for package tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"

	chain "github.com/ombima56/TranspaCharity/internal/chains/ethereum"
	"github.com/ombima56/TranspaCharity/internal/domain"
)

var (
	DonationContract = common.HexToAddress("0x394e2ab891c397923c4d8c65e6cc735fdc8c457d")
	USDCContract     = common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	Donor            = common.HexToAddress("0x1111111111111111111111111111111111111111")
	OtherDonor       = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// ErrReverted is returned by calls the fake contract rejects.
var ErrReverted = errors.New("execution reverted")

// RPCError is a JSON-RPC error with a code, as a real provider returns.
type RPCError struct {
	Code int
	Msg  string
}

func (e *RPCError) Error() string  { return e.Msg }
func (e *RPCError) ErrorCode() int { return e.Code }

// UserRejected is the error a wallet returns when the user declines.
func UserRejected() error {
	return &RPCError{Code: 4001, Msg: "User rejected the request."}
}

// SentTx is a transaction submitted to the fake chain.
type SentTx struct {
	From   common.Address
	To     common.Address
	Method string
	Args   []interface{}
	Value  *big.Int
	Hash   common.Hash
}

// Network returns the network the fake contracts live on.
func Network() domain.Network {
	return domain.Network{
		ChainID:          11155111,
		Name:             "Sepolia Testnet",
		DonationContract: DonationContract,
		USDC:             USDCContract,
		USDCDecimals:     6,
	}
}

// FakeChain is an in-memory CharityDonation deployment plus its token.
type FakeChain struct {
	mu sync.Mutex

	Charities []domain.Charity
	Donations []domain.DonationRecord

	// Unreachable makes every eth_call fail, as a wrong address or a dead
	// network would.
	Unreachable bool
	// NoDonationCount simulates a deployment without getDonationCount.
	NoDonationCount bool
	// ReportedDonationCount overrides the value of getDonationCount.
	ReportedDonationCount *uint64
	// FailDonation makes getDonation(id) revert for the listed ids.
	FailDonation map[uint64]bool
	// FailAllDonations makes every getDonation revert.
	FailAllDonations bool

	ApproveErr error
	DonateErr  error

	calls []string
	sent  []SentTx
	nonce uint64

	donationGate chan struct{}
	donationHeld chan uint64
}

// NewFakeChain returns a chain holding charities and donations.
func NewFakeChain(charities []domain.Charity, donations []domain.DonationRecord) *FakeChain {
	return &FakeChain{
		Charities:    charities,
		Donations:    donations,
		FailDonation: make(map[uint64]bool),
	}
}

// Calls returns the contract methods invoked so far, reads and writes.
func (c *FakeChain) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns how many times method was invoked.
func (c *FakeChain) CallCount(method string) int {
	n := 0
	for _, m := range c.Calls() {
		if m == method {
			n++
		}
	}
	return n
}

// Sent returns the submitted transactions.
func (c *FakeChain) Sent() []SentTx {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SentTx, len(c.sent))
	copy(out, c.sent)
	return out
}

// HoldDonations blocks getDonation reads until release is called. Every id
// whose read is held is sent on entered.
func (c *FakeChain) HoldDonations() (entered <-chan uint64, release func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	gate := make(chan struct{})
	held := make(chan uint64, 16)
	c.donationGate, c.donationHeld = gate, held

	var once sync.Once
	return held, func() { once.Do(func() { close(gate) }) }
}

func (c *FakeChain) waitDonationGate(id uint64) {
	c.mu.Lock()
	gate, held := c.donationGate, c.donationHeld
	c.mu.Unlock()
	if gate == nil {
		return
	}
	select {
	case <-gate:
		return
	default:
	}
	select {
	case held <- id:
	default:
	}
	<-gate
}

func (c *FakeChain) call(msg ethereum.CallMsg) ([]byte, error) {
	if msg.To == nil {
		return nil, fmt.Errorf("missing to address")
	}
	method, args, err := decode(*msg.To, msg.Data)
	if err != nil {
		return nil, err
	}
	if method.Name == "getDonation" {
		c.waitDonationGate(args[0].(*big.Int).Uint64())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, method.Name)

	if c.Unreachable {
		return nil, fmt.Errorf("dial tcp: connection refused")
	}

	switch method.Name {
	case "charityCount":
		return method.Outputs.Pack(big.NewInt(int64(len(c.Charities))))

	case "getCharity":
		id := args[0].(*big.Int)
		if !id.IsUint64() || id.Uint64() >= uint64(len(c.Charities)) {
			return nil, ErrReverted
		}
		ch := c.Charities[id.Uint64()]
		return method.Outputs.Pack(ch.Name, ch.Description, ch.WalletAddress, ch.IsVerified,
			orZero(ch.TotalUSDCDonations), orZero(ch.TotalETHDonations))

	case "getDonationCount":
		if c.NoDonationCount {
			return nil, ErrReverted
		}
		count := uint64(len(c.Donations))
		if c.ReportedDonationCount != nil {
			count = *c.ReportedDonationCount
		}
		return method.Outputs.Pack(new(big.Int).SetUint64(count))

	case "getDonation":
		id := args[0].(*big.Int).Uint64()
		if c.FailAllDonations || c.FailDonation[id] || id >= uint64(len(c.Donations)) {
			return nil, ErrReverted
		}
		d := c.Donations[id]
		return method.Outputs.Pack(d.Donor, new(big.Int).SetUint64(d.CharityID), orZero(d.Amount),
			big.NewInt(d.Timestamp), d.IsETH)

	case "decimals":
		return method.Outputs.Pack(uint8(6))

	case "allowance":
		return method.Outputs.Pack(big.NewInt(0))

	case "unknown":
		return nil, nil
	}

	return nil, ErrReverted
}

func (c *FakeChain) send(msg ethereum.CallMsg) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if msg.To == nil {
		return common.Hash{}, fmt.Errorf("missing to address")
	}
	method, args, err := decode(*msg.To, msg.Data)
	if err != nil {
		return common.Hash{}, err
	}
	c.calls = append(c.calls, method.Name)

	switch method.Name {
	case "approve":
		if c.ApproveErr != nil {
			return common.Hash{}, c.ApproveErr
		}
	case "donateUsdc", "donateEth":
		if c.DonateErr != nil {
			return common.Hash{}, c.DonateErr
		}
	}

	c.nonce++
	hash := crypto.Keccak256Hash(msg.From.Bytes(), new(big.Int).SetUint64(c.nonce).Bytes())
	c.sent = append(c.sent, SentTx{
		From:   msg.From,
		To:     *msg.To,
		Method: method.Name,
		Args:   args,
		Value:  msg.Value,
		Hash:   hash,
	})
	return hash, nil
}

func decode(to common.Address, data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("short call data")
	}
	var parsed abi.ABI
	var err error
	switch to {
	case DonationContract:
		parsed, err = chain.DonationABI()
	case USDCContract:
		parsed, err = chain.TokenABI()
	default:
		// no code at the address
		return &abi.Method{Name: "unknown"}, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

// FakeProvider is an injectable wallet provider over a FakeChain.
type FakeProvider struct {
	Chain *FakeChain

	mu          sync.Mutex
	authorised  []common.Address
	granted     []common.Address
	chainID     int64
	requestErr  error
	accountsErr error
	chainErr    error
	gate        chan struct{}

	requests atomic.Int32
	feed     event.FeedOf[domain.ProviderEvent]
}

// NewFakeProvider returns a provider on chainID whose user grants accounts
// when asked.
func NewFakeProvider(c *FakeChain, chainID int64, accounts ...common.Address) *FakeProvider {
	return &FakeProvider{
		Chain:   c,
		granted: accounts,
		chainID: chainID,
	}
}

// Authorise marks accounts as already authorised, so the passive check
// finds them.
func (p *FakeProvider) Authorise(accounts ...common.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authorised = accounts
}

// FailRequests makes RequestAccounts return err.
func (p *FakeProvider) FailRequests(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requestErr = err
}

// FailAccounts makes the passive Accounts check return err.
func (p *FakeProvider) FailAccounts(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accountsErr = err
}

// FailChainID makes ChainID return err.
func (p *FakeProvider) FailChainID(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chainErr = err
}

// SetChainID switches the provider to chainID without emitting an event.
func (p *FakeProvider) SetChainID(chainID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chainID = chainID
}

// HoldRequests makes RequestAccounts block until the returned func is called.
func (p *FakeProvider) HoldRequests() (release func()) {
	gate := make(chan struct{})
	p.mu.Lock()
	p.gate = gate
	p.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// RequestCount returns how many times RequestAccounts was called.
func (p *FakeProvider) RequestCount() int {
	return int(p.requests.Load())
}

// Emit delivers ev to subscribers and returns the number reached.
func (p *FakeProvider) Emit(ev domain.ProviderEvent) int {
	return p.feed.Send(ev)
}

func (p *FakeProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accountsErr != nil {
		return nil, p.accountsErr
	}
	return append([]common.Address(nil), p.authorised...), nil
}

func (p *FakeProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	p.requests.Add(1)

	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.requestErr != nil {
		return nil, p.requestErr
	}
	p.authorised = append([]common.Address(nil), p.granted...)
	return append([]common.Address(nil), p.granted...), nil
}

func (p *FakeProvider) ChainID(ctx context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chainErr != nil {
		return 0, p.chainErr
	}
	return p.chainID, nil
}

func (p *FakeProvider) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.Chain.call(msg)
}

func (p *FakeProvider) SendTransaction(ctx context.Context, msg ethereum.CallMsg) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	return p.Chain.send(msg)
}

func (p *FakeProvider) SubscribeEvents(ch chan<- domain.ProviderEvent) event.Subscription {
	return p.feed.Subscribe(ch)
}

// ReceiptProvider adds receipt reporting to FakeProvider.
type ReceiptProvider struct {
	*FakeProvider

	mu sync.Mutex
	// RevertMethod marks every transaction calling this method as reverted.
	RevertMethod string
	// PendingPolls is the number of receipt polls that report not found
	// before the receipt appears.
	PendingPolls int
	polls        int
}

func NewReceiptProvider(p *FakeProvider) *ReceiptProvider {
	return &ReceiptProvider{FakeProvider: p}
}

func (p *ReceiptProvider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.polls < p.PendingPolls {
		p.polls++
		return nil, ethereum.NotFound
	}

	for _, tx := range p.Chain.Sent() {
		if tx.Hash != hash {
			continue
		}
		status := types.ReceiptStatusSuccessful
		if tx.Method == p.RevertMethod {
			status = types.ReceiptStatusFailed
		}
		return &types.Receipt{TxHash: hash, Status: status}, nil
	}
	return nil, ethereum.NotFound
}
